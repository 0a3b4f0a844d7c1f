// Package native owns the loaded library image and performs dynamically
// constructed foreign calls into its exports. The loader knows nothing
// about prototypes: it hands out raw addresses, and correctness from there
// on depends entirely on the declared signature matching the target.
package native

/*
#cgo LDFLAGS: -ldl

#include <dlfcn.h>
#include <stdlib.h>

static void* bridge_dlopen(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static const char* bridge_dlerror(void) {
	return dlerror();
}

// Clear any stale error, look the symbol up, and report the error (if any)
// alongside the result so NULL-valued exports stay distinguishable from
// lookup failures.
static void* bridge_dlsym(void* handle, const char* name, char** err) {
	dlerror();
	void* sym = dlsym(handle, name);
	char* e = dlerror();
	if (err) *err = e;
	return sym;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/MarioMottl/dllbridge32/protocol"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("dllbridge.native")

// Module is an opened native library. One instance lives for the whole
// process, shared read-mostly across sessions. Resolved exports are cached
// and stay valid until Close.
type Module struct {
	path   string
	handle unsafe.Pointer

	mu      sync.RWMutex
	symbols map[string]uintptr

	closeOnce sync.Once
}

// Open loads the library at path. Failure here is fatal to the server;
// there is no partial startup.
func Open(path string) (*Module, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	handle := C.bridge_dlopen(cPath)
	if handle == nil {
		return nil, fmt.Errorf("native: load %s: %s", path, C.GoString(C.bridge_dlerror()))
	}
	log.Infof("loaded %s", path)
	return &Module{path: path, handle: handle, symbols: make(map[string]uintptr)}, nil
}

// Path returns the file the module was loaded from.
func (m *Module) Path() string { return m.path }

// Resolve returns the raw address of an exported symbol. Lookup is a
// case-sensitive exact match. Results are cached; the underlying dlsym
// runs at most once per name.
func (m *Module) Resolve(name string) (uintptr, error) {
	m.mu.RLock()
	addr, ok := m.symbols[name]
	m.mu.RUnlock()
	if ok {
		return addr, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if addr, ok := m.symbols[name]; ok {
		return addr, nil
	}

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var cErr *C.char
	sym := C.bridge_dlsym(m.handle, cName, &cErr)
	if cErr != nil {
		return 0, protocol.Errf(protocol.TagSymbolNotFound, "%s", name)
	}
	addr = uintptr(sym)
	m.symbols[name] = addr
	log.Debugf("resolved %s -> %#x", name, addr)
	return addr, nil
}

// Close releases the library image. Only the first call performs the
// dlclose; later calls are no-ops, so it is safe on every exit path.
func (m *Module) Close() {
	m.closeOnce.Do(func() {
		C.dlclose(m.handle)
		log.Infof("closed %s", m.path)
	})
}
