package native

/*
#cgo pkg-config: libffi

#include <ffi.h>
#include <stdint.h>
#include <stdlib.h>

enum {
	BRIDGE_INT32 = 0,
	BRIDGE_INT64,
	BRIDGE_FLOAT32,
	BRIDGE_FLOAT64,
	BRIDGE_CSTR,
	BRIDGE_VOID,
};

typedef union {
	int32_t i32;
	int64_t i64;
	float   f32;
	double  f64;
	void*   ptr;
} bridge_word;

#define BRIDGE_MAX_ARGS 16

static ffi_type* bridge_ffi_type(int kind) {
	switch (kind) {
	case BRIDGE_INT32:   return &ffi_type_sint32;
	case BRIDGE_INT64:   return &ffi_type_sint64;
	case BRIDGE_FLOAT32: return &ffi_type_float;
	case BRIDGE_FLOAT64: return &ffi_type_double;
	case BRIDGE_CSTR:    return &ffi_type_pointer;
	default:             return &ffi_type_void;
	}
}

// Stdcall only exists as a distinct ABI on 32-bit x86. Elsewhere it
// collapses to the platform default, matching what C compilers do with
// __stdcall on 64-bit targets.
static ffi_abi bridge_abi(int stdcall) {
#ifdef __i386__
	if (stdcall) return FFI_STDCALL;
#endif
	(void)stdcall;
	return FFI_DEFAULT_ABI;
}

// Build the call frame and execute it. All pointer juggling stays on the
// C side so no Go pointers cross the boundary. Returns nonzero when libffi
// rejects the signature; a fault inside the target function is not
// interceptable and takes the process down.
static int bridge_call(void* fn, int stdcall, int nargs, int* kinds,
                       bridge_word* args, int ret_kind, bridge_word* ret) {
	ffi_cif cif;
	ffi_type* atypes[BRIDGE_MAX_ARGS];
	void* avalues[BRIDGE_MAX_ARGS];
	int i;

	if (nargs > BRIDGE_MAX_ARGS)
		return 1;
	for (i = 0; i < nargs; i++) {
		atypes[i] = bridge_ffi_type(kinds[i]);
		avalues[i] = &args[i];
	}
	if (ffi_prep_cif(&cif, bridge_abi(stdcall), nargs,
	                 bridge_ffi_type(ret_kind), atypes) != FFI_OK)
		return 1;

	switch (ret_kind) {
	case BRIDGE_INT32: {
		ffi_arg raw;
		ffi_call(&cif, FFI_FN(fn), &raw, avalues);
		ret->i32 = (int32_t)raw;
		break;
	}
	case BRIDGE_INT64: {
		int64_t raw;
		ffi_call(&cif, FFI_FN(fn), &raw, avalues);
		ret->i64 = raw;
		break;
	}
	case BRIDGE_FLOAT32: {
		float raw;
		ffi_call(&cif, FFI_FN(fn), &raw, avalues);
		ret->f32 = raw;
		break;
	}
	case BRIDGE_FLOAT64: {
		double raw;
		ffi_call(&cif, FFI_FN(fn), &raw, avalues);
		ret->f64 = raw;
		break;
	}
	case BRIDGE_CSTR: {
		void* raw;
		ffi_call(&cif, FFI_FN(fn), &raw, avalues);
		ret->ptr = raw;
		break;
	}
	default:
		ffi_call(&cif, FFI_FN(fn), NULL, avalues);
		break;
	}
	return 0;
}
*/
import "C"

import (
	"fmt"
	"strconv"
	"unsafe"

	"github.com/MarioMottl/dllbridge32/protocol"
)

// Result is the typed outcome of a successful foreign call.
type Result struct {
	Kind  protocol.ValueType
	Int   int64
	Float float64
	Str   string
}

// Render formats the result as the body of the response line: decimal for
// integers, shortest form for floats, the pointed-to string for cstr (a
// NULL return renders empty), and nothing for void.
func (r Result) Render() string {
	switch r.Kind {
	case protocol.Int32, protocol.Int64:
		return strconv.FormatInt(r.Int, 10)
	case protocol.Float32:
		return strconv.FormatFloat(r.Float, 'g', -1, 32)
	case protocol.Float64:
		return strconv.FormatFloat(r.Float, 'g', -1, 64)
	case protocol.CString:
		return r.Str
	}
	return ""
}

func ckind(t protocol.ValueType) C.int {
	switch t {
	case protocol.Int32:
		return C.BRIDGE_INT32
	case protocol.Int64:
		return C.BRIDGE_INT64
	case protocol.Float32:
		return C.BRIDGE_FLOAT32
	case protocol.Float64:
		return C.BRIDGE_FLOAT64
	case protocol.CString:
		return C.BRIDGE_CSTR
	}
	return C.BRIDGE_VOID
}

// frame holds the coerced argument words for one call, plus the C strings
// that must be freed once the call returns.
type frame struct {
	kinds []C.int
	words []C.bridge_word
	cstrs []*C.char
}

func (f *frame) free() {
	for _, s := range f.cstrs {
		C.free(unsafe.Pointer(s))
	}
}

// coerce parses each textual token into the native value declared at its
// position. Any failure aborts before native work happens; no partial
// invocation occurs.
func coerce(sig *protocol.Signature, args []string) (*frame, error) {
	if len(args) != len(sig.Params) {
		return nil, protocol.Errf(protocol.TagArgumentCountMismatch,
			"signature declares %d parameter(s), got %d argument(s)", len(sig.Params), len(args))
	}
	f := &frame{
		kinds: make([]C.int, len(args)),
		words: make([]C.bridge_word, len(args)),
	}
	for i, tok := range args {
		t := sig.Params[i]
		f.kinds[i] = ckind(t)
		w := &f.words[i]
		switch t {
		case protocol.Int32:
			n, err := strconv.ParseInt(tok, 0, 32)
			if err != nil {
				f.free()
				return nil, protocol.Errf(protocol.TagArgumentTypeMismatch,
					"argument %d: %q is not a 32-bit integer", i+1, tok)
			}
			*(*int32)(unsafe.Pointer(w)) = int32(n)
		case protocol.Int64:
			n, err := strconv.ParseInt(tok, 0, 64)
			if err != nil {
				f.free()
				return nil, protocol.Errf(protocol.TagArgumentTypeMismatch,
					"argument %d: %q is not a 64-bit integer", i+1, tok)
			}
			*(*int64)(unsafe.Pointer(w)) = n
		case protocol.Float32:
			x, err := strconv.ParseFloat(tok, 32)
			if err != nil {
				f.free()
				return nil, protocol.Errf(protocol.TagArgumentTypeMismatch,
					"argument %d: %q is not a float", i+1, tok)
			}
			*(*float32)(unsafe.Pointer(w)) = float32(x)
		case protocol.Float64:
			x, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				f.free()
				return nil, protocol.Errf(protocol.TagArgumentTypeMismatch,
					"argument %d: %q is not a double", i+1, tok)
			}
			*(*float64)(unsafe.Pointer(w)) = x
		case protocol.CString:
			s := C.CString(tok)
			f.cstrs = append(f.cstrs, s)
			*(*unsafe.Pointer)(unsafe.Pointer(w)) = unsafe.Pointer(s)
		default:
			f.free()
			return nil, protocol.Errf(protocol.TagUnsupportedType,
				"argument %d: %s cannot be marshalled", i+1, t)
		}
	}
	return f, nil
}

// call executes the foreign call on the current goroutine. Callers go
// through Invoker so at most one call is in flight process-wide.
func call(addr uintptr, sig *protocol.Signature, f *frame) (Result, error) {
	stdcall := C.int(0)
	if sig.Conv == protocol.Stdcall {
		stdcall = 1
	}

	var kindsPtr *C.int
	var wordsPtr *C.bridge_word
	if len(f.words) > 0 {
		kindsPtr = &f.kinds[0]
		wordsPtr = &f.words[0]
	}

	var ret C.bridge_word
	rc := C.bridge_call(unsafe.Pointer(addr), stdcall, C.int(len(f.words)),
		kindsPtr, wordsPtr, ckind(sig.Ret), &ret)
	if rc != 0 {
		return Result{}, fmt.Errorf("native: call frame rejected for signature %s", sig)
	}

	r := Result{Kind: sig.Ret}
	switch sig.Ret {
	case protocol.Int32:
		r.Int = int64(*(*int32)(unsafe.Pointer(&ret)))
	case protocol.Int64:
		r.Int = *(*int64)(unsafe.Pointer(&ret))
	case protocol.Float32:
		r.Float = float64(*(*float32)(unsafe.Pointer(&ret)))
	case protocol.Float64:
		r.Float = *(*float64)(unsafe.Pointer(&ret))
	case protocol.CString:
		if p := *(*unsafe.Pointer)(unsafe.Pointer(&ret)); p != nil {
			r.Str = C.GoString((*C.char)(p))
		}
	}
	return r, nil
}
