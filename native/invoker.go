package native

import (
	"runtime"

	"github.com/MarioMottl/dllbridge32/protocol"
)

// callRequest is one unit of work for the invoker goroutine.
type callRequest struct {
	addr uintptr
	sig  *protocol.Signature
	f    *frame
	done chan callResult
}

type callResult struct {
	result Result
	err    error
}

// Invoker executes every foreign call in the process on one dedicated
// OS thread, one at a time. Legacy libraries exposed through the bridge
// are rarely re-entrant, so at most one call may be in flight regardless
// of how many sessions are active; contending sessions block until the
// prior call returns. Calls are not cancellable and carry no timeout.
type Invoker struct {
	requests chan callRequest
	quit     chan struct{}
}

// NewInvoker starts the invoker thread.
func NewInvoker() *Invoker {
	inv := &Invoker{
		requests: make(chan callRequest),
		quit:     make(chan struct{}),
	}
	go inv.loop()
	return inv
}

func (inv *Invoker) loop() {
	// Some libraries key internal state to the calling thread; keep every
	// call on the same one.
	runtime.LockOSThread()
	for {
		select {
		case req := <-inv.requests:
			result, err := call(req.addr, req.sig, req.f)
			req.done <- callResult{result, err}
		case <-inv.quit:
			return
		}
	}
}

// Invoke coerces the argument tokens against the signature, submits the
// call to the invoker thread, and blocks until it returns. Coercion
// failures are reported before any native work happens.
func (inv *Invoker) Invoke(addr uintptr, sig *protocol.Signature, args []string) (Result, error) {
	f, err := coerce(sig, args)
	if err != nil {
		return Result{}, err
	}
	defer f.free()

	req := callRequest{addr: addr, sig: sig, f: f, done: make(chan callResult, 1)}
	inv.requests <- req
	res := <-req.done
	return res.result, res.err
}

// Stop shuts down the invoker thread. Calls already submitted complete
// first; the channel is unbuffered, so nothing is dropped.
func (inv *Invoker) Stop() {
	close(inv.quit)
}
