package server

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var traceEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	traceEncMode = em
}

// TraceRecord is one completed command as written to the trace file.
// Exactly one of Result and Error is set.
type TraceRecord struct {
	Time       string   `cbor:"time"`
	Function   string   `cbor:"function,omitempty"`
	Signature  string   `cbor:"signature,omitempty"`
	Args       []string `cbor:"args,omitempty"`
	Result     string   `cbor:"result,omitempty"`
	Error      string   `cbor:"error,omitempty"`
	DurationUS int64    `cbor:"duration_us"`
}

// TraceRecorder appends CBOR-encoded records to a file. A nil recorder
// drops everything, so callers never need to branch on whether tracing is
// enabled.
type TraceRecorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *cbor.Encoder
}

// OpenTrace opens (or creates) the trace file for appending.
func OpenTrace(path string) (*TraceRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("server: open trace %s: %w", path, err)
	}
	return &TraceRecorder{f: f, enc: traceEncMode.NewEncoder(f)}, nil
}

// Record appends one record. Encoding failures are logged and swallowed;
// tracing must never affect the response path.
func (t *TraceRecorder) Record(rec TraceRecord) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enc.Encode(rec); err != nil {
		log.Errorf("trace: %v", err)
	}
}

// Close flushes and closes the trace file.
func (t *TraceRecorder) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.f.Close()
}
