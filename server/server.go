// Package server accepts bridge connections and drives each command line
// through parse, signature resolution, symbol lookup, and invocation.
// Sessions run in parallel; the foreign calls themselves are serialized by
// the native invoker.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/MarioMottl/dllbridge32/native"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("dllbridge.server")

const defaultReadLimit = 64 * 1024

// Server owns the listener and the shared module and invoker handed to
// every session.
type Server struct {
	module    *native.Module
	invoker   *native.Invoker
	trace     *TraceRecorder
	readLimit int

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// Option configures a Server.
type Option func(*Server)

// WithTrace records every completed command to the given recorder.
func WithTrace(t *TraceRecorder) Option {
	return func(s *Server) { s.trace = t }
}

// WithReadLimit caps the accepted command-line length in bytes.
func WithReadLimit(n int) Option {
	return func(s *Server) { s.readLimit = n }
}

// New creates a Server over an opened module and a running invoker.
func New(module *native.Module, invoker *native.Invoker, opts ...Option) *Server {
	s := &Server{
		module:    module,
		invoker:   invoker,
		readLimit: defaultReadLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe binds a TCP listener on addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l, one session goroutine per connection.
// It returns nil after Close.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return nil
	}
	s.listener = l
	s.mu.Unlock()

	log.Infof("listening on %s (library %s)", l.Addr(), s.module.Path())

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.session(conn)
	}
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting connections. Sessions already reading finish their
// current command; a call in flight on the invoker runs to completion.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
}
