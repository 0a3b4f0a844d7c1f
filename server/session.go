package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/MarioMottl/dllbridge32/protocol"
)

// session reads commands line by line and writes exactly one response line
// for each, until the peer disconnects or a read or write fails.
func (s *Server) session(conn net.Conn) {
	defer conn.Close()
	log.Debugf("session open: %s", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, s.readLimit), s.readLimit)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := fmt.Fprintln(conn, s.handle(line)); err != nil {
			log.Debugf("session write: %v", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		// A line beyond the read limit is unrecoverable for the stream;
		// report it before dropping the connection.
		if errors.Is(err, bufio.ErrTooLong) {
			fmt.Fprintln(conn, "ERROR: "+string(protocol.TagMalformedCommand))
		}
		log.Debugf("session read: %v", err)
	}
	log.Debugf("session closed: %s", conn.RemoteAddr())
}

// handle runs one command to completion and renders the response line.
// Every per-command failure maps to its taxonomy tag; the connection
// stays usable afterwards.
func (s *Server) handle(line string) string {
	start := time.Now()

	req, err := protocol.Parse(line)
	if err != nil {
		return s.fail(req, nil, err, start)
	}
	sig, err := protocol.Resolve(req)
	if err != nil {
		return s.fail(req, nil, err, start)
	}
	addr, err := s.module.Resolve(req.Name)
	if err != nil {
		return s.fail(req, sig, err, start)
	}
	result, err := s.invoker.Invoke(addr, sig, req.Args)
	if err != nil {
		return s.fail(req, sig, err, start)
	}

	rendered := result.Render()
	s.trace.Record(traceRecord(req, sig, rendered, "", time.Since(start)))
	return rendered
}

func (s *Server) fail(req *protocol.Request, sig *protocol.Signature, err error, start time.Time) string {
	tag := protocol.Tag("InternalError")
	var perr *protocol.Error
	if errors.As(err, &perr) {
		tag = perr.Tag
		log.Debugf("command failed: %v", err)
	} else {
		// Outside the taxonomy; should not happen with the closed type and
		// convention tables.
		log.Errorf("command failed: %v", err)
	}
	s.trace.Record(traceRecord(req, sig, "", string(tag), time.Since(start)))
	return "ERROR: " + string(tag)
}

func traceRecord(req *protocol.Request, sig *protocol.Signature, result, errTag string, d time.Duration) TraceRecord {
	rec := TraceRecord{
		Time:       time.Now().Format(time.RFC3339Nano),
		Result:     result,
		Error:      errTag,
		DurationUS: d.Microseconds(),
	}
	if req != nil {
		rec.Function = req.Name
		rec.Args = req.Args
	}
	if sig != nil {
		rec.Signature = sig.String()
	}
	return rec
}
