package engine

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
)

var (
	// ErrAwaitingInput means Step was called while an input request is
	// outstanding; the host must answer with Resume first.
	ErrAwaitingInput = errors.New("program is awaiting input")
	// ErrNotAwaiting means Resume was called with no input request
	// outstanding.
	ErrNotAwaiting = errors.New("no input request outstanding")
)

// Machine is one language's resumable execution state. Step advances by one
// statement (or one resolution step), emitting whatever events that produces,
// and reports whether the program has run to completion. A machine that has
// requested input returns without advancing until TakeInput succeeds.
type Machine interface {
	Step(io *IO) (done bool, err *diag.RuntimeError)
}

// Session drives one machine and owns the event stream the host sees. All
// methods except Abort must be called from one goroutine; Abort may be called
// from anywhere at any time and wins before the next event is produced.
type Session struct {
	kind     Kind
	machine  Machine
	io       IO
	terminal Event
	aborted  atomic.Bool
}

func NewSession(kind Kind, m Machine) *Session {
	slog.Debug("session started", "language", string(kind))
	return &Session{kind: kind, machine: m}
}

func (s *Session) Kind() Kind { return s.kind }

// Done reports whether a terminal event has been reached.
func (s *Session) Done() bool { return s.terminal != nil }

// Awaiting reports whether the program is suspended on an input request.
func (s *Session) Awaiting() bool { return s.io.Awaiting() }

// Abort asks the session to stop. Idempotent; the next Step or Resume call
// returns Completed without emitting anything further.
func (s *Session) Abort() {
	if !s.aborted.Swap(true) {
		slog.Debug("session abort requested", "language", string(s.kind))
	}
}

// Step returns the next event. Queued events are delivered first; once the
// queue is dry the machine runs statement by statement until it produces
// something, finishes, fails, or suspends for input.
func (s *Session) Step() (Event, error) {
	if s.checkAbort() {
		return s.terminal, nil
	}
	if ev, ok := s.io.pop(); ok {
		return ev, nil
	}
	if s.terminal != nil {
		return s.terminal, nil
	}
	if s.io.Awaiting() {
		return nil, ErrAwaitingInput
	}

	for {
		done, rerr := s.machine.Step(&s.io)
		if s.checkAbort() {
			return s.terminal, nil
		}
		if rerr != nil {
			s.fail(rerr)
		} else if done {
			s.complete()
		}
		if ev, ok := s.io.pop(); ok {
			return ev, nil
		}
		if s.terminal != nil {
			return s.terminal, nil
		}
		if s.io.Awaiting() {
			return nil, ErrAwaitingInput
		}
	}
}

// Resume answers an outstanding input request and returns the next event.
func (s *Session) Resume(text string) (Event, error) {
	if s.checkAbort() {
		return s.terminal, nil
	}
	if !s.io.Awaiting() {
		return nil, ErrNotAwaiting
	}
	s.io.provide(text)
	return s.Step()
}

func (s *Session) checkAbort() bool {
	if !s.aborted.Load() {
		return false
	}
	if s.terminal == nil {
		s.io.drop()
		s.terminal = Completed{}
	}
	return true
}

func (s *Session) complete() {
	s.io.flushPartial()
	s.terminal = Completed{}
}

func (s *Session) fail(rerr *diag.RuntimeError) {
	slog.Warn("program failed", "language", string(s.kind), "kind", rerr.Kind, "error", rerr.Message)
	s.io.flushPartial()
	s.terminal = Failed{Err: rerr}
}
