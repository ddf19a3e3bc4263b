// Package engine defines the host-facing execution contract shared by the
// three interpreters: the event stream a running program produces, the IO
// channel it produces them through, and the session that steps it.
package engine

import (
	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

// Kind names one of the three language frontends.
type Kind string

const (
	KindBasic  Kind = "basic"
	KindPascal Kind = "pascal"
	KindProlog Kind = "prolog"
)

type EventType string

const (
	OUTPUT_EVENT    EventType = "OUTPUT"
	DRAW_EVENT      EventType = "DRAW"
	INPUT_EVENT     EventType = "INPUT_REQUESTED"
	COMPLETED_EVENT EventType = "COMPLETED"
	ERROR_EVENT     EventType = "RUNTIME_ERROR"
)

// Event is one ordered unit of program-visible behavior. The host consumes
// events strictly in the order the session hands them out.
type Event interface {
	Type() EventType
}

// Output carries a text fragment. Fragments are line-buffered: a fragment
// either ends in a newline or was forced out by a draw, an input request, or
// program end.
type Output struct {
	Text string
}

func (Output) Type() EventType { return OUTPUT_EVENT }

// Draw carries one turtle primitive.
type Draw struct {
	Prim turtle.Primitive
}

func (Draw) Type() EventType { return DRAW_EVENT }

// InputRequest suspends the program until the host answers via Resume. At
// most one request is outstanding at a time.
type InputRequest struct {
	Prompt string
}

func (InputRequest) Type() EventType { return INPUT_EVENT }

// Completed is terminal: the program ran off its end, hit END/STOP, exhausted
// its query, or was aborted.
type Completed struct{}

func (Completed) Type() EventType { return COMPLETED_EVENT }

// Failed is terminal: the program died on a runtime error.
type Failed struct {
	Err *diag.RuntimeError
}

func (Failed) Type() EventType { return ERROR_EVENT }

// Program is an immutable parse result, ready to start any number of
// independent sessions.
type Program interface {
	Kind() Kind
	Start() *Session
}
