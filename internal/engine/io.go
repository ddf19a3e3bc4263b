package engine

import (
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

// IO is the ordered channel between a machine and its host. Machines write
// text, draw primitives, and input requests into it while stepping; the
// session pops events out one per Step call. Text is line-buffered so each
// Output fragment is a whole line wherever possible; anything still buffered
// is flushed before a draw, an input request, or a terminal event, which
// keeps the stream's total order honest.
type IO struct {
	queue    []Event
	buf      strings.Builder
	awaiting bool
	input    *string
}

// Print appends text to the current output line. Complete lines are
// delivered immediately; a trailing partial line stays buffered.
func (io *IO) Print(text string) {
	io.buf.WriteString(text)
	s := io.buf.String()
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		io.queue = append(io.queue, Output{Text: s[:i+1]})
		io.buf.Reset()
		io.buf.WriteString(s[i+1:])
	}
}

// Println prints text with a newline, flushing the line it completes.
func (io *IO) Println(text string) {
	io.Print(text + "\n")
}

// Draw queues a primitive behind any partial output line. A nil primitive
// (pen-up movement) is dropped, so callers can pass turtle results straight
// through.
func (io *IO) Draw(p *turtle.Primitive) {
	if p == nil {
		return
	}
	io.flushPartial()
	io.queue = append(io.queue, Draw{Prim: *p})
}

// Request suspends the machine for input. The prompt rides on the event; any
// partial output line is flushed first so the host has seen everything the
// program said before it asks.
func (io *IO) Request(prompt string) {
	io.flushPartial()
	io.awaiting = true
	io.queue = append(io.queue, InputRequest{Prompt: prompt})
}

// TakeInput hands the machine the host's answer, once.
func (io *IO) TakeInput() (string, bool) {
	if io.input == nil {
		return "", false
	}
	text := *io.input
	io.input = nil
	return text, true
}

// Awaiting reports whether an input request is outstanding.
func (io *IO) Awaiting() bool { return io.awaiting }

func (io *IO) provide(text string) {
	io.awaiting = false
	io.input = &text
}

func (io *IO) pop() (Event, bool) {
	if len(io.queue) == 0 {
		return nil, false
	}
	ev := io.queue[0]
	io.queue = io.queue[1:]
	return ev, true
}

func (io *IO) flushPartial() {
	if io.buf.Len() > 0 {
		io.queue = append(io.queue, Output{Text: io.buf.String()})
		io.buf.Reset()
	}
}

func (io *IO) drop() {
	io.queue = nil
	io.buf.Reset()
	io.awaiting = false
	io.input = nil
}
