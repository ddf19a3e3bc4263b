package diag

import (
	"fmt"
	"strings"
)

// Position locates a diagnostic in the source buffer. Line and Column are
// 1-based so they can be handed straight to an editor gutter.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// LineCol derives a Position from a byte offset into src.
func LineCol(src string, offset int) Position {
	pos := Position{Line: 1, Column: 1}
	for i, ch := range src {
		if i >= offset {
			break
		}
		if ch == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}

// Error is the shape shared by lexing and parsing failures. All three language
// frontends report through it so the host can render them uniformly.
type Error struct {
	Pos     Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%3d:%2d] %s", e.Pos.Line, e.Pos.Column, e.Message)
}

func Errorf(pos Position, format string, args ...any) *Error {
	return &Error{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Snippet renders the source lines leading up to pos with a caret under the
// offending column, for compiler-style output. Returns "" when pos falls
// outside src.
func Snippet(src string, pos Position) string {
	lines := strings.Split(src, "\n")
	if pos.Line < 1 || pos.Line > len(lines) {
		return ""
	}
	var sb strings.Builder
	start := pos.Line - 2
	if start < 1 {
		start = 1
	}
	for n := start; n < pos.Line; n++ {
		fmt.Fprintf(&sb, "     %3d | %s\n", n, lines[n-1])
	}
	margin := fmt.Sprintf("  >  %3d | ", pos.Line)
	line := lines[pos.Line-1]
	fmt.Fprintf(&sb, "%s%s\n", margin, line)
	col := pos.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}
	sb.WriteString(blankOut(margin + line[:col-1]))
	sb.WriteString("^\n")
	return sb.String()
}

// blankOut turns visible characters into spaces, keeping tabs so the caret
// stays aligned under tabbed source.
func blankOut(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '\t' {
			sb.WriteRune('\t')
		} else {
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

// RuntimeError kinds. A kind names the class of failure; the message names the
// offender (missing line number, undefined predicate, and so on).
const (
	Undefined = "undefined"
	TypeError = "type"
	Division  = "division"
	Index     = "index"
	Control   = "control"
	Arith     = "arith"
	IO        = "io"
)

// RuntimeError is fatal to the running program. Pos is nil when the failing
// construct has no useful source location (for example a directive synthesized
// by the engine).
type RuntimeError struct {
	Kind    string
	Message string
	Pos     *Position
}

func (e *RuntimeError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s error at %s: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func Runtimef(kind string, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func RuntimeAt(kind string, pos Position, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: &pos}
}
