package token

import (
	"github.com/James-HoneyBadger/timewarp/internal/diag"
)

// Stream is the cursor all three parsers walk. It owns the source text so
// diagnostics can be reported with line/column positions derived from token
// byte offsets.
type Stream struct {
	Src  string
	toks []Token
	pos  int
	errs []*diag.Error
}

func NewStream(src string, toks []Token) *Stream {
	return &Stream{Src: src, toks: toks}
}

func (s *Stream) Cur() Token {
	if s.pos >= len(s.toks) {
		return Token{Type: EOF, Pos: len(s.Src)}
	}
	return s.toks[s.pos]
}

func (s *Stream) Peek() Token {
	if s.pos+1 >= len(s.toks) {
		return Token{Type: EOF, Pos: len(s.Src)}
	}
	return s.toks[s.pos+1]
}

func (s *Stream) Next() Token {
	tok := s.Cur()
	if s.pos < len(s.toks) {
		s.pos++
	}
	return tok
}

func (s *Stream) CurIs(t TokenType) bool  { return s.Cur().Type == t }
func (s *Stream) PeekIs(t TokenType) bool { return s.Peek().Type == t }

// Accept consumes the current token when it has the given type.
func (s *Stream) Accept(t TokenType) bool {
	if s.CurIs(t) {
		s.Next()
		return true
	}
	return false
}

// Expect consumes the current token of the given type or records an error.
func (s *Stream) Expect(t TokenType) (Token, bool) {
	if s.CurIs(t) {
		return s.Next(), true
	}
	s.Errorf("expected %s, got %s", t, s.describe(s.Cur()))
	return s.Cur(), false
}

// AcceptKeyword consumes the current token when it is the given keyword.
func (s *Stream) AcceptKeyword(kw string) bool {
	if s.CurIs(KEYWORD) && s.Cur().Literal == kw {
		s.Next()
		return true
	}
	return false
}

func (s *Stream) ExpectKeyword(kw string) bool {
	if s.AcceptKeyword(kw) {
		return true
	}
	s.Errorf("expected %q, got %s", kw, s.describe(s.Cur()))
	return false
}

func (s *Stream) describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of input"
	case NEWLINE:
		return "end of line"
	case KEYWORD, IDENT, NUMBER, STRING, VARIABLE:
		return string(tok.Type) + " " + tok.Literal
	}
	return "'" + tok.Literal + "'"
}

// Errorf records a parse error at the current token.
func (s *Stream) Errorf(format string, args ...any) {
	s.ErrorfAt(s.Cur().Pos, format, args...)
}

func (s *Stream) ErrorfAt(pos int, format string, args ...any) {
	s.errs = append(s.errs, diag.Errorf(diag.LineCol(s.Src, pos), format, args...))
}

func (s *Stream) Errors() []*diag.Error { return s.errs }

// Err returns the first recorded error, or nil when parsing succeeded.
func (s *Stream) Err() *diag.Error {
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0]
}
