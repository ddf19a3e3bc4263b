package lexer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/token"
)

// Config selects the surface syntax of one language frontend. The scanning
// core below is shared; the tables decide which words are reserved, which
// operator spellings exist, and how comments and strings are written.
type Config struct {
	// Keywords holds canonical spellings, looked up after Fold is applied.
	Keywords map[string]bool
	// Fold normalizes identifiers before the keyword lookup. nil keeps case.
	Fold func(string) string
	// Operators are matched against the input longest spelling first. Each
	// entry doubles as its own token type (see token.TokenType).
	Operators []string
	// LineComments run to end of line, BlockComments to their closer.
	LineComments  []string
	BlockComments [][2]string
	// Quotes lists string literal delimiters. DoubledQuote escapes the
	// delimiter by writing it twice, as in Pascal's 'don''t'.
	Quotes       []rune
	DoubledQuote bool
	// TrailingDollar admits BASIC string names such as N$ and MID$.
	TrailingDollar bool
	// UpperVars classifies names starting upper-case or with an underscore
	// as logic variables rather than plain identifiers.
	UpperVars bool
	// AllowLeadingDot reads .5 as a number literal.
	AllowLeadingDot bool
}

// Lexer walks src[lo:hi] one rune at a time. Positions stay relative to the
// whole of src, so fragments lexed out of the middle of a numbered line still
// report their real source location.
type Lexer struct {
	cfg   Config
	ops   []string // cfg.Operators, longest spelling first
	input string
	end   int

	position     int  // current byte position (start of current rune)
	readPosition int  // next byte position (start of next rune)
	ch           rune // current rune under examination; 0 means end of input

	errs []*diag.Error
}

func New(cfg Config, src string) *Lexer {
	return NewSlice(cfg, src, 0, len(src))
}

func NewSlice(cfg Config, src string, lo, hi int) *Lexer {
	ops := append([]string(nil), cfg.Operators...)
	sort.Slice(ops, func(i, j int) bool {
		if len(ops[i]) != len(ops[j]) {
			return len(ops[i]) > len(ops[j])
		}
		return ops[i] < ops[j]
	})
	l := &Lexer{cfg: cfg, ops: ops, input: src, end: hi, readPosition: lo}
	l.readChar()
	return l
}

// Tokenize scans all of src under cfg.
func Tokenize(cfg Config, src string) ([]token.Token, []*diag.Error) {
	return TokenizeSlice(cfg, src, 0, len(src))
}

// TokenizeSlice scans src[lo:hi], reporting positions against the full src.
func TokenizeSlice(cfg Config, src string, lo, hi int) ([]token.Token, []*diag.Error) {
	l := NewSlice(cfg, src, lo, hi)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, l.errs
}

func (l *Lexer) Errors() []*diag.Error { return l.errs }

func (l *Lexer) NextToken() token.Token {
	l.skipSpace()

	pos := l.position
	switch {
	case l.ch == 0:
		return token.Token{Type: token.EOF, Pos: pos}
	case l.isQuote(l.ch):
		return l.readString(l.ch)
	case isLetter(l.ch):
		return l.readName()
	case isDigit(l.ch):
		return l.readNumber()
	case l.cfg.AllowLeadingDot && l.ch == '.' && isDigit(l.peekChar()):
		return l.readNumber()
	}

	if op, ok := l.matchOperator(); ok {
		l.skipBytes(len(op))
		return token.Token{Type: token.TokenType(op), Literal: op, Pos: pos}
	}

	l.errorf(pos, "unexpected character %q", string(l.ch))
	tok := token.Token{Type: token.ILLEGAL, Literal: string(l.ch), Pos: pos}
	l.readChar()
	return tok
}

func (l *Lexer) skipSpace() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
			continue
		}
		rest := l.input[l.position:l.end]
		if hasAnyPrefix(rest, l.cfg.LineComments) {
			l.skipToLineEnd()
			continue
		}
		if open, close, ok := l.matchBlockComment(rest); ok {
			l.skipBlockComment(open, close)
			continue
		}
		return
	}
}

func (l *Lexer) skipToLineEnd() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) matchBlockComment(rest string) (string, string, bool) {
	for _, pair := range l.cfg.BlockComments {
		if strings.HasPrefix(rest, pair[0]) {
			return pair[0], pair[1], true
		}
	}
	return "", "", false
}

func (l *Lexer) skipBlockComment(open, close string) {
	pos := l.position
	l.skipBytes(len(open))
	for {
		if l.ch == 0 {
			l.errorf(pos, "unterminated comment")
			return
		}
		if strings.HasPrefix(l.input[l.position:l.end], close) {
			l.skipBytes(len(close))
			return
		}
		l.readChar()
	}
}

// readName scans an identifier and classifies it as a keyword, a logic
// variable, or a plain name.
func (l *Lexer) readName() token.Token {
	pos := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	if l.cfg.TrailingDollar && l.ch == '$' {
		l.readChar()
	}
	raw := l.input[pos:l.position]
	lit := raw
	if l.cfg.Fold != nil {
		lit = l.cfg.Fold(lit)
	}
	switch {
	case l.cfg.Keywords[lit]:
		return token.Token{Type: token.KEYWORD, Literal: lit, Pos: pos}
	case l.cfg.UpperVars && startsUpper(raw):
		return token.Token{Type: token.VARIABLE, Literal: raw, Pos: pos}
	}
	return token.Token{Type: token.IDENT, Literal: lit, Pos: pos}
}

// readNumber scans an integer or decimal literal with an optional exponent.
// A trailing dot is left alone so Prolog clause terminators and Pascal
// subranges such as 0..9 survive: the dot only joins the number when a digit
// follows it.
func (l *Lexer) readNumber() token.Token {
	pos := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		peek := l.peekChar()
		if isDigit(peek) || ((peek == '+' || peek == '-') && isDigit(l.peekTwoChars())) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return token.Token{Type: token.NUMBER, Literal: l.input[pos:l.position], Pos: pos}
}

// readString scans a quoted literal. Strings never span lines; the literal
// carried on the token is the decoded text without its quotes.
func (l *Lexer) readString(quote rune) token.Token {
	pos := l.position
	l.readChar()
	var sb strings.Builder
	for {
		switch {
		case l.ch == 0 || l.ch == '\n':
			l.errorf(pos, "unterminated string")
			return token.Token{Type: token.ILLEGAL, Literal: l.input[pos:l.position], Pos: pos}
		case l.ch == quote:
			if l.cfg.DoubledQuote && l.peekChar() == quote {
				sb.WriteRune(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return token.Token{Type: token.STRING, Literal: sb.String(), Pos: pos}
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
}

func (l *Lexer) matchOperator() (string, bool) {
	rest := l.input[l.position:l.end]
	for _, op := range l.ops {
		if strings.HasPrefix(rest, op) {
			return op, true
		}
	}
	return "", false
}

func (l *Lexer) isQuote(ch rune) bool {
	for _, q := range l.cfg.Quotes {
		if ch == q {
			return true
		}
	}
	return false
}

// readChar advances by one UTF-8 rune, updating byte positions
func (l *Lexer) readChar() {
	if l.readPosition >= l.end {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:l.end])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
}

// peekChar returns the next rune without advancing; returns 0 at end of input
func (l *Lexer) peekChar() rune {
	if l.readPosition >= l.end {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:l.end])
	return r
}

// peekTwoChars returns the rune after next without advancing; returns 0 if unavailable
func (l *Lexer) peekTwoChars() rune {
	if l.readPosition >= l.end {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.input[l.readPosition:l.end])
	idx := l.readPosition + size
	if idx >= l.end {
		return 0
	}
	r2, _ := utf8.DecodeRuneInString(l.input[idx:l.end])
	return r2
}

// skipBytes jumps n bytes ahead from the current position. Callers only pass
// the length of text already matched, so the jump always lands on a rune
// boundary.
func (l *Lexer) skipBytes(n int) {
	l.readPosition = l.position + n
	l.readChar()
}

func (l *Lexer) errorf(pos int, format string, args ...any) {
	l.errs = append(l.errs, diag.Errorf(diag.LineCol(l.input, pos), format, args...))
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func startsUpper(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r == '_' || unicode.IsUpper(r)
}
