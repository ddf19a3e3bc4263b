package basic

import (
	"sort"
	"strconv"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/lexer"
	"github.com/James-HoneyBadger/timewarp/internal/token"
)

var lexConfig = lexer.Config{
	Keywords: keywordSet(
		"LET", "PRINT", "INPUT", "GOTO", "GOSUB", "RETURN", "IF", "THEN", "ELSE",
		"FOR", "TO", "STEP", "NEXT", "END", "STOP", "CLS", "REM",
		"AND", "OR", "NOT", "MOD",
		"FORWARD", "FD", "BACK", "BK", "LEFT", "LT", "RIGHT", "RT",
		"PENUP", "PU", "PENDOWN", "PD", "HOME", "CLEARSCREEN", "CS",
		"SETXY", "SETHEADING", "SETH", "SETCOLOR", "SETPENSIZE",
		"CIRCLE", "DOT", "HIDETURTLE", "HT", "SHOWTURTLE", "ST", "REPEAT",
	),
	Fold: strings.ToUpper,
	Operators: []string{
		"=", "<>", "<", "<=", ">", ">=", "+", "-", "*", "/", "^",
		"(", ")", ",", ";", "[", "]", "?",
	},
	LineComments:    []string{"//"},
	Quotes:          []rune{'"'},
	TrailingDollar:  true,
	AllowLeadingDot: true,
}

func keywordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// canonicalOp maps Logo abbreviations to their long names.
var canonicalOp = map[string]string{
	"FD": "FORWARD", "BK": "BACK", "LT": "LEFT", "RT": "RIGHT",
	"PU": "PENUP", "PD": "PENDOWN", "CS": "CLEARSCREEN", "SETH": "SETHEADING",
	"HT": "HIDETURTLE", "ST": "SHOWTURTLE",
}

// turtleArgc says how many expressions each turtle command consumes.
var turtleArgc = map[string]int{
	"FORWARD": 1, "BACK": 1, "LEFT": 1, "RIGHT": 1,
	"SETHEADING": 1, "SETCOLOR": 1, "SETPENSIZE": 1, "CIRCLE": 1,
	"SETXY": 2,
	"PENUP": 0, "PENDOWN": 0, "HOME": 0, "CLEARSCREEN": 0,
	"DOT": 0, "HIDETURTLE": 0, "SHOWTURTLE": 0,
}

// Program is an immutable parsed TW BASIC program. Lines sit in execution
// order: sorted by line number for numbered programs, source order otherwise.
type Program struct {
	src    string
	lines  []progLine
	index  map[int]int
	labels map[string]int
}

type progLine struct {
	num  int
	at   int
	stmt Stmt
}

func (p *Program) Kind() engine.Kind { return engine.KindBasic }

func (p *Program) Start() *engine.Session {
	return engine.NewSession(engine.KindBasic, newMachine(p))
}

// Parse compiles TW BASIC source. A program must be uniformly numbered or
// uniformly unnumbered: numbered lines execute sorted by number, unnumbered
// programs in source order.
func Parse(src string) (*Program, []*diag.Error) {
	p := &parser{src: src}

	for start := 0; start <= len(src); {
		end := strings.IndexByte(src[start:], '\n')
		if end < 0 {
			end = len(src)
		} else {
			end += start
		}
		lineEnd := end
		if lineEnd > start && src[lineEnd-1] == '\r' {
			lineEnd--
		}
		p.parseLine(start, lineEnd)
		start = end + 1
	}

	prog := p.assemble()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return prog, nil
}

type parser struct {
	src  string
	rows []row
	errs []*diag.Error
}

type row struct {
	num    int
	hasNum bool
	at     int
	stmt   Stmt
}

func (p *parser) errorf(at int, format string, args ...any) {
	p.errs = append(p.errs, diag.Errorf(diag.LineCol(p.src, at), format, args...))
}

// parseLine classifies one raw source line: optional line number, then a
// PILOT command, a *label, a comment, or a tokenized BASIC/Logo statement.
// PILOT text commands keep their argument verbatim, so they are carved off
// the raw line before any tokenizing happens.
func (p *parser) parseLine(start, end int) {
	i := skipBlank(p.src, start, end)

	num, hasNum := 0, false
	if d := i; d < end && isDigitByte(p.src[d]) {
		for d < end && isDigitByte(p.src[d]) {
			d++
		}
		num, _ = strconv.Atoi(p.src[i:d])
		hasNum = true
		i = skipBlank(p.src, d, end)
	}

	if i >= end {
		return // blank line
	}

	rest := p.src[i:end]
	switch {
	case rest[0] == '\'' || strings.HasPrefix(rest, "//") || isRemLine(rest):
		// Comment lines keep their number so they stay valid jump targets.
		if hasNum {
			p.rows = append(p.rows, row{num: num, hasNum: true, at: i, stmt: nil})
		}
		return
	case rest[0] == '*':
		name := strings.ToUpper(strings.TrimSpace(rest[1:]))
		if name == "" {
			p.errorf(i, "label name missing after *")
			return
		}
		p.rows = append(p.rows, row{num: num, hasNum: hasNum, at: i, stmt: &LabelStmt{At: i, Name: name}})
		return
	case len(rest) >= 2 && rest[1] == ':' && isPilotLetter(rest[0]):
		stmt := p.parsePilot(upperByte(rest[0]), i, i+2, end)
		if stmt != nil {
			p.rows = append(p.rows, row{num: num, hasNum: hasNum, at: i, stmt: stmt})
		} else if hasNum {
			p.rows = append(p.rows, row{num: num, hasNum: true, at: i, stmt: nil})
		}
		return
	}

	stmt := p.parseFragment(i, end)
	if stmt != nil || hasNum {
		p.rows = append(p.rows, row{num: num, hasNum: hasNum, at: i, stmt: stmt})
	}
}

// parsePilot handles the letter-colon commands. argStart points just past
// the colon; text arguments run verbatim to end of line.
func (p *parser) parsePilot(cmd byte, at, argStart, end int) Stmt {
	raw := p.src[argStart:end]
	switch cmd {
	case 'T':
		return &TypeStmt{At: at, Text: raw}
	case 'Y':
		return &TypeStmt{At: at, Cond: 'Y', Text: raw}
	case 'N':
		return &TypeStmt{At: at, Cond: 'N', Text: raw}
	case 'R', 'D':
		return nil // remark; D: (dimension) is accepted and ignored
	case 'E':
		return &EndRoutineStmt{At: at}
	case 'A':
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name != "" && !isVarName(name) {
			p.errorf(argStart, "A: expects a variable name, got %q", strings.TrimSpace(raw))
			return nil
		}
		return &AcceptStmt{At: at, Name: name}
	case 'M':
		var pats []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				pats = append(pats, strings.ToUpper(part))
			}
		}
		if len(pats) == 0 {
			p.errorf(argStart, "M: expects at least one pattern")
			return nil
		}
		return &MatchStmt{At: at, Patterns: pats}
	case 'J', 'U':
		name := strings.ToUpper(strings.TrimSpace(raw))
		name = strings.TrimPrefix(name, "*")
		if name == "" || !isVarName(name) {
			p.errorf(argStart, "%c: expects a *label target", cmd)
			return nil
		}
		if cmd == 'J' {
			return &JumpStmt{At: at, Label: name}
		}
		return &UseStmt{At: at, Label: name}
	case 'C':
		s := p.stream(argStart, end)
		stmt := p.parseAssign(s, at)
		p.finishLine(s)
		return stmt
	}
	return nil
}

func (p *parser) stream(lo, hi int) *token.Stream {
	toks, errs := lexer.TokenizeSlice(lexConfig, p.src, lo, hi)
	p.errs = append(p.errs, errs...)
	return token.NewStream(p.src, toks)
}

// finishLine flags trailing junk and folds the fragment's parse errors into
// the program-wide list.
func (p *parser) finishLine(s *token.Stream) {
	if !s.CurIs(token.EOF) {
		s.Errorf("unexpected %q after statement", s.Cur().Literal)
	}
	p.errs = append(p.errs, s.Errors()...)
}

func (p *parser) parseFragment(lo, hi int) Stmt {
	s := p.stream(lo, hi)
	if s.CurIs(token.EOF) {
		return nil
	}
	stmt := p.parseStatement(s)
	p.finishLine(s)
	return stmt
}

func (p *parser) parseStatement(s *token.Stream) Stmt {
	tok := s.Cur()
	switch {
	case tok.Type == token.KEYWORD:
		return p.parseKeywordStatement(s)
	case tok.Type == token.QUESTION:
		s.Next()
		return p.parsePrint(s, tok.Pos)
	case tok.Type == token.IDENT:
		return p.parseAssign(s, tok.Pos)
	}
	s.Errorf("expected a statement, got %q", tok.Literal)
	s.Next()
	return nil
}

func (p *parser) parseKeywordStatement(s *token.Stream) Stmt {
	tok := s.Next()
	kw := tok.Literal
	if long, ok := canonicalOp[kw]; ok {
		kw = long
	}

	switch kw {
	case "LET":
		return p.parseAssign(s, tok.Pos)

	case "PRINT":
		return p.parsePrint(s, tok.Pos)

	case "INPUT":
		prompt := "? "
		if s.CurIs(token.STRING) {
			prompt = s.Next().Literal + "? "
			if !s.Accept(token.SEMICOLON) {
				s.Accept(token.COMMA)
			}
		}
		name, ok := s.Expect(token.IDENT)
		if !ok {
			return nil
		}
		return &InputStmt{At: tok.Pos, Prompt: prompt, Name: name.Literal}

	case "GOTO", "GOSUB":
		target, ok := p.parseLineNumber(s)
		if !ok {
			return nil
		}
		if kw == "GOTO" {
			return &GotoStmt{At: tok.Pos, Line: target}
		}
		return &GosubStmt{At: tok.Pos, Line: target}

	case "RETURN":
		return &ReturnStmt{At: tok.Pos}

	case "END", "STOP":
		return &EndStmt{At: tok.Pos}

	case "CLS":
		return &ClsStmt{At: tok.Pos}

	case "REM":
		for !s.CurIs(token.EOF) {
			s.Next()
		}
		return nil

	case "IF":
		return p.parseIf(s, tok.Pos)

	case "FOR":
		return p.parseFor(s, tok.Pos)

	case "NEXT":
		name := ""
		if s.CurIs(token.IDENT) {
			name = s.Next().Literal
		}
		return &NextStmt{At: tok.Pos, Name: name}

	case "REPEAT":
		return p.parseRepeat(s, tok.Pos)
	}

	if argc, ok := turtleArgc[kw]; ok {
		st := &TurtleStmt{At: tok.Pos, Op: kw}
		for n := 0; n < argc; n++ {
			if n > 0 {
				s.Accept(token.COMMA)
			}
			arg := p.parseExpression(s, LOWEST)
			if arg == nil {
				return nil
			}
			st.Args = append(st.Args, arg)
		}
		return st
	}

	s.Errorf("%s cannot start a statement", kw)
	return nil
}

func (p *parser) parseAssign(s *token.Stream, at int) Stmt {
	name, ok := s.Expect(token.IDENT)
	if !ok {
		return nil
	}
	if _, ok := s.Expect(token.EQ); !ok {
		return nil
	}
	expr := p.parseExpression(s, LOWEST)
	if expr == nil {
		return nil
	}
	return &LetStmt{At: at, Name: name.Literal, Expr: expr}
}

func (p *parser) parsePrint(s *token.Stream, at int) Stmt {
	st := &PrintStmt{At: at}
	if s.CurIs(token.EOF) {
		return st
	}
	for {
		expr := p.parseExpression(s, LOWEST)
		if expr == nil {
			return nil
		}
		item := PrintItem{Expr: expr}
		if s.CurIs(token.SEMICOLON) || s.CurIs(token.COMMA) {
			item.Sep = s.Next().Literal[0]
		}
		st.Items = append(st.Items, item)
		if item.Sep == 0 {
			return st
		}
		if s.CurIs(token.EOF) {
			st.NoNewline = true
			return st
		}
	}
}

func (p *parser) parseIf(s *token.Stream, at int) Stmt {
	cond := p.parseExpression(s, LOWEST)
	if cond == nil {
		return nil
	}
	if !s.ExpectKeyword("THEN") {
		return nil
	}
	then := p.parseBranch(s)
	if then == nil {
		return nil
	}
	st := &IfStmt{At: at, Cond: cond, Then: then}
	if s.AcceptKeyword("ELSE") {
		st.Else = p.parseBranch(s)
		if st.Else == nil {
			return nil
		}
	}
	return st
}

// parseBranch parses the target of THEN or ELSE: a bare line number is sugar
// for GOTO, anything else is an inline statement.
func (p *parser) parseBranch(s *token.Stream) Stmt {
	if s.CurIs(token.NUMBER) {
		tok := s.Cur()
		target, ok := p.parseLineNumber(s)
		if !ok {
			return nil
		}
		return &GotoStmt{At: tok.Pos, Line: target}
	}
	return p.parseStatement(s)
}

func (p *parser) parseFor(s *token.Stream, at int) Stmt {
	name, ok := s.Expect(token.IDENT)
	if !ok {
		return nil
	}
	if _, ok := s.Expect(token.EQ); !ok {
		return nil
	}
	from := p.parseExpression(s, LOWEST)
	if from == nil {
		return nil
	}
	if !s.ExpectKeyword("TO") {
		return nil
	}
	to := p.parseExpression(s, LOWEST)
	if to == nil {
		return nil
	}
	st := &ForStmt{At: at, Name: name.Literal, From: from, To: to}
	if s.AcceptKeyword("STEP") {
		st.Step = p.parseExpression(s, LOWEST)
		if st.Step == nil {
			return nil
		}
	}
	return st
}

// parseRepeat parses REPEAT n [ stmt... ]. The body must close on the same
// line.
func (p *parser) parseRepeat(s *token.Stream, at int) Stmt {
	count := p.parseExpression(s, LOWEST)
	if count == nil {
		return nil
	}
	if _, ok := s.Expect(token.LBRACKET); !ok {
		return nil
	}
	st := &RepeatStmt{At: at, Count: count}
	for !s.CurIs(token.RBRACKET) {
		if s.CurIs(token.EOF) {
			s.Errorf("REPEAT body missing closing ]")
			return nil
		}
		body := p.parseStatement(s)
		if body == nil {
			return nil
		}
		st.Body = append(st.Body, body)
	}
	s.Next() // ]
	return st
}

func (p *parser) parseLineNumber(s *token.Stream) (int, bool) {
	tok, ok := s.Expect(token.NUMBER)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(tok.Literal)
	if err != nil {
		s.ErrorfAt(tok.Pos, "line number must be an integer, got %q", tok.Literal)
		return 0, false
	}
	return n, true
}

// assemble orders the collected rows into the final program, enforcing the
// all-or-nothing line numbering rule and resolving label targets.
func (p *parser) assemble() *Program {
	prog := &Program{src: p.src, index: map[int]int{}, labels: map[string]int{}}

	numbered := false
	for _, r := range p.rows {
		if r.hasNum {
			numbered = true
			break
		}
	}
	if numbered {
		for _, r := range p.rows {
			if !r.hasNum {
				p.errorf(r.at, "unnumbered line in a numbered program")
				return nil
			}
		}
		sort.SliceStable(p.rows, func(i, j int) bool { return p.rows[i].num < p.rows[j].num })
		for i := 1; i < len(p.rows); i++ {
			if p.rows[i].num == p.rows[i-1].num {
				p.errorf(p.rows[i].at, "duplicate line number %d", p.rows[i].num)
				return nil
			}
		}
	}

	for _, r := range p.rows {
		idx := len(prog.lines)
		prog.lines = append(prog.lines, progLine{num: r.num, at: r.at, stmt: r.stmt})
		if r.hasNum {
			prog.index[r.num] = idx
		}
		if lbl, ok := r.stmt.(*LabelStmt); ok {
			if _, dup := prog.labels[lbl.Name]; dup {
				p.errorf(r.at, "duplicate label *%s", lbl.Name)
				return nil
			}
			prog.labels[lbl.Name] = idx
		}
	}
	return prog
}

// Expression parsing, precedence-climbing style. Unary minus outranks ^, so
// -2 ^ 2 is 4.
const (
	_ int = iota
	LOWEST
	OR_PREC
	AND_PREC
	NOT_PREC
	COMPARE
	SUM
	PRODUCT
	POWER
	PREFIX
)

func precedenceOf(tok token.Token) int {
	switch tok.Type {
	case token.KEYWORD:
		switch tok.Literal {
		case "OR":
			return OR_PREC
		case "AND":
			return AND_PREC
		case "MOD":
			return PRODUCT
		}
	case token.EQ, token.NOT_EQ, token.LT, token.LT_EQ, token.GT, token.GT_EQ:
		return COMPARE
	case token.PLUS, token.MINUS:
		return SUM
	case token.STAR, token.SLASH:
		return PRODUCT
	case token.CARET:
		return POWER
	}
	return LOWEST
}

func (p *parser) parseExpression(s *token.Stream, prec int) Expr {
	left := p.parsePrefix(s)
	if left == nil {
		return nil
	}
	for prec < precedenceOf(s.Cur()) {
		left = p.parseInfix(s, left)
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *parser) parsePrefix(s *token.Stream) Expr {
	tok := s.Cur()
	switch tok.Type {
	case token.NUMBER:
		s.Next()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			s.ErrorfAt(tok.Pos, "bad number literal %q", tok.Literal)
			return nil
		}
		return &NumberLit{At: tok.Pos, Value: v}

	case token.STRING:
		s.Next()
		return &StringLit{At: tok.Pos, Value: tok.Literal}

	case token.IDENT:
		s.Next()
		if s.Accept(token.LPAREN) {
			call := &CallExpr{At: tok.Pos, Name: tok.Literal}
			if !s.CurIs(token.RPAREN) {
				for {
					arg := p.parseExpression(s, LOWEST)
					if arg == nil {
						return nil
					}
					call.Args = append(call.Args, arg)
					if !s.Accept(token.COMMA) {
						break
					}
				}
			}
			if _, ok := s.Expect(token.RPAREN); !ok {
				return nil
			}
			return call
		}
		return &VarRef{At: tok.Pos, Name: tok.Literal}

	case token.LPAREN:
		s.Next()
		inner := p.parseExpression(s, LOWEST)
		if inner == nil {
			return nil
		}
		if _, ok := s.Expect(token.RPAREN); !ok {
			return nil
		}
		return inner

	case token.MINUS:
		s.Next()
		right := p.parseExpression(s, PREFIX)
		if right == nil {
			return nil
		}
		return &PrefixExpr{At: tok.Pos, Op: "-", Right: right}

	case token.KEYWORD:
		if tok.Literal == "NOT" {
			s.Next()
			right := p.parseExpression(s, NOT_PREC)
			if right == nil {
				return nil
			}
			return &PrefixExpr{At: tok.Pos, Op: "NOT", Right: right}
		}
	}
	s.Errorf("expected an expression, got %q", tok.Literal)
	return nil
}

func (p *parser) parseInfix(s *token.Stream, left Expr) Expr {
	tok := s.Next()
	op := tok.Literal
	prec := precedenceOf(tok)
	if tok.Type == token.CARET {
		prec-- // right-associative
	}
	right := p.parseExpression(s, prec)
	if right == nil {
		return nil
	}
	return &InfixExpr{At: tok.Pos, Op: op, Left: left, Right: right}
}

func skipBlank(src string, i, end int) int {
	for i < end && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

func isRemLine(rest string) bool {
	if len(rest) < 3 || !strings.EqualFold(rest[:3], "REM") {
		return false
	}
	return len(rest) == 3 || rest[3] == ' ' || rest[3] == '\t'
}

func isPilotLetter(b byte) bool {
	switch upperByte(b) {
	case 'T', 'A', 'M', 'Y', 'N', 'J', 'U', 'E', 'C', 'R', 'D':
		return true
	}
	return false
}

func upperByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func isVarName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		case r == '$':
			if i != len(name)-1 {
				return false
			}
		default:
			return false
		}
	}
	return name != ""
}
