package pascal

import (
	"strconv"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/lexer"
	"github.com/James-HoneyBadger/timewarp/internal/token"
)

var lexConfig = lexer.Config{
	Keywords: keywordSet(
		"program", "const", "var", "begin", "end",
		"procedure", "function", "array", "of",
		"if", "then", "else", "while", "do", "repeat", "until",
		"for", "to", "downto", "case",
		"div", "mod", "and", "or", "not", "true", "false",
	),
	Fold: strings.ToLower,
	Operators: []string{
		":=", "=", "<>", "<", "<=", ">", ">=", "+", "-", "*", "/",
		"(", ")", "[", "]", ",", ";", ":", ".", "..",
	},
	LineComments:  []string{"//"},
	BlockComments: [][2]string{{"{", "}"}, {"(*", "*)"}},
	Quotes:        []rune{'\''},
	DoubledQuote:  true,
}

func keywordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Program is a parsed TW Pascal program: declarations plus the top-level
// begin...end block.
type Program struct {
	src      string
	name     string
	consts   []ConstDecl
	globals  []VarDecl
	routines map[string]*Routine
	main     []Stmt
}

func (p *Program) Kind() engine.Kind { return engine.KindPascal }

func (p *Program) Start() *engine.Session {
	return engine.NewSession(engine.KindPascal, newMachine(p))
}

// Parse compiles TW Pascal source. The program header is optional; the
// top-level block must close with "end.".
func Parse(src string) (*Program, []*diag.Error) {
	toks, errs := lexer.Tokenize(lexConfig, src)
	if len(errs) > 0 {
		return nil, errs
	}
	p := &parser{
		s:    token.NewStream(src, toks),
		prog: &Program{src: src, routines: make(map[string]*Routine)},
	}
	p.parseProgram()
	if len(p.s.Errors()) == 0 {
		p.checkNames()
	}
	if errs := p.s.Errors(); len(errs) > 0 {
		return nil, errs
	}
	return p.prog, nil
}

type parser struct {
	s       *token.Stream
	prog    *Program
	ordered []*Routine
}

func (p *parser) parseProgram() {
	if p.s.AcceptKeyword("program") {
		if tok, ok := p.s.Expect(token.IDENT); ok {
			p.prog.name = tok.Literal
		}
		p.s.Accept(token.SEMICOLON)
	}
	p.parseDeclarations(&p.prog.consts, &p.prog.globals, true)
	p.s.ExpectKeyword("begin")
	p.prog.main = p.parseStatements("end")
	p.s.ExpectKeyword("end")
	p.s.Expect(token.PERIOD)
	if !p.s.CurIs(token.EOF) {
		p.s.Errorf("unexpected %q after final end.", p.s.Cur().Literal)
	}
}

// parseDeclarations reads const and var sections, plus procedure and
// function declarations when routines is true (only the top level may
// declare them).
func (p *parser) parseDeclarations(consts *[]ConstDecl, vars *[]VarDecl, routines bool) {
	for {
		switch {
		case p.s.AcceptKeyword("const"):
			p.parseConstSection(consts)
		case p.s.AcceptKeyword("var"):
			p.parseVarSection(vars)
		case routines && (p.s.CurIs(token.KEYWORD) &&
			(p.s.Cur().Literal == "procedure" || p.s.Cur().Literal == "function")):
			p.parseRoutine()
		default:
			return
		}
	}
}

func (p *parser) parseConstSection(out *[]ConstDecl) {
	for p.s.CurIs(token.IDENT) {
		tok := p.s.Next()
		p.s.Expect(token.EQ)
		expr := p.parseExpression()
		p.s.Expect(token.SEMICOLON)
		*out = append(*out, ConstDecl{At: tok.Pos, Name: tok.Literal, Expr: expr})
	}
}

func (p *parser) parseVarSection(out *[]VarDecl) {
	for p.s.CurIs(token.IDENT) {
		at := p.s.Cur().Pos
		names := p.parseIdentList()
		p.s.Expect(token.COLON)
		typ := p.parseType()
		p.s.Expect(token.SEMICOLON)
		*out = append(*out, VarDecl{At: at, Names: names, Type: typ})
	}
}

func (p *parser) parseIdentList() []string {
	var names []string
	for {
		tok, ok := p.s.Expect(token.IDENT)
		if !ok {
			return names
		}
		names = append(names, tok.Literal)
		if !p.s.Accept(token.COMMA) {
			return names
		}
	}
}

func (p *parser) parseType() TypeSpec {
	at := p.s.Cur().Pos
	if p.s.AcceptKeyword("array") {
		p.s.Expect(token.LBRACKET)
		lo := p.parseBound()
		p.s.Expect(token.DOTDOT)
		hi := p.parseBound()
		p.s.Expect(token.RBRACKET)
		p.s.ExpectKeyword("of")
		elem := p.parseBaseType()
		size := hi - lo + 1
		if size < 1 {
			p.s.ErrorfAt(at, "array bounds %d..%d are empty", lo, hi)
			size = 0
		}
		return TypeSpec{At: at, Base: "array", IsArray: true, Size: size, Elem: elem}
	}
	return TypeSpec{At: at, Base: p.parseBaseType()}
}

// parseBound reads one literal array bound, optionally signed.
func (p *parser) parseBound() int {
	neg := p.s.Accept(token.MINUS)
	tok, ok := p.s.Expect(token.NUMBER)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(tok.Literal)
	if err != nil {
		p.s.ErrorfAt(tok.Pos, "array bound %q is not an integer", tok.Literal)
		return 0
	}
	if neg {
		n = -n
	}
	return n
}

func (p *parser) parseBaseType() string {
	tok, ok := p.s.Expect(token.IDENT)
	if !ok {
		return TypeInteger
	}
	switch tok.Literal {
	case TypeInteger, TypeReal, TypeString, TypeBoolean:
		return tok.Literal
	}
	p.s.ErrorfAt(tok.Pos, "unknown type %q", tok.Literal)
	return TypeInteger
}

func (p *parser) parseRoutine() {
	kind := p.s.Next().Literal // procedure or function
	nameTok, ok := p.s.Expect(token.IDENT)
	if !ok {
		return
	}
	r := &Routine{At: nameTok.Pos, Name: nameTok.Literal}
	if p.s.CurIs(token.LPAREN) {
		r.Params = p.parseParams()
	}
	if kind == "function" {
		p.s.Expect(token.COLON)
		r.Result = p.parseBaseType()
	}
	p.s.Expect(token.SEMICOLON)
	p.parseDeclarations(&r.Consts, &r.Locals, false)
	p.s.ExpectKeyword("begin")
	r.Body = p.parseStatements("end")
	p.s.ExpectKeyword("end")
	p.s.Expect(token.SEMICOLON)
	if _, dup := p.prog.routines[r.Name]; dup {
		p.s.ErrorfAt(r.At, "%s %q is declared twice", kind, r.Name)
		return
	}
	p.prog.routines[r.Name] = r
	p.ordered = append(p.ordered, r)
}

// predefined names cannot be redeclared; write and read statements are
// recognized by the parser and the rest are standard functions.
var predefined = map[string]bool{
	"write": true, "writeln": true, "read": true, "readln": true,
}

// checkNames rejects duplicate declarations before execution starts.
// Routine-local names may shadow globals but not each other, the routine's
// own name, or a predefined name.
func (p *parser) checkNames() {
	globals := map[string]bool{}
	for _, cd := range p.prog.consts {
		p.declareName(globals, cd.Name, cd.At)
	}
	for _, vd := range p.prog.globals {
		for _, n := range vd.Names {
			p.declareName(globals, n, vd.At)
		}
	}
	for _, r := range p.ordered {
		if predefined[r.Name] || builtins[r.Name] != nil {
			p.s.ErrorfAt(r.At, "%q is predefined", r.Name)
		} else if globals[r.Name] {
			p.s.ErrorfAt(r.At, "%q is declared twice", r.Name)
		}
		locals := map[string]bool{}
		declare := func(name string, at int) {
			if name == r.Name {
				p.s.ErrorfAt(at, "%q conflicts with the routine name", name)
				return
			}
			p.declareName(locals, name, at)
		}
		for _, prm := range r.Params {
			declare(prm.Name, prm.At)
		}
		for _, cd := range r.Consts {
			declare(cd.Name, cd.At)
		}
		for _, vd := range r.Locals {
			for _, n := range vd.Names {
				declare(n, vd.At)
			}
		}
	}
}

func (p *parser) declareName(scope map[string]bool, name string, at int) {
	if predefined[name] || builtins[name] != nil {
		p.s.ErrorfAt(at, "%q is predefined", name)
		return
	}
	if scope[name] {
		p.s.ErrorfAt(at, "%q is declared twice", name)
		return
	}
	scope[name] = true
}

func (p *parser) parseParams() []Param {
	p.s.Expect(token.LPAREN)
	var params []Param
	for {
		byRef := p.s.AcceptKeyword("var")
		at := p.s.Cur().Pos
		names := p.parseIdentList()
		p.s.Expect(token.COLON)
		typ := p.parseType()
		for _, n := range names {
			params = append(params, Param{At: at, Name: n, Type: typ, ByRef: byRef})
		}
		if !p.s.Accept(token.SEMICOLON) {
			break
		}
	}
	p.s.Expect(token.RPAREN)
	return params
}

// parseStatements reads a semicolon-separated statement list up to any of
// the stop keywords. Empty statements are allowed, as in Pascal.
func (p *parser) parseStatements(stops ...string) []Stmt {
	var stmts []Stmt
	for {
		for p.s.Accept(token.SEMICOLON) {
		}
		if p.s.CurIs(token.EOF) || p.atKeyword(stops...) {
			return stmts
		}
		before := p.s.Cur()
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if !p.s.CurIs(token.SEMICOLON) && !p.s.CurIs(token.EOF) && !p.atKeyword(stops...) {
			p.s.Errorf("expected ';' between statements, got %q", p.s.Cur().Literal)
		}
		// Always make progress, even through malformed input.
		if p.s.Cur() == before {
			p.s.Next()
		}
	}
}

func (p *parser) atKeyword(words ...string) bool {
	if !p.s.CurIs(token.KEYWORD) {
		return false
	}
	for _, w := range words {
		if p.s.Cur().Literal == w {
			return true
		}
	}
	return false
}

func (p *parser) parseStatement() Stmt {
	tok := p.s.Cur()
	switch {
	case p.s.AcceptKeyword("begin"):
		body := p.parseStatements("end")
		p.s.ExpectKeyword("end")
		return &BlockStmt{At: tok.Pos, Body: body}
	case p.s.AcceptKeyword("if"):
		return p.parseIf(tok.Pos)
	case p.s.AcceptKeyword("while"):
		cond := p.parseExpression()
		p.s.ExpectKeyword("do")
		return &WhileStmt{At: tok.Pos, Cond: cond, Body: p.parseStatement()}
	case p.s.AcceptKeyword("repeat"):
		body := p.parseStatements("until")
		p.s.ExpectKeyword("until")
		return &RepeatStmt{At: tok.Pos, Body: body, Cond: p.parseExpression()}
	case p.s.AcceptKeyword("for"):
		return p.parseFor(tok.Pos)
	case p.s.AcceptKeyword("case"):
		return p.parseCase(tok.Pos)
	case p.s.CurIs(token.IDENT):
		return p.parseSimpleStatement()
	}
	p.s.Errorf("expected a statement, got %q", tok.Literal)
	return nil
}

func (p *parser) parseIf(at int) Stmt {
	cond := p.parseExpression()
	p.s.ExpectKeyword("then")
	then := p.parseStatement()
	var els Stmt
	if p.s.AcceptKeyword("else") {
		els = p.parseStatement()
	}
	return &IfStmt{At: at, Cond: cond, Then: then, Else: els}
}

func (p *parser) parseFor(at int) Stmt {
	nameTok, ok := p.s.Expect(token.IDENT)
	if !ok {
		return nil
	}
	p.s.Expect(token.ASSIGN)
	from := p.parseExpression()
	down := false
	switch {
	case p.s.AcceptKeyword("to"):
	case p.s.AcceptKeyword("downto"):
		down = true
	default:
		p.s.Errorf("expected \"to\" or \"downto\", got %q", p.s.Cur().Literal)
	}
	to := p.parseExpression()
	p.s.ExpectKeyword("do")
	return &ForStmt{At: at, Name: nameTok.Literal, From: from, To: to, Down: down, Body: p.parseStatement()}
}

func (p *parser) parseCase(at int) Stmt {
	sel := p.parseExpression()
	p.s.ExpectKeyword("of")
	st := &CaseStmt{At: at, Selector: sel}
	for {
		for p.s.Accept(token.SEMICOLON) {
		}
		if p.s.CurIs(token.EOF) || p.atKeyword("end", "else") {
			break
		}
		var labels []Expr
		for {
			labels = append(labels, p.parseExpression())
			if !p.s.Accept(token.COMMA) {
				break
			}
		}
		p.s.Expect(token.COLON)
		st.Arms = append(st.Arms, CaseArm{Labels: labels, Body: p.parseStatement()})
	}
	if p.s.AcceptKeyword("else") {
		st.Else = p.parseStatements("end")
	}
	p.s.ExpectKeyword("end")
	return st
}

// parseSimpleStatement handles the statements that open with an identifier:
// write and read in their four spellings, assignment, and procedure calls.
func (p *parser) parseSimpleStatement() Stmt {
	tok := p.s.Next()
	switch tok.Literal {
	case "writeln", "write":
		st := &WriteStmt{At: tok.Pos, Newline: tok.Literal == "writeln"}
		if p.s.Accept(token.LPAREN) {
			if !p.s.CurIs(token.RPAREN) {
				for {
					st.Args = append(st.Args, p.parseExpression())
					if !p.s.Accept(token.COMMA) {
						break
					}
				}
			}
			p.s.Expect(token.RPAREN)
		}
		return st
	case "readln", "read":
		st := &ReadStmt{At: tok.Pos}
		if p.s.Accept(token.LPAREN) {
			if !p.s.CurIs(token.RPAREN) {
				for {
					st.Targets = append(st.Targets, p.parseDesignator())
					if !p.s.Accept(token.COMMA) {
						break
					}
				}
			}
			p.s.Expect(token.RPAREN)
		}
		return st
	}

	if p.s.CurIs(token.LBRACKET) || p.s.CurIs(token.ASSIGN) {
		target := p.finishDesignator(tok)
		p.s.Expect(token.ASSIGN)
		return &AssignStmt{At: tok.Pos, Target: target, Expr: p.parseExpression()}
	}

	st := &CallStmt{At: tok.Pos, Name: tok.Literal}
	if p.s.Accept(token.LPAREN) {
		if !p.s.CurIs(token.RPAREN) {
			for {
				st.Args = append(st.Args, p.parseExpression())
				if !p.s.Accept(token.COMMA) {
					break
				}
			}
		}
		p.s.Expect(token.RPAREN)
	}
	return st
}

func (p *parser) parseDesignator() Designator {
	tok, ok := p.s.Expect(token.IDENT)
	if !ok {
		return Designator{At: tok.Pos}
	}
	return p.finishDesignator(tok)
}

func (p *parser) finishDesignator(tok token.Token) Designator {
	d := Designator{At: tok.Pos, Name: tok.Literal}
	if p.s.Accept(token.LBRACKET) {
		d.Index = p.parseExpression()
		p.s.Expect(token.RBRACKET)
	}
	return d
}

// Expressions follow Pascal's layered grammar: relations over simple
// expressions over terms over factors. A sign before the first term applies
// to the whole term.
func (p *parser) parseExpression() Expr {
	left := p.parseSimple()
	if op, ok := p.relOp(); ok {
		at := p.s.Next().Pos
		right := p.parseSimple()
		return &InfixExpr{At: at, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) relOp() (string, bool) {
	switch p.s.Cur().Type {
	case token.EQ, token.NOT_EQ, token.LT, token.LT_EQ, token.GT, token.GT_EQ:
		return p.s.Cur().Literal, true
	}
	return "", false
}

func (p *parser) parseSimple() Expr {
	var sign *token.Token
	if p.s.CurIs(token.MINUS) || p.s.CurIs(token.PLUS) {
		tok := p.s.Next()
		sign = &tok
	}
	left := p.parseTerm()
	if sign != nil && sign.Type == token.MINUS {
		left = &PrefixExpr{At: sign.Pos, Op: "-", Right: left}
	}
	for {
		var op string
		switch {
		case p.s.CurIs(token.PLUS):
			op = "+"
		case p.s.CurIs(token.MINUS):
			op = "-"
		case p.atKeyword("or"):
			op = "or"
		default:
			return left
		}
		at := p.s.Next().Pos
		left = &InfixExpr{At: at, Op: op, Left: left, Right: p.parseTerm()}
	}
}

func (p *parser) parseTerm() Expr {
	left := p.parseFactor()
	for {
		var op string
		switch {
		case p.s.CurIs(token.STAR):
			op = "*"
		case p.s.CurIs(token.SLASH):
			op = "/"
		case p.atKeyword("div"):
			op = "div"
		case p.atKeyword("mod"):
			op = "mod"
		case p.atKeyword("and"):
			op = "and"
		default:
			return left
		}
		at := p.s.Next().Pos
		left = &InfixExpr{At: at, Op: op, Left: left, Right: p.parseFactor()}
	}
}

func (p *parser) parseFactor() Expr {
	tok := p.s.Cur()
	switch {
	case p.s.Accept(token.NUMBER):
		n, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.s.ErrorfAt(tok.Pos, "malformed number %q", tok.Literal)
		}
		return &NumberLit{At: tok.Pos, Value: n}
	case p.s.Accept(token.STRING):
		return &StringLit{At: tok.Pos, Value: tok.Literal}
	case p.s.AcceptKeyword("true"):
		return &BoolLit{At: tok.Pos, Value: true}
	case p.s.AcceptKeyword("false"):
		return &BoolLit{At: tok.Pos, Value: false}
	case p.s.AcceptKeyword("not"):
		return &PrefixExpr{At: tok.Pos, Op: "not", Right: p.parseFactor()}
	case p.s.Accept(token.LPAREN):
		e := p.parseExpression()
		p.s.Expect(token.RPAREN)
		return e
	case p.s.Accept(token.IDENT):
		switch {
		case p.s.Accept(token.LPAREN):
			call := &CallExpr{At: tok.Pos, Name: tok.Literal}
			if !p.s.CurIs(token.RPAREN) {
				for {
					call.Args = append(call.Args, p.parseExpression())
					if !p.s.Accept(token.COMMA) {
						break
					}
				}
			}
			p.s.Expect(token.RPAREN)
			return call
		case p.s.Accept(token.LBRACKET):
			idx := p.parseExpression()
			p.s.Expect(token.RBRACKET)
			return &IndexExpr{At: tok.Pos, Name: tok.Literal, Index: idx}
		}
		return &VarExpr{At: tok.Pos, Name: tok.Literal}
	}
	p.s.Errorf("expected an expression, got %s", describeToken(tok))
	p.s.Next()
	return &NumberLit{At: tok.Pos}
}

func describeToken(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return strconv.Quote(tok.Literal)
}
