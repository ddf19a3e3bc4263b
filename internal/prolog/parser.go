package prolog

import (
	"strconv"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/lexer"
	"github.com/James-HoneyBadger/timewarp/internal/token"
)

var lexConfig = lexer.Config{
	Operators: []string{
		":-", "?-", "=..", "=:=", "=\\=", "==", "\\==", "=<", ">=",
		"<", ">", "=", "\\=", "\\+", "!", "|", ",", ";", ".",
		"(", ")", "[", "]", "+", "-", "*", "/",
	},
	LineComments: []string{"%"},
	Quotes:       []rune{'\''},
	UpperVars:    true,
}

type assoc int

const (
	xfx assoc = iota
	xfy
	yfx
)

type opInfo struct {
	prec int
	ass  assoc
}

// argMax gives the highest operator priority each argument may carry. The
// y side of an operator admits its own priority, the x side one less.
func (o opInfo) argMax() (left, right int) {
	left, right = o.prec-1, o.prec-1
	switch o.ass {
	case xfy:
		right = o.prec
	case yfx:
		left = o.prec
	}
	return left, right
}

// infixOps is the standard operator table. is and mod reach the parser as
// plain identifiers, so the table is keyed by spelling rather than token
// type.
var infixOps = map[string]opInfo{
	":-":   {1200, xfx},
	";":    {1100, xfy},
	",":    {1000, xfy},
	"=":    {700, xfx},
	"\\=":  {700, xfx},
	"==":   {700, xfx},
	"\\==": {700, xfx},
	"is":   {700, xfx},
	"=:=":  {700, xfx},
	"=\\=": {700, xfx},
	"<":    {700, xfx},
	">":    {700, xfx},
	"=<":   {700, xfx},
	">=":   {700, xfx},
	"+":    {500, yfx},
	"-":    {500, yfx},
	"*":    {400, yfx},
	"/":    {400, yfx},
	"mod":  {400, yfx},
}

// Program is a parsed TW Prolog program: the clause database plus the
// directives that query it, in source order.
type Program struct {
	src  string
	dirs []directive
	db   map[string][]*clause
}

// clause stores one head :- body rule with the body already flattened to a
// goal sequence. Facts have an empty body.
type clause struct {
	at   int
	head Term
	body []Term
}

type directive struct {
	at    int
	goals []Term
}

func (p *Program) Kind() engine.Kind { return engine.KindProlog }

func (p *Program) Start() *engine.Session {
	return engine.NewSession(engine.KindProlog, newMachine(p))
}

// Parse compiles TW Prolog source: clauses such as "parent(tom, bob)." and
// directives written ":- goal." or "?- goal.". Library predicates fill in
// for any program that does not define them itself.
func Parse(src string) (*Program, []*diag.Error) {
	toks, errs := lexer.Tokenize(lexConfig, src)
	if len(errs) > 0 {
		return nil, errs
	}
	p := &parser{
		s:    token.NewStream(src, toks),
		prog: &Program{src: src, db: make(map[string][]*clause)},
	}
	defined := p.parseProgram()
	if errs := p.s.Errors(); len(errs) > 0 {
		return nil, errs
	}
	for key, cs := range libClauses {
		if !defined[key] {
			p.prog.db[key] = cs
		}
	}
	return p.prog, nil
}

type parser struct {
	s    *token.Stream
	prog *Program
	vars map[string]*Var
}

func (p *parser) parseProgram() map[string]bool {
	defined := make(map[string]bool)
	for !p.s.CurIs(token.EOF) {
		before := p.s.Cur()
		p.vars = make(map[string]*Var)
		if p.s.CurIs(token.IMPLIES) || p.s.CurIs(token.QUERY) {
			at := p.s.Next().Pos
			goal := p.parseTerm(1199)
			p.s.Expect(token.PERIOD)
			p.prog.dirs = append(p.prog.dirs, directive{at: at, goals: flattenConj(goal)})
		} else {
			at := p.s.Cur().Pos
			t := p.parseTerm(1200)
			p.s.Expect(token.PERIOD)
			p.addClause(at, t, defined)
		}
		if p.s.Cur() == before && !p.s.CurIs(token.EOF) {
			p.s.Next()
		}
	}
	return defined
}

func (p *parser) addClause(at int, t Term, defined map[string]bool) {
	head, body := t, []Term(nil)
	if c, ok := t.(*Compound); ok && c.Functor == ":-" && len(c.Args) == 2 {
		head, body = c.Args[0], flattenConj(c.Args[1])
	}
	switch head.(type) {
	case Atom, *Compound:
	default:
		p.s.ErrorfAt(at, "clause head must be an atom or a compound term")
		return
	}
	key := keyFor(head)
	if builtinPreds[key] {
		p.s.ErrorfAt(at, "cannot redefine builtin %s", key)
		return
	}
	defined[key] = true
	p.prog.db[key] = append(p.prog.db[key], &clause{at: at, head: head, body: body})
}

// keyFor names a predicate the conventional way: functor/arity.
func keyFor(t Term) string {
	switch t := deref(t).(type) {
	case Atom:
		return string(t) + "/0"
	case *Compound:
		return t.Functor + "/" + strconv.Itoa(len(t.Args))
	}
	return "?"
}

// flattenConj splits a,b,c into the goal sequence a, b, c.
func flattenConj(t Term) []Term {
	if c, ok := t.(*Compound); ok && c.Functor == "," && len(c.Args) == 2 {
		return append(flattenConj(c.Args[0]), flattenConj(c.Args[1])...)
	}
	return []Term{t}
}

// parseTerm climbs the operator table: it reads a primary, then folds in
// infix operators whose priority fits under maxPrec.
func (p *parser) parseTerm(maxPrec int) Term {
	left, leftPrec := p.parsePrimary()
	for {
		tok := p.s.Cur()
		if tok.Type != token.IDENT && string(tok.Type) != tok.Literal {
			return left
		}
		info, ok := infixOps[tok.Literal]
		if !ok || info.prec > maxPrec {
			return left
		}
		leftMax, rightMax := info.argMax()
		if leftPrec > leftMax {
			return left
		}
		p.s.Next()
		right := p.parseTerm(rightMax)
		left = &Compound{Functor: tok.Literal, Args: []Term{left, right}}
		leftPrec = info.prec
	}
}

func (p *parser) parsePrimary() (Term, int) {
	tok := p.s.Cur()
	switch tok.Type {
	case token.NUMBER:
		p.s.Next()
		return p.number(tok), 0
	case token.MINUS:
		p.s.Next()
		if p.s.CurIs(token.NUMBER) {
			n := p.number(p.s.Next())
			return Num(-float64(n.(Num))), 0
		}
		return &Compound{Functor: "-", Args: []Term{p.parseTerm(200)}}, 200
	case token.NAF:
		p.s.Next()
		return &Compound{Functor: "\\+", Args: []Term{p.parseTerm(900)}}, 900
	case token.CUT:
		p.s.Next()
		return Atom("!"), 0
	case token.VARIABLE:
		p.s.Next()
		return p.varFor(tok.Literal), 0
	case token.IDENT, token.STRING:
		p.s.Next()
		if p.s.Accept(token.LPAREN) {
			return &Compound{Functor: tok.Literal, Args: p.parseArgs()}, 0
		}
		return Atom(tok.Literal), 0
	case token.LPAREN:
		p.s.Next()
		t := p.parseTerm(1200)
		p.s.Expect(token.RPAREN)
		return t, 0
	case token.LBRACKET:
		p.s.Next()
		return p.parseList(), 0
	}
	p.s.Errorf("expected a term, got %s", describeToken(tok))
	p.s.Next()
	return Atom("?"), 0
}

// parseArgs reads a compound argument list after its opening paren.
// Arguments parse at priority 999 so a bare comma always separates them.
func (p *parser) parseArgs() []Term {
	args := []Term{p.parseTerm(999)}
	for p.s.Accept(token.COMMA) {
		args = append(args, p.parseTerm(999))
	}
	p.s.Expect(token.RPAREN)
	return args
}

func (p *parser) parseList() Term {
	if p.s.Accept(token.RBRACKET) {
		return emptyList
	}
	elems := []Term{p.parseTerm(999)}
	for p.s.Accept(token.COMMA) {
		elems = append(elems, p.parseTerm(999))
	}
	tail := Term(emptyList)
	if p.s.Accept(token.BAR) {
		tail = p.parseTerm(999)
	}
	p.s.Expect(token.RBRACKET)
	for i := len(elems) - 1; i >= 0; i-- {
		tail = cons(elems[i], tail)
	}
	return tail
}

// varFor returns the clause-local cell for a variable name. Every
// occurrence of _ is a fresh variable.
func (p *parser) varFor(name string) *Var {
	if name == "_" {
		return &Var{Name: "_"}
	}
	if v, ok := p.vars[name]; ok {
		return v
	}
	v := &Var{Name: name}
	p.vars[name] = v
	return v
}

func (p *parser) number(tok token.Token) Term {
	n, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.s.ErrorfAt(tok.Pos, "bad number literal %q", tok.Literal)
	}
	return Num(n)
}

func describeToken(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return strconv.Quote(tok.Literal)
}

// librarySrc defines the list predicates every program gets unless it
// declares its own clauses for the same functor and arity.
const librarySrc = `
append([], L, L).
append([H|T], L, [H|R]) :- append(T, L, R).

member(X, [X|_]).
member(X, [_|T]) :- member(X, T).

length([], 0).
length([_|T], N) :- length(T, M), N is M + 1.
`

var libClauses = mustLibrary()

func mustLibrary() map[string][]*clause {
	toks, errs := lexer.Tokenize(lexConfig, librarySrc)
	if len(errs) > 0 {
		panic("prolog: library: " + errs[0].Error())
	}
	p := &parser{
		s:    token.NewStream(librarySrc, toks),
		prog: &Program{src: librarySrc, db: make(map[string][]*clause)},
	}
	p.parseProgram()
	if errs := p.s.Errors(); len(errs) > 0 {
		panic("prolog: library: " + errs[0].Error())
	}
	return p.prog.db
}
