package prolog

import (
	"math"
	"strconv"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
)

// builtinPreds names the predicates the engine resolves itself. The parser
// rejects clauses that would redefine one.
var builtinPreds = map[string]bool{
	"true/0":  true,
	"fail/0":  true,
	"false/0": true,
	",/2":     true,
	";/2":     true,
	"!/0":     true,
	"\\+/1":   true,
	"=/2":     true,
	"\\=/2":   true,
	"==/2":    true,
	"\\==/2":  true,
	"is/2":    true,
	"=:=/2":   true,
	"=\\=/2":  true,
	"</2":     true,
	">/2":     true,
	"=</2":    true,
	">=/2":    true,
	"write/1": true,
	"nl/0":    true,
}

// goalList is the resolvent: a persistent singly linked list of pending
// goals. Persistence matters because choice points capture a node and
// resume from it after bindings are undone.
type goalList struct {
	goal    Term
	barrier int // stack height a cut at this node prunes down to
	at      int
	next    *goalList
}

// choicePoint records where the search continues on failure: the remaining
// clauses for a goal, or a ready resolvent for disjunction and negation.
type choicePoint struct {
	node     *goalList
	clauses  []*clause
	resume   *goalList
	trailLen int
}

// machine resolves each directive in turn, one resolution step per Step
// call. A completed resolvent is one solution; the machine then forces a
// backtrack, so directives enumerate every solution in clause order.
type machine struct {
	bindings
	prog    *Program
	dirIdx  int
	goals   *goalList
	cps     []choicePoint
	running bool
}

func newMachine(p *Program) *machine {
	return &machine{prog: p}
}

func (m *machine) Step(io *engine.IO) (bool, *diag.RuntimeError) {
	if !m.running {
		if m.dirIdx >= len(m.prog.dirs) {
			return true, nil
		}
		m.startDirective(m.prog.dirs[m.dirIdx])
		m.dirIdx++
		return false, nil
	}
	if m.goals == nil {
		m.backtrack()
		return false, nil
	}
	return false, m.resolve(io)
}

func (m *machine) startDirective(d directive) {
	m.trail = m.trail[:0]
	m.cps = m.cps[:0]
	seen := make(map[*Var]*Var)
	var goals *goalList
	for i := len(d.goals) - 1; i >= 0; i-- {
		goals = &goalList{goal: rename(d.goals[i], seen), at: d.at, next: goals}
	}
	m.goals = goals
	m.running = true
}

// resolve takes one resolution step on the leftmost goal.
func (m *machine) resolve(io *engine.IO) *diag.RuntimeError {
	node := m.goals
	switch g := deref(node.goal).(type) {
	case Atom:
		return m.call(io, node, string(g), nil)
	case *Compound:
		return m.call(io, node, g.Functor, g.Args)
	case *Var:
		return m.errAt(diag.Control, node.at, "goal is an unbound variable")
	default:
		return m.errAt(diag.TypeError, node.at, "%s cannot be called as a goal", writeTerm(g))
	}
}

func (m *machine) call(io *engine.IO, node *goalList, name string, args []Term) *diag.RuntimeError {
	switch key := name + "/" + strconv.Itoa(len(args)); key {
	case "true/0":
		m.goals = node.next
	case "fail/0", "false/0":
		m.backtrack()
	case ",/2":
		rest := &goalList{goal: args[1], barrier: node.barrier, at: node.at, next: node.next}
		m.goals = &goalList{goal: args[0], barrier: node.barrier, at: node.at, next: rest}
	case ";/2":
		right := &goalList{goal: args[1], barrier: node.barrier, at: node.at, next: node.next}
		m.cps = append(m.cps, choicePoint{resume: right, trailLen: m.mark()})
		m.goals = &goalList{goal: args[0], barrier: node.barrier, at: node.at, next: node.next}
	case "!/0":
		m.cps = m.cps[:node.barrier]
		m.goals = node.next
	case "\\+/1":
		// Succeed on node.next if the argument fails; a synthetic cut and
		// fail commit to failure as soon as it succeeds. Cuts inside the
		// argument stay local because the resume sits below their barrier.
		outer := len(m.cps)
		m.cps = append(m.cps, choicePoint{resume: node.next, trailLen: m.mark()})
		fail := &goalList{goal: Atom("fail"), barrier: outer + 1, at: node.at}
		commit := &goalList{goal: Atom("!"), barrier: outer, at: node.at, next: fail}
		m.goals = &goalList{goal: args[0], barrier: outer + 1, at: node.at, next: commit}
	case "=/2":
		m.advance(m.unify(args[0], args[1]), node)
	case "\\=/2":
		mark := m.mark()
		ok := m.unify(args[0], args[1])
		m.undo(mark)
		m.advance(!ok, node)
	case "==/2":
		m.advance(structEq(args[0], args[1]), node)
	case "\\==/2":
		m.advance(!structEq(args[0], args[1]), node)
	case "is/2":
		n, err := m.evalArith(args[1], node.at)
		if err != nil {
			return err
		}
		m.advance(m.unify(args[0], Num(n)), node)
	case "=:=/2", "=\\=/2", "</2", ">/2", "=</2", ">=/2":
		l, err := m.evalArith(args[0], node.at)
		if err != nil {
			return err
		}
		r, err := m.evalArith(args[1], node.at)
		if err != nil {
			return err
		}
		m.advance(compareNums(name, l, r), node)
	case "write/1":
		io.Print(writeTerm(args[0]))
		m.goals = node.next
	case "nl/0":
		io.Print("\n")
		m.goals = node.next
	default:
		cs, ok := m.prog.db[key]
		if !ok {
			return m.errAt(diag.Undefined, node.at, "undefined predicate %s", key)
		}
		if !m.tryClauses(choicePoint{node: node, clauses: cs}) {
			m.backtrack()
		}
	}
	return nil
}

func (m *machine) advance(ok bool, node *goalList) {
	if ok {
		m.goals = node.next
	} else {
		m.backtrack()
	}
}

// tryClauses scans the alternatives of a clause choice point for one whose
// renamed head unifies with the goal. When later alternatives remain it
// pushes a fresh choice point before committing, and it reports whether
// resolution advanced.
func (m *machine) tryClauses(cp choicePoint) bool {
	goal := deref(cp.node.goal)
	for i, c := range cp.clauses {
		mark := m.mark()
		barrier := len(m.cps)
		seen := make(map[*Var]*Var)
		if !m.unify(goal, rename(c.head, seen)) {
			m.undo(mark)
			continue
		}
		if i+1 < len(cp.clauses) {
			m.cps = append(m.cps, choicePoint{node: cp.node, clauses: cp.clauses[i+1:], trailLen: mark})
		}
		goals := cp.node.next
		for j := len(c.body) - 1; j >= 0; j-- {
			goals = &goalList{goal: rename(c.body[j], seen), barrier: barrier, at: c.at, next: goals}
		}
		m.goals = goals
		return true
	}
	return false
}

// backtrack pops choice points until one yields a new resolution path. An
// empty stack finishes the directive: running out of solutions is ordinary
// completion, not an error.
func (m *machine) backtrack() {
	for len(m.cps) > 0 {
		cp := m.cps[len(m.cps)-1]
		m.cps = m.cps[:len(m.cps)-1]
		m.undo(cp.trailLen)
		if cp.resume != nil {
			m.goals = cp.resume
			return
		}
		if m.tryClauses(cp) {
			return
		}
	}
	m.running = false
}

// evalArith evaluates the arithmetic term of is/2 or a comparison. Unbound
// variables and non-numeric terms are fatal: arithmetic never backtracks.
func (m *machine) evalArith(t Term, at int) (float64, *diag.RuntimeError) {
	switch t := deref(t).(type) {
	case Num:
		return float64(t), nil
	case *Var:
		return 0, m.errAt(diag.TypeError, at, "arithmetic on unbound variable %s", writeTerm(t))
	case Atom:
		return 0, m.errAt(diag.TypeError, at, "%s is not a number", string(t))
	case *Compound:
		if t.Functor == "-" && len(t.Args) == 1 {
			n, err := m.evalArith(t.Args[0], at)
			return -n, err
		}
		if _, known := arithOps[t.Functor]; !known || len(t.Args) != 2 {
			return 0, m.errAt(diag.TypeError, at, "unknown arithmetic operator %s/%d", t.Functor, len(t.Args))
		}
		l, err := m.evalArith(t.Args[0], at)
		if err != nil {
			return 0, err
		}
		r, err := m.evalArith(t.Args[1], at)
		if err != nil {
			return 0, err
		}
		return m.applyArith(t.Functor, l, r, at)
	}
	return 0, m.errAt(diag.TypeError, at, "%s is not a number", writeTerm(t))
}

var arithOps = map[string]bool{"+": true, "-": true, "*": true, "/": true, "mod": true}

func (m *machine) applyArith(op string, l, r float64, at int) (float64, *diag.RuntimeError) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, m.errAt(diag.Division, at, "division by zero")
		}
		return l / r, nil
	}
	if l != math.Trunc(l) || r != math.Trunc(r) {
		return 0, m.errAt(diag.TypeError, at, "mod expects integers, got %s and %s",
			writeTerm(Num(l)), writeTerm(Num(r)))
	}
	if r == 0 {
		return 0, m.errAt(diag.Division, at, "division by zero")
	}
	return l - math.Trunc(l/r)*r, nil
}

func compareNums(op string, l, r float64) bool {
	switch op {
	case "=:=":
		return l == r
	case "=\\=":
		return l != r
	case "<":
		return l < r
	case ">":
		return l > r
	case "=<":
		return l <= r
	}
	return l >= r
}

func (m *machine) errAt(kind string, at int, format string, args ...any) *diag.RuntimeError {
	return diag.RuntimeAt(kind, diag.LineCol(m.prog.src, at), format, args...)
}
