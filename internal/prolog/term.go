// Package prolog implements TW Prolog: a clause database queried by
// SLD-resolution with unification and backtracking over an explicit
// choice-point stack, so resolution state suspends and resumes like the
// other two interpreters.
package prolog

import (
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/value"
)

type Term interface {
	term()
}

// Atom is a constant: lowercase names, quoted names, [], and operators used
// as data.
type Atom string

type Num float64

// Var is a logic variable cell. Binding writes Ref; the trail remembers the
// cell so backtracking can unbind it.
type Var struct {
	Name string
	Ref  Term
}

type Compound struct {
	Functor string
	Args    []Term
}

func (Atom) term()      {}
func (Num) term()       {}
func (*Var) term()      {}
func (*Compound) term() {}

var emptyList = Atom("[]")

func cons(head, tail Term) *Compound {
	return &Compound{Functor: ".", Args: []Term{head, tail}}
}

// deref follows variable bindings to the representative term.
func deref(t Term) Term {
	for {
		v, ok := t.(*Var)
		if !ok || v.Ref == nil {
			return t
		}
		t = v.Ref
	}
}

// bindings is the substitution under construction: a trail of bound
// variables that undo rewinds. The occurs check is off by default, matching
// classic Prolog systems.
type bindings struct {
	trail  []*Var
	occurs bool
}

func (b *bindings) mark() int { return len(b.trail) }

func (b *bindings) bind(v *Var, t Term) {
	v.Ref = t
	b.trail = append(b.trail, v)
}

func (b *bindings) undo(mark int) {
	for i := len(b.trail) - 1; i >= mark; i-- {
		b.trail[i].Ref = nil
	}
	b.trail = b.trail[:mark]
}

// unify makes two terms equal by binding variables, extending the trail.
// On failure the caller undoes to its mark; partial bindings may remain
// until then.
func (b *bindings) unify(x, y Term) bool {
	x, y = deref(x), deref(y)
	if x == y {
		return true
	}
	if v, ok := x.(*Var); ok {
		if b.occurs && occursIn(v, y) {
			return false
		}
		b.bind(v, y)
		return true
	}
	if v, ok := y.(*Var); ok {
		if b.occurs && occursIn(v, x) {
			return false
		}
		b.bind(v, x)
		return true
	}
	switch x := x.(type) {
	case Atom:
		y, ok := y.(Atom)
		return ok && x == y
	case Num:
		y, ok := y.(Num)
		return ok && x == y
	case *Compound:
		y, ok := y.(*Compound)
		if !ok || x.Functor != y.Functor || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !b.unify(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func occursIn(v *Var, t Term) bool {
	switch t := deref(t).(type) {
	case *Var:
		return t == v
	case *Compound:
		for _, a := range t.Args {
			if occursIn(v, a) {
				return true
			}
		}
	}
	return false
}

// structEq is ==/2: equality without binding anything.
func structEq(x, y Term) bool {
	x, y = deref(x), deref(y)
	switch x := x.(type) {
	case *Var:
		y, ok := y.(*Var)
		return ok && x == y
	case Atom:
		y, ok := y.(Atom)
		return ok && x == y
	case Num:
		y, ok := y.(Num)
		return ok && x == y
	case *Compound:
		y, ok := y.(*Compound)
		if !ok || x.Functor != y.Functor || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !structEq(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// rename copies t with fresh variables, sharing the fresh cells through
// seen. Clause uses always resolve against a renamed copy.
func rename(t Term, seen map[*Var]*Var) Term {
	switch t := t.(type) {
	case *Var:
		if t.Ref != nil {
			return rename(deref(t), seen)
		}
		if fresh, ok := seen[t]; ok {
			return fresh
		}
		fresh := &Var{Name: t.Name}
		seen[t] = fresh
		return fresh
	case *Compound:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = rename(a, seen)
		}
		return &Compound{Functor: t.Functor, Args: args}
	default:
		return t
	}
}

// writeTerm renders a term the way write/1 prints it: atoms bare, numbers
// via the shared formatter, lists in bracket notation, known operators
// infix.
func writeTerm(t Term) string {
	var sb strings.Builder
	writeInto(&sb, t, 1200)
	return sb.String()
}

func writeInto(sb *strings.Builder, t Term, max int) {
	switch t := deref(t).(type) {
	case Atom:
		sb.WriteString(string(t))
	case Num:
		sb.WriteString(value.FormatNumber(float64(t)))
	case *Var:
		if t.Name == "" || t.Name == "_" {
			sb.WriteString("_")
			return
		}
		sb.WriteString(t.Name)
	case *Compound:
		if t.Functor == "." && len(t.Args) == 2 {
			writeList(sb, t)
			return
		}
		if info, ok := infixOps[t.Functor]; ok && len(t.Args) == 2 {
			if info.prec > max {
				sb.WriteByte('(')
			}
			leftMax, rightMax := info.argMax()
			writeInto(sb, t.Args[0], leftMax)
			if t.Functor == "," {
				sb.WriteString(",")
			} else if isWordOp(t.Functor) {
				sb.WriteString(" " + t.Functor + " ")
			} else {
				sb.WriteString(t.Functor)
			}
			writeInto(sb, t.Args[1], rightMax)
			if info.prec > max {
				sb.WriteByte(')')
			}
			return
		}
		sb.WriteString(t.Functor)
		sb.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeInto(sb, a, 999)
		}
		sb.WriteByte(')')
	}
}

func writeList(sb *strings.Builder, t Term) {
	sb.WriteByte('[')
	first := true
	cur := Term(t)
	for {
		cur = deref(cur)
		c, ok := cur.(*Compound)
		if ok && c.Functor == "." && len(c.Args) == 2 {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			writeInto(sb, c.Args[0], 999)
			cur = c.Args[1]
			continue
		}
		if cur == emptyList {
			break
		}
		sb.WriteByte('|')
		writeInto(sb, cur, 999)
		break
	}
	sb.WriteByte(']')
}

func isWordOp(op string) bool {
	for _, r := range op {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(op) > 0
}
