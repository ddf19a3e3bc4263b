package prolog

import (
	"strings"
	"testing"
)

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"p(1)", "expected ."},
		{"?- write(hi)", "expected ."},
		{"p(1) q(2).", "expected ."},
		{"p(a.", "expected )"},
		{"[1, 2.", "expected ]"},
		{"p :- .", "expected a term"},
		{"foo(X) :- bar(X), .", "expected a term"},
		{"3.", "clause head"},
		{"write(foo).", "redefine builtin write/1"},
		{"nl.", "redefine builtin nl/0"},
		{"'unterminated.", "unterminated string"},
	}
	for i, tt := range tests {
		_, errs := Parse(tt.src)
		if len(errs) == 0 {
			t.Fatalf("tests[%d] - expected a parse error for %q", i, tt.src)
		}
		if !strings.Contains(errs[0].Message, tt.want) {
			t.Fatalf("tests[%d] - error %q does not mention %q", i, errs[0].Message, tt.want)
		}
	}
}

func TestParseProgramShape(t *testing.T) {
	src := `
parent(tom, bob).
grandparent(X, Z) :- parent(X, Y), parent(Y, Z).

?- grandparent(tom, Z), write(Z), nl.`
	prog, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(prog.db["parent/2"]) != 1 {
		t.Fatalf("parent/2 clauses wrong: %d", len(prog.db["parent/2"]))
	}
	rule := prog.db["grandparent/2"][0]
	if len(rule.body) != 2 {
		t.Fatalf("rule body should flatten the conjunction, got %d goals", len(rule.body))
	}
	if len(prog.dirs) != 1 {
		t.Fatalf("directives wrong: %d", len(prog.dirs))
	}
	if len(prog.dirs[0].goals) != 3 {
		t.Fatalf("directive goals wrong: %d", len(prog.dirs[0].goals))
	}
}

func TestParseOperatorPrecedence(t *testing.T) {
	prog, errs := Parse("?- X is 1 + 2 * 3.")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	goal, ok := prog.dirs[0].goals[0].(*Compound)
	if !ok || goal.Functor != "is" {
		t.Fatalf("expected is/2 goal, got %v", prog.dirs[0].goals[0])
	}
	sum, ok := goal.Args[1].(*Compound)
	if !ok || sum.Functor != "+" {
		t.Fatalf("expected + at the top, got %v", goal.Args[1])
	}
	if prod, ok := sum.Args[1].(*Compound); !ok || prod.Functor != "*" {
		t.Fatalf("expected * to bind tighter than +, got %v", sum.Args[1])
	}
}

func TestParseDisjunctionLoosensConjunction(t *testing.T) {
	prog, errs := Parse("p :- a, b ; c.")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	body := prog.db["p/0"][0].body
	if len(body) != 1 {
		t.Fatalf("disjunction must stay one goal, got %d", len(body))
	}
	or, ok := body[0].(*Compound)
	if !ok || or.Functor != ";" {
		t.Fatalf("expected ; at the top of the body, got %v", body[0])
	}
	if left, ok := or.Args[0].(*Compound); !ok || left.Functor != "," {
		t.Fatalf("expected the conjunction under the left branch, got %v", or.Args[0])
	}
}

func TestParseListSugar(t *testing.T) {
	prog, errs := Parse("p([1, 2 | T]).\nq([]).")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	head := prog.db["p/1"][0].head.(*Compound)
	list, ok := head.Args[0].(*Compound)
	if !ok || list.Functor != "." {
		t.Fatalf("expected cons cell, got %v", head.Args[0])
	}
	if list.Args[0] != Num(1) {
		t.Fatalf("first element wrong: %v", list.Args[0])
	}
	tail := list.Args[1].(*Compound)
	if tail.Args[0] != Num(2) {
		t.Fatalf("second element wrong: %v", tail.Args[0])
	}
	if v, ok := tail.Args[1].(*Var); !ok || v.Name != "T" {
		t.Fatalf("list tail should be the variable T, got %v", tail.Args[1])
	}
	empty := prog.db["q/1"][0].head.(*Compound)
	if empty.Args[0] != emptyList {
		t.Fatalf("[] should parse to the empty list atom, got %v", empty.Args[0])
	}
}

func TestParseVariableScope(t *testing.T) {
	prog, errs := Parse("p(X, X).\nq(X).")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	p := prog.db["p/2"][0].head.(*Compound)
	if p.Args[0] != p.Args[1] {
		t.Fatalf("X must share one cell within a clause")
	}
	q := prog.db["q/1"][0].head.(*Compound)
	if q.Args[0] == p.Args[0] {
		t.Fatalf("X must not leak across clauses")
	}
}

func TestParseAnonymousVarsAreDistinct(t *testing.T) {
	prog, errs := Parse("p(_, _).")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	head := prog.db["p/2"][0].head.(*Compound)
	if head.Args[0] == head.Args[1] {
		t.Fatalf("each _ must be a fresh variable")
	}
}

func TestParseDirectiveForms(t *testing.T) {
	prog, errs := Parse(":- write(a).\n?- write(b).")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(prog.dirs) != 2 {
		t.Fatalf("both directive spellings should register, got %d", len(prog.dirs))
	}
}

func TestParseQuotedFunctor(t *testing.T) {
	prog, errs := Parse("'my pred'(1).")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(prog.db["my pred/1"]) != 1 {
		t.Fatalf("quoted functor not registered: %v", prog.db)
	}
}

func TestLibraryLoadsOnlyWhenUndefined(t *testing.T) {
	prog, errs := Parse("append(a, b, c).")
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(prog.db["append/3"]) != 1 {
		t.Fatalf("user append/3 should shadow the library, got %d clauses", len(prog.db["append/3"]))
	}
	if len(prog.db["member/2"]) != 2 {
		t.Fatalf("library member/2 should load, got %d clauses", len(prog.db["member/2"]))
	}
}
