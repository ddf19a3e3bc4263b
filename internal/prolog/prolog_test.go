package prolog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, errs := Parse(src)
	require.Empty(t, errs, "parse errors in %q", src)
	return prog
}

// run drives a fresh session to its terminal event. Prolog programs never
// request input, so stepping is all it takes.
func run(t *testing.T, src string) []engine.Event {
	t.Helper()
	sess := mustParse(t, src).Start()

	var events []engine.Event
	ev, err := sess.Step()
	for steps := 0; ; steps++ {
		require.NoError(t, err)
		require.Less(t, steps, 100000, "program did not terminate")
		events = append(events, ev)
		switch ev.Type() {
		case engine.COMPLETED_EVENT, engine.ERROR_EVENT:
			return events
		default:
			ev, err = sess.Step()
		}
	}
}

func outputs(events []engine.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if o, ok := ev.(engine.Output); ok {
			sb.WriteString(o.Text)
		}
	}
	return sb.String()
}

func requireCompleted(t *testing.T, events []engine.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	require.IsType(t, engine.Completed{}, events[len(events)-1])
}

func requireFailed(t *testing.T, events []engine.Event) *diag.RuntimeError {
	t.Helper()
	require.NotEmpty(t, events)
	failed, ok := events[len(events)-1].(engine.Failed)
	require.True(t, ok, "expected failure, last event %T", events[len(events)-1])
	return failed.Err
}

func TestFactsEnumerateAllSolutions(t *testing.T) {
	src := `
person(john).
person(mary).

?- person(X), write(X), nl.`
	events := run(t, src)
	require.Len(t, events, 3)
	assert.Equal(t, engine.Output{Text: "john\n"}, events[0])
	assert.Equal(t, engine.Output{Text: "mary\n"}, events[1])
	requireCompleted(t, events)
}

func TestUnificationBindsBothWays(t *testing.T) {
	events := run(t, `?- f(X, b) = f(a, Y), write(X), write(Y), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "ab\n", outputs(events))
}

func TestUnificationIsSymmetric(t *testing.T) {
	left := run(t, `?- f(X, b) = f(a, Y), write(X-Y), nl.`)
	right := run(t, `?- f(a, Y) = f(X, b), write(X-Y), nl.`)
	requireCompleted(t, left)
	requireCompleted(t, right)
	assert.Equal(t, outputs(left), outputs(right))
}

func TestRuleChaining(t *testing.T) {
	src := `
parent(tom, bob).
parent(bob, ann).
grandparent(X, Z) :- parent(X, Y), parent(Y, Z).

?- grandparent(tom, Z), write(Z), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "ann\n", outputs(events))
}

func TestBacktrackingRetriesClausesInOrder(t *testing.T) {
	src := `
likes(mary, food).
likes(mary, wine).
likes(john, wine).

?- likes(mary, X), write(X), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "food\nwine\n", outputs(events))
}

func TestFailingGoalCompletesQuietly(t *testing.T) {
	src := `
p(1).

?- p(2), write(never).
?- fail, write(never).`
	events := run(t, src)
	require.Len(t, events, 1)
	requireCompleted(t, events)
}

func TestDirectivesRunInSourceOrder(t *testing.T) {
	src := `
?- write(first), nl.
?- write(second), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "first\nsecond\n", outputs(events))
}

func TestUndefinedPredicateIsFatal(t *testing.T) {
	events := run(t, `?- ghost(1).`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.Undefined, rerr.Kind)
	assert.Contains(t, rerr.Message, "ghost/1")
}

func TestVariablesAreClauseLocal(t *testing.T) {
	src := `
p(X) :- q(X).
q(1).

?- p(V), write(V), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "1\n", outputs(events))
}

func TestAnonymousVariablesAreFresh(t *testing.T) {
	src := `
pair(1, 2).

?- pair(_, _), write(ok), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "ok\n", outputs(events))
}

func TestArithmeticPrecedence(t *testing.T) {
	events := run(t, `?- X is 3 + 4 * 2, write(X), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "11\n", outputs(events))
}

func TestArithmeticUnaryMinus(t *testing.T) {
	events := run(t, `?- X is 3 - -2, Y is -(4), write(X), write(Y), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "5-4\n", outputs(events))
}

func TestIsOnUnboundVariableIsFatal(t *testing.T) {
	events := run(t, `?- X is Y + 1.`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.TypeError, rerr.Kind)
	assert.Contains(t, rerr.Message, "unbound variable Y")
}

func TestIsOnAtomIsFatal(t *testing.T) {
	events := run(t, `?- X is apple + 1.`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.TypeError, rerr.Kind)
	assert.Contains(t, rerr.Message, "apple is not a number")
}

func TestDivisionByZeroIsFatal(t *testing.T) {
	events := run(t, `?- X is 1 / 0.`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.Division, rerr.Kind)
}

func TestModIsTruncating(t *testing.T) {
	events := run(t, `?- X is 7 mod 3, write(X), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "1\n", outputs(events))
}

func TestComparisonsSucceedAndFail(t *testing.T) {
	src := `
?- 3 < 4, 4 =< 4, 5 =:= 5, 5 =\= 6, write(ok), nl.
?- 3 > 4, write(never).`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "ok\n", outputs(events))
}

func TestComparisonOnUnboundIsFatal(t *testing.T) {
	events := run(t, `?- X < 3.`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.TypeError, rerr.Kind)
}

func TestNumberGoalIsFatal(t *testing.T) {
	events := run(t, `?- X = 3, X.`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.TypeError, rerr.Kind)
	assert.Contains(t, rerr.Message, "cannot be called as a goal")
}

func TestUnboundGoalIsFatal(t *testing.T) {
	events := run(t, `?- X.`)
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.Control, rerr.Kind)
}

func TestBoundVariableAsGoal(t *testing.T) {
	events := run(t, `?- X = write(hi), X, nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "hi\n", outputs(events))
}

func TestDisjunctionTriesBothBranches(t *testing.T) {
	src := `?- (fail ; write(second), nl).`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "second\n", outputs(events))
}

func TestDisjunctionEnumeratesBothBranches(t *testing.T) {
	src := `?- (X = a ; X = b), write(X), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "a\nb\n", outputs(events))
}

func TestCutCommitsToFirstSolution(t *testing.T) {
	src := `
max(X, Y, X) :- X >= Y, !.
max(_, Y, Y).

?- max(3, 2, M), write(M), nl.`
	events := run(t, src)
	require.Len(t, events, 2)
	assert.Equal(t, engine.Output{Text: "3\n"}, events[0])
	requireCompleted(t, events)
}

func TestCutPrunesEarlierGoalAlternatives(t *testing.T) {
	src := `
num(1).
num(2).
first(X) :- num(X), !.

?- first(X), write(X), nl.`
	events := run(t, src)
	require.Len(t, events, 2)
	assert.Equal(t, "1\n", outputs(events))
}

func TestNegationAsFailure(t *testing.T) {
	src := `
man(socrates).

?- \+ man(plato), write(no_plato), nl.
?- \+ man(socrates), write(never).`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "no_plato\n", outputs(events))
}

func TestNegationLeavesNoBindings(t *testing.T) {
	src := `
p(1).

?- \+ p(X), write(never).
?- \+ p(2), write(ok), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "ok\n", outputs(events))
}

func TestNotUnifiable(t *testing.T) {
	src := `
?- a \= b, write(ok), nl.
?- X \= a, write(never).`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "ok\n", outputs(events))
}

func TestStructuralEqualityDoesNotBind(t *testing.T) {
	src := `
?- X == X, write(same), nl.
?- X == Y, write(never).
?- f(a) == f(a), write(deep), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "same\ndeep\n", outputs(events))
}

func TestWriteRendersLists(t *testing.T) {
	events := run(t, `?- write([1, 2, [a, b]]), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "[1,2,[a,b]]\n", outputs(events))
}

func TestWriteRendersPartialList(t *testing.T) {
	events := run(t, `?- X = [1, 2 | Tail], write(X), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "[1,2|Tail]\n", outputs(events))
}

func TestWriteRendersOperators(t *testing.T) {
	events := run(t, `?- X = 1 + 2 * 3, write(X), nl, write((1 + 2) * 3), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "1+2*3\n(1+2)*3\n", outputs(events))
}

func TestWriteBuffersAcrossSolutions(t *testing.T) {
	events := run(t, `?- member(X, [a, b]), write(X).`)
	require.Len(t, events, 2)
	assert.Equal(t, engine.Output{Text: "ab"}, events[0])
	requireCompleted(t, events)
}

func TestQuotedAtoms(t *testing.T) {
	events := run(t, `?- write('Hello, world!'), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "Hello, world!\n", outputs(events))
}

func TestAppendLibrary(t *testing.T) {
	events := run(t, `?- append([1, 2], [3], L), write(L), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "[1,2,3]\n", outputs(events))
}

func TestAppendSplitsEnumerate(t *testing.T) {
	events := run(t, `?- append(A, B, [1, 2]), write(A), write(B), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "[][1,2]\n[1][2]\n[1,2][]\n", outputs(events))
}

func TestMemberEnumerates(t *testing.T) {
	events := run(t, `?- member(X, [a, b, c]), write(X), nl.`)
	require.Len(t, events, 4)
	assert.Equal(t, "a\nb\nc\n", outputs(events))
	requireCompleted(t, events)
}

func TestLengthLibrary(t *testing.T) {
	events := run(t, `?- length([a, b, c], N), write(N), nl.`)
	requireCompleted(t, events)
	assert.Equal(t, "3\n", outputs(events))
}

func TestUserClausesShadowLibrary(t *testing.T) {
	src := `
append(_, _, marker).

?- append([1], [2], X), write(X), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "marker\n", outputs(events))
}

func TestRecursionOverLists(t *testing.T) {
	src := `
sum([], 0).
sum([H|T], S) :- sum(T, R), S is R + H.

?- sum([1, 2, 3, 4], S), write(S), nl.`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "10\n", outputs(events))
}

func TestCommentsAreSkipped(t *testing.T) {
	src := `
% the database
p(1). % a fact

?- p(X), write(X), nl. % the query`
	events := run(t, src)
	requireCompleted(t, events)
	assert.Equal(t, "1\n", outputs(events))
}

func TestProgramWithoutDirectivesCompletes(t *testing.T) {
	events := run(t, `p(1).`)
	require.Len(t, events, 1)
	requireCompleted(t, events)
}
