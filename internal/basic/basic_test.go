package basic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, errs := Parse(src)
	require.Empty(t, errs, "parse errors in %q", src)
	return prog
}

// run drives a fresh session to its terminal event, answering input requests
// from the canned list in order.
func run(t *testing.T, src string, answers ...string) []engine.Event {
	t.Helper()
	sess := mustParse(t, src).Start()

	var events []engine.Event
	next := 0
	ev, err := sess.Step()
	for steps := 0; ; steps++ {
		require.NoError(t, err)
		require.Less(t, steps, 100000, "program did not terminate")
		events = append(events, ev)
		switch ev.Type() {
		case engine.COMPLETED_EVENT, engine.ERROR_EVENT:
			return events
		case engine.INPUT_EVENT:
			require.Less(t, next, len(answers), "ran out of canned answers")
			ev, err = sess.Resume(answers[next])
			next++
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

func draws(events []engine.Event) []turtle.Primitive {
	var prims []turtle.Primitive
	for _, ev := range events {
		if d, ok := ev.(engine.Draw); ok {
			prims = append(prims, d.Prim)
		}
	}
	return prims
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

func TestPrintHi(t *testing.T) {
	events := run(t, `10 PRINT "HI"`)
	require.Len(t, events, 2)
	assert.Equal(t, engine.Output{Text: "HI\n"}, events[0])
	requireCompleted(t, events)
}

func TestLetAndExpression(t *testing.T) {
	events := run(t, "LET X = 2\nPRINT X * 3")
	assert.Equal(t, "6\n", outputs(events))
	requireCompleted(t, events)
}

func TestLogoRightAngle(t *testing.T) {
	events := run(t, "FORWARD 100\nRIGHT 90\nFORWARD 50")
	requireCompleted(t, events)

	prims := draws(events)
	require.Len(t, prims, 2)
	for _, p := range prims {
		assert.Equal(t, turtle.KindLine, p.Kind)
	}
	d1x, d1y := prims[0].X2-prims[0].X1, prims[0].Y2-prims[0].Y1
	d2x, d2y := prims[1].X2-prims[1].X1, prims[1].Y2-prims[1].Y1
	assert.InDelta(t, 0, d1x*d2x+d1y*d2y, 1e-9, "segments must be perpendicular")
}

func TestInputRoundTrip(t *testing.T) {
	events := run(t, "INPUT X\nPRINT X", "7")
	require.Len(t, events, 3)
	assert.Equal(t, engine.InputRequest{Prompt: "? "}, events[0])
	assert.Equal(t, engine.Output{Text: "7\n"}, events[1])
	requireCompleted(t, events)
}

func TestInputRepromptsOnBadNumber(t *testing.T) {
	events := run(t, "INPUT X\nPRINT X * 2", "abc", "21")
	requireCompleted(t, events)

	var requests int
	for _, ev := range events {
		if ev.Type() == engine.INPUT_EVENT {
			requests++
		}
	}
	assert.Equal(t, 2, requests, "bad input must re-request")
	assert.Contains(t, outputs(events), "expected a number")
	assert.True(t, strings.HasSuffix(outputs(events), "42\n"))
}

func TestInputPromptAndTextVariable(t *testing.T) {
	events := run(t, `INPUT "NAME"; N$`+"\n"+`PRINT "HI "; N$`, "ada")
	assert.Equal(t, engine.InputRequest{Prompt: "NAME? "}, events[0])
	assert.Equal(t, "HI ada\n", outputs(events))
}

func TestGotoSkipsAndGosubReturns(t *testing.T) {
	src := `10 GOSUB 100
20 PRINT "BACK"
30 GOTO 60
40 PRINT "SKIPPED"
60 END
100 PRINT "SUB"
110 RETURN`
	events := run(t, src)
	assert.Equal(t, "SUB\nBACK\n", outputs(events))
	requireCompleted(t, events)
}

func TestGotoMissingLineFails(t *testing.T) {
	events := run(t, "10 GOTO 99")
	rerr := requireFailed(t, events)
	assert.Equal(t, diag.Control, rerr.Kind)
	assert.Contains(t, rerr.Message, "99")
}

func TestReturnWithoutGosubFails(t *testing.T) {
	rerr := requireFailed(t, run(t, "10 RETURN"))
	assert.Equal(t, diag.Control, rerr.Kind)
}

func TestForNext(t *testing.T) {
	src := `10 FOR I = 1 TO 3
20 PRINT I
30 NEXT I`
	assert.Equal(t, "1\n2\n3\n", outputs(run(t, src)))
}

func TestForStepDown(t *testing.T) {
	src := `10 FOR I = 3 TO 1 STEP -1
20 PRINT I
30 NEXT`
	assert.Equal(t, "3\n2\n1\n", outputs(run(t, src)))
}

func TestForBodyRunsOnceBeforeBoundCheck(t *testing.T) {
	src := `10 FOR I = 1 TO 0
20 PRINT I
30 NEXT I
40 PRINT "DONE"`
	assert.Equal(t, "1\nDONE\n", outputs(run(t, src)))
}

func TestRepeatIsEagerAndNests(t *testing.T) {
	events := run(t, "REPEAT 2 [ REPEAT 2 [ FORWARD 10 ] RIGHT 90 ]")
	requireCompleted(t, events)
	assert.Len(t, draws(events), 4)
}

func TestRepeatClosesSquare(t *testing.T) {
	events := run(t, "REPEAT 4 [ FORWARD 100 RIGHT 90 ]")
	prims := draws(events)
	require.Len(t, prims, 4)
	last := prims[3]
	assert.InDelta(t, 0, last.X2, 1e-9)
	assert.InDelta(t, 0, last.Y2, 1e-9)
}

func TestGotoUnwindsRepeat(t *testing.T) {
	// The jump abandons the remaining REPEAT iterations.
	src := `10 REPEAT 5 [ PRINT "ONCE" GOTO 30 ]
30 PRINT "OUT"`
	assert.Equal(t, "ONCE\nOUT\n", outputs(run(t, src)))
}

func TestPilotMatchFlow(t *testing.T) {
	src := `T:WHAT IS THE CAPITAL OF FRANCE
A:
M:PARIS
Y:CORRECT
N:WRONG
E:`
	events := run(t, src, "paris")
	assert.Equal(t, "WHAT IS THE CAPITAL OF FRANCE\nCORRECT\n", outputs(events))

	events = run(t, src, "london")
	assert.Equal(t, "WHAT IS THE CAPITAL OF FRANCE\nWRONG\n", outputs(events))
}

func TestPilotAcceptIntoVariableAndInterpolation(t *testing.T) {
	src := `A:N
C:D = N * 2
T:DOUBLE IS #D`
	events := run(t, src, "21")
	assert.Equal(t, engine.InputRequest{Prompt: ""}, events[0])
	assert.Equal(t, "DOUBLE IS 42\n", outputs(events))
}

func TestPilotJumpAndUse(t *testing.T) {
	src := `U:*GREET
T:AFTER
J:*DONE
*GREET
T:HELLO
E:
*DONE
T:BYE
E:`
	assert.Equal(t, "HELLO\nAFTER\nBYE\n", outputs(run(t, src)))
}

func TestPilotTextInterpolatesStrings(t *testing.T) {
	src := `A:NAME$
T:HI $NAME, COST IS $5`
	events := run(t, src, "ada")
	assert.Equal(t, "HI ada, COST IS $5\n", outputs(events))
}

func TestIfThenElseInline(t *testing.T) {
	src := `10 LET X = 5
20 IF X > 3 THEN PRINT "BIG" ELSE PRINT "SMALL"
30 IF X > 9 THEN 50
40 PRINT "MID"
50 END`
	assert.Equal(t, "BIG\nMID\n", outputs(run(t, src)))
}

func TestPrintSeparators(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"semicolon joins", `PRINT "A"; "B"`, "AB\n"},
		{"comma tabs", "PRINT 1, 2", "1\t2\n"},
		{"trailing semicolon merges lines", "PRINT \"A\";\nPRINT \"B\"", "AB\n"},
		{"empty print", "PRINT", "\n"},
		{"question mark alias", `10 ? "SUM"; 1 + 1`, "SUM2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outputs(run(t, tt.src)))
		})
	}
}

func TestExpressionSemantics(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"PRINT 2 + 3 * 4", "14\n"},
		{"PRINT (2 + 3) * 4", "20\n"},
		{"PRINT 2 ^ 3 ^ 2", "512\n"}, // right-associative
		{"PRINT -2 ^ 2", "4\n"},      // unary minus binds tighter
		{"PRINT 7 MOD 3", "1\n"},
		{"PRINT \"AB\" + \"CD\"", "ABCD\n"},
		{"PRINT 1 < 2 AND NOT 2 < 1", "TRUE\n"},
		{"PRINT \"A\" < \"B\"", "TRUE\n"},
		{"PRINT 10 / 4", "2.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, outputs(run(t, tt.src)))
		})
	}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`PRINT ABS(-4)`, "4\n"},
		{`PRINT INT(3.9)`, "3\n"},
		{`PRINT INT(-3.1)`, "-4\n"},
		{`PRINT SQR(16)`, "4\n"},
		{`PRINT LEN("HELLO")`, "5\n"},
		{`PRINT MID$("HELLO", 2, 3)`, "ELL\n"},
		{`PRINT LEFT$("HELLO", 2)`, "HE\n"},
		{`PRINT RIGHT$("HELLO", 2)`, "LO\n"},
		{`PRINT UPPER$("hi")`, "HI\n"},
		{`PRINT LOWER$("HI")`, "hi\n"},
		{`PRINT CHR$(65)`, "A\n"},
		{`PRINT ASC("A")`, "65\n"},
		{`PRINT STR$(12) + "X"`, "12X\n"},
		{`PRINT VAL("3.5") * 2`, "7\n"},
		{`PRINT VAL("junk")`, "0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, outputs(run(t, tt.src)))
		})
	}
}

func TestRuntimeErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
	}{
		{"undefined variable", "PRINT X", diag.Undefined},
		{"type mismatch assign", `LET X = "HI"`, diag.TypeError},
		{"text into number op", `PRINT 1 + "A"`, diag.TypeError},
		{"division by zero", "PRINT 1 / 0", diag.Division},
		{"mod by zero", "PRINT 1 MOD 0", diag.Division},
		{"sqr negative", "PRINT SQR(-1)", diag.Arith},
		{"color out of range", "SETCOLOR 16", diag.Index},
		{"next without for", "NEXT", diag.Control},
		{"unknown label", "J:*NOWHERE", diag.Control},
		{"unknown function", "PRINT NOSUCH(1)", diag.Undefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rerr := requireFailed(t, run(t, tt.src))
			assert.Equal(t, tt.kind, rerr.Kind)
		})
	}
}

func TestEndStopsBeforeLastLine(t *testing.T) {
	src := `10 PRINT "A"
20 STOP
30 PRINT "B"`
	assert.Equal(t, "A\n", outputs(run(t, src)))
}

func TestNumberedLinesSortBeforeRunning(t *testing.T) {
	src := `20 PRINT "B"
10 PRINT "A"`
	assert.Equal(t, "A\nB\n", outputs(run(t, src)))
}

func TestAbortStopsProgram(t *testing.T) {
	sess := mustParse(t, "10 PRINT \"X\"\n20 GOTO 10").Start()

	ev, err := sess.Step()
	require.NoError(t, err)
	require.Equal(t, engine.Output{Text: "X\n"}, ev)

	sess.Abort()
	ev, err = sess.Step()
	require.NoError(t, err)
	assert.IsType(t, engine.Completed{}, ev)
}

func TestDeterministicReplay(t *testing.T) {
	src := `10 FOR I = 1 TO 3
20 PRINT RND(1)
30 NEXT I`
	first := outputs(run(t, src))
	second := outputs(run(t, src))
	assert.Equal(t, first, second)
}
