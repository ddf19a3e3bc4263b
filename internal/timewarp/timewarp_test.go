package timewarp

import (
	"testing"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
)

func TestDetectByExtension(t *testing.T) {
	tests := []struct {
		path string
		want engine.Kind
	}{
		{"hello.twb", engine.KindBasic},
		{"HELLO.BAS", engine.KindBasic},
		{"square.logo", engine.KindBasic},
		{"quiz.pilot", engine.KindBasic},
		{"prog.tw", engine.KindBasic},
		{"fact.twp", engine.KindPascal},
		{"fact.pas", engine.KindPascal},
		{"family.tpr", engine.KindProlog},
		{"family.plg", engine.KindProlog},
	}
	for i, tt := range tests {
		if got := Detect(tt.path, ""); got != tt.want {
			t.Fatalf("tests[%d] - Detect(%q) = %q, want %q", i, tt.path, got, tt.want)
		}
	}
}

func TestDetectBySource(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want engine.Kind
	}{
		{"basic print", "10 PRINT \"HI\"\n20 GOTO 10", engine.KindBasic},
		{"basic let", "LET X = 2\nPRINT X * 3", engine.KindBasic},
		{"logo turtle", "REPEAT 4 [FORWARD 50 RIGHT 90]", engine.KindBasic},
		{"pilot dialogue", "T:WHAT IS YOUR NAME?\nA:\nT:HELLO", engine.KindBasic},
		{"pascal program", "program fact;\nbegin\n  writeln(24)\nend.", engine.KindPascal},
		{"pascal assign", "begin x := 1 end.", engine.KindPascal},
		{"prolog clauses", "person(john).\nperson(mary).\n?- person(X), write(X), nl.", engine.KindProlog},
		{"prolog rule", "gp(X, Z) :- p(X, Y), p(Y, Z).", engine.KindProlog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect("listing.txt", tt.src); got != tt.want {
				t.Fatalf("Detect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadDispatches(t *testing.T) {
	tests := []struct {
		kind engine.Kind
		src  string
	}{
		{engine.KindBasic, `10 PRINT "HI"`},
		{engine.KindPascal, "begin writeln(1) end."},
		{engine.KindProlog, "?- write(hi), nl."},
	}
	for i, tt := range tests {
		prog, err := Load(tt.kind, tt.src)
		if err != nil {
			t.Fatalf("tests[%d] - Load failed: %v", i, err)
		}
		if prog.Kind() != tt.kind {
			t.Fatalf("tests[%d] - Kind = %q, want %q", i, prog.Kind(), tt.kind)
		}
	}
}

func TestLoadReportsFirstParseError(t *testing.T) {
	_, err := Load(engine.KindPascal, "begin end")
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	derr, ok := err.(*diag.Error)
	if !ok {
		t.Fatalf("expected *diag.Error, got %T", err)
	}
	if derr.Pos.Line != 1 {
		t.Fatalf("diagnostic should carry a position, got %+v", derr.Pos)
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	if _, err := Load(engine.Kind("cobol"), ""); err == nil {
		t.Fatalf("expected an error for an unknown language")
	}
}

func TestLoadedProgramRuns(t *testing.T) {
	prog, err := Load(engine.KindBasic, `10 PRINT "HI"`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sess := prog.Start()
	ev, err := sess.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	out, ok := ev.(engine.Output)
	if !ok || out.Text != "HI\n" {
		t.Fatalf("expected Output HI, got %#v", ev)
	}
	ev, err = sess.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if _, ok := ev.(engine.Completed); !ok {
		t.Fatalf("expected Completed, got %#v", ev)
	}
}
