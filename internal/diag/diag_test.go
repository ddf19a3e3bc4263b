package diag

import (
	"strings"
	"testing"
)

func TestLineCol(t *testing.T) {
	src := "abc\nde\nfgh"
	tests := []struct {
		offset int
		want   Position
	}{
		{0, Position{1, 1}},
		{2, Position{1, 3}},
		{4, Position{2, 1}},
		{5, Position{2, 2}},
		{7, Position{3, 1}},
		{9, Position{3, 3}},
	}
	for i, tt := range tests {
		if got := LineCol(src, tt.offset); got != tt.want {
			t.Errorf("tests[%d] - LineCol(%d) = %v, want %v", i, tt.offset, got, tt.want)
		}
	}
}

func TestErrorFormat(t *testing.T) {
	err := Errorf(Position{Line: 3, Column: 7}, "unexpected %q", ")")
	want := `[  3: 7] unexpected ")"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestRuntimeErrorFormat(t *testing.T) {
	plain := Runtimef(Division, "division by zero")
	if plain.Error() != "division error: division by zero" {
		t.Errorf("Error() = %q", plain.Error())
	}
	located := RuntimeAt(Undefined, Position{Line: 2, Column: 5}, "undefined line 99")
	if located.Error() != "undefined error at 2:5: undefined line 99" {
		t.Errorf("Error() = %q", located.Error())
	}
}

func TestSnippetCaretAlignment(t *testing.T) {
	src := "line one\nline two\nline three"
	got := Snippet(src, Position{Line: 3, Column: 6})
	wantLines := []string{
		"       1 | line one",
		"       2 | line two",
		"  >    3 | line three",
		"                ^",
		"",
	}
	if got != strings.Join(wantLines, "\n") {
		t.Errorf("Snippet() =\n%s\nwant\n%s", got, strings.Join(wantLines, "\n"))
	}
}

func TestSnippetFirstLine(t *testing.T) {
	got := Snippet("oops", Position{Line: 1, Column: 1})
	wantLines := []string{
		"  >    1 | oops",
		"           ^",
		"",
	}
	if got != strings.Join(wantLines, "\n") {
		t.Errorf("Snippet() =\n%s", got)
	}
}

func TestSnippetOutOfRange(t *testing.T) {
	if got := Snippet("one line", Position{Line: 5, Column: 1}); got != "" {
		t.Errorf("Snippet() = %q, want empty", got)
	}
}

func TestSnippetKeepsTabs(t *testing.T) {
	got := Snippet("\tPRINT )", Position{Line: 1, Column: 8})
	if !strings.Contains(got, "\t") {
		t.Errorf("Snippet() lost the tab:\n%s", got)
	}
	lines := strings.Split(got, "\n")
	if len(lines) < 2 || !strings.HasSuffix(lines[1], "^") {
		t.Errorf("caret line missing:\n%s", got)
	}
}
