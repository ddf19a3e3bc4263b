package canvas

import (
	"strings"
	"testing"

	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

func TestSVGMapsLogicalCoordinates(t *testing.T) {
	prims := []turtle.Primitive{
		{Kind: turtle.KindLine, X1: 0, Y1: 0, X2: 0, Y2: 100, Color: 15, Size: 1},
	}
	doc := SVG(prims, 400, 400, "#000000")
	// the origin sits at (200,200) and +Y points up, so the endpoint rises
	if !strings.Contains(doc, `<line x1="200" y1="200" x2="200" y2="100"`) {
		t.Fatalf("line not mapped into the viewport:\n%s", doc)
	}
	if !strings.Contains(doc, `stroke="#ffffff"`) {
		t.Fatalf("palette color missing:\n%s", doc)
	}
	if !strings.Contains(doc, `fill="#000000"`) {
		t.Fatalf("background missing:\n%s", doc)
	}
}

func TestSVGClearDropsEarlierInk(t *testing.T) {
	prims := []turtle.Primitive{
		{Kind: turtle.KindLine, X2: 10, Color: 15, Size: 1},
		{Kind: turtle.KindClear},
		{Kind: turtle.KindDot, X1: 5, Y1: 5, R: 2, Color: 12},
	}
	doc := SVG(prims, 100, 100, "#000000")
	if strings.Contains(doc, "<line") {
		t.Fatalf("cleared line still rendered:\n%s", doc)
	}
	if !strings.Contains(doc, `<circle cx="55" cy="45" r="2" fill="#ff5555"/>`) {
		t.Fatalf("dot missing or mismapped:\n%s", doc)
	}
}

func TestSVGCircleStrokesWithoutFill(t *testing.T) {
	prims := []turtle.Primitive{
		{Kind: turtle.KindCircle, X1: 0, Y1: 0, R: 30, Color: 14, Size: 2},
	}
	doc := SVG(prims, 200, 200, "#000000")
	if !strings.Contains(doc, `<circle cx="100" cy="100" r="30" fill="none" stroke="#ffff55" stroke-width="2"/>`) {
		t.Fatalf("circle wrong:\n%s", doc)
	}
}

func TestCoordTrimsFloatNoise(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100"},
		{50.5, "50.5"},
		{1.25, "1.25"},
		{-0.0000001, "0"},
		{49.999999999, "50"},
		{-12.75, "-12.75"},
	}
	for i, tt := range tests {
		if got := coord(tt.in); got != tt.want {
			t.Fatalf("tests[%d] - coord(%v) = %q, want %q", i, tt.in, got, tt.want)
		}
	}
}
