// Package turtle is the pen/position/heading state machine behind the Logo
// subset of TW BASIC. It knows nothing about screens: commands mutate logical
// state and hand back draw primitives in execution order, and the host decides
// how (or whether) to render them.
package turtle

import "math"

// Palette is the 16-color lookup shared by the turtle, the text console, and
// the SVG renderer. Indexes follow the classic CGA layout, which is what the
// console color conventions (12 = error red, 14 = warning yellow) assume.
var Palette = [16]string{
	"#000000", // 0 black
	"#0000aa", // 1 blue
	"#00aa00", // 2 green
	"#00aaaa", // 3 cyan
	"#aa0000", // 4 red
	"#aa00aa", // 5 magenta
	"#aa5500", // 6 brown
	"#aaaaaa", // 7 light gray
	"#555555", // 8 dark gray
	"#5555ff", // 9 light blue
	"#55ff55", // 10 light green
	"#55ffff", // 11 light cyan
	"#ff5555", // 12 light red
	"#ff55ff", // 13 light magenta
	"#ffff55", // 14 yellow
	"#ffffff", // 15 white
}

// Primitive kinds. Clear wipes everything drawn so far; the others add ink.
const (
	KindLine   = "line"
	KindCircle = "circle"
	KindDot    = "dot"
	KindClear  = "clear"
)

// Primitive is one ordered unit of drawing. Line uses both endpoints; Circle
// and Dot use (X1, Y1) as their center and R as radius. Coordinates are
// unbounded and logical: +X right, +Y up, origin wherever the host puts it.
type Primitive struct {
	Kind   string
	X1, Y1 float64
	X2, Y2 float64
	R      float64
	Color  int
	Size   float64
}

// State is the live turtle of one running program. Heading is in degrees,
// 0 faces up and positive turns clockwise, so heading 90 faces right.
type State struct {
	X, Y     float64
	Heading  float64
	PenDown  bool
	PenColor int
	PenSize  float64
	Visible  bool
}

// Reset returns the canonical start-of-program turtle: origin, facing up,
// pen down in white at width 1, visible.
func Reset() State {
	return State{PenDown: true, PenColor: 15, PenSize: 1, Visible: true}
}

// Forward moves n units along the current heading. When the pen is down the
// move leaves a line primitive from the old position to the new one.
func (s *State) Forward(n float64) *Primitive {
	x0, y0 := s.X, s.Y
	h := s.Heading * math.Pi / 180
	s.X = x0 + n*math.Sin(h)
	s.Y = y0 + n*math.Cos(h)
	return s.ink(Primitive{Kind: KindLine, X1: x0, Y1: y0, X2: s.X, Y2: s.Y})
}

// Back is forward with the distance negated; heading is untouched.
func (s *State) Back(n float64) *Primitive {
	return s.Forward(-n)
}

func (s *State) Right(deg float64) {
	s.Heading = normalize(s.Heading + deg)
}

func (s *State) Left(deg float64) {
	s.Heading = normalize(s.Heading - deg)
}

func (s *State) SetHeading(deg float64) {
	s.Heading = normalize(deg)
}

// MoveTo jumps to an absolute position, drawing on the way when the pen is
// down (SETXY behaves like a move, not a teleport).
func (s *State) MoveTo(x, y float64) *Primitive {
	x0, y0 := s.X, s.Y
	s.X, s.Y = x, y
	return s.ink(Primitive{Kind: KindLine, X1: x0, Y1: y0, X2: x, Y2: y})
}

// Home returns the turtle to the origin facing up, drawing the return leg
// when the pen is down.
func (s *State) Home() *Primitive {
	p := s.MoveTo(0, 0)
	s.Heading = 0
	return p
}

// Clear wipes the canvas and homes the turtle without drawing. Pen state
// survives a clear.
func (s *State) Clear() Primitive {
	s.X, s.Y = 0, 0
	s.Heading = 0
	return Primitive{Kind: KindClear}
}

// Circle draws a circle of radius r centered on the turtle. The turtle does
// not move.
func (s *State) Circle(r float64) *Primitive {
	return s.ink(Primitive{Kind: KindCircle, X1: s.X, Y1: s.Y, R: math.Abs(r)})
}

// Dot marks the current position with a pen-sized dot.
func (s *State) Dot() *Primitive {
	return s.ink(Primitive{Kind: KindDot, X1: s.X, Y1: s.Y, R: s.PenSize})
}

func (s *State) SetPen(down bool)   { s.PenDown = down }
func (s *State) SetColor(idx int)   { s.PenColor = idx }
func (s *State) SetSize(n float64)  { s.PenSize = n }
func (s *State) SetVisible(on bool) { s.Visible = on }

// ink stamps pen attributes onto p and returns it, or nil when the pen is up.
// All ink-producing commands route through here so pen state is honored
// uniformly.
func (s *State) ink(p Primitive) *Primitive {
	if !s.PenDown {
		return nil
	}
	p.Color = s.PenColor
	p.Size = s.PenSize
	return &p
}

func normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
