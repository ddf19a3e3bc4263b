package turtle

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestForwardBackRestoresPosition(t *testing.T) {
	tests := []struct {
		heading float64
		dist    float64
	}{
		{0, 100},
		{90, 50},
		{33, 12.5},
		{270, 1e6},
	}

	for _, tt := range tests {
		s := Reset()
		s.SetHeading(tt.heading)
		s.Forward(tt.dist)
		s.Back(tt.dist)

		if !approx(s.X, 0) || !approx(s.Y, 0) {
			t.Errorf("heading %v dist %v: position not restored, got (%v, %v)",
				tt.heading, tt.dist, s.X, s.Y)
		}
		if s.Heading != tt.heading {
			t.Errorf("heading %v: changed by forward/back to %v", tt.heading, s.Heading)
		}
	}
}

func TestHeadingWraps(t *testing.T) {
	tests := []struct {
		name string
		turn func(s *State)
		want float64
	}{
		{"right 450", func(s *State) { s.Right(450) }, 90},
		{"left 90", func(s *State) { s.Left(90) }, 270},
		{"right 360", func(s *State) { s.Right(360) }, 0},
		{"left 720", func(s *State) { s.Left(720) }, 0},
		{"setheading -45", func(s *State) { s.SetHeading(-45) }, 315},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reset()
			tt.turn(&s)
			if !approx(s.Heading, tt.want) {
				t.Errorf("heading wrong. expected=%v, got=%v", tt.want, s.Heading)
			}
		})
	}
}

func TestForwardDrawsRightAngle(t *testing.T) {
	s := Reset()

	first := s.Forward(100)
	s.Right(90)
	second := s.Forward(50)

	if first == nil || second == nil {
		t.Fatal("expected both moves to draw while the pen is down")
	}
	if !approx(s.X, 50) || !approx(s.Y, 100) {
		t.Fatalf("final position wrong. expected=(50, 100), got=(%v, %v)", s.X, s.Y)
	}

	// Perpendicular segments have a zero dot product.
	d1x, d1y := first.X2-first.X1, first.Y2-first.Y1
	d2x, d2y := second.X2-second.X1, second.Y2-second.Y1
	if dot := d1x*d2x + d1y*d2y; !approx(dot, 0) {
		t.Errorf("segments not perpendicular, dot product %v", dot)
	}
	if s.Heading != 90 {
		t.Errorf("final heading wrong. expected=90, got=%v", s.Heading)
	}
}

func TestPenUpSuppressesInk(t *testing.T) {
	s := Reset()
	s.SetPen(false)

	if p := s.Forward(10); p != nil {
		t.Errorf("forward drew with pen up: %+v", p)
	}
	if p := s.Circle(5); p != nil {
		t.Errorf("circle drew with pen up: %+v", p)
	}
	if p := s.Dot(); p != nil {
		t.Errorf("dot drew with pen up: %+v", p)
	}

	s.SetPen(true)
	s.SetColor(12)
	s.SetSize(3)
	p := s.Forward(10)
	if p == nil {
		t.Fatal("forward did not draw with pen down")
	}
	if p.Color != 12 || p.Size != 3 {
		t.Errorf("pen attributes not stamped: %+v", p)
	}
}

func TestHomeDrawsReturnLeg(t *testing.T) {
	s := Reset()
	s.Forward(40)
	s.Right(90)

	p := s.Home()
	if p == nil {
		t.Fatal("home did not draw with pen down")
	}
	if !approx(p.X2, 0) || !approx(p.Y2, 0) {
		t.Errorf("home line ends at (%v, %v), want origin", p.X2, p.Y2)
	}
	if s.Heading != 0 || !approx(s.X, 0) || !approx(s.Y, 0) {
		t.Errorf("home did not reset state: %+v", s)
	}
}

func TestClearResetsWithoutDrawing(t *testing.T) {
	s := Reset()
	s.SetPen(false)
	s.SetColor(4)
	s.Forward(25)
	s.Right(45)

	p := s.Clear()
	if p.Kind != KindClear {
		t.Fatalf("expected %q primitive, got %q", KindClear, p.Kind)
	}
	if !approx(s.X, 0) || !approx(s.Y, 0) || s.Heading != 0 {
		t.Errorf("clear did not home the turtle: %+v", s)
	}
	if s.PenDown || s.PenColor != 4 {
		t.Errorf("clear must not touch pen state: %+v", s)
	}
}

func TestMoveToDraws(t *testing.T) {
	s := Reset()
	p := s.MoveTo(30, -40)
	if p == nil {
		t.Fatal("setxy did not draw with pen down")
	}
	if !approx(p.X2, 30) || !approx(p.Y2, -40) {
		t.Errorf("line endpoint wrong: %+v", p)
	}
	if !approx(s.X, 30) || !approx(s.Y, -40) {
		t.Errorf("position wrong after setxy: (%v, %v)", s.X, s.Y)
	}
}
