package value

import (
	"math"
	"strconv"
	"strings"
)

const (
	NUMBER_VAL  = "NUMBER"
	TEXT_VAL    = "TEXT"
	BOOLEAN_VAL = "BOOLEAN"
	LIST_VAL    = "LIST"
)

var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

type ValueType string

// Value is the runtime representation shared by all three interpreters.
// Values are immutable once constructed; variables are reassigned wholesale.
type Value interface {
	Type() ValueType
	Inspect() string
}

type Number struct {
	Value float64
}

func (n *Number) Type() ValueType { return NUMBER_VAL }
func (n *Number) Inspect() string { return FormatNumber(n.Value) }

type Text struct {
	Value string
}

func (t *Text) Type() ValueType { return TEXT_VAL }
func (t *Text) Inspect() string { return t.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ValueType { return BOOLEAN_VAL }
func (b *Boolean) Inspect() string {
	if b.Value {
		return "true"
	}
	return "false"
}

type List struct {
	Elements []Value
}

func (l *List) Type() ValueType { return LIST_VAL }
func (l *List) Inspect() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func Num(f float64) *Number  { return &Number{Value: f} }
func Str(s string) *Text     { return &Text{Value: s} }
func Bool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// FormatNumber renders a float the way the classic interpreters printed them:
// integral values without a decimal point, everything else in the shortest
// round-trip form.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 0) {
		if f > 0 {
			return "Inf"
		}
		return "-Inf"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equals compares two values structurally. Numbers and text compare by
// content; lists compare element-wise.
func Equals(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case *Number:
		return av.Value == b.(*Number).Value
	case *Text:
		return av.Value == b.(*Text).Value
	case *Boolean:
		return av.Value == b.(*Boolean).Value
	case *List:
		bl := b.(*List)
		if len(av.Elements) != len(bl.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equals(av.Elements[i], bl.Elements[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Truthy reports whether a value counts as true in a condition: booleans by
// value, numbers when nonzero, text when nonempty, lists when nonempty.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case *Boolean:
		return v.Value
	case *Number:
		return v.Value != 0
	case *Text:
		return v.Value != ""
	case *List:
		return len(v.Elements) > 0
	}
	return false
}
