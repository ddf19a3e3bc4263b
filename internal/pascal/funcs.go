package pascal

import (
	"math"
	"unicode/utf8"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/value"
)

type builtin func(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError)

// builtins is the TW Pascal standard function table.
var builtins = map[string]builtin{
	"abs":    numFunc1("abs", math.Abs),
	"sqr":    numFunc1("sqr", func(x float64) float64 { return x * x }),
	"sqrt":   sqrtFunc,
	"trunc":  numFunc1("trunc", math.Trunc),
	"round":  numFunc1("round", math.Round),
	"odd":    oddFunc,
	"ord":    ordFunc,
	"chr":    chrFunc,
	"length": lengthFunc,
}

func arity(m *machine, at int, name string, args []value.Value, want int) *diag.RuntimeError {
	if len(args) != want {
		return m.errAt(diag.TypeError, at, "%s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func argNumber(m *machine, at int, name string, args []value.Value, i int) (float64, *diag.RuntimeError) {
	n, ok := args[i].(*value.Number)
	if !ok {
		return 0, m.errAt(diag.TypeError, at, "%s: argument %d must be a number", name, i+1)
	}
	return n.Value, nil
}

func argText(m *machine, at int, name string, args []value.Value, i int) (string, *diag.RuntimeError) {
	t, ok := args[i].(*value.Text)
	if !ok {
		return "", m.errAt(diag.TypeError, at, "%s: argument %d must be a string", name, i+1)
	}
	return t.Value, nil
}

func numFunc1(name string, fn func(float64) float64) builtin {
	return func(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
		if err := arity(m, at, name, args, 1); err != nil {
			return nil, err
		}
		x, err := argNumber(m, at, name, args, 0)
		if err != nil {
			return nil, err
		}
		return value.Num(fn(x)), nil
	}
}

func sqrtFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "sqrt", args, 1); err != nil {
		return nil, err
	}
	x, err := argNumber(m, at, "sqrt", args, 0)
	if err != nil {
		return nil, err
	}
	if x < 0 {
		return nil, m.errAt(diag.Arith, at, "sqrt of negative number")
	}
	return value.Num(math.Sqrt(x)), nil
}

func oddFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "odd", args, 1); err != nil {
		return nil, err
	}
	x, err := argNumber(m, at, "odd", args, 0)
	if err != nil {
		return nil, err
	}
	if x != math.Trunc(x) {
		return nil, m.errAt(diag.TypeError, at, "odd expects an integer, got %s", value.FormatNumber(x))
	}
	return value.Bool(math.Mod(x, 2) != 0), nil
}

func ordFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "ord", args, 1); err != nil {
		return nil, err
	}
	s, err := argText(m, at, "ord", args, 0)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(s) != 1 {
		return nil, m.errAt(diag.Arith, at, "ord expects a single character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return value.Num(float64(r)), nil
}

func chrFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "chr", args, 1); err != nil {
		return nil, err
	}
	x, err := argNumber(m, at, "chr", args, 0)
	if err != nil {
		return nil, err
	}
	if x != math.Trunc(x) || x < 0 || x > 255 {
		return nil, m.errAt(diag.Arith, at, "chr argument out of range: %s", value.FormatNumber(x))
	}
	return value.Str(string(rune(int(x)))), nil
}

func lengthFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "length", args, 1); err != nil {
		return nil, err
	}
	s, err := argText(m, at, "length", args, 0)
	if err != nil {
		return nil, err
	}
	return value.Num(float64(utf8.RuneCountInString(s))), nil
}
