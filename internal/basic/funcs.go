package basic

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/value"
)

type builtin func(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError)

// builtins is the TW BASIC function table. Text functions carry the $ suffix
// the same way text variables do. String indexes are 1-based and rune-counted.
var builtins = map[string]builtin{
	"ABS":  numFunc1("ABS", math.Abs),
	"INT":  numFunc1("INT", math.Floor),
	"SIN":  numFunc1("SIN", math.Sin),
	"COS":  numFunc1("COS", math.Cos),
	"TAN":  numFunc1("TAN", math.Tan),
	"SQR":  sqrt,
	"SQRT": sqrt,
	"RND":  rnd,
	"VAL":  val,
	"LEN":  lenFunc,
	"ASC":  asc,

	"STR$":   strFunc,
	"CHR$":   chr,
	"MID$":   mid,
	"LEFT$":  left,
	"RIGHT$": right,
	"UPPER$": textFunc1("UPPER$", strings.ToUpper),
	"LOWER$": textFunc1("LOWER$", strings.ToLower),
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
		return "", m.errAt(diag.TypeError, at, "%s: argument %d must be text", name, i+1)
	}
	return t.Value, nil
}

func numFunc1(name string, fn func(float64) float64) builtin {
	return func(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
		if err := arity(m, at, name, args, 1); err != nil {
			return nil, err
		}
		n, err := argNumber(m, at, name, args, 0)
		if err != nil {
			return nil, err
		}
		return value.Num(fn(n)), nil
	}
}

func textFunc1(name string, fn func(string) string) builtin {
	return func(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
		if err := arity(m, at, name, args, 1); err != nil {
			return nil, err
		}
		s, err := argText(m, at, name, args, 0)
		if err != nil {
			return nil, err
		}
		return value.Str(fn(s)), nil
	}
}

func sqrt(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "SQR", args, 1); err != nil {
		return nil, err
	}
	n, err := argNumber(m, at, "SQR", args, 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, m.errAt(diag.Arith, at, "SQR of negative number")
	}
	return value.Num(math.Sqrt(n)), nil
}

// rnd returns a uniform float in [0, 1). The classic numeric argument is
// accepted and ignored; the machine seeds its generator deterministically.
func rnd(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if len(args) > 1 {
		return nil, m.errAt(diag.TypeError, at, "RND expects at most 1 argument, got %d", len(args))
	}
	return value.Num(m.rng.Float64()), nil
}

// val parses text as a number; unparseable text yields 0, as classic VAL did.
func val(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "VAL", args, 1); err != nil {
		return nil, err
	}
	s, err := argText(m, at, "VAL", args, 0)
	if err != nil {
		return nil, err
	}
	n, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if perr != nil {
		return value.Num(0), nil
	}
	return value.Num(n), nil
}

func lenFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "LEN", args, 1); err != nil {
		return nil, err
	}
	s, err := argText(m, at, "LEN", args, 0)
	if err != nil {
		return nil, err
	}
	return value.Num(float64(utf8.RuneCountInString(s))), nil
}

func asc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "ASC", args, 1); err != nil {
		return nil, err
	}
	s, err := argText(m, at, "ASC", args, 0)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, m.errAt(diag.Arith, at, "ASC of empty text")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return value.Num(float64(r)), nil
}

func strFunc(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "STR$", args, 1); err != nil {
		return nil, err
	}
	n, err := argNumber(m, at, "STR$", args, 0)
	if err != nil {
		return nil, err
	}
	return value.Str(value.FormatNumber(n)), nil
}

func chr(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, "CHR$", args, 1); err != nil {
		return nil, err
	}
	n, err := argNumber(m, at, "CHR$", args, 0)
	if err != nil {
		return nil, err
	}
	code := int(n)
	if code < 0 || code > utf8.MaxRune {
		return nil, m.errAt(diag.Arith, at, "CHR$ code %d out of range", code)
	}
	return value.Str(string(rune(code))), nil
}

// mid is MID$(s, start[, count]): 1-based start, count defaulting to the
// rest of the text. A start before 1 is an error; past the end yields "".
func mid(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	if len(args) != 2 && len(args) != 3 {
		return nil, m.errAt(diag.TypeError, at, "MID$ expects 2 or 3 arguments, got %d", len(args))
	}
	s, err := argText(m, at, "MID$", args, 0)
	if err != nil {
		return nil, err
	}
	startF, err := argNumber(m, at, "MID$", args, 1)
	if err != nil {
		return nil, err
	}
	start := int(startF)
	if start < 1 {
		return nil, m.errAt(diag.Arith, at, "MID$ start must be at least 1, got %d", start)
	}
	runes := []rune(s)
	count := len(runes)
	if len(args) == 3 {
		countF, err := argNumber(m, at, "MID$", args, 2)
		if err != nil {
			return nil, err
		}
		count = int(countF)
		if count < 0 {
			return nil, m.errAt(diag.Arith, at, "MID$ count must not be negative, got %d", count)
		}
	}
	if start > len(runes) {
		return value.Str(""), nil
	}
	end := start - 1 + count
	if end > len(runes) {
		end = len(runes)
	}
	return value.Str(string(runes[start-1 : end])), nil
}

func left(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	return takeEnd(m, at, "LEFT$", args, true)
}

func right(m *machine, at int, args []value.Value) (value.Value, *diag.RuntimeError) {
	return takeEnd(m, at, "RIGHT$", args, false)
}

func takeEnd(m *machine, at int, name string, args []value.Value, fromLeft bool) (value.Value, *diag.RuntimeError) {
	if err := arity(m, at, name, args, 2); err != nil {
		return nil, err
	}
	s, err := argText(m, at, name, args, 0)
	if err != nil {
		return nil, err
	}
	nf, err := argNumber(m, at, name, args, 1)
	if err != nil {
		return nil, err
	}
	n := int(nf)
	if n < 0 {
		return nil, m.errAt(diag.Arith, at, "%s count must not be negative, got %d", name, n)
	}
	runes := []rune(s)
	if n > len(runes) {
		n = len(runes)
	}
	if fromLeft {
		return value.Str(string(runes[:n])), nil
	}
	return value.Str(string(runes[len(runes)-n:])), nil
}
