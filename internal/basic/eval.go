package basic

import (
	"math"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/value"
)

// eval computes an expression. Evaluation is atomic: expressions cannot
// suspend, draw, or jump, so errors are the only side channel.
func (m *machine) eval(e Expr) (value.Value, *diag.RuntimeError) {
	switch ex := e.(type) {
	case *NumberLit:
		return value.Num(ex.Value), nil

	case *StringLit:
		return value.Str(ex.Value), nil

	case *VarRef:
		v, ok := m.vars[ex.Name]
		if !ok {
			return nil, m.errAt(diag.Undefined, ex.At, "variable %s is not defined", ex.Name)
		}
		return v, nil

	case *PrefixExpr:
		return m.evalPrefix(ex)

	case *InfixExpr:
		return m.evalInfix(ex)

	case *CallExpr:
		fn, ok := builtins[ex.Name]
		if !ok {
			return nil, m.errAt(diag.Undefined, ex.At, "unknown function %s", ex.Name)
		}
		args := make([]value.Value, len(ex.Args))
		for i, a := range ex.Args {
			v, err := m.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(m, ex.At, args)
	}
	return nil, m.errAt(diag.TypeError, e.Pos(), "expression not evaluable")
}

func (m *machine) evalNumber(e Expr) (float64, *diag.RuntimeError) {
	v, err := m.eval(e)
	if err != nil {
		return 0, err
	}
	n, ok := v.(*value.Number)
	if !ok {
		return 0, m.errAt(diag.TypeError, e.Pos(), "expected a number, got %s", strings.ToLower(string(v.Type())))
	}
	return n.Value, nil
}

func (m *machine) evalPrefix(ex *PrefixExpr) (value.Value, *diag.RuntimeError) {
	v, err := m.eval(ex.Right)
	if err != nil {
		return nil, err
	}
	switch ex.Op {
	case "-":
		n, ok := v.(*value.Number)
		if !ok {
			return nil, m.errAt(diag.TypeError, ex.At, "cannot negate %s", strings.ToLower(string(v.Type())))
		}
		return value.Num(-n.Value), nil
	case "NOT":
		return value.Bool(!value.Truthy(v)), nil
	}
	return nil, m.errAt(diag.TypeError, ex.At, "unknown operator %s", ex.Op)
}

func (m *machine) evalInfix(ex *InfixExpr) (value.Value, *diag.RuntimeError) {
	left, err := m.eval(ex.Left)
	if err != nil {
		return nil, err
	}
	right, err := m.eval(ex.Right)
	if err != nil {
		return nil, err
	}

	switch ex.Op {
	case "AND":
		return value.Bool(value.Truthy(left) && value.Truthy(right)), nil
	case "OR":
		return value.Bool(value.Truthy(left) || value.Truthy(right)), nil
	case "=":
		return value.Bool(value.Equals(left, right)), nil
	case "<>":
		return value.Bool(!value.Equals(left, right)), nil
	}

	ln, lIsNum := left.(*value.Number)
	rn, rIsNum := right.(*value.Number)
	lt, lIsText := left.(*value.Text)
	rt, rIsText := right.(*value.Text)

	if ex.Op == "+" && lIsText && rIsText {
		return value.Str(lt.Value + rt.Value), nil
	}

	switch ex.Op {
	case "<", "<=", ">", ">=":
		if lIsText && rIsText {
			return compareBool(ex.Op, strings.Compare(lt.Value, rt.Value)), nil
		}
		if lIsNum && rIsNum {
			return compareBool(ex.Op, compareFloats(ln.Value, rn.Value)), nil
		}
		return nil, m.typeMismatch(ex, left, right)
	}

	if !lIsNum || !rIsNum {
		return nil, m.typeMismatch(ex, left, right)
	}

	switch ex.Op {
	case "+":
		return value.Num(ln.Value + rn.Value), nil
	case "-":
		return value.Num(ln.Value - rn.Value), nil
	case "*":
		return value.Num(ln.Value * rn.Value), nil
	case "/":
		if rn.Value == 0 {
			return nil, m.errAt(diag.Division, ex.At, "division by zero")
		}
		return value.Num(ln.Value / rn.Value), nil
	case "MOD":
		if rn.Value == 0 {
			return nil, m.errAt(diag.Division, ex.At, "MOD by zero")
		}
		return value.Num(math.Mod(ln.Value, rn.Value)), nil
	case "^":
		return value.Num(math.Pow(ln.Value, rn.Value)), nil
	}
	return nil, m.errAt(diag.TypeError, ex.At, "unknown operator %s", ex.Op)
}

func (m *machine) typeMismatch(ex *InfixExpr, left, right value.Value) *diag.RuntimeError {
	return m.errAt(diag.TypeError, ex.At, "cannot apply %s to %s and %s",
		ex.Op, strings.ToLower(string(left.Type())), strings.ToLower(string(right.Type())))
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(op string, cmp int) *value.Boolean {
	switch op {
	case "<":
		return value.Bool(cmp < 0)
	case "<=":
		return value.Bool(cmp <= 0)
	case ">":
		return value.Bool(cmp > 0)
	}
	return value.Bool(cmp >= 0)
}
