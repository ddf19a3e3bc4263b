package pascal

import (
	"math"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/value"
)

// evalCtx memoizes completed function calls for one statement or condition
// evaluation. When a call suspends the evaluation, the machine runs it as a
// frame and then re-evaluates the expression; the memo keeps every finished
// call from running its side effects twice.
type evalCtx struct {
	memo map[Expr]value.Value
}

func (c *evalCtx) reset() { c.memo = nil }

func (c *evalCtx) get(site Expr) (value.Value, bool) {
	v, ok := c.memo[site]
	return v, ok
}

func (c *evalCtx) put(site Expr, v value.Value) {
	if c.memo == nil {
		c.memo = map[Expr]value.Value{}
	}
	c.memo[site] = v
}

// pendingCall asks the machine to run a user function before the current
// expression can make progress.
type pendingCall struct {
	site    Expr
	routine *Routine
	binds   []argBind
	at      int
}

// argBind carries one bound argument: a plain value, an array copy, or the
// caller's slot for a var parameter.
type argBind struct {
	val value.Value
	arr []value.Value
	ref slot
}

type binding struct {
	sl    slot
	cv    value.Value
	isVar bool
}

func scopeLookup(sc *scope, name string) (binding, bool) {
	if sl, ok := sc.vars[name]; ok {
		return binding{sl: sl, isVar: true}, true
	}
	if v, ok := sc.consts[name]; ok {
		return binding{cv: v}, true
	}
	return binding{}, false
}

// resolve looks a name up in the current activation record, then in the
// globals. TW Pascal has no nested routines, so two levels suffice.
func (m *machine) resolve(name string) (binding, bool) {
	top := m.scopes[len(m.scopes)-1]
	if b, ok := scopeLookup(top, name); ok {
		return b, true
	}
	if len(m.scopes) > 1 {
		return scopeLookup(m.scopes[0], name)
	}
	return binding{}, false
}

func (m *machine) eval(ctx *evalCtx, e Expr) (value.Value, *pendingCall, *diag.RuntimeError) {
	switch e := e.(type) {
	case *NumberLit:
		return value.Num(e.Value), nil, nil
	case *StringLit:
		return value.Str(e.Value), nil, nil
	case *BoolLit:
		return value.Bool(e.Value), nil, nil
	case *VarExpr:
		return m.evalVar(ctx, e)
	case *IndexExpr:
		sl, pc, err := m.indexSlot(ctx, e.Name, e.Index, e.At)
		if pc != nil || err != nil {
			return nil, pc, err
		}
		return sl.get(), nil, nil
	case *CallExpr:
		return m.evalCall(ctx, e)
	case *PrefixExpr:
		v, pc, err := m.eval(ctx, e.Right)
		if pc != nil || err != nil {
			return nil, pc, err
		}
		return m.evalPrefix(e, v)
	case *InfixExpr:
		left, pc, err := m.eval(ctx, e.Left)
		if pc != nil || err != nil {
			return nil, pc, err
		}
		right, pc, err := m.eval(ctx, e.Right)
		if pc != nil || err != nil {
			return nil, pc, err
		}
		v, rerr := m.evalInfix(e, left, right)
		return v, nil, rerr
	}
	return nil, nil, m.errAt(diag.Control, e.Pos(), "expression not evaluable")
}

func (m *machine) evalVar(ctx *evalCtx, e *VarExpr) (value.Value, *pendingCall, *diag.RuntimeError) {
	if b, ok := m.resolve(e.Name); ok {
		if !b.isVar {
			return b.cv, nil, nil
		}
		if b.sl.isArray() {
			return nil, nil, m.errAt(diag.TypeError, e.At, "array %q cannot be used as a value", e.Name)
		}
		return b.sl.get(), nil, nil
	}
	if r, ok := m.prog.routines[e.Name]; ok {
		// Bare function name is Pascal's zero-argument call.
		if r.Result == "" {
			return nil, nil, m.errAt(diag.TypeError, e.At, "procedure %s does not return a value", e.Name)
		}
		if v, ok := ctx.get(e); ok {
			return v, nil, nil
		}
		if len(r.Params) != 0 {
			return nil, nil, m.errAt(diag.TypeError, e.At, "%s expects %d argument(s), got 0", r.Name, len(r.Params))
		}
		return nil, &pendingCall{site: e, routine: r, at: e.At}, nil
	}
	return nil, nil, m.errAt(diag.Undefined, e.At, "variable %q is not declared", e.Name)
}

func (m *machine) evalCall(ctx *evalCtx, e *CallExpr) (value.Value, *pendingCall, *diag.RuntimeError) {
	if v, ok := ctx.get(e); ok {
		return v, nil, nil
	}
	if r, ok := m.prog.routines[e.Name]; ok {
		if r.Result == "" {
			return nil, nil, m.errAt(diag.TypeError, e.At, "procedure %s does not return a value", e.Name)
		}
		binds, pc, err := m.bindArgs(ctx, r, e.Args, e.At)
		if pc != nil || err != nil {
			return nil, pc, err
		}
		return nil, &pendingCall{site: e, routine: r, binds: binds, at: e.At}, nil
	}
	fn, ok := builtins[e.Name]
	if !ok {
		return nil, nil, m.errAt(diag.Undefined, e.At, "function %q is not declared", e.Name)
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, pc, err := m.eval(ctx, a)
		if pc != nil || err != nil {
			return nil, pc, err
		}
		args[i] = v
	}
	v, rerr := fn(m, e.At, args)
	return v, nil, rerr
}

// bindArgs evaluates call arguments against the routine's parameter list:
// values for plain parameters, a copy for array parameters, the caller's
// slot for var parameters.
func (m *machine) bindArgs(ctx *evalCtx, r *Routine, args []Expr, at int) ([]argBind, *pendingCall, *diag.RuntimeError) {
	if len(args) != len(r.Params) {
		return nil, nil, m.errAt(diag.TypeError, at,
			"%s expects %d argument(s), got %d", r.Name, len(r.Params), len(args))
	}
	binds := make([]argBind, len(args))
	for i, p := range r.Params {
		switch {
		case p.ByRef:
			d, ok := asDesignator(args[i])
			if !ok {
				return nil, nil, m.errAt(diag.TypeError, args[i].Pos(),
					"var parameter %q needs a variable argument", p.Name)
			}
			sl, pc, err := m.resolveTarget(ctx, d)
			if pc != nil || err != nil {
				return nil, pc, err
			}
			if rerr := m.checkRefType(sl, p, args[i].Pos()); rerr != nil {
				return nil, nil, rerr
			}
			binds[i].ref = sl
		case p.Type.IsArray:
			d, ok := asDesignator(args[i])
			if !ok || d.Index != nil {
				return nil, nil, m.errAt(diag.TypeError, args[i].Pos(),
					"parameter %q needs an array argument", p.Name)
			}
			sl, pc, err := m.resolveTarget(ctx, d)
			if pc != nil || err != nil {
				return nil, pc, err
			}
			if !sl.isArray() || sl.c.typ.Elem != p.Type.Elem || sl.c.typ.Size != p.Type.Size {
				return nil, nil, m.errAt(diag.TypeError, args[i].Pos(),
					"parameter %q needs an array[0..%d] of %s", p.Name, p.Type.Size-1, p.Type.Elem)
			}
			binds[i].arr = append([]value.Value(nil), sl.c.arr...)
		default:
			v, pc, err := m.eval(ctx, args[i])
			if pc != nil || err != nil {
				return nil, pc, err
			}
			binds[i].val = v
		}
	}
	return binds, nil, nil
}

func (m *machine) checkRefType(sl slot, p Param, at int) *diag.RuntimeError {
	if p.Type.IsArray {
		if !sl.isArray() || sl.c.typ.Elem != p.Type.Elem || sl.c.typ.Size != p.Type.Size {
			return m.errAt(diag.TypeError, at,
				"var parameter %q needs an array[0..%d] of %s", p.Name, p.Type.Size-1, p.Type.Elem)
		}
		return nil
	}
	if sl.isArray() {
		return m.errAt(diag.TypeError, at,
			"var parameter %q is %s but the argument is an array", p.Name, p.Type.Base)
	}
	if sl.baseType() != p.Type.Base {
		return m.errAt(diag.TypeError, at,
			"var parameter %q is %s but the argument is %s", p.Name, p.Type.Base, sl.baseType())
	}
	return nil
}

func asDesignator(e Expr) (Designator, bool) {
	switch e := e.(type) {
	case *VarExpr:
		return Designator{At: e.At, Name: e.Name}, true
	case *IndexExpr:
		return Designator{At: e.At, Name: e.Name, Index: e.Index}, true
	}
	return Designator{}, false
}

// resolveTarget finds the assignable location a designator names. Inside a
// function body the bare function name is the result cell.
func (m *machine) resolveTarget(ctx *evalCtx, d Designator) (slot, *pendingCall, *diag.RuntimeError) {
	if cf := m.currentCall(); cf != nil && d.Index == nil && d.Name == cf.routine.Name && cf.resultCell != nil {
		cf.resultSet = true
		return wholeSlot(cf.resultCell), nil, nil
	}
	if d.Index != nil {
		return m.indexSlot(ctx, d.Name, d.Index, d.At)
	}
	b, ok := m.resolve(d.Name)
	if !ok {
		if r, found := m.prog.routines[d.Name]; found {
			kind := "procedure"
			if r.Result != "" {
				kind = "function"
			}
			return slot{}, nil, m.errAt(diag.TypeError, d.At, "cannot assign to %s %q", kind, d.Name)
		}
		return slot{}, nil, m.errAt(diag.Undefined, d.At, "variable %q is not declared", d.Name)
	}
	if !b.isVar {
		return slot{}, nil, m.errAt(diag.TypeError, d.At, "cannot assign to constant %q", d.Name)
	}
	return b.sl, nil, nil
}

func (m *machine) indexSlot(ctx *evalCtx, name string, index Expr, at int) (slot, *pendingCall, *diag.RuntimeError) {
	b, ok := m.resolve(name)
	if !ok {
		return slot{}, nil, m.errAt(diag.Undefined, at, "variable %q is not declared", name)
	}
	if !b.isVar || !b.sl.isArray() {
		return slot{}, nil, m.errAt(diag.TypeError, at, "%q is not an array", name)
	}
	iv, pc, err := m.eval(ctx, index)
	if pc != nil || err != nil {
		return slot{}, pc, err
	}
	n, ok := iv.(*value.Number)
	if !ok || n.Value != math.Trunc(n.Value) {
		return slot{}, nil, m.errAt(diag.TypeError, index.Pos(),
			"array index must be an integer, got %s", describeValue(iv))
	}
	i := int(n.Value)
	if i < 0 || i >= b.sl.c.typ.Size {
		return slot{}, nil, m.errAt(diag.Index, index.Pos(),
			"index %d out of range for %q (size %d)", i, name, b.sl.c.typ.Size)
	}
	return slot{c: b.sl.c, elem: i}, nil, nil
}

func (m *machine) evalPrefix(e *PrefixExpr, v value.Value) (value.Value, *pendingCall, *diag.RuntimeError) {
	switch e.Op {
	case "-":
		n, ok := v.(*value.Number)
		if !ok {
			return nil, nil, m.errAt(diag.TypeError, e.At, "unary minus needs a number, got %s", typeName(v))
		}
		return value.Num(-n.Value), nil, nil
	default:
		b, ok := v.(*value.Boolean)
		if !ok {
			return nil, nil, m.errAt(diag.TypeError, e.At, "not needs a boolean, got %s", typeName(v))
		}
		return value.Bool(!b.Value), nil, nil
	}
}

func (m *machine) evalInfix(e *InfixExpr, left, right value.Value) (value.Value, *diag.RuntimeError) {
	switch e.Op {
	case "and", "or":
		lb, lok := left.(*value.Boolean)
		rb, rok := right.(*value.Boolean)
		if !lok || !rok {
			return nil, m.errAt(diag.TypeError, e.At, "%s expects booleans, got %s and %s",
				e.Op, typeName(left), typeName(right))
		}
		if e.Op == "and" {
			return value.Bool(lb.Value && rb.Value), nil
		}
		return value.Bool(lb.Value || rb.Value), nil
	case "+":
		if ln, ok := left.(*value.Number); ok {
			if rn, ok := right.(*value.Number); ok {
				return value.Num(ln.Value + rn.Value), nil
			}
		}
		if ls, ok := left.(*value.Text); ok {
			if rs, ok := right.(*value.Text); ok {
				return value.Str(ls.Value + rs.Value), nil
			}
		}
		return nil, m.errAt(diag.TypeError, e.At, "cannot add %s and %s", typeName(left), typeName(right))
	case "-", "*", "/", "div", "mod":
		ln, lok := left.(*value.Number)
		rn, rok := right.(*value.Number)
		if !lok || !rok {
			return nil, m.errAt(diag.TypeError, e.At, "%s expects numbers, got %s and %s",
				e.Op, typeName(left), typeName(right))
		}
		return m.evalArith(e, ln.Value, rn.Value)
	case "=", "<>":
		if left.Type() != right.Type() {
			return nil, m.errAt(diag.TypeError, e.At, "cannot compare %s and %s", typeName(left), typeName(right))
		}
		eq := value.Equals(left, right)
		if e.Op == "<>" {
			eq = !eq
		}
		return value.Bool(eq), nil
	default: // < <= > >=
		if ln, ok := left.(*value.Number); ok {
			if rn, ok := right.(*value.Number); ok {
				return orderNumbers(e.Op, ln.Value, rn.Value), nil
			}
		}
		if ls, ok := left.(*value.Text); ok {
			if rs, ok := right.(*value.Text); ok {
				return orderTexts(e.Op, ls.Value, rs.Value), nil
			}
		}
		return nil, m.errAt(diag.TypeError, e.At, "cannot order %s and %s", typeName(left), typeName(right))
	}
}

func (m *machine) evalArith(e *InfixExpr, l, r float64) (value.Value, *diag.RuntimeError) {
	switch e.Op {
	case "-":
		return value.Num(l - r), nil
	case "*":
		return value.Num(l * r), nil
	case "/":
		if r == 0 {
			return nil, m.errAt(diag.Division, e.At, "division by zero")
		}
		return value.Num(l / r), nil
	}
	if l != math.Trunc(l) || r != math.Trunc(r) {
		return nil, m.errAt(diag.TypeError, e.At, "%s expects integers, got %s and %s",
			e.Op, value.FormatNumber(l), value.FormatNumber(r))
	}
	if r == 0 {
		return nil, m.errAt(diag.Division, e.At, "division by zero")
	}
	q := math.Trunc(l / r)
	if e.Op == "div" {
		return value.Num(q), nil
	}
	return value.Num(l - q*r), nil
}

func orderNumbers(op string, l, r float64) value.Value {
	switch op {
	case "<":
		return value.Bool(l < r)
	case "<=":
		return value.Bool(l <= r)
	case ">":
		return value.Bool(l > r)
	default:
		return value.Bool(l >= r)
	}
}

func orderTexts(op string, l, r string) value.Value {
	switch op {
	case "<":
		return value.Bool(l < r)
	case "<=":
		return value.Bool(l <= r)
	case ">":
		return value.Bool(l > r)
	default:
		return value.Bool(l >= r)
	}
}

func (m *machine) evalCond(ctx *evalCtx, e Expr) (bool, *pendingCall, *diag.RuntimeError) {
	v, pc, err := m.eval(ctx, e)
	if pc != nil || err != nil {
		return false, pc, err
	}
	b, ok := v.(*value.Boolean)
	if !ok {
		return false, nil, m.errAt(diag.TypeError, e.Pos(), "condition must be boolean, got %s", typeName(v))
	}
	return b.Value, nil, nil
}

func (m *machine) evalInt(ctx *evalCtx, e Expr, what string) (float64, *pendingCall, *diag.RuntimeError) {
	v, pc, err := m.eval(ctx, e)
	if pc != nil || err != nil {
		return 0, pc, err
	}
	n, ok := v.(*value.Number)
	if !ok || n.Value != math.Trunc(n.Value) {
		return 0, nil, m.errAt(diag.TypeError, e.Pos(), "%s must be an integer, got %s", what, describeValue(v))
	}
	return n.Value, nil, nil
}

// typeName names a value's type in Pascal's vocabulary.
func typeName(v value.Value) string {
	switch v.Type() {
	case value.NUMBER_VAL:
		return "a number"
	case value.TEXT_VAL:
		return "a string"
	case value.BOOLEAN_VAL:
		return "a boolean"
	}
	return "a value"
}

func describeValue(v value.Value) string {
	if n, ok := v.(*value.Number); ok {
		return value.FormatNumber(n.Value)
	}
	return typeName(v)
}
