package pascal

import (
	"math"
	"strconv"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/value"
)

// maxCallDepth bounds routine recursion so a runaway factorial gets a
// readable error instead of an ever-growing frame stack.
const maxCallDepth = 500

// machine is the resumable execution state of one TW Pascal run. Control
// lives in an explicit frame stack: one frame per active statement list,
// loop, conditional, or routine call. Each Step advances the top frame by
// one statement, so the machine can suspend for readln at any depth,
// including inside a function called from an expression.
type machine struct {
	prog    *Program
	frames  []frame
	scopes  []*scope
	calls   []*callFrame
	pending *pendingRead
	started bool
	depth   int
}

func newMachine(p *Program) *machine {
	return &machine{prog: p}
}

type frame interface {
	step(m *machine, io *engine.IO) *diag.RuntimeError
}

// scope is one activation record. Globals sit at the bottom of the scope
// stack; every routine call pushes exactly one scope above it.
type scope struct {
	consts map[string]value.Value
	vars   map[string]slot
}

func newScope() *scope {
	return &scope{consts: map[string]value.Value{}, vars: map[string]slot{}}
}

// cell is the storage behind a declared variable: a scalar value or a
// fixed-size array of element values.
type cell struct {
	typ TypeSpec
	val value.Value
	arr []value.Value
}

// slot addresses one assignable location. elem is -1 for whole cells and an
// array offset otherwise; var parameters alias the caller's slot directly.
type slot struct {
	c    *cell
	elem int
}

func wholeSlot(c *cell) slot { return slot{c: c, elem: -1} }

func (s slot) isArray() bool { return s.elem < 0 && s.c.typ.IsArray }

// baseType is the declared type of the location itself.
func (s slot) baseType() string {
	if s.elem >= 0 {
		return s.c.typ.Elem
	}
	return s.c.typ.Base
}

func (s slot) get() value.Value {
	if s.elem >= 0 {
		return s.c.arr[s.elem]
	}
	return s.c.val
}

func (s slot) put(v value.Value) {
	if s.elem >= 0 {
		s.c.arr[s.elem] = v
		return
	}
	s.c.val = v
}

func newCell(t TypeSpec) *cell {
	c := &cell{typ: t}
	if t.IsArray {
		c.arr = make([]value.Value, t.Size)
		for i := range c.arr {
			c.arr[i] = zeroValue(t.Elem)
		}
		return c
	}
	c.val = zeroValue(t.Base)
	return c
}

func zeroValue(base string) value.Value {
	switch base {
	case TypeString:
		return value.Str("")
	case TypeBoolean:
		return value.FALSE
	}
	return value.Num(0)
}

// pendingRead marks a suspended read target. The owning readFrame has not
// advanced; it moves on when the host's answer coerces to the declared type.
type pendingRead struct {
	fr     *readFrame
	dest   slot
	typ    string
	prompt string
}

func (m *machine) Step(io *engine.IO) (bool, *diag.RuntimeError) {
	if m.pending != nil {
		return m.feedRead(io)
	}
	if !m.started {
		m.started = true
		if err := m.boot(); err != nil {
			return false, err
		}
		return len(m.frames) == 0, nil
	}
	if len(m.frames) == 0 {
		return true, nil
	}
	top := m.frames[len(m.frames)-1]
	if err := top.step(m, io); err != nil {
		m.frames = nil
		return false, err
	}
	return len(m.frames) == 0 && m.pending == nil, nil
}

// boot evaluates global constants, zero-initializes global variables, and
// queues the top-level block.
func (m *machine) boot() *diag.RuntimeError {
	globals := newScope()
	m.scopes = []*scope{globals}
	if err := m.declare(globals, m.prog.consts, m.prog.globals); err != nil {
		return err
	}
	m.push(&seqFrame{stmts: m.prog.main})
	return nil
}

func (m *machine) declare(sc *scope, consts []ConstDecl, vars []VarDecl) *diag.RuntimeError {
	for _, cd := range consts {
		v, err := m.evalConst(cd)
		if err != nil {
			return err
		}
		sc.consts[cd.Name] = v
	}
	for _, vd := range vars {
		for _, name := range vd.Names {
			sc.vars[name] = wholeSlot(newCell(vd.Type))
		}
	}
	return nil
}

func (m *machine) evalConst(cd ConstDecl) (value.Value, *diag.RuntimeError) {
	var ctx evalCtx
	v, pc, err := m.eval(&ctx, cd.Expr)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		return nil, m.errAt(diag.TypeError, cd.At, "constant %q cannot call user functions", cd.Name)
	}
	return v, nil
}

func (m *machine) push(f frame) { m.frames = append(m.frames, f) }

func (m *machine) pop() { m.frames = m.frames[:len(m.frames)-1] }

func (m *machine) curScope() *scope { return m.scopes[len(m.scopes)-1] }

func (m *machine) currentCall() *callFrame {
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func (m *machine) errAt(kind string, at int, format string, args ...any) *diag.RuntimeError {
	return diag.RuntimeAt(kind, diag.LineCol(m.prog.src, at), format, args...)
}

// seqFrame executes one statement list. Simple statements run in place with
// a per-statement memo; compound statements push their own frame and the
// list moves on, picking up again when that frame pops itself.
type seqFrame struct {
	stmts []Stmt
	idx   int
	ctx   evalCtx
}

func (f *seqFrame) next() {
	f.idx++
	f.ctx.reset()
}

func (f *seqFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	if f.idx >= len(f.stmts) {
		m.pop()
		return nil
	}
	switch st := f.stmts[f.idx].(type) {
	case *BlockStmt:
		f.next()
		m.push(&seqFrame{stmts: st.Body})
	case *IfStmt:
		f.next()
		m.push(&ifFrame{st: st})
	case *WhileStmt:
		f.next()
		m.push(&whileFrame{st: st})
	case *RepeatStmt:
		f.next()
		m.push(&repeatFrame{st: st})
	case *ForStmt:
		f.next()
		m.push(&forFrame{st: st})
	case *CaseStmt:
		f.next()
		m.push(&caseFrame{st: st})
	case *ReadStmt:
		f.next()
		m.push(&readFrame{st: st})
	case *AssignStmt:
		return f.execAssign(m, st)
	case *CallStmt:
		return f.execCall(m, st)
	case *WriteStmt:
		return f.execWrite(m, io, st)
	default:
		return m.errAt(diag.Control, f.stmts[f.idx].Pos(), "statement not executable")
	}
	return nil
}

func (f *seqFrame) execAssign(m *machine, st *AssignStmt) *diag.RuntimeError {
	v, pc, err := m.eval(&f.ctx, st.Expr)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	sl, pc, err := m.resolveTarget(&f.ctx, st.Target)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	if sl.isArray() {
		return m.errAt(diag.TypeError, st.At, "assign to an element of %q, not the whole array", st.Target.Name)
	}
	if err := m.store(sl, v, st.Target.Name, st.At); err != nil {
		return err
	}
	f.next()
	return nil
}

func (f *seqFrame) execCall(m *machine, st *CallStmt) *diag.RuntimeError {
	r, ok := m.prog.routines[st.Name]
	if !ok {
		if _, builtin := builtins[st.Name]; builtin {
			return m.errAt(diag.TypeError, st.At, "%s returns a value; use it in an expression", st.Name)
		}
		return m.errAt(diag.Undefined, st.At, "procedure %q is not declared", st.Name)
	}
	binds, pc, err := m.bindArgs(&f.ctx, r, st.Args, st.At)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	f.next()
	return m.pushRoutine(r, binds, nil, nil, st.At)
}

func (f *seqFrame) execWrite(m *machine, io *engine.IO, st *WriteStmt) *diag.RuntimeError {
	var sb strings.Builder
	for _, arg := range st.Args {
		v, pc, err := m.eval(&f.ctx, arg)
		if pc != nil {
			return m.pushCall(&f.ctx, pc)
		}
		if err != nil {
			return err
		}
		sb.WriteString(display(v))
	}
	if st.Newline {
		io.Println(sb.String())
	} else {
		io.Print(sb.String())
	}
	f.next()
	return nil
}

type ifFrame struct {
	st  *IfStmt
	ctx evalCtx
}

func (f *ifFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	b, pc, err := m.evalCond(&f.ctx, f.st.Cond)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	m.pop()
	branch := f.st.Then
	if !b {
		branch = f.st.Else
	}
	if branch != nil {
		m.push(&seqFrame{stmts: []Stmt{branch}})
	}
	return nil
}

type whileFrame struct {
	st  *WhileStmt
	ctx evalCtx
}

func (f *whileFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	b, pc, err := m.evalCond(&f.ctx, f.st.Cond)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	f.ctx.reset()
	if !b {
		m.pop()
		return nil
	}
	m.push(&seqFrame{stmts: []Stmt{f.st.Body}})
	return nil
}

type repeatFrame struct {
	st  *RepeatStmt
	ctx evalCtx
	ran bool
}

func (f *repeatFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	if !f.ran {
		f.ran = true
		m.push(&seqFrame{stmts: f.st.Body})
		return nil
	}
	b, pc, err := m.evalCond(&f.ctx, f.st.Cond)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	f.ctx.reset()
	if b {
		m.pop()
		return nil
	}
	m.push(&seqFrame{stmts: f.st.Body})
	return nil
}

// forFrame binds the loop variable in the enclosing scope for the loop's
// duration only; whatever the name meant before is restored afterwards.
type forFrame struct {
	st       *ForStmt
	ctx      evalCtx
	phase    int // 0 bounds, 1 ready, 2 body running
	cur      float64
	limit    float64
	cell     *cell
	saved    slot
	hadSaved bool
}

func (f *forFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	switch f.phase {
	case 0:
		from, pc, err := m.evalInt(&f.ctx, f.st.From, "for start")
		if pc != nil {
			return m.pushCall(&f.ctx, pc)
		}
		if err != nil {
			return err
		}
		to, pc, err := m.evalInt(&f.ctx, f.st.To, "for limit")
		if pc != nil {
			return m.pushCall(&f.ctx, pc)
		}
		if err != nil {
			return err
		}
		f.ctx.reset()
		sc := m.curScope()
		f.saved, f.hadSaved = sc.vars[f.st.Name]
		f.cell = newCell(TypeSpec{Base: TypeInteger})
		sc.vars[f.st.Name] = wholeSlot(f.cell)
		f.cur, f.limit = from, to
		f.phase = 1
	case 1:
		if (f.st.Down && f.cur < f.limit) || (!f.st.Down && f.cur > f.limit) {
			f.restore(m)
			m.pop()
			return nil
		}
		f.cell.val = value.Num(f.cur)
		f.phase = 2
		m.push(&seqFrame{stmts: []Stmt{f.st.Body}})
	case 2:
		if f.st.Down {
			f.cur--
		} else {
			f.cur++
		}
		f.phase = 1
	}
	return nil
}

func (f *forFrame) restore(m *machine) {
	sc := m.curScope()
	if f.hadSaved {
		sc.vars[f.st.Name] = f.saved
		return
	}
	delete(sc.vars, f.st.Name)
}

type caseFrame struct {
	st  *CaseStmt
	ctx evalCtx
}

func (f *caseFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	sel, pc, err := m.eval(&f.ctx, f.st.Selector)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	for _, arm := range f.st.Arms {
		for _, label := range arm.Labels {
			lv, pc, err := m.eval(&f.ctx, label)
			if pc != nil {
				return m.pushCall(&f.ctx, pc)
			}
			if err != nil {
				return err
			}
			if lv.Type() != sel.Type() {
				return m.errAt(diag.TypeError, label.Pos(),
					"case label is %s but the selector is %s", typeName(lv), typeName(sel))
			}
			if value.Equals(sel, lv) {
				m.pop()
				m.push(&seqFrame{stmts: []Stmt{arm.Body}})
				return nil
			}
		}
	}
	m.pop()
	if f.st.Else != nil {
		m.push(&seqFrame{stmts: f.st.Else})
	}
	return nil
}

// readFrame suspends once per target. readln with no targets still waits for
// a line and discards it.
type readFrame struct {
	st    *ReadStmt
	idx   int
	ctx   evalCtx
	asked bool
}

func (f *readFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	if len(f.st.Targets) == 0 {
		if f.asked {
			m.pop()
			return nil
		}
		f.asked = true
		m.suspend(io, &pendingRead{fr: f, typ: TypeString, prompt: "? "})
		return nil
	}
	if f.idx >= len(f.st.Targets) {
		m.pop()
		return nil
	}
	target := f.st.Targets[f.idx]
	sl, pc, err := m.resolveTarget(&f.ctx, target)
	if pc != nil {
		return m.pushCall(&f.ctx, pc)
	}
	if err != nil {
		return err
	}
	if sl.isArray() {
		return m.errAt(diag.TypeError, target.At, "cannot read into the whole array %q", target.Name)
	}
	f.ctx.reset()
	m.suspend(io, &pendingRead{fr: f, dest: sl, typ: sl.baseType(), prompt: "? "})
	return nil
}

func (m *machine) suspend(io *engine.IO, pend *pendingRead) {
	m.pending = pend
	io.Request(pend.prompt)
}

func (m *machine) feedRead(io *engine.IO) (bool, *diag.RuntimeError) {
	text, ok := io.TakeInput()
	if !ok {
		return false, nil
	}
	pend := m.pending
	v, want := coerceInput(text, pend.typ)
	if v == nil {
		io.Println("Invalid input: expected " + want + ", got " + strconv.Quote(text))
		io.Request(pend.prompt)
		return false, nil
	}
	if pend.dest.c != nil {
		pend.dest.put(v)
	}
	m.pending = nil
	pend.fr.idx++
	return false, nil
}

// coerceInput converts one input line to the declared type of the read
// target, or returns a description of what was expected.
func coerceInput(text, typ string) (value.Value, string) {
	switch typ {
	case TypeString:
		return value.Str(text), ""
	case TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "true":
			return value.TRUE, ""
		case "false":
			return value.FALSE, ""
		}
		return nil, "true or false"
	case TypeInteger:
		n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || n != math.Trunc(n) {
			return nil, "an integer"
		}
		return value.Num(n), ""
	default:
		n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, "a number"
		}
		return value.Num(n), ""
	}
}

// callFrame is the epilogue of one routine call. The body runs as a
// seqFrame above it; when that pops, the epilogue checks the function
// result, delivers it to the spawning expression's memo, and unwinds the
// scope.
type callFrame struct {
	routine    *Routine
	at         int
	resultCell *cell
	resultSet  bool
	destCtx    *evalCtx
	destSite   Expr
}

func (f *callFrame) step(m *machine, io *engine.IO) *diag.RuntimeError {
	if f.routine.Result != "" {
		if !f.resultSet {
			return m.errAt(diag.Undefined, f.at,
				"function %s finished without assigning a result", f.routine.Name)
		}
		if f.destCtx != nil {
			f.destCtx.put(f.destSite, f.resultCell.val)
		}
	}
	m.depth--
	m.calls = m.calls[:len(m.calls)-1]
	m.scopes = m.scopes[:len(m.scopes)-1]
	m.pop()
	return nil
}

func (m *machine) pushCall(ctx *evalCtx, pc *pendingCall) *diag.RuntimeError {
	return m.pushRoutine(pc.routine, pc.binds, ctx, pc.site, pc.at)
}

// pushRoutine enters a routine: new scope, parameters bound, local
// declarations evaluated, body queued. destCtx/destSite say where a function
// result lands once the call finishes.
func (m *machine) pushRoutine(r *Routine, binds []argBind, destCtx *evalCtx, destSite Expr, at int) *diag.RuntimeError {
	if m.depth >= maxCallDepth {
		return m.errAt(diag.Control, at, "call stack overflow in %s", r.Name)
	}
	sc := newScope()
	for i, p := range r.Params {
		switch {
		case p.ByRef:
			sc.vars[p.Name] = binds[i].ref
		case p.Type.IsArray:
			c := &cell{typ: p.Type, arr: binds[i].arr}
			sc.vars[p.Name] = wholeSlot(c)
		default:
			c := newCell(p.Type)
			sl := wholeSlot(c)
			if err := m.store(sl, binds[i].val, p.Name, at); err != nil {
				return err
			}
			sc.vars[p.Name] = sl
		}
	}
	cf := &callFrame{routine: r, at: at, destCtx: destCtx, destSite: destSite}
	if r.Result != "" {
		cf.resultCell = newCell(TypeSpec{Base: r.Result})
	}
	m.scopes = append(m.scopes, sc)
	m.calls = append(m.calls, cf)
	if err := m.declare(sc, r.Consts, r.Locals); err != nil {
		m.scopes = m.scopes[:len(m.scopes)-1]
		m.calls = m.calls[:len(m.calls)-1]
		return err
	}
	m.depth++
	m.push(cf)
	m.push(&seqFrame{stmts: r.Body})
	return nil
}

// store writes v into sl, enforcing the location's declared type.
func (m *machine) store(sl slot, v value.Value, name string, at int) *diag.RuntimeError {
	switch sl.baseType() {
	case TypeInteger:
		n, ok := v.(*value.Number)
		if !ok {
			return m.errAt(diag.TypeError, at, "cannot assign %s to integer %q", typeName(v), name)
		}
		if n.Value != math.Trunc(n.Value) {
			return m.errAt(diag.TypeError, at, "cannot assign %s to integer %q", value.FormatNumber(n.Value), name)
		}
	case TypeReal:
		if _, ok := v.(*value.Number); !ok {
			return m.errAt(diag.TypeError, at, "cannot assign %s to real %q", typeName(v), name)
		}
	case TypeString:
		if _, ok := v.(*value.Text); !ok {
			return m.errAt(diag.TypeError, at, "cannot assign %s to string %q", typeName(v), name)
		}
	case TypeBoolean:
		if _, ok := v.(*value.Boolean); !ok {
			return m.errAt(diag.TypeError, at, "cannot assign %s to boolean %q", typeName(v), name)
		}
	}
	sl.put(v)
	return nil
}

// display renders a value the way write does: numbers bare, strings as-is,
// booleans in Pascal's upper case.
func display(v value.Value) string {
	switch v := v.(type) {
	case *value.Boolean:
		if v.Value {
			return "TRUE"
		}
		return "FALSE"
	default:
		return v.Inspect()
	}
}
