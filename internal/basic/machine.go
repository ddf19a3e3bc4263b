package basic

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/turtle"
	"github.com/James-HoneyBadger/timewarp/internal/value"
)

// machine is the resumable execution state of one TW BASIC run. The
// statement pointer is the pc line index plus a stack of in-progress REPEAT
// bodies; control transfers always unwind the REPEAT stack back to line
// level.
type machine struct {
	prog    *Program
	pc      int
	vars    map[string]value.Value
	turtle  turtle.State
	gosubs  []int
	fors    []forFrame
	repeats []repeatFrame
	pilot   pilotState
	pending *pendingInput
	rng     *rand.Rand
	halted  bool
	jumped  bool
}

type forFrame struct {
	name string
	to   float64
	step float64
	body int // line index the loop re-enters at
}

type repeatFrame struct {
	body      []Stmt
	idx       int
	remaining int
}

type pilotState struct {
	buffer  string
	matched bool
	uses    []int
}

// pendingInput marks a suspended INPUT or A: statement. The statement has
// not advanced; it finishes when the host's answer arrives.
type pendingInput struct {
	name   string
	prompt string
	accept bool
}

func newMachine(p *Program) *machine {
	return &machine{
		prog:   p,
		vars:   map[string]value.Value{},
		turtle: turtle.Reset(),
		// Fixed seed: a program replays the same event sequence every run.
		rng: rand.New(rand.NewSource(1)),
	}
}

// Turtle exposes live turtle state for the host renderer between steps.
func (m *machine) Turtle() *turtle.State { return &m.turtle }

func (m *machine) Step(io *engine.IO) (bool, *diag.RuntimeError) {
	if m.pending != nil {
		return m.feedInput(io)
	}
	if m.finished() {
		return true, nil
	}

	stmt := m.current()
	if stmt == nil {
		m.advance()
		return m.finished(), nil
	}

	m.jumped = false
	if err := m.exec(io, stmt); err != nil {
		m.halted = true
		return false, err
	}
	if m.pending == nil && !m.jumped {
		m.advance()
	}
	return m.finished(), nil
}

func (m *machine) finished() bool {
	return m.halted || (len(m.repeats) == 0 && m.pc >= len(m.prog.lines))
}

func (m *machine) current() Stmt {
	if n := len(m.repeats); n > 0 {
		fr := &m.repeats[n-1]
		return fr.body[fr.idx]
	}
	return m.prog.lines[m.pc].stmt
}

// advance moves past the statement just executed, closing out REPEAT
// iterations (and whole REPEAT statements) as they finish.
func (m *machine) advance() {
	for len(m.repeats) > 0 {
		fr := &m.repeats[len(m.repeats)-1]
		fr.idx++
		if fr.idx < len(fr.body) {
			return
		}
		fr.remaining--
		if fr.remaining > 0 {
			fr.idx = 0
			return
		}
		m.repeats = m.repeats[:len(m.repeats)-1]
	}
	m.pc++
}

// jump transfers control to a line index, unwinding any REPEAT bodies.
func (m *machine) jump(idx int) {
	m.repeats = nil
	m.pc = idx
	m.jumped = true
}

func (m *machine) lineIndex(at, num int) (int, *diag.RuntimeError) {
	idx, ok := m.prog.index[num]
	if !ok {
		return 0, m.errAt(diag.Control, at, "line %d does not exist", num)
	}
	return idx, nil
}

func (m *machine) errAt(kind string, at int, format string, args ...any) *diag.RuntimeError {
	return diag.RuntimeAt(kind, diag.LineCol(m.prog.src, at), format, args...)
}

func (m *machine) exec(io *engine.IO, stmt Stmt) *diag.RuntimeError {
	switch st := stmt.(type) {
	case *LetStmt:
		v, err := m.eval(st.Expr)
		if err != nil {
			return err
		}
		return m.assign(st.At, st.Name, v)

	case *PrintStmt:
		return m.execPrint(io, st)

	case *InputStmt:
		m.pending = &pendingInput{name: st.Name, prompt: st.Prompt}
		io.Request(st.Prompt)
		return nil

	case *GotoStmt:
		idx, err := m.lineIndex(st.At, st.Line)
		if err != nil {
			return err
		}
		m.jump(idx)
		return nil

	case *GosubStmt:
		idx, err := m.lineIndex(st.At, st.Line)
		if err != nil {
			return err
		}
		m.gosubs = append(m.gosubs, m.pc+1)
		m.jump(idx)
		return nil

	case *ReturnStmt:
		if len(m.gosubs) == 0 {
			return m.errAt(diag.Control, st.At, "RETURN without GOSUB")
		}
		idx := m.gosubs[len(m.gosubs)-1]
		m.gosubs = m.gosubs[:len(m.gosubs)-1]
		m.jump(idx)
		return nil

	case *IfStmt:
		cond, err := m.eval(st.Cond)
		if err != nil {
			return err
		}
		if value.Truthy(cond) {
			return m.exec(io, st.Then)
		}
		if st.Else != nil {
			return m.exec(io, st.Else)
		}
		return nil

	case *ForStmt:
		return m.execFor(st)

	case *NextStmt:
		return m.execNext(st)

	case *EndStmt:
		m.halted = true
		m.jumped = true
		return nil

	case *ClsStmt:
		p := m.turtle.Clear()
		io.Draw(&p)
		return nil

	case *TypeStmt:
		if st.Cond == 'Y' && !m.pilot.matched || st.Cond == 'N' && m.pilot.matched {
			return nil
		}
		text, err := m.interpolate(st.At, st.Text)
		if err != nil {
			return err
		}
		io.Println(text)
		return nil

	case *AcceptStmt:
		m.pending = &pendingInput{name: st.Name, accept: true}
		io.Request("")
		return nil

	case *MatchStmt:
		m.pilot.matched = false
		for _, pat := range st.Patterns {
			if strings.Contains(m.pilot.buffer, pat) {
				m.pilot.matched = true
				break
			}
		}
		return nil

	case *JumpStmt:
		idx, ok := m.prog.labels[st.Label]
		if !ok {
			return m.errAt(diag.Control, st.At, "unknown label *%s", st.Label)
		}
		m.jump(idx)
		return nil

	case *UseStmt:
		idx, ok := m.prog.labels[st.Label]
		if !ok {
			return m.errAt(diag.Control, st.At, "unknown label *%s", st.Label)
		}
		m.pilot.uses = append(m.pilot.uses, m.pc+1)
		m.jump(idx)
		return nil

	case *EndRoutineStmt:
		if n := len(m.pilot.uses); n > 0 {
			idx := m.pilot.uses[n-1]
			m.pilot.uses = m.pilot.uses[:n-1]
			m.jump(idx)
			return nil
		}
		m.halted = true
		m.jumped = true
		return nil

	case *LabelStmt:
		return nil

	case *TurtleStmt:
		return m.execTurtle(io, st)

	case *RepeatStmt:
		n, err := m.evalNumber(st.Count)
		if err != nil {
			return err
		}
		if int(n) > 0 && len(st.Body) > 0 {
			m.repeats = append(m.repeats, repeatFrame{body: st.Body, remaining: int(n)})
			m.jumped = true
		}
		return nil
	}
	return m.errAt(diag.Control, stmt.Pos(), "statement not executable")
}

func (m *machine) execPrint(io *engine.IO, st *PrintStmt) *diag.RuntimeError {
	var sb strings.Builder
	for _, item := range st.Items {
		v, err := m.eval(item.Expr)
		if err != nil {
			return err
		}
		sb.WriteString(printable(v))
		if item.Sep == ',' {
			sb.WriteByte('\t')
		}
	}
	if st.NoNewline {
		io.Print(sb.String())
	} else {
		io.Println(sb.String())
	}
	return nil
}

func (m *machine) execFor(st *ForStmt) *diag.RuntimeError {
	from, err := m.evalNumber(st.From)
	if err != nil {
		return err
	}
	to, err := m.evalNumber(st.To)
	if err != nil {
		return err
	}
	step := 1.0
	if st.Step != nil {
		if step, err = m.evalNumber(st.Step); err != nil {
			return err
		}
	}
	if err := m.assign(st.At, st.Name, value.Num(from)); err != nil {
		return err
	}
	// The loop body always runs once; the bound is checked at NEXT.
	m.fors = append(m.fors, forFrame{name: st.Name, to: to, step: step, body: m.pc + 1})
	return nil
}

func (m *machine) execNext(st *NextStmt) *diag.RuntimeError {
	depth := len(m.fors) - 1
	if st.Name != "" {
		for depth >= 0 && m.fors[depth].name != st.Name {
			depth--
		}
	}
	if depth < 0 {
		return m.errAt(diag.Control, st.At, "NEXT without FOR")
	}
	// Loops opened inside the matched one are abandoned.
	m.fors = m.fors[:depth+1]
	fr := &m.fors[depth]

	cur, ok := m.vars[fr.name]
	num, isNum := cur.(*value.Number)
	if !ok || !isNum {
		return m.errAt(diag.Control, st.At, "loop variable %s lost its value", fr.name)
	}
	next := num.Value + fr.step
	m.vars[fr.name] = value.Num(next)
	if (fr.step >= 0 && next <= fr.to) || (fr.step < 0 && next >= fr.to) {
		m.jump(fr.body)
		return nil
	}
	m.fors = m.fors[:depth]
	return nil
}

func (m *machine) execTurtle(io *engine.IO, st *TurtleStmt) *diag.RuntimeError {
	args := make([]float64, len(st.Args))
	for i, a := range st.Args {
		n, err := m.evalNumber(a)
		if err != nil {
			return err
		}
		args[i] = n
	}

	switch st.Op {
	case "FORWARD":
		io.Draw(m.turtle.Forward(args[0]))
	case "BACK":
		io.Draw(m.turtle.Back(args[0]))
	case "LEFT":
		m.turtle.Left(args[0])
	case "RIGHT":
		m.turtle.Right(args[0])
	case "PENUP":
		m.turtle.SetPen(false)
	case "PENDOWN":
		m.turtle.SetPen(true)
	case "HOME":
		io.Draw(m.turtle.Home())
	case "CLEARSCREEN":
		p := m.turtle.Clear()
		io.Draw(&p)
	case "SETXY":
		io.Draw(m.turtle.MoveTo(args[0], args[1]))
	case "SETHEADING":
		m.turtle.SetHeading(args[0])
	case "SETCOLOR":
		idx := int(args[0])
		if idx < 0 || idx >= len(turtle.Palette) {
			return m.errAt(diag.Index, st.At, "color index %d out of range 0..15", idx)
		}
		m.turtle.SetColor(idx)
	case "SETPENSIZE":
		if args[0] <= 0 {
			return m.errAt(diag.Arith, st.At, "pen size must be positive, got %s", value.FormatNumber(args[0]))
		}
		m.turtle.SetSize(args[0])
	case "CIRCLE":
		io.Draw(m.turtle.Circle(args[0]))
	case "DOT":
		io.Draw(m.turtle.Dot())
	case "HIDETURTLE":
		m.turtle.SetVisible(false)
	case "SHOWTURTLE":
		m.turtle.SetVisible(true)
	}
	return nil
}

// feedInput finishes a suspended INPUT or A: once the host has answered.
// A numeric parse failure is recoverable: complain, ask again.
func (m *machine) feedInput(io *engine.IO) (bool, *diag.RuntimeError) {
	text, ok := io.TakeInput()
	if !ok {
		return false, nil
	}
	pend := m.pending

	if pend.accept {
		m.pilot.buffer = strings.ToUpper(strings.TrimSpace(text))
	}
	if pend.name != "" {
		if strings.HasSuffix(pend.name, "$") {
			m.vars[pend.name] = value.Str(text)
		} else {
			n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
			if err != nil {
				io.Println("Invalid input: expected a number, got " + strconv.Quote(text))
				io.Request(pend.prompt)
				return false, nil
			}
			m.vars[pend.name] = value.Num(n)
		}
	}

	m.pending = nil
	m.advance()
	return m.finished(), nil
}

// assign stores v into name, enforcing the $ naming convention: text
// variables hold text, plain variables hold numbers.
func (m *machine) assign(at int, name string, v value.Value) *diag.RuntimeError {
	if strings.HasSuffix(name, "$") {
		if v.Type() != value.TEXT_VAL {
			return m.errAt(diag.TypeError, at, "cannot assign %s to text variable %s", strings.ToLower(string(v.Type())), name)
		}
	} else if v.Type() != value.NUMBER_VAL {
		return m.errAt(diag.TypeError, at, "cannot assign %s to numeric variable %s", strings.ToLower(string(v.Type())), name)
	}
	m.vars[name] = v
	return nil
}

// interpolate substitutes $NAME (text) and #NAME (numeric) variable
// references in PILOT text.
func (m *machine) interpolate(at int, text string) (string, *diag.RuntimeError) {
	var sb strings.Builder
	for i := 0; i < len(text); {
		ch := text[i]
		if (ch == '$' || ch == '#') && i+1 < len(text) && isLetterByte(text[i+1]) {
			j := i + 1
			for j < len(text) && (isLetterByte(text[j]) || isDigitByte(text[j])) {
				j++
			}
			name := strings.ToUpper(text[i+1 : j])
			if ch == '$' {
				name += "$"
			}
			v, ok := m.vars[name]
			if !ok {
				return "", m.errAt(diag.Undefined, at, "variable %s is not defined", name)
			}
			sb.WriteString(printable(v))
			i = j
			continue
		}
		sb.WriteByte(ch)
		i++
	}
	return sb.String(), nil
}

func printable(v value.Value) string {
	switch val := v.(type) {
	case *value.Number:
		return value.FormatNumber(val.Value)
	case *value.Text:
		return val.Value
	case *value.Boolean:
		if val.Value {
			return "TRUE"
		}
		return "FALSE"
	}
	return v.Inspect()
}

func isLetterByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_'
}
