// Package basic implements TW BASIC, the unified line-numbered dialect that
// folds classic BASIC statements, PILOT question-and-answer commands, and
// Logo turtle commands into one interpreter.
package basic

// Expr is an expression node. Expressions evaluate atomically: nothing inside
// one can suspend, so the machine only checkpoints between statements.
type Expr interface {
	Pos() int
	exprNode()
}

type NumberLit struct {
	At    int
	Value float64
}

type StringLit struct {
	At    int
	Value string
}

// VarRef names a variable. Names are folded upper-case; a trailing $ marks a
// text variable.
type VarRef struct {
	At   int
	Name string
}

// CallExpr is a builtin function application such as MID$(A$, 2, 3). User
// functions do not exist in TW BASIC, so the name is resolved at call time
// against the builtin table.
type CallExpr struct {
	At   int
	Name string
	Args []Expr
}

type PrefixExpr struct {
	At    int
	Op    string
	Right Expr
}

type InfixExpr struct {
	At    int
	Op    string
	Left  Expr
	Right Expr
}

func (e *NumberLit) Pos() int  { return e.At }
func (e *StringLit) Pos() int  { return e.At }
func (e *VarRef) Pos() int     { return e.At }
func (e *CallExpr) Pos() int   { return e.At }
func (e *PrefixExpr) Pos() int { return e.At }
func (e *InfixExpr) Pos() int  { return e.At }

func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*VarRef) exprNode()     {}
func (*CallExpr) exprNode()   {}
func (*PrefixExpr) exprNode() {}
func (*InfixExpr) exprNode()  {}

// Stmt is a statement node. One Stmt executes per machine step.
type Stmt interface {
	Pos() int
	stmtNode()
}

// LetStmt covers LET X = e, bare X = e, and PILOT's C: X = e.
type LetStmt struct {
	At   int
	Name string
	Expr Expr
}

// PrintItem is one PRINT argument plus the separator that followed it.
// Sep is ';' (juxtapose), ',' (tab), or 0 (end of list).
type PrintItem struct {
	Expr Expr
	Sep  byte
}

// PrintStmt emits one output line per execution; a trailing separator
// suppresses the newline.
type PrintStmt struct {
	At        int
	Items     []PrintItem
	NoNewline bool
}

// InputStmt suspends for one value. Prompt is the literal prompt text
// carried on the request event.
type InputStmt struct {
	At     int
	Prompt string
	Name   string
}

type GotoStmt struct {
	At   int
	Line int
}

type GosubStmt struct {
	At   int
	Line int
}

type ReturnStmt struct {
	At int
}

// IfStmt holds single statements for both arms; THEN 100 parses as an inline
// GotoStmt. Else is nil when absent.
type IfStmt struct {
	At   int
	Cond Expr
	Then Stmt
	Else Stmt
}

type ForStmt struct {
	At   int
	Name string
	From Expr
	To   Expr
	Step Expr // nil means 1
}

type NextStmt struct {
	At   int
	Name string // empty matches the innermost loop
}

type EndStmt struct {
	At int
}

type ClsStmt struct {
	At int
}

// PILOT statements. Cond distinguishes T: (0) from Y:/N: ('Y'/'N').
type TypeStmt struct {
	At   int
	Cond byte
	Text string
}

// AcceptStmt is PILOT A:. The answer always lands in the match buffer; Name,
// when present, also receives it (numeric unless $-suffixed).
type AcceptStmt struct {
	At   int
	Name string
}

// MatchStmt sets the match flag when any pattern occurs in the buffer.
type MatchStmt struct {
	At       int
	Patterns []string
}

type JumpStmt struct {
	At    int
	Label string
}

// UseStmt is PILOT U:, a subroutine jump returned from by E:.
type UseStmt struct {
	At    int
	Label string
}

// EndRoutineStmt is PILOT E:: return from U:, or halt at top level.
type EndRoutineStmt struct {
	At int
}

// LabelStmt marks a *name jump target; executing it does nothing.
type LabelStmt struct {
	At   int
	Name string
}

// TurtleStmt covers every Logo command except REPEAT. Op is the canonical
// long name (FD parses as FORWARD); Args carries as many expressions as the
// command needs.
type TurtleStmt struct {
	At   int
	Op   string
	Args []Expr
}

// RepeatStmt executes Body Count times. Count is evaluated once, eagerly,
// when the statement starts.
type RepeatStmt struct {
	At    int
	Count Expr
	Body  []Stmt
}

func (s *LetStmt) Pos() int        { return s.At }
func (s *PrintStmt) Pos() int      { return s.At }
func (s *InputStmt) Pos() int      { return s.At }
func (s *GotoStmt) Pos() int       { return s.At }
func (s *GosubStmt) Pos() int      { return s.At }
func (s *ReturnStmt) Pos() int     { return s.At }
func (s *IfStmt) Pos() int         { return s.At }
func (s *ForStmt) Pos() int        { return s.At }
func (s *NextStmt) Pos() int       { return s.At }
func (s *EndStmt) Pos() int        { return s.At }
func (s *ClsStmt) Pos() int        { return s.At }
func (s *TypeStmt) Pos() int       { return s.At }
func (s *AcceptStmt) Pos() int     { return s.At }
func (s *MatchStmt) Pos() int      { return s.At }
func (s *JumpStmt) Pos() int       { return s.At }
func (s *UseStmt) Pos() int        { return s.At }
func (s *EndRoutineStmt) Pos() int { return s.At }
func (s *LabelStmt) Pos() int      { return s.At }
func (s *TurtleStmt) Pos() int     { return s.At }
func (s *RepeatStmt) Pos() int     { return s.At }

func (*LetStmt) stmtNode()        {}
func (*PrintStmt) stmtNode()      {}
func (*InputStmt) stmtNode()      {}
func (*GotoStmt) stmtNode()       {}
func (*GosubStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()     {}
func (*IfStmt) stmtNode()         {}
func (*ForStmt) stmtNode()        {}
func (*NextStmt) stmtNode()       {}
func (*EndStmt) stmtNode()        {}
func (*ClsStmt) stmtNode()        {}
func (*TypeStmt) stmtNode()       {}
func (*AcceptStmt) stmtNode()     {}
func (*MatchStmt) stmtNode()      {}
func (*JumpStmt) stmtNode()       {}
func (*UseStmt) stmtNode()        {}
func (*EndRoutineStmt) stmtNode() {}
func (*LabelStmt) stmtNode()      {}
func (*TurtleStmt) stmtNode()     {}
func (*RepeatStmt) stmtNode()     {}
