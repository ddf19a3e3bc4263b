// Package pascal implements TW Pascal: structured, block-scoped execution
// with procedures, functions, typed variables, and a frame-stack machine that
// can suspend on readln anywhere, including inside functions called from
// expressions.
package pascal

// Base type names, canonical lower case.
const (
	TypeInteger = "integer"
	TypeReal    = "real"
	TypeString  = "string"
	TypeBoolean = "boolean"
)

// TypeSpec describes a declared variable type. Array bounds are syntactic:
// array[lo..hi] of T declares hi-lo+1 cells which are indexed 0-based at
// runtime.
type TypeSpec struct {
	At      int
	Base    string
	IsArray bool
	Size    int
	Elem    string
}

type ConstDecl struct {
	At   int
	Name string
	Expr Expr
}

type VarDecl struct {
	At    int
	Names []string
	Type  TypeSpec
}

type Param struct {
	At    int
	Name  string
	Type  TypeSpec
	ByRef bool
}

// Routine is a procedure (Result == "") or function declaration.
type Routine struct {
	At     int
	Name   string
	Params []Param
	Result string
	Consts []ConstDecl
	Locals []VarDecl
	Body   []Stmt
}

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

type BoolLit struct {
	At    int
	Value bool
}

type VarExpr struct {
	At   int
	Name string
}

// IndexExpr is arr[i].
type IndexExpr struct {
	At    int
	Name  string
	Index Expr
}

// CallExpr applies a builtin or user function. Each syntactic call site is
// its own node; the machine memoizes results per site while re-evaluating a
// statement around suspensions.
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
func (e *BoolLit) Pos() int    { return e.At }
func (e *VarExpr) Pos() int    { return e.At }
func (e *IndexExpr) Pos() int  { return e.At }
func (e *CallExpr) Pos() int   { return e.At }
func (e *PrefixExpr) Pos() int { return e.At }
func (e *InfixExpr) Pos() int  { return e.At }

func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*BoolLit) exprNode()    {}
func (*VarExpr) exprNode()    {}
func (*IndexExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*PrefixExpr) exprNode() {}
func (*InfixExpr) exprNode()  {}

type Stmt interface {
	Pos() int
	stmtNode()
}

// Designator is an assignable place: a variable or one array cell.
type Designator struct {
	At    int
	Name  string
	Index Expr // nil for plain variables
}

type AssignStmt struct {
	At     int
	Target Designator
	Expr   Expr
}

// CallStmt invokes a procedure for its effects.
type CallStmt struct {
	At   int
	Name string
	Args []Expr
}

type BlockStmt struct {
	At   int
	Body []Stmt
}

type IfStmt struct {
	At   int
	Cond Expr
	Then Stmt
	Else Stmt
}

type WhileStmt struct {
	At   int
	Cond Expr
	Body Stmt
}

// RepeatStmt runs Body then checks Cond, looping until it holds.
type RepeatStmt struct {
	At   int
	Body []Stmt
	Cond Expr
}

type ForStmt struct {
	At   int
	Name string
	From Expr
	To   Expr
	Down bool
	Body Stmt
}

type CaseArm struct {
	Labels []Expr
	Body   Stmt
}

type CaseStmt struct {
	At       int
	Selector Expr
	Arms     []CaseArm
	Else     []Stmt
}

// WriteStmt is write/writeln: arguments concatenate into one emission.
type WriteStmt struct {
	At      int
	Args    []Expr
	Newline bool
}

// ReadStmt is read/readln: each target suspends for one value in order.
type ReadStmt struct {
	At      int
	Targets []Designator
}

func (s *AssignStmt) Pos() int { return s.At }
func (s *CallStmt) Pos() int   { return s.At }
func (s *BlockStmt) Pos() int  { return s.At }
func (s *IfStmt) Pos() int     { return s.At }
func (s *WhileStmt) Pos() int  { return s.At }
func (s *RepeatStmt) Pos() int { return s.At }
func (s *ForStmt) Pos() int    { return s.At }
func (s *CaseStmt) Pos() int   { return s.At }
func (s *WriteStmt) Pos() int  { return s.At }
func (s *ReadStmt) Pos() int   { return s.At }

func (*AssignStmt) stmtNode() {}
func (*CallStmt) stmtNode()   {}
func (*BlockStmt) stmtNode()  {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*RepeatStmt) stmtNode() {}
func (*ForStmt) stmtNode()    {}
func (*CaseStmt) stmtNode()   {}
func (*WriteStmt) stmtNode()  {}
func (*ReadStmt) stmtNode()   {}
