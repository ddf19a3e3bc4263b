package token

type TokenType string

// Operator and delimiter types are their own lexemes. Each language lexer
// emits the subset its grammar knows about.
const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"
	NEWLINE = "NEWLINE"

	// Literals and names
	IDENT    = "IDENT"    // x, total, writeln, person
	KEYWORD  = "KEYWORD"  // reserved word, canonicalized per language
	NUMBER   = "NUMBER"   // 42, 3.14, 1e6
	STRING   = "STRING"   // "hello" or 'hello'
	VARIABLE = "VARIABLE" // Prolog: X, Who, _Tail
	LABEL    = "LABEL"    // PILOT: *again

	// Operators
	ASSIGN     = ":="
	EQ         = "="
	PLUS       = "+"
	MINUS      = "-"
	STAR       = "*"
	SLASH      = "/"
	CARET      = "^"
	LT         = "<"
	LT_EQ      = "<="
	GT         = ">"
	GT_EQ      = ">="
	NOT_EQ     = "<>"
	EQ_LT      = "=<" // Prolog spelling of less-or-equal
	ARITH_EQ   = "=:="
	ARITH_NEQ  = "=\\="
	STRUCT_EQ  = "=="
	STRUCT_NEQ = "\\=="
	NOT_UNIFY  = "\\="
	NAF        = "\\+"
	CUT        = "!"
	IMPLIES    = ":-"
	QUERY      = "?-"
	QUESTION   = "?" // BASIC shorthand for PRINT

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"
	COLON     = ":"
	PERIOD    = "."
	DOTDOT    = ".."
	BAR       = "|"
	LPAREN    = "("
	RPAREN    = ")"
	LBRACKET  = "["
	RBRACKET  = "]"
)

type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset of the token in the source
}
