package token

// Type identifies the category of a token.
type Type string

// Token carries the lexical item along with its source position.
// Literal holds the lexeme text; for strings it is the unescaped contents,
// for ILLEGAL tokens it is a description of the problem.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

// Position describes a byte offset and 1-based line/column.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span represents an inclusive start and end position for a node.
type Span struct {
	Start Position
	End   Position
}

const (
	Illegal Type = "ILLEGAL"
	EOF     Type = "EOF"

	// identifiers and literals
	Ident  Type = "IDENT"
	Int    Type = "INT"
	Float  Type = "FLOAT"
	String Type = "STRING"

	// keywords
	Func   Type = "FUNCTION"
	Var    Type = "VAR"
	Print  Type = "PRINT"
	If     Type = "IF"
	Else   Type = "ELSE"
	While  Type = "WHILE"
	Return Type = "RETURN"

	// operators
	Assign       Type = "ASSIGN"       // =
	Plus         Type = "PLUS"         // +
	Minus        Type = "MINUS"        // -
	Star         Type = "STAR"         // *
	Slash        Type = "SLASH"        // /
	Bang         Type = "BANG"         // !
	Equal        Type = "EQUAL"        // ==
	NotEqual     Type = "NOTEQUAL"     // !=
	Less         Type = "LESS"         // <
	LessEqual    Type = "LESSEQUAL"    // <=
	Greater      Type = "GREATER"      // >
	GreaterEqual Type = "GREATEREQUAL" // >=

	// delimiters
	Comma     Type = "COMMA"
	Semicolon Type = "SEMICOLON"
	LParen    Type = "LPAREN"
	RParen    Type = "RPAREN"
	LBrace    Type = "LBRACE"
	RBrace    Type = "RBRACE"
)

var keywords = map[string]Type{
	"fn":       Func,
	"function": Func,
	"var":      Var,
	"print":    Print,
	"if":       If,
	"else":     Else,
	"while":    While,
	"return":   Return,
}

// LookupIdent returns the keyword token type or Ident.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}

// StartsStatement reports whether t begins a declaration or statement.
// The parser uses it as a synchronization point after a syntax error.
func StartsStatement(t Type) bool {
	switch t {
	case Func, Var, If, While, Print, Return:
		return true
	default:
		return false
	}
}

// Symbol returns the source spelling of operator and delimiter types,
// or the type name itself for everything else.
func (t Type) Symbol() string {
	if s, ok := symbols[t]; ok {
		return s
	}
	return string(t)
}

var symbols = map[Type]string{
	Assign:       "=",
	Plus:         "+",
	Minus:        "-",
	Star:         "*",
	Slash:        "/",
	Bang:         "!",
	Equal:        "==",
	NotEqual:     "!=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	Comma:        ",",
	Semicolon:    ";",
	LParen:       "(",
	RParen:       ")",
	LBrace:       "{",
	RBrace:       "}",
}
