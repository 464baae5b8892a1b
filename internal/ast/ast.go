package ast

import "github.com/xirelogy/go-epsilon/internal/token"

// Node represents any AST node.
type Node interface {
	Pos() token.Position
	Span() token.Span
}

// Statement is an executable node.
type Statement interface {
	Node
	stmtNode()
}

// Expression produces a value.
type Expression interface {
	Node
	exprNode()
}

// Program is the root node.
type Program struct {
	Statements []Statement
	NodeSpan   token.Span
}

func (p *Program) Pos() token.Position {
	if len(p.Statements) == 0 {
		return token.Position{}
	}
	return p.Statements[0].Pos()
}
func (p *Program) Span() token.Span { return p.NodeSpan }

// OK reports whether the program contains no BadStmt.
func (p *Program) OK() bool {
	ok := true
	Inspect(p.Statements, func(s Statement) {
		if _, bad := s.(*BadStmt); bad {
			ok = false
		}
	})
	return ok
}

// Statements

type VarDecl struct {
	VarPos   token.Position
	Name     string
	NamePos  token.Position
	Init     Expression // nil when the declaration has no initializer
	StmtSpan token.Span
}

func (v *VarDecl) Pos() token.Position { return v.VarPos }
func (v *VarDecl) Span() token.Span    { return v.StmtSpan }
func (v *VarDecl) stmtNode()           {}

type PrintStmt struct {
	PrintPos   token.Position
	Expression Expression
	StmtSpan   token.Span
}

func (p *PrintStmt) Pos() token.Position { return p.PrintPos }
func (p *PrintStmt) Span() token.Span    { return p.StmtSpan }
func (p *PrintStmt) stmtNode()           {}

type ExprStmt struct {
	Expression Expression
	Start      token.Position
	StmtSpan   token.Span
}

func (e *ExprStmt) Pos() token.Position { return e.Start }
func (e *ExprStmt) Span() token.Span    { return e.StmtSpan }
func (e *ExprStmt) stmtNode()           {}

type BlockStmt struct {
	LBrace     token.Position
	Statements []Statement
	BlockSpan  token.Span
}

func (b *BlockStmt) Pos() token.Position { return b.LBrace }
func (b *BlockStmt) Span() token.Span    { return b.BlockSpan }
func (b *BlockStmt) stmtNode()           {}

type IfStmt struct {
	IfPos     token.Position
	Condition Expression
	Then      Statement
	Else      Statement // nil without an else branch
	IfSpan    token.Span
}

func (i *IfStmt) Pos() token.Position { return i.IfPos }
func (i *IfStmt) Span() token.Span    { return i.IfSpan }
func (i *IfStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos  token.Position
	Condition Expression
	Body      Statement
	NodeSpan  token.Span
}

func (w *WhileStmt) Pos() token.Position { return w.WhilePos }
func (w *WhileStmt) Span() token.Span    { return w.NodeSpan }
func (w *WhileStmt) stmtNode()           {}

type ReturnStmt struct {
	Return   token.Position
	Value    Expression // nil for a bare return
	StmtSpan token.Span
}

func (r *ReturnStmt) Pos() token.Position { return r.Return }
func (r *ReturnStmt) Span() token.Span    { return r.StmtSpan }
func (r *ReturnStmt) stmtNode()           {}

type FuncDecl struct {
	FuncPos  token.Position
	Name     string
	NamePos  token.Position
	Params   []Param
	Body     []Statement
	NodeSpan token.Span
}

func (f *FuncDecl) Pos() token.Position { return f.FuncPos }
func (f *FuncDecl) Span() token.Span    { return f.NodeSpan }
func (f *FuncDecl) stmtNode()           {}

type Param struct {
	Name string
	Pos  token.Position
}

// BadStmt stands in for a declaration that failed to parse. The parser
// recovered after it, so the program keeps going, but it must not be compiled.
type BadStmt struct {
	From token.Position
	To   token.Position
	Msg  string
}

func (b *BadStmt) Pos() token.Position { return b.From }
func (b *BadStmt) Span() token.Span    { return token.Span{Start: b.From, End: b.To} }
func (b *BadStmt) stmtNode()           {}

// Expressions

// LiteralKind tags the value held by a Literal.
type LiteralKind int

const (
	IntLiteral LiteralKind = iota
	FloatLiteral
	StringLiteral
)

type Literal struct {
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
	PosT  token.Position
	Sp    token.Span
}

func (l *Literal) Pos() token.Position { return l.PosT }
func (l *Literal) Span() token.Span    { return l.Sp }
func (l *Literal) exprNode()           {}

// Number returns the literal as a float64 and whether it is numeric.
func (l *Literal) Number() (float64, bool) {
	switch l.Kind {
	case IntLiteral:
		return float64(l.Int), true
	case FloatLiteral:
		return l.Float, true
	default:
		return 0, false
	}
}

type Variable struct {
	Name string
	PosT token.Position
	Sp   token.Span
}

func (v *Variable) Pos() token.Position { return v.PosT }
func (v *Variable) Span() token.Span    { return v.Sp }
func (v *Variable) exprNode()           {}

type BinaryExpr struct {
	Left     Expression
	Operator token.Type
	Right    Expression
	PosT     token.Position
	Sp       token.Span
}

func (b *BinaryExpr) Pos() token.Position { return b.PosT }
func (b *BinaryExpr) Span() token.Span    { return b.Sp }
func (b *BinaryExpr) exprNode()           {}

type UnaryExpr struct {
	Operator token.Type
	Right    Expression
	PosT     token.Position
	Sp       token.Span
}

func (u *UnaryExpr) Pos() token.Position { return u.PosT }
func (u *UnaryExpr) Span() token.Span    { return u.Sp }
func (u *UnaryExpr) exprNode()           {}

type Grouping struct {
	Inner Expression
	PosT  token.Position
	Sp    token.Span
}

func (g *Grouping) Pos() token.Position { return g.PosT }
func (g *Grouping) Span() token.Span    { return g.Sp }
func (g *Grouping) exprNode()           {}

type AssignExpr struct {
	Name  string
	Value Expression
	PosT  token.Position
	Sp    token.Span
}

func (a *AssignExpr) Pos() token.Position { return a.PosT }
func (a *AssignExpr) Span() token.Span    { return a.Sp }
func (a *AssignExpr) exprNode()           {}

// Inspect calls fn for every statement in stmts, depth first, including
// statements nested in blocks, branches, loop bodies and function bodies.
func Inspect(stmts []Statement, fn func(Statement)) {
	for _, s := range stmts {
		inspectStmt(s, fn)
	}
}

func inspectStmt(s Statement, fn func(Statement)) {
	if s == nil {
		return
	}
	fn(s)
	switch n := s.(type) {
	case *BlockStmt:
		Inspect(n.Statements, fn)
	case *IfStmt:
		inspectStmt(n.Then, fn)
		inspectStmt(n.Else, fn)
	case *WhileStmt:
		inspectStmt(n.Body, fn)
	case *FuncDecl:
		Inspect(n.Body, fn)
	}
}
