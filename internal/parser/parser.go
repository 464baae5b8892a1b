package parser

import (
	"strconv"

	"github.com/xirelogy/go-epsilon/internal/ast"
	"github.com/xirelogy/go-epsilon/internal/lexer"
	"github.com/xirelogy/go-epsilon/internal/token"
)

const maxParams = 255

type Parser struct {
	tokens  []token.Token
	current int
	errors  ErrorList
	onError func(*SyntaxError)
}

// New creates a parser over tokens. The slice must end with an EOF token;
// one is appended if it does not.
func New(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		var end token.Position
		if len(tokens) > 0 {
			end = tokens[len(tokens)-1].Pos
		}
		tokens = append(tokens[:len(tokens):len(tokens)], token.Token{Type: token.EOF, Pos: end})
	}
	return &Parser{tokens: tokens}
}

// ParseSource tokenizes and parses src in one step.
func ParseSource(src string) (*ast.Program, error) {
	p := New(lexer.Tokenize(src))
	prog := p.ParseProgram()
	return prog, p.Errors().Err()
}

// SetErrorHandler installs fn to be called as soon as each syntax error is
// reported, before the parser recovers.
func (p *Parser) SetErrorHandler(fn func(*SyntaxError)) {
	p.onError = fn
}

// Errors returns every syntax error reported so far.
func (p *Parser) Errors() ErrorList {
	return p.errors
}

// ParseProgram parses declarations until EOF. Declarations that fail are
// kept as *ast.BadStmt so the result has no gaps.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.isAtEnd() {
		prog.Statements = append(prog.Statements, p.declaration())
	}
	if len(prog.Statements) > 0 {
		prog.NodeSpan = token.Span{Start: prog.Statements[0].Span().Start, End: prog.Statements[len(prog.Statements)-1].Span().End}
	}
	return prog
}

func (p *Parser) declaration() (stmt ast.Statement) {
	startIdx := p.current
	start := p.cur().Pos
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			p.synchronize(startIdx)
			stmt = &ast.BadStmt{From: start, To: p.prev().Pos, Msg: b.err.Msg}
		}
	}()

	switch p.cur().Type {
	case token.Func:
		return p.parseFuncDecl()
	case token.Var:
		return p.parseVarDecl()
	default:
		return p.parseStatement()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur().Type {
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.Return:
		return p.parseReturn()
	case token.Print:
		return p.parsePrint()
	case token.LBrace:
		return p.parseBlock()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseFuncDecl() ast.Statement {
	decl := &ast.FuncDecl{FuncPos: p.advance().Pos}
	name := p.expect(token.Ident, "Expect function name.")
	decl.Name = name.Literal
	decl.NamePos = name.Pos
	p.expect(token.LParen, "Expect '(' after function name.")
	if !p.check(token.RParen) {
		for {
			if len(decl.Params) >= maxParams {
				p.report(p.cur(), "Can't have more than 255 parameters.")
			}
			param := p.expect(token.Ident, "Expect parameter name.")
			decl.Params = append(decl.Params, ast.Param{Name: param.Literal, Pos: param.Pos})
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expect ')' after parameters.")
	p.expect(token.LBrace, "Expect '{' before function body.")
	decl.Body = p.parseBlockBody()
	decl.NodeSpan = token.Span{Start: decl.FuncPos, End: p.prev().Pos}
	return decl
}

func (p *Parser) parseVarDecl() ast.Statement {
	decl := &ast.VarDecl{VarPos: p.advance().Pos}
	name := p.expect(token.Ident, "Expect variable name.")
	decl.Name = name.Literal
	decl.NamePos = name.Pos
	if p.match(token.Assign) {
		decl.Init = p.parseExpression(lowest)
	}
	p.expect(token.Semicolon, "Expect ';' after variable declaration.")
	decl.StmtSpan = token.Span{Start: decl.VarPos, End: p.prev().Pos}
	return decl
}

func (p *Parser) parseIf() ast.Statement {
	stmt := &ast.IfStmt{IfPos: p.advance().Pos}
	p.expect(token.LParen, "Expect '(' after 'if'.")
	stmt.Condition = p.parseExpression(lowest)
	p.expect(token.RParen, "Expect ')' after if condition.")
	stmt.Then = p.parseStatement()
	if p.match(token.Else) {
		stmt.Else = p.parseStatement()
	}
	stmt.IfSpan = token.Span{Start: stmt.IfPos, End: p.prev().Pos}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	stmt := &ast.WhileStmt{WhilePos: p.advance().Pos}
	p.expect(token.LParen, "Expect '(' after 'while'.")
	stmt.Condition = p.parseExpression(lowest)
	p.expect(token.RParen, "Expect ')' after while condition.")
	stmt.Body = p.parseStatement()
	stmt.NodeSpan = token.Span{Start: stmt.WhilePos, End: p.prev().Pos}
	return stmt
}

func (p *Parser) parseReturn() ast.Statement {
	ret := &ast.ReturnStmt{Return: p.advance().Pos}
	if !p.check(token.Semicolon) {
		ret.Value = p.parseExpression(lowest)
	}
	p.expect(token.Semicolon, "Expect ';' after return value.")
	ret.StmtSpan = token.Span{Start: ret.Return, End: p.prev().Pos}
	return ret
}

func (p *Parser) parsePrint() ast.Statement {
	stmt := &ast.PrintStmt{PrintPos: p.advance().Pos}
	stmt.Expression = p.parseExpression(lowest)
	p.expect(token.Semicolon, "Expect ';' after value.")
	stmt.StmtSpan = token.Span{Start: stmt.PrintPos, End: p.prev().Pos}
	return stmt
}

func (p *Parser) parseBlock() ast.Statement {
	block := &ast.BlockStmt{LBrace: p.advance().Pos}
	block.Statements = p.parseBlockBody()
	block.BlockSpan = token.Span{Start: block.LBrace, End: p.prev().Pos}
	return block
}

// parseBlockBody parses declarations up to and including the closing '}'.
func (p *Parser) parseBlockBody() []ast.Statement {
	stmts := []ast.Statement{}
	for !p.check(token.RBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.declaration())
	}
	p.expect(token.RBrace, "Expect '}' after block.")
	return stmts
}

func (p *Parser) parseExprStatement() ast.Statement {
	stmt := &ast.ExprStmt{Start: p.cur().Pos}
	stmt.Expression = p.parseExpression(lowest)
	p.expect(token.Semicolon, "Expect ';' after expression.")
	stmt.StmtSpan = token.Span{Start: stmt.Start, End: p.prev().Pos}
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	left := p.parsePrefix()

	for precedence < p.curPrecedence() {
		op := p.advance()
		switch op.Type {
		case token.Assign:
			left = p.parseAssignExpression(left, op)
		default:
			left = p.parseInfixExpression(left, op)
		}
	}

	return left
}

func (p *Parser) parsePrefix() ast.Expression {
	tok := p.cur()
	sp := token.Span{Start: tok.Pos, End: tok.Pos}
	switch tok.Type {
	case token.Int:
		p.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.fail(tok, "Integer literal out of range.")
		}
		return &ast.Literal{Kind: ast.IntLiteral, Int: n, PosT: tok.Pos, Sp: sp}
	case token.Float:
		p.advance()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail(tok, "Float literal out of range.")
		}
		return &ast.Literal{Kind: ast.FloatLiteral, Float: f, PosT: tok.Pos, Sp: sp}
	case token.String:
		p.advance()
		return &ast.Literal{Kind: ast.StringLiteral, Str: tok.Literal, PosT: tok.Pos, Sp: sp}
	case token.Ident:
		p.advance()
		return &ast.Variable{Name: tok.Literal, PosT: tok.Pos, Sp: sp}
	case token.LParen:
		p.advance()
		inner := p.parseExpression(lowest)
		end := p.expect(token.RParen, "Expect ')' after expression.")
		return &ast.Grouping{Inner: inner, PosT: tok.Pos, Sp: token.Span{Start: tok.Pos, End: end.Pos}}
	case token.Bang, token.Minus:
		p.advance()
		right := p.parseExpression(prefixPrecedence)
		return &ast.UnaryExpr{Operator: tok.Type, Right: right, PosT: tok.Pos, Sp: token.Span{Start: tok.Pos, End: right.Span().End}}
	case token.Illegal:
		p.fail(tok, tok.Literal)
	default:
		p.fail(tok, "Expect expression.")
	}
	return nil
}

func (p *Parser) parseInfixExpression(left ast.Expression, op token.Token) ast.Expression {
	expr := &ast.BinaryExpr{
		Left:     left,
		Operator: op.Type,
		PosT:     op.Pos,
	}
	expr.Right = p.parseExpression(precedences[op.Type])
	expr.Sp = token.Span{Start: left.Span().Start, End: expr.Right.Span().End}
	return expr
}

func (p *Parser) parseAssignExpression(left ast.Expression, op token.Token) ast.Expression {
	value := p.parseExpression(assignPrecedence - 1)
	target, ok := left.(*ast.Variable)
	if !ok {
		p.report(op, "Invalid assignment target.")
		return left
	}
	return &ast.AssignExpr{
		Name:  target.Name,
		Value: value,
		PosT:  op.Pos,
		Sp:    token.Span{Start: left.Span().Start, End: value.Span().End},
	}
}

// synchronize discards tokens until just past a ';' or just before a token
// that starts a new statement. At least one token past from is consumed.
func (p *Parser) synchronize(from int) {
	for !p.isAtEnd() {
		if p.current > from {
			if p.prev().Type == token.Semicolon {
				return
			}
			if token.StartsStatement(p.cur().Type) {
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) cur() token.Token {
	return p.tokens[p.current]
}

func (p *Parser) prev() token.Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.prev()
}

func (p *Parser) isAtEnd() bool {
	return p.cur().Type == token.EOF
}

func (p *Parser) check(t token.Type) bool {
	return p.cur().Type == t
}

func (p *Parser) match(t token.Type) bool {
	if p.check(t) && !p.isAtEnd() {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of type t or bails out of the current declaration.
func (p *Parser) expect(t token.Type, msg string) token.Token {
	if p.check(t) {
		return p.advance()
	}
	if tok := p.cur(); tok.Type == token.Illegal {
		p.fail(tok, tok.Literal)
	}
	p.fail(p.cur(), msg)
	return token.Token{}
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.cur().Type]; ok {
		return prec
	}
	return lowest
}

// report records a syntax error without interrupting the parse.
func (p *Parser) report(tok token.Token, msg string) *SyntaxError {
	err := &SyntaxError{Pos: tok.Pos, Msg: msg}
	if tok.Type != token.EOF {
		err.Lexeme = tok.Literal
	}
	p.errors = append(p.errors, err)
	if p.onError != nil {
		p.onError(err)
	}
	return err
}

// fail records a syntax error and abandons the current declaration.
func (p *Parser) fail(tok token.Token, msg string) {
	panic(bailout{err: p.report(tok, msg)})
}

const (
	lowest = iota + 1
	assignPrecedence
	equalPrecedence
	lessGreaterPrecedence
	sumPrecedence
	productPrecedence
	prefixPrecedence
)

var precedences = map[token.Type]int{
	token.Assign:       assignPrecedence,
	token.Equal:        equalPrecedence,
	token.NotEqual:     equalPrecedence,
	token.Less:         lessGreaterPrecedence,
	token.LessEqual:    lessGreaterPrecedence,
	token.Greater:      lessGreaterPrecedence,
	token.GreaterEqual: lessGreaterPrecedence,
	token.Plus:         sumPrecedence,
	token.Minus:        sumPrecedence,
	token.Star:         productPrecedence,
	token.Slash:        productPrecedence,
}
