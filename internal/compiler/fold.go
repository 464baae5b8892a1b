package compiler

import (
	"github.com/xirelogy/go-epsilon/internal/ast"
	"github.com/xirelogy/go-epsilon/internal/token"
)

// foldBinary evaluates l op r at compile time when both operands are numeric
// literals and op is arithmetic. The result is always a float64.
func foldBinary(op token.Type, l, r ast.Expression) (float64, bool) {
	ll, ok := l.(*ast.Literal)
	if !ok {
		return 0, false
	}
	rl, ok := r.(*ast.Literal)
	if !ok {
		return 0, false
	}
	a, ok := ll.Number()
	if !ok {
		return 0, false
	}
	b, ok := rl.Number()
	if !ok {
		return 0, false
	}

	switch op {
	case token.Plus:
		return a + b, true
	case token.Minus:
		return a - b, true
	case token.Star:
		return a * b, true
	case token.Slash:
		return a / b, true
	default:
		return 0, false
	}
}

// foldNegate negates a numeric literal, keeping its kind.
func foldNegate(e ast.Expression) (interface{}, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return nil, false
	}
	switch lit.Kind {
	case ast.IntLiteral:
		return -lit.Int, true
	case ast.FloatLiteral:
		return -lit.Float, true
	default:
		return nil, false
	}
}
