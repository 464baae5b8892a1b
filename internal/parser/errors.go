package parser

import (
	"fmt"

	"github.com/xirelogy/go-epsilon/internal/token"
)

// SyntaxError is a recoverable parse error at a token position.
type SyntaxError struct {
	Pos    token.Position
	Msg    string
	Lexeme string // offending token text, empty at end of input
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[%d:%d] %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ErrorList collects every syntax error reported during one parse.
type ErrorList []*SyntaxError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
	}
}

// Err returns l as an error, or nil when l is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// bailout unwinds a failed declaration back to declaration(), which
// recovers and synchronizes.
type bailout struct {
	err *SyntaxError
}
