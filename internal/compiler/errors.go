package compiler

import (
	"errors"
	"fmt"

	"github.com/xirelogy/go-epsilon/internal/token"
)

// Kinds of compile failure. A *CompileError unwraps to one of these, so
// callers can test with errors.Is.
var (
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrTooManyRegisters  = errors.New("too many registers")
	ErrTooManyConstants  = errors.New("too many constants")
	ErrJumpTooFar        = errors.New("jump too far")
	ErrInvalidStatement  = errors.New("invalid statement")
	ErrCompilerReused    = errors.New("compiler already used")
)

// CompileError is a fatal code generation error. No part of the chunk being
// built is usable once one is returned.
type CompileError struct {
	Kind error
	Pos  token.Position
	Name string // variable or operator involved, if any
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[%d:%d] %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func (e *CompileError) Unwrap() error {
	return e.Kind
}

func newError(kind error, pos token.Position, name, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Name: name, Msg: fmt.Sprintf(format, args...)}
}
