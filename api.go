package epsilon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xirelogy/go-epsilon/internal/artifact"
	"github.com/xirelogy/go-epsilon/internal/bytecode"
	"github.com/xirelogy/go-epsilon/internal/compiler"
	"github.com/xirelogy/go-epsilon/internal/parser"
	"github.com/xirelogy/go-epsilon/internal/token"
)

// Compile failure kinds, usable with errors.Is on a *CompileError.
var (
	ErrUndefinedVariable = compiler.ErrUndefinedVariable
	ErrUnknownOperator   = compiler.ErrUnknownOperator
	ErrTooManyRegisters  = compiler.ErrTooManyRegisters
	ErrTooManyConstants  = compiler.ErrTooManyConstants
	ErrJumpTooFar        = compiler.ErrJumpTooFar
	ErrInvalidStatement  = compiler.ErrInvalidStatement

	// ErrUnsupportedConstant is returned when a constant has no artifact encoding.
	ErrUnsupportedConstant = artifact.ErrUnsupportedConstant
)

// Position is a 1-based line and column plus a byte offset into the source.
type Position struct {
	Offset int
	Line   int
	Column int
}

func positionFrom(p token.Position) Position {
	return Position{Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// SyntaxError is a single parse error.
type SyntaxError struct {
	Pos     Position
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("[%d:%d] %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// SyntaxErrors holds every parse error in a source, in order.
type SyntaxErrors []SyntaxError

func (e SyntaxErrors) Error() string {
	parts := make([]string, len(e))
	for i, se := range e {
		parts[i] = se.Error()
	}
	return strings.Join(parts, "\n")
}

// CompileError is a fatal code generation error.
type CompileError struct {
	Kind    error
	Pos     Position
	Name    string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[%d:%d] %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Unwrap exposes the failure kind for errors.Is.
func (e *CompileError) Unwrap() error {
	return e.Kind
}

func convertError(err error) error {
	if err == nil {
		return nil
	}
	var list parser.ErrorList
	if errors.As(err, &list) {
		out := make(SyntaxErrors, len(list))
		for i, se := range list {
			out[i] = SyntaxError{Pos: positionFrom(se.Pos), Message: se.Msg}
		}
		return out
	}
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		return &CompileError{
			Kind:    cerr.Kind,
			Pos:     positionFrom(cerr.Pos),
			Name:    cerr.Name,
			Message: cerr.Msg,
		}
	}
	return err
}

// Option configures compilation.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes compiler log records to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Program is a compiled source, ready to be written as an artifact.
type Program struct {
	chunk *bytecode.Chunk
}

// Instructions returns the encoded instruction words in program order.
func (p *Program) Instructions() []uint32 {
	out := make([]uint32, len(p.chunk.Code))
	for i, ins := range p.chunk.Code {
		out[i] = uint32(ins)
	}
	return out
}

// Constants returns the constant pool: int64, float64 and string values.
func (p *Program) Constants() []any {
	return append([]any(nil), p.chunk.Consts...)
}

// Disassemble renders the program as a listing.
func (p *Program) Disassemble() string {
	return p.chunk.Disassemble()
}

// Bytes encodes the program in the artifact format.
func (p *Program) Bytes() ([]byte, error) {
	return artifact.Marshal(p.chunk)
}

// WriteFile atomically writes the artifact to path. On failure the program
// is still usable and any existing file at path is untouched.
func (p *Program) WriteFile(path string) error {
	return artifact.WriteFile(path, p.chunk)
}

// Check parses src without compiling it. It returns SyntaxErrors if the
// source does not parse.
func Check(src string) error {
	_, err := parser.ParseSource(src)
	return convertError(err)
}

// Compile parses and compiles src. Syntax errors are returned as
// SyntaxErrors and stop compilation; generator failures are *CompileError.
func Compile(src string, opts ...Option) (*Program, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	prog, err := parser.ParseSource(src)
	if err != nil {
		return nil, convertError(err)
	}
	chunk, err := compiler.Compile(prog, compiler.WithLogger(o.logger))
	if err != nil {
		return nil, convertError(err)
	}
	return &Program{chunk: chunk}, nil
}

// Build compiles src and writes the artifact to out. If only the write
// fails, the compiled program is returned along with the error.
func Build(src, out string, opts ...Option) (*Program, error) {
	prog, err := Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	if err := prog.WriteFile(out); err != nil {
		return prog, err
	}
	return prog, nil
}

// BuildFile is Build with the source read from in.
func BuildFile(in, out string, opts ...Option) (*Program, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, err
	}
	return Build(string(data), out, opts...)
}

// Disassemble decodes an artifact and renders its first function.
func Disassemble(data []byte) (string, error) {
	img, err := artifact.Unmarshal(data)
	if err != nil {
		return "", err
	}
	return img.Chunk().Disassemble(), nil
}

// DisassembleFile is Disassemble for the artifact at path, followed by a
// listing of its constant pool.
func DisassembleFile(path string) (string, error) {
	img, err := artifact.ReadFile(path)
	if err != nil {
		return "", err
	}
	chunk := img.Chunk()
	var sb strings.Builder
	d := bytecode.NewDisassembler(&sb)
	if err := d.DisassembleChunk("main", chunk); err != nil {
		return "", err
	}
	d.DisassembleConstants(chunk)
	return sb.String(), nil
}
