package compiler

import (
	"log/slog"
	"math"

	"github.com/xirelogy/go-epsilon/internal/ast"
	"github.com/xirelogy/go-epsilon/internal/bytecode"
	"github.com/xirelogy/go-epsilon/internal/token"
)

// maxConstants is the number of pool slots LOADK can address with B:C.
const maxConstants = math.MaxUint16 + 1

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for skipped statements and statistics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Compiler generates register bytecode for one program. It is single-use
// and not safe for concurrent use.
//
// Variables live in one flat environment: a block does not open a scope, and
// a variable declared inside one stays visible, and keeps its register, after
// the block ends. Declaring a name again binds it to a new register.
type Compiler struct {
	chunk  *bytecode.Chunk
	regs   *RegisterAllocator
	vars   map[string]Register
	logger *slog.Logger
	line   int
	used   bool
}

func New(opts ...Option) *Compiler {
	c := &Compiler{
		chunk:  bytecode.NewChunk(),
		regs:   NewRegisterAllocator(),
		vars:   make(map[string]Register),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds a fresh Compiler and compiles prog with it.
func Compile(prog *ast.Program, opts ...Option) (*bytecode.Chunk, error) {
	return New(opts...).Compile(prog)
}

// Compile walks prog in order and returns the finished chunk, always ending
// with HALT. Any error is fatal and the partial chunk is discarded.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Chunk, error) {
	if c.used {
		return nil, ErrCompilerReused
	}
	c.used = true

	if !prog.OK() {
		return nil, firstBadStmt(prog)
	}
	for _, stmt := range prog.Statements {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.Encode(bytecode.OP_HALT, 0, 0, 0))
	c.chunk.Registers = c.regs.HighWater()

	c.logger.Debug("compiled program",
		"instructions", len(c.chunk.Code),
		"constants", len(c.chunk.Consts),
		"registers", c.chunk.Registers,
		"live", c.regs.Live(),
		"variables", len(c.vars))
	return c.chunk, nil
}

func (c *Compiler) compileStmt(stmt ast.Statement) error {
	if line := stmt.Pos().Line; line > 0 {
		c.line = line
	}

	switch s := stmt.(type) {
	case *ast.PrintStmt:
		reg, err := c.alloc(s.PrintPos)
		if err != nil {
			return err
		}
		val, err := c.compileExpr(s.Expression, reg)
		if err != nil {
			return err
		}
		c.emit(bytecode.Encode(bytecode.OP_PRINT, byte(val), 0, 0))
		c.regs.Free(reg)
	case *ast.VarDecl:
		reg, err := c.alloc(s.NamePos)
		if err != nil {
			return err
		}
		c.vars[s.Name] = reg
		if s.Init != nil {
			val, err := c.compileExpr(s.Init, reg)
			if err != nil {
				return err
			}
			if val != reg {
				c.emit(bytecode.Encode(bytecode.OP_LOAD, byte(reg), byte(val), 0))
			}
		}
	case *ast.ExprStmt:
		reg, err := c.alloc(s.Start)
		if err != nil {
			return err
		}
		if _, err := c.compileExpr(s.Expression, reg); err != nil {
			return err
		}
		c.regs.Free(reg)
	case *ast.BlockStmt:
		for _, inner := range s.Statements {
			if err := c.compileStmt(inner); err != nil {
				return err
			}
		}
	case *ast.IfStmt:
		return c.compileIf(s)
	case *ast.WhileStmt:
		return c.compileWhile(s)
	case *ast.FuncDecl:
		c.logger.Warn("skipping function declaration", "name", s.Name, "line", s.FuncPos.Line)
	case *ast.ReturnStmt:
		c.logger.Warn("skipping return statement", "line", s.Return.Line)
	case *ast.BadStmt:
		return newError(ErrInvalidStatement, s.From, "", "cannot compile statement that failed to parse: %s", s.Msg)
	default:
		return newError(ErrInvalidStatement, stmt.Pos(), "", "unsupported statement type %T", stmt)
	}
	return nil
}

func (c *Compiler) compileIf(stmt *ast.IfStmt) error {
	jumpIfFalse, err := c.compileCondition(stmt.Condition, stmt.IfPos)
	if err != nil {
		return err
	}

	if err := c.compileStmt(stmt.Then); err != nil {
		return err
	}

	if stmt.Else == nil {
		return c.patchJump(jumpIfFalse, c.chunk.Count(), stmt.IfPos)
	}

	jumpAfter := c.emit(bytecode.EncodeAsBx(bytecode.OP_JMP, 0, 0))
	if err := c.patchJump(jumpIfFalse, c.chunk.Count(), stmt.IfPos); err != nil {
		return err
	}
	if err := c.compileStmt(stmt.Else); err != nil {
		return err
	}
	return c.patchJump(jumpAfter, c.chunk.Count(), stmt.IfPos)
}

func (c *Compiler) compileWhile(stmt *ast.WhileStmt) error {
	loopStart := c.chunk.Count()
	exitJump, err := c.compileCondition(stmt.Condition, stmt.WhilePos)
	if err != nil {
		return err
	}

	if err := c.compileStmt(stmt.Body); err != nil {
		return err
	}

	loopBack := c.emit(bytecode.EncodeAsBx(bytecode.OP_JMP, 0, 0))
	if err := c.patchJump(loopBack, loopStart, stmt.WhilePos); err != nil {
		return err
	}
	return c.patchJump(exitJump, c.chunk.Count(), stmt.WhilePos)
}

// compileCondition evaluates cond and emits a JMP_IF_NOT placeholder over
// it. The condition register is released before returning.
func (c *Compiler) compileCondition(cond ast.Expression, pos token.Position) (int, error) {
	reg, err := c.alloc(pos)
	if err != nil {
		return 0, err
	}
	val, err := c.compileExpr(cond, reg)
	if err != nil {
		return 0, err
	}
	jump := c.emit(bytecode.EncodeAsBx(bytecode.OP_JMP_IF_NOT, byte(val), 0))
	c.regs.Free(reg)
	return jump, nil
}

// compileExpr evaluates expr, preferring target for the result, and returns
// the register that holds it. Variable references return their own register
// without emitting anything.
func (c *Compiler) compileExpr(expr ast.Expression, target Register) (Register, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return target, c.loadConstant(target, literalValue(e), e.PosT)
	case *ast.Variable:
		reg, ok := c.vars[e.Name]
		if !ok {
			return 0, newError(ErrUndefinedVariable, e.PosT, e.Name, "undefined variable '%s'", e.Name)
		}
		return reg, nil
	case *ast.Grouping:
		return c.compileExpr(e.Inner, target)
	case *ast.BinaryExpr:
		return c.compileBinary(e, target)
	case *ast.UnaryExpr:
		return c.compileUnary(e, target)
	case *ast.AssignExpr:
		reg, ok := c.vars[e.Name]
		if !ok {
			return 0, newError(ErrUndefinedVariable, e.PosT, e.Name, "undefined variable '%s'", e.Name)
		}
		val, err := c.compileExpr(e.Value, target)
		if err != nil {
			return 0, err
		}
		if val != reg {
			c.emit(bytecode.Encode(bytecode.OP_LOAD, byte(reg), byte(val), 0))
		}
		return reg, nil
	default:
		return 0, newError(ErrInvalidStatement, expr.Pos(), "", "unsupported expression type %T", expr)
	}
}

func (c *Compiler) compileBinary(e *ast.BinaryExpr, target Register) (Register, error) {
	if folded, ok := foldBinary(e.Operator, e.Left, e.Right); ok {
		return target, c.loadConstant(target, folded, e.PosT)
	}

	op, ok := binaryOpcode(e.Operator)
	if !ok {
		sym := e.Operator.Symbol()
		return 0, newError(ErrUnknownOperator, e.PosT, sym, "unknown binary operator '%s'", sym)
	}

	left, err := c.compileExpr(e.Left, target)
	if err != nil {
		return 0, err
	}
	if left != target && c.assigns(e.Right, left) {
		c.emit(bytecode.Encode(bytecode.OP_LOAD, byte(target), byte(left), 0))
		left = target
	}
	rightReg, err := c.alloc(e.PosT)
	if err != nil {
		return 0, err
	}
	right, err := c.compileExpr(e.Right, rightReg)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.Encode(op, byte(target), byte(left), byte(right)))
	c.regs.Free(rightReg)
	return target, nil
}

func (c *Compiler) compileUnary(e *ast.UnaryExpr, target Register) (Register, error) {
	var op byte
	switch e.Operator {
	case token.Minus:
		if folded, ok := foldNegate(e.Right); ok {
			return target, c.loadConstant(target, folded, e.PosT)
		}
		op = bytecode.OP_SUB
	case token.Bang:
		op = bytecode.CompareOp(bytecode.CmpEQ)
	default:
		sym := e.Operator.Symbol()
		return 0, newError(ErrUnknownOperator, e.PosT, sym, "unknown unary operator '%s'", sym)
	}

	operand, err := c.compileExpr(e.Right, target)
	if err != nil {
		return 0, err
	}
	zero, err := c.alloc(e.PosT)
	if err != nil {
		return 0, err
	}
	if err := c.loadConstant(zero, int64(0), e.PosT); err != nil {
		return 0, err
	}
	if op == bytecode.OP_SUB {
		c.emit(bytecode.Encode(op, byte(target), byte(zero), byte(operand)))
	} else {
		c.emit(bytecode.Encode(op, byte(target), byte(operand), byte(zero)))
	}
	c.regs.Free(zero)
	return target, nil
}

// assigns reports whether evaluating expr writes the variable held in reg.
func (c *Compiler) assigns(expr ast.Expression, reg Register) bool {
	switch e := expr.(type) {
	case *ast.AssignExpr:
		if r, ok := c.vars[e.Name]; ok && r == reg {
			return true
		}
		return c.assigns(e.Value, reg)
	case *ast.BinaryExpr:
		return c.assigns(e.Left, reg) || c.assigns(e.Right, reg)
	case *ast.UnaryExpr:
		return c.assigns(e.Right, reg)
	case *ast.Grouping:
		return c.assigns(e.Inner, reg)
	default:
		return false
	}
}

func firstBadStmt(prog *ast.Program) error {
	var bad *ast.BadStmt
	ast.Inspect(prog.Statements, func(s ast.Statement) {
		if b, ok := s.(*ast.BadStmt); ok && bad == nil {
			bad = b
		}
	})
	return newError(ErrInvalidStatement, bad.From, "", "cannot compile statement that failed to parse: %s", bad.Msg)
}

func binaryOpcode(op token.Type) (byte, bool) {
	switch op {
	case token.Plus:
		return bytecode.OP_ADD, true
	case token.Minus:
		return bytecode.OP_SUB, true
	case token.Star:
		return bytecode.OP_MUL, true
	case token.Slash:
		return bytecode.OP_DIV, true
	case token.Less:
		return bytecode.CompareOp(bytecode.CmpLT), true
	case token.LessEqual:
		return bytecode.CompareOp(bytecode.CmpLE), true
	case token.Greater:
		return bytecode.CompareOp(bytecode.CmpGT), true
	case token.GreaterEqual:
		return bytecode.CompareOp(bytecode.CmpGE), true
	case token.Equal:
		return bytecode.CompareOp(bytecode.CmpEQ), true
	case token.NotEqual:
		return bytecode.CompareOp(bytecode.CmpNE), true
	default:
		return 0, false
	}
}

func literalValue(lit *ast.Literal) interface{} {
	switch lit.Kind {
	case ast.IntLiteral:
		return lit.Int
	case ast.FloatLiteral:
		return lit.Float
	default:
		return lit.Str
	}
}

func (c *Compiler) loadConstant(target Register, v interface{}, pos token.Position) error {
	if len(c.chunk.Consts) >= maxConstants {
		return newError(ErrTooManyConstants, pos, "", "more than %d constants in one chunk", maxConstants)
	}
	idx := c.chunk.AddConstant(v)
	c.emit(bytecode.EncodeABx(bytecode.OP_LOADK, byte(target), uint16(idx)))
	return nil
}

func (c *Compiler) alloc(pos token.Position) (Register, error) {
	reg, err := c.regs.Alloc()
	if err != nil {
		return 0, newError(err, pos, "", "expression needs more than %d registers", MaxRegisters)
	}
	return reg, nil
}

func (c *Compiler) emit(ins bytecode.Instruction) int {
	return c.chunk.Write(ins, c.line)
}

// patchJump sets the displacement of the jump at index so it lands on target.
func (c *Compiler) patchJump(index, target int, pos token.Position) error {
	offset := target - index
	if offset < math.MinInt16 || offset > math.MaxInt16 {
		return newError(ErrJumpTooFar, pos, "", "jump of %d instructions does not fit in 16 bits", offset)
	}
	c.chunk.Patch(index, int16(offset))
	return nil
}
