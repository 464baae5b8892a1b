package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/xirelogy/go-epsilon/internal/ast"
	"github.com/xirelogy/go-epsilon/internal/bytecode"
	"github.com/xirelogy/go-epsilon/internal/lexer"
	"github.com/xirelogy/go-epsilon/internal/parser"
	"github.com/xirelogy/go-epsilon/internal/token"
)

func parseSource(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(lexer.Tokenize(src))
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	return prog
}

func compileSource(t *testing.T, src string) *bytecode.Chunk {
	t.Helper()
	chunk, err := Compile(parseSource(t, src))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return chunk
}

func expectCode(t *testing.T, chunk *bytecode.Chunk, want []bytecode.Instruction) {
	t.Helper()
	if len(chunk.Code) != len(want) {
		t.Fatalf("expected %d instructions, got %d:\n%s", len(want), len(chunk.Code), chunk.Disassemble())
	}
	for i := range want {
		if chunk.Code[i] != want[i] {
			t.Fatalf("instruction %d: expected 0x%08X, got 0x%08X:\n%s", i, uint32(want[i]), uint32(chunk.Code[i]), chunk.Disassemble())
		}
	}
}

func countOps(chunk *bytecode.Chunk, ops ...byte) int {
	n := 0
	for _, ins := range chunk.Code {
		for _, op := range ops {
			if ins.Op() == op {
				n++
			}
		}
	}
	return n
}

func TestCompileVariablesAndAdd(t *testing.T) {
	chunk := compileSource(t, `var x = 10; var y = 20; print x + y;`)
	expectCode(t, chunk, []bytecode.Instruction{
		bytecode.EncodeABx(bytecode.OP_LOADK, 0, 0),
		bytecode.EncodeABx(bytecode.OP_LOADK, 1, 1),
		bytecode.Encode(bytecode.OP_ADD, 2, 0, 1),
		bytecode.Encode(bytecode.OP_PRINT, 2, 0, 0),
		bytecode.Encode(bytecode.OP_HALT, 0, 0, 0),
	})
	if len(chunk.Consts) != 2 || chunk.Consts[0] != int64(10) || chunk.Consts[1] != int64(20) {
		t.Fatalf("unexpected constants %v", chunk.Consts)
	}
	if chunk.Registers != 4 {
		t.Fatalf("expected high-water mark 4, got %d", chunk.Registers)
	}
}

func TestCompileFoldsLiteralArithmetic(t *testing.T) {
	chunk := compileSource(t, `print 1 + 2;`)
	expectCode(t, chunk, []bytecode.Instruction{
		bytecode.EncodeABx(bytecode.OP_LOADK, 0, 0),
		bytecode.Encode(bytecode.OP_PRINT, 0, 0, 0),
		bytecode.Encode(bytecode.OP_HALT, 0, 0, 0),
	})
	if len(chunk.Consts) != 1 || chunk.Consts[0] != 3.0 {
		t.Fatalf("expected single folded constant 3.0, got %v", chunk.Consts)
	}
}

func TestFoldingAllOperators(t *testing.T) {
	operands := []string{"0", "1", "7", "2.5", "0.125"}
	values := map[string]float64{"0": 0, "1": 1, "7": 7, "2.5": 2.5, "0.125": 0.125}
	ops := map[string]func(a, b float64) float64{
		"+": func(a, b float64) float64 { return a + b },
		"-": func(a, b float64) float64 { return a - b },
		"*": func(a, b float64) float64 { return a * b },
		"/": func(a, b float64) float64 { return a / b },
	}

	for sym, apply := range ops {
		for _, l := range operands {
			for _, r := range operands {
				src := fmt.Sprintf("print %s %s %s;", l, sym, r)
				chunk := compileSource(t, src)
				if n := countOps(chunk, bytecode.OP_LOADK); n != 1 {
					t.Fatalf("%s: expected 1 LOADK, got %d", src, n)
				}
				if n := countOps(chunk, bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV); n != 0 {
					t.Fatalf("%s: expected no arithmetic, got %d", src, n)
				}
				got, ok := chunk.Consts[0].(float64)
				want := apply(values[l], values[r])
				if !ok {
					t.Fatalf("%s: expected float64 constant, got %T", src, chunk.Consts[0])
				}
				if got != want && !(got != got && want != want) {
					t.Fatalf("%s: expected %v, got %v", src, want, got)
				}
			}
		}
	}
}

func TestCompileDoesNotFoldVariablesOrStrings(t *testing.T) {
	chunk := compileSource(t, `var a = 1; print a * 2; print "x" + "y";`)
	if n := countOps(chunk, bytecode.OP_MUL); n != 1 {
		t.Fatalf("expected MUL, got:\n%s", chunk.Disassemble())
	}
	if n := countOps(chunk, bytecode.OP_ADD); n != 1 {
		t.Fatalf("expected ADD for string operands, got:\n%s", chunk.Disassemble())
	}
	// Identical literals are not shared.
	chunk = compileSource(t, `var a = 5; var b = 5;`)
	if len(chunk.Consts) != 2 {
		t.Fatalf("expected 2 constants, got %v", chunk.Consts)
	}
}

func TestBinaryOperandRegistersDistinct(t *testing.T) {
	chunk := compileSource(t, `var a = 1; var b = 2; var c = 3; print (a + b) * (c - a);`)
	// a, b, c in r0..r2; print target r3; right operand of * in r4.
	var mul bytecode.Instruction
	for _, ins := range chunk.Code {
		if ins.Op() == bytecode.OP_MUL {
			mul = ins
		}
	}
	if mul.A() != 3 || mul.B() != 3 || mul.C() != 4 {
		t.Fatalf("unexpected MUL operands r%d, r%d, r%d:\n%s", mul.A(), mul.B(), mul.C(), chunk.Disassemble())
	}
	for _, ins := range chunk.Code {
		switch ins.Op() {
		case bytecode.OP_ADD, bytecode.OP_SUB:
			if ins.B() == ins.C() {
				t.Fatalf("operands share a register: 0x%08X", uint32(ins))
			}
		}
	}
}

func TestRightOperandRegisterReleased(t *testing.T) {
	prog := parseSource(t, `var a = 1; var b = 2; print a + b; print a - b;`)
	c := New()
	chunk, err := c.Compile(prog)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if live := c.regs.Live(); live != 2 {
		t.Fatalf("expected only the 2 variables live after compile, got %d", live)
	}
	// Both statements reuse r2 as target and r3 for the right operand.
	var arith []bytecode.Instruction
	for _, ins := range chunk.Code {
		if ins.Op() == bytecode.OP_ADD || ins.Op() == bytecode.OP_SUB {
			arith = append(arith, ins)
		}
	}
	if len(arith) != 2 || arith[0].A() != arith[1].A() || arith[0].A() != 2 {
		t.Fatalf("expected both results in r2:\n%s", chunk.Disassemble())
	}
	if chunk.Registers != 4 {
		t.Fatalf("expected high-water mark 4, got %d", chunk.Registers)
	}
}

func TestComparisonKinds(t *testing.T) {
	tests := []struct {
		op   string
		kind bytecode.CompareKind
	}{
		{"<", bytecode.CmpLT},
		{"<=", bytecode.CmpLE},
		{">", bytecode.CmpGT},
		{">=", bytecode.CmpGE},
		{"==", bytecode.CmpEQ},
		{"!=", bytecode.CmpNE},
	}
	for _, tt := range tests {
		chunk := compileSource(t, fmt.Sprintf("var a = 1; var b = 2; print a %s b;", tt.op))
		ins := chunk.Code[2]
		kind, ok := bytecode.CompareKindOf(ins.Op())
		if !ok || kind != tt.kind {
			t.Fatalf("%s: expected compare kind %v, got opcode 0x%02X", tt.op, tt.kind, ins.Op())
		}
		if ins.A() != 2 || ins.B() != 0 || ins.C() != 1 {
			t.Fatalf("%s: unexpected operands:\n%s", tt.op, chunk.Disassemble())
		}
	}
}

func TestIfWithoutElseDisplacement(t *testing.T) {
	chunk := compileSource(t, `var x = 1; if (x) { print x; print x; } print x;`)
	// 0 LOADK, 1 JMP_IF_NOT, 2 PRINT, 3 PRINT, 4 PRINT, 5 HALT
	jump := chunk.Code[1]
	if jump.Op() != bytecode.OP_JMP_IF_NOT || jump.A() != 0 {
		t.Fatalf("expected JMP_IF_NOT r0 at 1:\n%s", chunk.Disassemble())
	}
	thenLen := 2
	if int(jump.SBx()) != thenLen+1 {
		t.Fatalf("expected displacement %d, got %d", thenLen+1, jump.SBx())
	}
	if 1+int(jump.SBx()) != 4 {
		t.Fatalf("jump does not land after the then-branch")
	}
}

func TestIfElseDisplacements(t *testing.T) {
	chunk := compileSource(t, `var x = 1; if (x) print 1; else { print 2; print 3; } print x;`)
	// 0 LOADK x, 1 JMP_IF_NOT, 2 LOADK, 3 PRINT, 4 JMP, 5 LOADK, 6 PRINT, 7 LOADK, 8 PRINT, 9 PRINT x, 10 HALT
	falseJump := chunk.Code[1]
	if falseJump.Op() != bytecode.OP_JMP_IF_NOT {
		t.Fatalf("expected JMP_IF_NOT at 1:\n%s", chunk.Disassemble())
	}
	if 1+int(falseJump.SBx()) != 5 {
		t.Fatalf("false jump should land on else start 5, lands on %d:\n%s", 1+int(falseJump.SBx()), chunk.Disassemble())
	}
	after := chunk.Code[4]
	if after.Op() != bytecode.OP_JMP {
		t.Fatalf("expected JMP at 4:\n%s", chunk.Disassemble())
	}
	if 4+int(after.SBx()) != 9 {
		t.Fatalf("end jump should land on 9, lands on %d:\n%s", 4+int(after.SBx()), chunk.Disassemble())
	}
}

func TestWhileDisplacements(t *testing.T) {
	chunk := compileSource(t, `var i = 0; while (i < 10) { i = i + 1; } print i;`)
	// 0 LOADK i
	// 1 LOADK r2 (10) ; loop start
	// 2 COMPARE.lt r1, r0, r2
	// 3 JMP_IF_NOT r1
	// 4 LOADK r2 (1)
	// 5 ADD r1, r0, r2
	// 6 LOAD r0, r1
	// 7 JMP -> 1
	// 8 PRINT r0
	// 9 HALT
	exit := chunk.Code[3]
	if exit.Op() != bytecode.OP_JMP_IF_NOT || exit.A() != 1 {
		t.Fatalf("expected JMP_IF_NOT r1 at 3:\n%s", chunk.Disassemble())
	}
	back := chunk.Code[7]
	if back.Op() != bytecode.OP_JMP {
		t.Fatalf("expected JMP at 7:\n%s", chunk.Disassemble())
	}
	if back.SBx() >= 0 || int(back.SBx()) != 1-7 {
		t.Fatalf("expected loop-back displacement -6, got %d", back.SBx())
	}
	if 3+int(exit.SBx()) != 8 {
		t.Fatalf("exit should land right after loop-back, lands on %d", 3+int(exit.SBx()))
	}
	if chunk.Code[6] != bytecode.Encode(bytecode.OP_LOAD, 0, 1, 0) {
		t.Fatalf("expected assignment LOAD r0, r1:\n%s", chunk.Disassemble())
	}
}

func TestVarCopyEmitsLoad(t *testing.T) {
	chunk := compileSource(t, `var x = 1; var y = x; print y;`)
	expectCode(t, chunk, []bytecode.Instruction{
		bytecode.EncodeABx(bytecode.OP_LOADK, 0, 0),
		bytecode.Encode(bytecode.OP_LOAD, 1, 0, 0),
		bytecode.Encode(bytecode.OP_PRINT, 1, 0, 0),
		bytecode.Encode(bytecode.OP_HALT, 0, 0, 0),
	})
}

func TestUninitializedVarReservesRegister(t *testing.T) {
	chunk := compileSource(t, `var x; var y = 2; print y;`)
	if chunk.Code[0] != bytecode.EncodeABx(bytecode.OP_LOADK, 1, 0) {
		t.Fatalf("expected y in r1:\n%s", chunk.Disassemble())
	}
}

func TestUnaryOperators(t *testing.T) {
	chunk := compileSource(t, `print -5; print -2.5;`)
	if chunk.Consts[0] != int64(-5) || chunk.Consts[1] != -2.5 {
		t.Fatalf("expected folded negations, got %v", chunk.Consts)
	}
	if n := countOps(chunk, bytecode.OP_SUB); n != 0 {
		t.Fatalf("expected no SUB for literal negation")
	}

	chunk = compileSource(t, `var a = 3; print -a; print !a;`)
	expectCode(t, chunk, []bytecode.Instruction{
		bytecode.EncodeABx(bytecode.OP_LOADK, 0, 0),
		bytecode.EncodeABx(bytecode.OP_LOADK, 2, 1),
		bytecode.Encode(bytecode.OP_SUB, 1, 2, 0),
		bytecode.Encode(bytecode.OP_PRINT, 1, 0, 0),
		bytecode.EncodeABx(bytecode.OP_LOADK, 2, 2),
		bytecode.Encode(bytecode.CompareOp(bytecode.CmpEQ), 1, 0, 2),
		bytecode.Encode(bytecode.OP_PRINT, 1, 0, 0),
		bytecode.Encode(bytecode.OP_HALT, 0, 0, 0),
	})
	if chunk.Consts[1] != int64(0) || chunk.Consts[2] != int64(0) {
		t.Fatalf("expected zero constants, got %v", chunk.Consts)
	}
}

func TestBlocksShareFlatEnvironment(t *testing.T) {
	chunk := compileSource(t, `{ var inner = 4; } print inner;`)
	if chunk.Code[1] != bytecode.Encode(bytecode.OP_PRINT, 0, 0, 0) {
		t.Fatalf("expected block variable to stay visible in r0:\n%s", chunk.Disassemble())
	}
}

func TestUndefinedVariable(t *testing.T) {
	_, err := Compile(parseSource(t, "var a = 1;\nprint a + missing;"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrUndefinedVariable) {
		t.Fatalf("expected ErrUndefinedVariable, got %v", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %T", err)
	}
	if cerr.Name != "missing" || cerr.Pos.Line != 2 || cerr.Pos.Column != 11 {
		t.Fatalf("unexpected error detail %+v", cerr)
	}
	if cerr.Error() != "[2:11] undefined variable 'missing'" {
		t.Fatalf("unexpected message %q", cerr.Error())
	}

	if _, err := Compile(parseSource(t, "ghost = 1;")); !errors.Is(err, ErrUndefinedVariable) {
		t.Fatalf("expected assignment to unknown name to fail, got %v", err)
	}
}

func TestUnknownOperator(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.PrintStmt{Expression: &ast.BinaryExpr{
			Left:     &ast.Variable{Name: "a"},
			Operator: token.Comma,
			Right:    &ast.Variable{Name: "a"},
		}},
	}}
	c := New()
	c.vars["a"] = 0
	_, err := c.Compile(prog)
	if !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestBadStatementRejected(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{&ast.BadStmt{Msg: "Expect expression."}}}
	if _, err := Compile(prog); !errors.Is(err, ErrInvalidStatement) {
		t.Fatalf("expected ErrInvalidStatement, got %v", err)
	}
}

func TestBadStatementInsideFunctionRejected(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Statement{
		&ast.FuncDecl{Name: "f", Body: []ast.Statement{
			&ast.BadStmt{From: token.Position{Line: 2, Column: 3}, Msg: "Expect expression."},
		}},
		&ast.PrintStmt{Expression: &ast.Literal{Kind: ast.IntLiteral, Int: 1}},
	}}
	_, err := Compile(prog)
	if !errors.Is(err, ErrInvalidStatement) {
		t.Fatalf("expected ErrInvalidStatement, got %v", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Pos.Line != 2 || cerr.Pos.Column != 3 {
		t.Fatalf("expected error at the bad statement, got %v", err)
	}
}

func TestAssignmentInRightOperandKeepsLeftValue(t *testing.T) {
	chunk := compileSource(t, `var x = 1; print x + (x = 5);`)
	expectCode(t, chunk, []bytecode.Instruction{
		bytecode.EncodeABx(bytecode.OP_LOADK, 0, 0),
		bytecode.Encode(bytecode.OP_LOAD, 1, 0, 0),
		bytecode.EncodeABx(bytecode.OP_LOADK, 2, 1),
		bytecode.Encode(bytecode.OP_LOAD, 0, 2, 0),
		bytecode.Encode(bytecode.OP_ADD, 1, 1, 0),
		bytecode.Encode(bytecode.OP_PRINT, 1, 0, 0),
		bytecode.Encode(bytecode.OP_HALT, 0, 0, 0),
	})

	// No copy when the right operand leaves the variable alone.
	chunk = compileSource(t, `var x = 1; var y = 2; print x + (y = 5);`)
	if n := countOps(chunk, bytecode.OP_LOAD); n != 1 {
		t.Fatalf("expected only the assignment LOAD, got %d:\n%s", n, chunk.Disassemble())
	}
}

func TestVarBoundBeforeInitializer(t *testing.T) {
	chunk := compileSource(t, `var x = x;`)
	expectCode(t, chunk, []bytecode.Instruction{
		bytecode.Encode(bytecode.OP_HALT, 0, 0, 0),
	})
	if chunk.Registers != 1 {
		t.Fatalf("expected x to reserve r0, got %d registers", chunk.Registers)
	}
}

func TestTooManyConstants(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("var x = 0;\n")
	for i := 0; i < maxConstants; i++ {
		sb.WriteString("x = 1;\n")
	}
	_, err := Compile(parseSource(t, sb.String()))
	if !errors.Is(err, ErrTooManyConstants) {
		t.Fatalf("expected ErrTooManyConstants, got %v", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Pos.Line != maxConstants+1 || cerr.Pos.Column != 5 {
		t.Fatalf("expected error at %d:5, got %v", maxConstants+1, err)
	}
}

func TestJumpTooFar(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("var x = 0;\nif (x < 1) {\n")
	for i := 0; i < 40000; i++ {
		sb.WriteString("x = 1;\n")
	}
	sb.WriteString("}\n")
	_, err := Compile(parseSource(t, sb.String()))
	if !errors.Is(err, ErrJumpTooFar) {
		t.Fatalf("expected ErrJumpTooFar, got %v", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Pos.Line != 2 {
		t.Fatalf("expected error at the if on line 2, got %v", err)
	}
}

func TestTooManyRegisters(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < MaxRegisters; i++ {
		fmt.Fprintf(&sb, "var v%d = %d;\n", i, i)
	}
	if _, err := Compile(parseSource(t, sb.String())); err != nil {
		t.Fatalf("256 variables should fit: %v", err)
	}

	sb.WriteString("var overflow = 1;\n")
	_, err := Compile(parseSource(t, sb.String()))
	if !errors.Is(err, ErrTooManyRegisters) {
		t.Fatalf("expected ErrTooManyRegisters, got %v", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Pos.Line != MaxRegisters+1 {
		t.Fatalf("expected error on line %d, got %v", MaxRegisters+1, err)
	}
}

func TestCompilerSingleUse(t *testing.T) {
	prog := parseSource(t, "print 1;")
	c := New()
	if _, err := c.Compile(prog); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := c.Compile(prog); !errors.Is(err, ErrCompilerReused) {
		t.Fatalf("expected ErrCompilerReused, got %v", err)
	}
}

func TestSkippedStatementsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	chunk, err := Compile(parseSource(t, "fn add(a, b) { return a + b; }\nreturn;\nprint 1;"), WithLogger(logger))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if len(chunk.Code) != 3 {
		t.Fatalf("expected only print and halt code:\n%s", chunk.Disassemble())
	}
	out := buf.String()
	for _, want := range []string{"skipping function declaration", "name=add", "skipping return statement", "compiled program", "instructions=3", "live=0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output:\n%s", want, out)
		}
	}
}

func TestLineTable(t *testing.T) {
	chunk := compileSource(t, "var a = 1;\n\nprint a;")
	if chunk.LineFor(0) != 1 || chunk.LineFor(1) != 3 || chunk.LineFor(2) != 3 {
		t.Fatalf("unexpected lines %v", chunk.Lines)
	}
}

func TestRegisterAllocatorOrder(t *testing.T) {
	ra := NewRegisterAllocator()
	a, _ := ra.Alloc()
	b, _ := ra.Alloc()
	if a != 0 || b != 1 {
		t.Fatalf("expected r0, r1, got r%d, r%d", a, b)
	}
	ra.Free(b)
	c, _ := ra.Alloc()
	if c != 1 {
		t.Fatalf("expected released register to be reused, got r%d", c)
	}
	if ra.HighWater() != 2 || ra.Live() != 2 {
		t.Fatalf("unexpected counts high=%d live=%d", ra.HighWater(), ra.Live())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-order free")
		}
	}()
	ra.Free(a)
}
