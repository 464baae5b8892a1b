package bytecode

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Disassembler formats bytecode as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w}
}

// DisassembleChunk emits a header followed by one line per instruction.
// Unknown opcodes are listed rather than rejected.
func (d *Disassembler) DisassembleChunk(name string, chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("nil chunk")
	}
	if name == "" {
		name = "<anon>"
	}
	d.startSection()
	fmt.Fprintf(d.w, "func %s (consts=%d, registers=%d, instructions=%d)\n",
		name, len(chunk.Consts), chunk.Registers, len(chunk.Code))
	for ip, ins := range chunk.Code {
		lineStr := "-"
		if line := lineForOffset(chunk.Lines, ip); line > 0 {
			lineStr = strconv.Itoa(line)
		}
		name, operands := d.decode(chunk, ip, ins)
		fmt.Fprintf(d.w, "%04d %4s %-12s", ip, lineStr, name)
		if operands != "" {
			fmt.Fprintf(d.w, " %s", operands)
		}
		fmt.Fprintln(d.w)
	}
	return nil
}

// DisassembleConstants lists the constant pool.
func (d *Disassembler) DisassembleConstants(chunk *Chunk) {
	d.startSection()
	fmt.Fprintf(d.w, "constants (%d)\n", len(chunk.Consts))
	for idx, c := range chunk.Consts {
		fmt.Fprintf(d.w, "%04d %-8s %s\n", idx, constKind(c), FormatConst(c))
	}
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func (d *Disassembler) decode(chunk *Chunk, ip int, ins Instruction) (string, string) {
	op := ins.Op()
	if kind, ok := CompareKindOf(op); ok {
		return "COMPARE." + kind.String(), fmt.Sprintf("r%d, r%d, r%d", ins.A(), ins.B(), ins.C())
	}
	switch op {
	case OP_HALT:
		return "HALT", ""
	case OP_LOADK:
		idx := int(ins.Bx())
		return "LOADK", fmt.Sprintf("r%d, %d ; const[%d]=%s", ins.A(), idx, idx, formatConstRef(chunk, idx))
	case OP_LOAD:
		return "LOAD", fmt.Sprintf("r%d, r%d", ins.A(), ins.B())
	case OP_ADD, OP_SUB, OP_MUL, OP_DIV:
		return opName(op), fmt.Sprintf("r%d, r%d, r%d", ins.A(), ins.B(), ins.C())
	case OP_JMP:
		return "JMP", formatJump(ip, ins.SBx())
	case OP_JMP_IF, OP_JMP_IF_NOT:
		return opName(op), fmt.Sprintf("r%d, %s", ins.A(), formatJump(ip, ins.SBx()))
	case OP_CALL:
		return "CALL", fmt.Sprintf("r%d, r%d, %d", ins.A(), ins.B(), ins.C())
	case OP_RET:
		return "RET", fmt.Sprintf("r%d", ins.A())
	case OP_PRINT:
		return "PRINT", fmt.Sprintf("r%d", ins.A())
	default:
		return fmt.Sprintf("UNKNOWN 0x%02X", op), fmt.Sprintf("; raw=0x%08X", uint32(ins))
	}
}

func opName(op byte) string {
	switch op {
	case OP_ADD:
		return "ADD"
	case OP_SUB:
		return "SUB"
	case OP_MUL:
		return "MUL"
	case OP_DIV:
		return "DIV"
	case OP_JMP_IF:
		return "JMP_IF"
	case OP_JMP_IF_NOT:
		return "JMP_IF_NOT"
	default:
		return fmt.Sprintf("OP_0x%02X", op)
	}
}

func formatJump(ip int, off int16) string {
	return fmt.Sprintf("%+d ; -> %04d", off, ip+int(off))
}

func lineForOffset(lines []LineInfo, offset int) int {
	line := 0
	for _, info := range lines {
		if info.Offset > offset {
			break
		}
		line = info.Line
	}
	return line
}

func formatConstRef(chunk *Chunk, idx int) string {
	if chunk == nil || idx >= len(chunk.Consts) {
		return "<invalid>"
	}
	return FormatConst(chunk.Consts[idx])
}

// FormatConst renders a pool value. Whole floats keep a trailing ".0".
func FormatConst(v interface{}) string {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		s := strconv.FormatFloat(val, 'g', -1, 64)
		if !math.IsInf(val, 0) && !math.IsNaN(val) && !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprintf("<unsupported %T>", v)
	}
}

func constKind(v interface{}) string {
	switch v.(type) {
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	default:
		return "?"
	}
}
