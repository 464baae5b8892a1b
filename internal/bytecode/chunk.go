package bytecode

import (
	"fmt"
	"strings"
)

// Chunk is a compiled instruction sequence with its constant pool.
// Constants are int64, float64 or string.
type Chunk struct {
	Code   []Instruction
	Consts []interface{}
	Lines  []LineInfo

	// Registers is the number of registers the code touches (high-water mark).
	Registers int
}

// LineInfo maps bytecode offsets to source lines (start-inclusive).
type LineInfo struct {
	Offset int
	Line   int
}

func NewChunk() *Chunk {
	return &Chunk{}
}

// Write appends ins and returns its index. A line of 0 means unknown and
// leaves the line table untouched.
func (c *Chunk) Write(ins Instruction, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, ins)
	if line > 0 && (len(c.Lines) == 0 || c.Lines[len(c.Lines)-1].Line != line) {
		c.Lines = append(c.Lines, LineInfo{Offset: offset, Line: line})
	}
	return offset
}

// Patch overwrites the displacement field of the instruction at index.
// It panics if that instruction is not a jump.
func (c *Chunk) Patch(index int, offset int16) {
	if op := c.Code[index].Op(); !IsJump(op) {
		panic(fmt.Sprintf("bytecode: patch of non-jump opcode 0x%02X at %d", op, index))
	}
	c.Code[index] = c.Code[index].WithSBx(offset)
}

// Count returns the number of instructions written so far.
func (c *Chunk) Count() int {
	return len(c.Code)
}

// AddConstant appends v to the pool and returns its index. Equal values are
// not shared.
func (c *Chunk) AddConstant(v interface{}) int {
	c.Consts = append(c.Consts, v)
	return len(c.Consts) - 1
}

// LineFor returns the source line of the instruction at offset, or 0.
func (c *Chunk) LineFor(offset int) int {
	return lineForOffset(c.Lines, offset)
}

// Disassemble renders the chunk as a listing, one line per instruction.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder
	_ = NewDisassembler(&sb).DisassembleChunk("main", c)
	return sb.String()
}
