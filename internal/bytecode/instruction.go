package bytecode

// Instruction is one 32-bit word: op<<24 | A<<16 | B<<8 | C.
// Jump-class and LOADK instructions read B and C together as a 16-bit field.
type Instruction uint32

func Encode(op, a, b, c byte) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a)<<16 | uint32(b)<<8 | uint32(c))
}

// EncodeABx packs an unsigned 16-bit operand into B:C.
func EncodeABx(op, a byte, bx uint16) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a)<<16 | uint32(bx))
}

// EncodeAsBx packs a signed 16-bit displacement into B:C.
func EncodeAsBx(op, a byte, sbx int16) Instruction {
	return EncodeABx(op, a, uint16(sbx))
}

func (i Instruction) Op() byte { return byte(i >> 24) }
func (i Instruction) A() byte  { return byte(i >> 16) }
func (i Instruction) B() byte  { return byte(i >> 8) }
func (i Instruction) C() byte  { return byte(i) }

func (i Instruction) Bx() uint16 { return uint16(i) }
func (i Instruction) SBx() int16 { return int16(uint16(i)) }

// WithSBx returns i with its low 16 bits replaced by sbx.
func (i Instruction) WithSBx(sbx int16) Instruction {
	return i&0xFFFF0000 | Instruction(uint16(sbx))
}
