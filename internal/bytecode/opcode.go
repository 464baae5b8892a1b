package bytecode

// OpCode enumerates instruction opcodes. The opcode occupies the top byte of
// an instruction word; values are fixed by the artifact format.
const (
	OP_HALT  byte = 0x00
	OP_LOADK byte = 0x01 // rA = K[Bx]
	OP_LOAD  byte = 0x02 // rA = rB

	OP_ADD byte = 0x10 // rA = rB + rC
	OP_SUB byte = 0x11
	OP_MUL byte = 0x12
	OP_DIV byte = 0x13

	OP_JMP        byte = 0x20 // pc += sBx
	OP_JMP_IF     byte = 0x21 // if rA { pc += sBx }
	OP_JMP_IF_NOT byte = 0x22 // if !rA { pc += sBx }

	// OP_COMPARE is the first of six comparison opcodes, one per
	// CompareKind: rA = rB <kind> rC.
	OP_COMPARE byte = 0x23

	OP_CALL byte = 0x30
	OP_RET  byte = 0x31

	OP_PRINT byte = 0x40 // print rA
)

// CompareKind selects the relation tested by a comparison opcode.
type CompareKind byte

const (
	CmpLT CompareKind = iota
	CmpLE
	CmpGT
	CmpGE
	CmpEQ
	CmpNE

	numCompareKinds
)

var compareNames = [...]string{
	CmpLT: "lt",
	CmpLE: "le",
	CmpGT: "gt",
	CmpGE: "ge",
	CmpEQ: "eq",
	CmpNE: "ne",
}

func (k CompareKind) String() string {
	if k < numCompareKinds {
		return compareNames[k]
	}
	return "?"
}

// CompareOp returns the opcode for a comparison of the given kind.
func CompareOp(kind CompareKind) byte {
	return OP_COMPARE + byte(kind)
}

// CompareKindOf reports whether op is a comparison opcode and which kind.
func CompareKindOf(op byte) (CompareKind, bool) {
	if op < OP_COMPARE || op >= OP_COMPARE+byte(numCompareKinds) {
		return 0, false
	}
	return CompareKind(op - OP_COMPARE), true
}

// IsJump reports whether op carries a signed displacement in its low 16 bits.
func IsJump(op byte) bool {
	return op == OP_JMP || op == OP_JMP_IF || op == OP_JMP_IF_NOT
}
