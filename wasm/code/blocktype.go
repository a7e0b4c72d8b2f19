package code

// A decoded block type is packed into one uint64 so block/loop/if can
// carry it inline with no separate heap allocation: a type-section
// index uses the low 32 bits as-is, while the five inline value types
// (including the empty block type) set BlockTypeSpecial and store their
// byte in the low bits. The StackHeightMask bits hold the operand-stack
// height at block entry, which the decoder records there for the
// interpreter's branch handling.
const (
	BlockTypeSpecial = 0x8000000000000000
	BlockTypeMask    = 0x80000000ffffffff
	StackHeightMask  = 0x7fffffff00000000

	BlockTypeEmpty = 0x40 | BlockTypeSpecial
	BlockTypeI32   = 0x7f | BlockTypeSpecial
	BlockTypeI64   = 0x7e | BlockTypeSpecial
	BlockTypeF32   = 0x7d | BlockTypeSpecial
	BlockTypeF64   = 0x7c | BlockTypeSpecial
)

// BlockType packs a type-section index into the uint64 block-type
// encoding used by Instruction.Immediate for block/loop/if.
func BlockType(typeidx uint32) uint64 {
	return uint64(typeidx)
}
