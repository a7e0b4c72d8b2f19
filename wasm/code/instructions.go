package code

import "math"

func Unreachable() Instruction {
	return Instruction{Opcode: OpUnreachable}
}

func Nop() Instruction {
	return Instruction{Opcode: OpNop}
}

// blockInstr builds a block/loop/if instruction. blockType is variadic
// only to give callers an optional argument: an empty call defaults to
// BlockTypeEmpty, matching a bare "block"/"loop"/"if" with no signature.
func blockInstr(op byte, blockType []uint64) Instruction {
	typ := uint64(BlockTypeEmpty)
	if len(blockType) != 0 {
		typ = blockType[0]
	}
	return Instruction{Opcode: op, Immediate: typ}
}

func Block(blockType ...uint64) Instruction { return blockInstr(OpBlock, blockType) }
func Loop(blockType ...uint64) Instruction  { return blockInstr(OpLoop, blockType) }
func If(blockType ...uint64) Instruction    { return blockInstr(OpIf, blockType) }

func Else() Instruction {
	return Instruction{Opcode: OpElse}
}

func End() Instruction {
	return Instruction{Opcode: OpEnd}
}

func Br(labelidx int) Instruction {
	return Instruction{Opcode: OpBr, Immediate: uint64(labelidx)}
}

func BrIf(labelidx int) Instruction {
	return Instruction{Opcode: OpBrIf, Immediate: uint64(labelidx)}
}

func BrTable(labelidx int, labelidxN ...int) Instruction {
	labels := make([]int, len(labelidxN))
	if len(labelidxN) > 0 {
		labels[0], labelidx = labelidx, labelidxN[len(labelidxN)-1]
		copy(labels[1:], labelidxN[:len(labelidxN)-1])
	}

	return Instruction{Opcode: OpBrTable, Immediate: uint64(labelidx), Labels: labels}
}

func Return() Instruction {
	return Instruction{Opcode: OpReturn}
}

func Call(funcidx uint32) Instruction {
	return Instruction{Opcode: OpCall, Immediate: uint64(funcidx)}
}

func CallIndirect(tableidx uint32) Instruction {
	return Instruction{Opcode: OpCallIndirect, Immediate: uint64(tableidx)}
}

func Drop() Instruction {
	return Instruction{Opcode: OpDrop}
}

func Select() Instruction {
	return Instruction{Opcode: OpSelect}
}

func LocalGet(localidx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Immediate: uint64(localidx)}
}

func LocalSet(localidx uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Immediate: uint64(localidx)}
}

func LocalTee(localidx uint32) Instruction {
	return Instruction{Opcode: OpLocalTee, Immediate: uint64(localidx)}
}

func GlobalGet(globalidx uint32) Instruction {
	return Instruction{Opcode: OpGlobalGet, Immediate: uint64(globalidx)}
}

func GlobalSet(globalidx uint32) Instruction {
	return Instruction{Opcode: OpGlobalSet, Immediate: uint64(globalidx)}
}

// memInstr builds a load/store instruction: every Load/Store
// constructor below differs only in which opcode it attaches to the
// packed (offset, align) memarg.
func memInstr(op byte, offset, align uint32) Instruction {
	return Instruction{Opcode: op, Immediate: memarg(offset, align)}
}

func I32Load(offset, align uint32) Instruction { return memInstr(OpI32Load, offset, align) }
func I64Load(offset, align uint32) Instruction { return memInstr(OpI64Load, offset, align) }
func F32Load(offset, align uint32) Instruction { return memInstr(OpF32Load, offset, align) }
func F64Load(offset, align uint32) Instruction { return memInstr(OpF64Load, offset, align) }

func I32Load8S(offset, align uint32) Instruction  { return memInstr(OpI32Load8S, offset, align) }
func I32Load8U(offset, align uint32) Instruction  { return memInstr(OpI32Load8U, offset, align) }
func I32Load16S(offset, align uint32) Instruction { return memInstr(OpI32Load16S, offset, align) }
func I32Load16U(offset, align uint32) Instruction { return memInstr(OpI32Load16U, offset, align) }

func I64Load8S(offset, align uint32) Instruction  { return memInstr(OpI64Load8S, offset, align) }
func I64Load8U(offset, align uint32) Instruction  { return memInstr(OpI64Load8U, offset, align) }
func I64Load16S(offset, align uint32) Instruction { return memInstr(OpI64Load16S, offset, align) }
func I64Load16U(offset, align uint32) Instruction { return memInstr(OpI64Load16U, offset, align) }
func I64Load32S(offset, align uint32) Instruction { return memInstr(OpI64Load32S, offset, align) }
func I64Load32U(offset, align uint32) Instruction { return memInstr(OpI64Load32U, offset, align) }

func I32Store(offset, align uint32) Instruction { return memInstr(OpI32Store, offset, align) }
func I64Store(offset, align uint32) Instruction { return memInstr(OpI64Store, offset, align) }
func F32Store(offset, align uint32) Instruction { return memInstr(OpF32Store, offset, align) }
func F64Store(offset, align uint32) Instruction { return memInstr(OpF64Store, offset, align) }

func I32Store8(offset, align uint32) Instruction  { return memInstr(OpI32Store8, offset, align) }
func I32Store16(offset, align uint32) Instruction { return memInstr(OpI32Store16, offset, align) }
func I64Store8(offset, align uint32) Instruction  { return memInstr(OpI64Store8, offset, align) }
func I64Store16(offset, align uint32) Instruction { return memInstr(OpI64Store16, offset, align) }
func I64Store32(offset, align uint32) Instruction { return memInstr(OpI64Store32, offset, align) }

func MemorySize() Instruction {
	return Instruction{Opcode: OpMemorySize}
}

func MemoryGrow() Instruction {
	return Instruction{Opcode: OpMemoryGrow}
}

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Immediate: uint64(v)}
}

func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpI64Const, Immediate: uint64(v)}
}

func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpF32Const, Immediate: uint64(math.Float32bits(v))}
}

func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Immediate: math.Float64bits(v)}
}

// simpleInstr builds a no-operand instruction carrying nothing but its
// opcode: every comparison, arithmetic, and conversion constructor below
// reduces to this shape.
func simpleInstr(op byte) Instruction { return Instruction{Opcode: op} }

// prefixedInstr builds one of the 0xfc-prefixed saturating truncation
// opcodes, whose second opcode byte travels in Immediate rather than
// Opcode (see OpString's prefixedOpcodeMnemonics for the decode side).
func prefixedInstr(op uint64) Instruction { return Instruction{Opcode: OpPrefix, Immediate: op} }

func I32Eqz() Instruction { return simpleInstr(OpI32Eqz) }
func I32Eq() Instruction  { return simpleInstr(OpI32Eq) }
func I32Ne() Instruction  { return simpleInstr(OpI32Ne) }
func I32LtS() Instruction { return simpleInstr(OpI32LtS) }
func I32LtU() Instruction { return simpleInstr(OpI32LtU) }
func I32GtS() Instruction { return simpleInstr(OpI32GtS) }
func I32GtU() Instruction { return simpleInstr(OpI32GtU) }
func I32LeS() Instruction { return simpleInstr(OpI32LeS) }
func I32LeU() Instruction { return simpleInstr(OpI32LeU) }
func I32GeS() Instruction { return simpleInstr(OpI32GeS) }
func I32GeU() Instruction { return simpleInstr(OpI32GeU) }

func I64Eqz() Instruction { return simpleInstr(OpI64Eqz) }
func I64Eq() Instruction  { return simpleInstr(OpI64Eq) }
func I64Ne() Instruction  { return simpleInstr(OpI64Ne) }
func I64LtS() Instruction { return simpleInstr(OpI64LtS) }
func I64LtU() Instruction { return simpleInstr(OpI64LtU) }
func I64GtS() Instruction { return simpleInstr(OpI64GtS) }
func I64GtU() Instruction { return simpleInstr(OpI64GtU) }
func I64LeS() Instruction { return simpleInstr(OpI64LeS) }
func I64LeU() Instruction { return simpleInstr(OpI64LeU) }
func I64GeS() Instruction { return simpleInstr(OpI64GeS) }
func I64GeU() Instruction { return simpleInstr(OpI64GeU) }

func F32Eq() Instruction { return simpleInstr(OpF32Eq) }
func F32Ne() Instruction { return simpleInstr(OpF32Ne) }
func F32Lt() Instruction { return simpleInstr(OpF32Lt) }
func F32Gt() Instruction { return simpleInstr(OpF32Gt) }
func F32Le() Instruction { return simpleInstr(OpF32Le) }
func F32Ge() Instruction { return simpleInstr(OpF32Ge) }

func F64Eq() Instruction { return simpleInstr(OpF64Eq) }
func F64Ne() Instruction { return simpleInstr(OpF64Ne) }
func F64Lt() Instruction { return simpleInstr(OpF64Lt) }
func F64Gt() Instruction { return simpleInstr(OpF64Gt) }
func F64Le() Instruction { return simpleInstr(OpF64Le) }
func F64Ge() Instruction { return simpleInstr(OpF64Ge) }

func I32Clz() Instruction    { return simpleInstr(OpI32Clz) }
func I32Ctz() Instruction    { return simpleInstr(OpI32Ctz) }
func I32Popcnt() Instruction { return simpleInstr(OpI32Popcnt) }
func I32Add() Instruction    { return simpleInstr(OpI32Add) }
func I32Sub() Instruction    { return simpleInstr(OpI32Sub) }
func I32Mul() Instruction    { return simpleInstr(OpI32Mul) }
func I32DivS() Instruction   { return simpleInstr(OpI32DivS) }
func I32DivU() Instruction   { return simpleInstr(OpI32DivU) }
func I32RemS() Instruction   { return simpleInstr(OpI32RemS) }
func I32RemU() Instruction   { return simpleInstr(OpI32RemU) }
func I32And() Instruction    { return simpleInstr(OpI32And) }
func I32Or() Instruction     { return simpleInstr(OpI32Or) }
func I32Xor() Instruction    { return simpleInstr(OpI32Xor) }
func I32Shl() Instruction    { return simpleInstr(OpI32Shl) }
func I32ShrS() Instruction   { return simpleInstr(OpI32ShrS) }
func I32ShrU() Instruction   { return simpleInstr(OpI32ShrU) }
func I32Rotl() Instruction   { return simpleInstr(OpI32Rotl) }
func I32Rotr() Instruction   { return simpleInstr(OpI32Rotr) }

func I64Clz() Instruction    { return simpleInstr(OpI64Clz) }
func I64Ctz() Instruction    { return simpleInstr(OpI64Ctz) }
func I64Popcnt() Instruction { return simpleInstr(OpI64Popcnt) }
func I64Add() Instruction    { return simpleInstr(OpI64Add) }
func I64Sub() Instruction    { return simpleInstr(OpI64Sub) }
func I64Mul() Instruction    { return simpleInstr(OpI64Mul) }
func I64DivS() Instruction   { return simpleInstr(OpI64DivS) }
func I64DivU() Instruction   { return simpleInstr(OpI64DivU) }
func I64RemS() Instruction   { return simpleInstr(OpI64RemS) }
func I64RemU() Instruction   { return simpleInstr(OpI64RemU) }
func I64And() Instruction    { return simpleInstr(OpI64And) }
func I64Or() Instruction     { return simpleInstr(OpI64Or) }
func I64Xor() Instruction    { return simpleInstr(OpI64Xor) }
func I64Shl() Instruction    { return simpleInstr(OpI64Shl) }
func I64ShrS() Instruction   { return simpleInstr(OpI64ShrS) }
func I64ShrU() Instruction   { return simpleInstr(OpI64ShrU) }
func I64Rotl() Instruction   { return simpleInstr(OpI64Rotl) }
func I64Rotr() Instruction   { return simpleInstr(OpI64Rotr) }

func F32Abs() Instruction      { return simpleInstr(OpF32Abs) }
func F32Neg() Instruction      { return simpleInstr(OpF32Neg) }
func F32Ceil() Instruction     { return simpleInstr(OpF32Ceil) }
func F32Floor() Instruction    { return simpleInstr(OpF32Floor) }
func F32Trunc() Instruction    { return simpleInstr(OpF32Trunc) }
func F32Nearest() Instruction  { return simpleInstr(OpF32Nearest) }
func F32Sqrt() Instruction     { return simpleInstr(OpF32Sqrt) }
func F32Add() Instruction      { return simpleInstr(OpF32Add) }
func F32Sub() Instruction      { return simpleInstr(OpF32Sub) }
func F32Mul() Instruction      { return simpleInstr(OpF32Mul) }
func F32Div() Instruction      { return simpleInstr(OpF32Div) }
func F32Min() Instruction      { return simpleInstr(OpF32Min) }
func F32Max() Instruction      { return simpleInstr(OpF32Max) }
func F32Copysign() Instruction { return simpleInstr(OpF32Copysign) }

func F64Abs() Instruction      { return simpleInstr(OpF64Abs) }
func F64Neg() Instruction      { return simpleInstr(OpF64Neg) }
func F64Ceil() Instruction     { return simpleInstr(OpF64Ceil) }
func F64Floor() Instruction    { return simpleInstr(OpF64Floor) }
func F64Trunc() Instruction    { return simpleInstr(OpF64Trunc) }
func F64Nearest() Instruction  { return simpleInstr(OpF64Nearest) }
func F64Sqrt() Instruction     { return simpleInstr(OpF64Sqrt) }
func F64Add() Instruction      { return simpleInstr(OpF64Add) }
func F64Sub() Instruction      { return simpleInstr(OpF64Sub) }
func F64Mul() Instruction      { return simpleInstr(OpF64Mul) }
func F64Div() Instruction      { return simpleInstr(OpF64Div) }
func F64Min() Instruction      { return simpleInstr(OpF64Min) }
func F64Max() Instruction      { return simpleInstr(OpF64Max) }
func F64Copysign() Instruction { return simpleInstr(OpF64Copysign) }

func I32WrapI64() Instruction    { return simpleInstr(OpI32WrapI64) }
func I32TruncF32S() Instruction  { return simpleInstr(OpI32TruncF32S) }
func I32TruncF32U() Instruction  { return simpleInstr(OpI32TruncF32U) }
func I32TruncF64S() Instruction  { return simpleInstr(OpI32TruncF64S) }
func I32TruncF64U() Instruction  { return simpleInstr(OpI32TruncF64U) }
func I64ExtendI32S() Instruction { return simpleInstr(OpI64ExtendI32S) }
func I64ExtendI32U() Instruction { return simpleInstr(OpI64ExtendI32U) }
func I64TruncF32S() Instruction  { return simpleInstr(OpI64TruncF32S) }
func I64TruncF32U() Instruction  { return simpleInstr(OpI64TruncF32U) }
func I64TruncF64S() Instruction  { return simpleInstr(OpI64TruncF64S) }
func I64TruncF64U() Instruction  { return simpleInstr(OpI64TruncF64U) }

func F32ConvertI32S() Instruction { return simpleInstr(OpF32ConvertI32S) }
func F32ConvertI32U() Instruction { return simpleInstr(OpF32ConvertI32U) }
func F32ConvertI64S() Instruction { return simpleInstr(OpF32ConvertI64S) }
func F32ConvertI64U() Instruction { return simpleInstr(OpF32ConvertI64U) }
func F32DemoteF64() Instruction   { return simpleInstr(OpF32DemoteF64) }

func F64ConvertI32S() Instruction { return simpleInstr(OpF64ConvertI32S) }
func F64ConvertI32U() Instruction { return simpleInstr(OpF64ConvertI32U) }
func F64ConvertI64S() Instruction { return simpleInstr(OpF64ConvertI64S) }
func F64ConvertI64U() Instruction { return simpleInstr(OpF64ConvertI64U) }
func F64PromoteF32() Instruction  { return simpleInstr(OpF64PromoteF32) }

func I32ReinterpretF32() Instruction { return simpleInstr(OpI32ReinterpretF32) }
func I64ReinterpretF64() Instruction { return simpleInstr(OpI64ReinterpretF64) }
func F32ReinterpretI32() Instruction { return simpleInstr(OpF32ReinterpretI32) }
func F64ReinterpretI64() Instruction { return simpleInstr(OpF64ReinterpretI64) }

func I32Extend8S() Instruction  { return simpleInstr(OpI32Extend8S) }
func I32Extend16S() Instruction { return simpleInstr(OpI32Extend16S) }
func I64Extend8S() Instruction  { return simpleInstr(OpI64Extend8S) }
func I64Extend16S() Instruction { return simpleInstr(OpI64Extend16S) }
func I64Extend32S() Instruction { return simpleInstr(OpI64Extend32S) }

func I32TruncSatF32S() Instruction { return prefixedInstr(OpI32TruncSatF32S) }
func I32TruncSatF32U() Instruction { return prefixedInstr(OpI32TruncSatF32U) }
func I32TruncSatF64S() Instruction { return prefixedInstr(OpI32TruncSatF64S) }
func I32TruncSatF64U() Instruction { return prefixedInstr(OpI32TruncSatF64U) }
func I64TruncSatF32S() Instruction { return prefixedInstr(OpI64TruncSatF32S) }
func I64TruncSatF32U() Instruction { return prefixedInstr(OpI64TruncSatF32U) }
func I64TruncSatF64S() Instruction { return prefixedInstr(OpI64TruncSatF64S) }
func I64TruncSatF64U() Instruction { return prefixedInstr(OpI64TruncSatF64U) }
