package code

import "github.com/sassembla/wasmcore/wasm"

// Control and parametric operators.
const (
	OpUnreachable  = 0x00
	OpNop          = 0x01
	OpBlock        = 0x02
	OpLoop         = 0x03
	OpIf           = 0x04
	OpElse         = 0x05
	OpEnd          = 0x0b
	OpBr           = 0x0c
	OpBrIf         = 0x0d
	OpBrTable      = 0x0e
	OpReturn       = 0x0f
	OpCall         = 0x10
	OpCallIndirect = 0x11

	OpDrop   = 0x1a
	OpSelect = 0x1b
)

// Variable access.
const (
	OpLocalGet  = 0x20
	OpLocalSet  = 0x21
	OpLocalTee  = 0x22
	OpGlobalGet = 0x23
	OpGlobalSet = 0x24
)

// Memory access and management.
const (
	OpI32Load    = 0x28
	OpI64Load    = 0x29
	OpF32Load    = 0x2a
	OpF64Load    = 0x2b
	OpI32Load8S  = 0x2c
	OpI32Load8U  = 0x2d
	OpI32Load16S = 0x2e
	OpI32Load16U = 0x2f
	OpI64Load8S  = 0x30
	OpI64Load8U  = 0x31
	OpI64Load16S = 0x32
	OpI64Load16U = 0x33
	OpI64Load32S = 0x34
	OpI64Load32U = 0x35

	OpI32Store   = 0x36
	OpI64Store   = 0x37
	OpF32Store   = 0x38
	OpF64Store   = 0x39
	OpI32Store8  = 0x3a
	OpI32Store16 = 0x3b
	OpI64Store8  = 0x3c
	OpI64Store16 = 0x3d
	OpI64Store32 = 0x3e

	OpMemorySize = 0x3f
	OpMemoryGrow = 0x40
)

// Constants.
const (
	OpI32Const = 0x41
	OpI64Const = 0x42
	OpF32Const = 0x43
	OpF64Const = 0x44
)

// Comparisons.
const (
	OpI32Eqz = 0x45
	OpI32Eq  = 0x46
	OpI32Ne  = 0x47
	OpI32LtS = 0x48
	OpI32LtU = 0x49
	OpI32GtS = 0x4a
	OpI32GtU = 0x4b
	OpI32LeS = 0x4c
	OpI32LeU = 0x4d
	OpI32GeS = 0x4e
	OpI32GeU = 0x4f

	OpI64Eqz = 0x50
	OpI64Eq  = 0x51
	OpI64Ne  = 0x52
	OpI64LtS = 0x53
	OpI64LtU = 0x54
	OpI64GtS = 0x55
	OpI64GtU = 0x56
	OpI64LeS = 0x57
	OpI64LeU = 0x58
	OpI64GeS = 0x59
	OpI64GeU = 0x5a

	OpF32Eq = 0x5b
	OpF32Ne = 0x5c
	OpF32Lt = 0x5d
	OpF32Gt = 0x5e
	OpF32Le = 0x5f
	OpF32Ge = 0x60

	OpF64Eq = 0x61
	OpF64Ne = 0x62
	OpF64Lt = 0x63
	OpF64Gt = 0x64
	OpF64Le = 0x65
	OpF64Ge = 0x66
)

// Numeric operators.
const (
	OpI32Clz    = 0x67
	OpI32Ctz    = 0x68
	OpI32Popcnt = 0x69
	OpI32Add    = 0x6a
	OpI32Sub    = 0x6b
	OpI32Mul    = 0x6c
	OpI32DivS   = 0x6d
	OpI32DivU   = 0x6e
	OpI32RemS   = 0x6f
	OpI32RemU   = 0x70
	OpI32And    = 0x71
	OpI32Or     = 0x72
	OpI32Xor    = 0x73
	OpI32Shl    = 0x74
	OpI32ShrS   = 0x75
	OpI32ShrU   = 0x76
	OpI32Rotl   = 0x77
	OpI32Rotr   = 0x78

	OpI64Clz    = 0x79
	OpI64Ctz    = 0x7a
	OpI64Popcnt = 0x7b
	OpI64Add    = 0x7c
	OpI64Sub    = 0x7d
	OpI64Mul    = 0x7e
	OpI64DivS   = 0x7f
	OpI64DivU   = 0x80
	OpI64RemS   = 0x81
	OpI64RemU   = 0x82
	OpI64And    = 0x83
	OpI64Or     = 0x84
	OpI64Xor    = 0x85
	OpI64Shl    = 0x86
	OpI64ShrS   = 0x87
	OpI64ShrU   = 0x88
	OpI64Rotl   = 0x89
	OpI64Rotr   = 0x8a

	OpF32Abs      = 0x8b
	OpF32Neg      = 0x8c
	OpF32Ceil     = 0x8d
	OpF32Floor    = 0x8e
	OpF32Trunc    = 0x8f
	OpF32Nearest  = 0x90
	OpF32Sqrt     = 0x91
	OpF32Add      = 0x92
	OpF32Sub      = 0x93
	OpF32Mul      = 0x94
	OpF32Div      = 0x95
	OpF32Min      = 0x96
	OpF32Max      = 0x97
	OpF32Copysign = 0x98

	OpF64Abs      = 0x99
	OpF64Neg      = 0x9a
	OpF64Ceil     = 0x9b
	OpF64Floor    = 0x9c
	OpF64Trunc    = 0x9d
	OpF64Nearest  = 0x9e
	OpF64Sqrt     = 0x9f
	OpF64Add      = 0xa0
	OpF64Sub      = 0xa1
	OpF64Mul      = 0xa2
	OpF64Div      = 0xa3
	OpF64Min      = 0xa4
	OpF64Max      = 0xa5
	OpF64Copysign = 0xa6
)

// Conversions.
const (
	OpI32WrapI64        = 0xa7
	OpI32TruncF32S      = 0xa8
	OpI32TruncF32U      = 0xa9
	OpI32TruncF64S      = 0xaa
	OpI32TruncF64U      = 0xab
	OpI64ExtendI32S     = 0xac
	OpI64ExtendI32U     = 0xad
	OpI64TruncF32S      = 0xae
	OpI64TruncF32U      = 0xaf
	OpI64TruncF64S      = 0xb0
	OpI64TruncF64U      = 0xb1
	OpF32ConvertI32S    = 0xb2
	OpF32ConvertI32U    = 0xb3
	OpF32ConvertI64S    = 0xb4
	OpF32ConvertI64U    = 0xb5
	OpF32DemoteF64      = 0xb6
	OpF64ConvertI32S    = 0xb7
	OpF64ConvertI32U    = 0xb8
	OpF64ConvertI64S    = 0xb9
	OpF64ConvertI64U    = 0xba
	OpF64PromoteF32     = 0xbb
	OpI32ReinterpretF32 = 0xbc
	OpI64ReinterpretF64 = 0xbd
	OpF32ReinterpretI32 = 0xbe
	OpF64ReinterpretI64 = 0xbf
)

// Sign extension.
const (
	OpI32Extend8S  = 0xc0
	OpI32Extend16S = 0xc1
	OpI64Extend8S  = 0xc2
	OpI64Extend16S = 0xc3
	OpI64Extend32S = 0xc4
)

// OpPrefix introduces the two-byte opcodes; the second byte is one of
// the saturating truncation codes below, carried in Immediate.
const (
	OpPrefix = 0xfc

	OpI32TruncSatF32S = 0
	OpI32TruncSatF32U = 1
	OpI32TruncSatF64S = 2
	OpI32TruncSatF64U = 3
	OpI64TruncSatF32S = 4
	OpI64TruncSatF32U = 5
	OpI64TruncSatF64S = 6
	OpI64TruncSatF64U = 7
)

// Per-opcode traits. Most of the instruction set falls into one of four
// regular stack shapes — load, store, unary, binary — keyed below by
// opcode. The decoder's stack typing, the Instruction type queries, and
// the text printer all consult these tables rather than each carrying
// its own copy of the opcode groups; only the scope-dependent operators
// (calls, variable access, memory management, control flow) need
// per-opcode handling at the use sites.

const (
	tI32 = wasm.ValueTypeI32
	tI64 = wasm.ValueTypeI64
	tF32 = wasm.ValueTypeF32
	tF64 = wasm.ValueTypeF64
)

// loadResult maps each load opcode to the type it pushes. Every load
// pops one i32 address.
var loadResult = map[byte]wasm.ValueType{
	OpI32Load: tI32, OpI32Load8S: tI32, OpI32Load8U: tI32, OpI32Load16S: tI32, OpI32Load16U: tI32,
	OpI64Load: tI64, OpI64Load8S: tI64, OpI64Load8U: tI64, OpI64Load16S: tI64, OpI64Load16U: tI64,
	OpI64Load32S: tI64, OpI64Load32U: tI64,
	OpF32Load: tF32,
	OpF64Load: tF64,
}

// storeOperand maps each store opcode to the value type it pops along
// with its i32 address.
var storeOperand = map[byte]wasm.ValueType{
	OpI32Store: tI32, OpI32Store8: tI32, OpI32Store16: tI32,
	OpI64Store: tI64, OpI64Store8: tI64, OpI64Store16: tI64, OpI64Store32: tI64,
	OpF32Store: tF32,
	OpF64Store: tF64,
}

// hasMemarg reports whether op carries an (align, offset) immediate.
func hasMemarg(op byte) bool {
	if _, ok := loadResult[op]; ok {
		return true
	}
	_, ok := storeOperand[op]
	return ok
}

// unopShape is an (operand, result) type pair for a one-operand
// operator; binops reuse it with both operands of the operand type.
type unopShape struct {
	operand, result wasm.ValueType
}

var unopShapes = map[byte]unopShape{
	OpI32Eqz: {tI32, tI32}, OpI32Clz: {tI32, tI32}, OpI32Ctz: {tI32, tI32}, OpI32Popcnt: {tI32, tI32},
	OpI32Extend8S: {tI32, tI32}, OpI32Extend16S: {tI32, tI32},

	OpI64Eqz: {tI64, tI32}, OpI64Clz: {tI64, tI64}, OpI64Ctz: {tI64, tI64}, OpI64Popcnt: {tI64, tI64},
	OpI64Extend8S: {tI64, tI64}, OpI64Extend16S: {tI64, tI64}, OpI64Extend32S: {tI64, tI64},

	OpF32Abs: {tF32, tF32}, OpF32Neg: {tF32, tF32}, OpF32Ceil: {tF32, tF32}, OpF32Floor: {tF32, tF32},
	OpF32Trunc: {tF32, tF32}, OpF32Nearest: {tF32, tF32}, OpF32Sqrt: {tF32, tF32},

	OpF64Abs: {tF64, tF64}, OpF64Neg: {tF64, tF64}, OpF64Ceil: {tF64, tF64}, OpF64Floor: {tF64, tF64},
	OpF64Trunc: {tF64, tF64}, OpF64Nearest: {tF64, tF64}, OpF64Sqrt: {tF64, tF64},

	OpI32WrapI64:   {tI64, tI32},
	OpI32TruncF32S: {tF32, tI32}, OpI32TruncF32U: {tF32, tI32},
	OpI32TruncF64S: {tF64, tI32}, OpI32TruncF64U: {tF64, tI32},
	OpI64ExtendI32S: {tI32, tI64}, OpI64ExtendI32U: {tI32, tI64},
	OpI64TruncF32S: {tF32, tI64}, OpI64TruncF32U: {tF32, tI64},
	OpI64TruncF64S: {tF64, tI64}, OpI64TruncF64U: {tF64, tI64},
	OpF32ConvertI32S: {tI32, tF32}, OpF32ConvertI32U: {tI32, tF32},
	OpF32ConvertI64S: {tI64, tF32}, OpF32ConvertI64U: {tI64, tF32},
	OpF32DemoteF64:   {tF64, tF32},
	OpF64ConvertI32S: {tI32, tF64}, OpF64ConvertI32U: {tI32, tF64},
	OpF64ConvertI64S: {tI64, tF64}, OpF64ConvertI64U: {tI64, tF64},
	OpF64PromoteF32:     {tF32, tF64},
	OpI32ReinterpretF32: {tF32, tI32}, OpI64ReinterpretF64: {tF64, tI64},
	OpF32ReinterpretI32: {tI32, tF32}, OpF64ReinterpretI64: {tI64, tF64},
}

// prefixedUnopShapes is unopShapes for the 0xfc-prefixed saturating
// truncations, keyed by the second opcode byte.
var prefixedUnopShapes = map[uint64]unopShape{
	OpI32TruncSatF32S: {tF32, tI32}, OpI32TruncSatF32U: {tF32, tI32},
	OpI32TruncSatF64S: {tF64, tI32}, OpI32TruncSatF64U: {tF64, tI32},
	OpI64TruncSatF32S: {tF32, tI64}, OpI64TruncSatF32U: {tF32, tI64},
	OpI64TruncSatF64S: {tF64, tI64}, OpI64TruncSatF64U: {tF64, tI64},
}

var binopShapes = map[byte]unopShape{
	OpI32Eq: {tI32, tI32}, OpI32Ne: {tI32, tI32},
	OpI32LtS: {tI32, tI32}, OpI32LtU: {tI32, tI32}, OpI32GtS: {tI32, tI32}, OpI32GtU: {tI32, tI32},
	OpI32LeS: {tI32, tI32}, OpI32LeU: {tI32, tI32}, OpI32GeS: {tI32, tI32}, OpI32GeU: {tI32, tI32},

	OpI64Eq: {tI64, tI32}, OpI64Ne: {tI64, tI32},
	OpI64LtS: {tI64, tI32}, OpI64LtU: {tI64, tI32}, OpI64GtS: {tI64, tI32}, OpI64GtU: {tI64, tI32},
	OpI64LeS: {tI64, tI32}, OpI64LeU: {tI64, tI32}, OpI64GeS: {tI64, tI32}, OpI64GeU: {tI64, tI32},

	OpF32Eq: {tF32, tI32}, OpF32Ne: {tF32, tI32}, OpF32Lt: {tF32, tI32},
	OpF32Gt: {tF32, tI32}, OpF32Le: {tF32, tI32}, OpF32Ge: {tF32, tI32},

	OpF64Eq: {tF64, tI32}, OpF64Ne: {tF64, tI32}, OpF64Lt: {tF64, tI32},
	OpF64Gt: {tF64, tI32}, OpF64Le: {tF64, tI32}, OpF64Ge: {tF64, tI32},

	OpI32Add: {tI32, tI32}, OpI32Sub: {tI32, tI32}, OpI32Mul: {tI32, tI32},
	OpI32DivS: {tI32, tI32}, OpI32DivU: {tI32, tI32}, OpI32RemS: {tI32, tI32}, OpI32RemU: {tI32, tI32},
	OpI32And: {tI32, tI32}, OpI32Or: {tI32, tI32}, OpI32Xor: {tI32, tI32},
	OpI32Shl: {tI32, tI32}, OpI32ShrS: {tI32, tI32}, OpI32ShrU: {tI32, tI32},
	OpI32Rotl: {tI32, tI32}, OpI32Rotr: {tI32, tI32},

	OpI64Add: {tI64, tI64}, OpI64Sub: {tI64, tI64}, OpI64Mul: {tI64, tI64},
	OpI64DivS: {tI64, tI64}, OpI64DivU: {tI64, tI64}, OpI64RemS: {tI64, tI64}, OpI64RemU: {tI64, tI64},
	OpI64And: {tI64, tI64}, OpI64Or: {tI64, tI64}, OpI64Xor: {tI64, tI64},
	OpI64Shl: {tI64, tI64}, OpI64ShrS: {tI64, tI64}, OpI64ShrU: {tI64, tI64},
	OpI64Rotl: {tI64, tI64}, OpI64Rotr: {tI64, tI64},

	OpF32Add: {tF32, tF32}, OpF32Sub: {tF32, tF32}, OpF32Mul: {tF32, tF32}, OpF32Div: {tF32, tF32},
	OpF32Min: {tF32, tF32}, OpF32Max: {tF32, tF32}, OpF32Copysign: {tF32, tF32},

	OpF64Add: {tF64, tF64}, OpF64Sub: {tF64, tF64}, OpF64Mul: {tF64, tF64}, OpF64Div: {tF64, tF64},
	OpF64Min: {tF64, tF64}, OpF64Max: {tF64, tF64}, OpF64Copysign: {tF64, tF64},
}
