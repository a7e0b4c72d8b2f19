package code

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/sassembla/wasmcore/wasm"
)

// Instruction is one decoded operator: its opcode, a packed immediate
// whose meaning depends on the opcode (see the typed accessors below),
// and, for control operators, label indices resolved by the decoder.
type Instruction struct {
	Opcode    byte   `json:"opcode"`
	Immediate uint64 `json:"immediate"`
	Labels    []int  `json:"labels"`
}

// Accessors for the per-opcode immediate payloads. Each is only
// meaningful for the opcodes that carry the corresponding immediate.

// Continuation is the instruction index a branch to this block lands
// on: the block's own index for a loop, one past its end otherwise.
func (i *Instruction) Continuation() int {
	return i.Labels[0]
}

// Else is the instruction index of an if's else arm, or 0 if it has
// none.
func (i *Instruction) Else() int {
	return i.Labels[1]
}

// StackHeight is the operand-stack height at block entry, recorded by
// the decoder for the interpreter's branch relocation.
func (i *Instruction) StackHeight() int {
	return int((i.Immediate & StackHeightMask) >> 32)
}

// Default is a br_table's default label depth.
func (i *Instruction) Default() int {
	return int(i.Immediate)
}

func (i *Instruction) Labelidx() int {
	return int(i.Immediate)
}

func (i *Instruction) Funcidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Localidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Globalidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Typeidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Memarg() (offset uint32, align uint32) {
	return uint32(i.Immediate), uint32(i.Immediate >> 32)
}

func (i *Instruction) Offset() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) I32() int32 {
	return int32(i.Immediate)
}

func (i *Instruction) I64() int64 {
	return int64(i.Immediate)
}

func (i *Instruction) F32() float32 {
	return math.Float32frombits(uint32(i.Immediate))
}

func (i *Instruction) F64() float64 {
	return math.Float64frombits(uint64(i.Immediate))
}

func memarg(offset, align uint32) uint64 {
	return uint64(align)<<32 | uint64(offset)
}

// BlockType resolves a block/loop/if's packed block type against scope:
// either one of the inline single-value forms or a type-section index.
func (i *Instruction) BlockType(scope Scope) (in, out []wasm.ValueType, ok bool) {
	switch i.Immediate & BlockTypeMask {
	case BlockTypeEmpty:
		return nil, nil, true
	case BlockTypeI32:
		return nil, []wasm.ValueType{wasm.ValueTypeI32}, true
	case BlockTypeI64:
		return nil, []wasm.ValueType{wasm.ValueTypeI64}, true
	case BlockTypeF32:
		return nil, []wasm.ValueType{wasm.ValueTypeF32}, true
	case BlockTypeF64:
		return nil, []wasm.ValueType{wasm.ValueTypeF64}, true
	default:
		sig, ok := scope.GetType(i.Typeidx())
		if !ok {
			return nil, nil, false
		}
		return sig.ParamTypes, sig.ReturnTypes, true
	}
}

// Stack returns how many operands i pops and pushes. The regular
// shapes come from the opcode trait tables; the switch covers the
// scope-dependent and parametric operators.
func (i *Instruction) Stack(scope Scope) (pop, push int) {
	if _, ok := loadResult[i.Opcode]; ok {
		return 1, 1
	}
	if _, ok := storeOperand[i.Opcode]; ok {
		return 2, 0
	}
	if _, ok := unopShapes[i.Opcode]; ok {
		return 1, 1
	}
	if _, ok := binopShapes[i.Opcode]; ok {
		return 2, 1
	}

	switch i.Opcode {
	case OpIf, OpBrIf, OpBrTable, OpDrop, OpLocalSet, OpGlobalSet:
		return 1, 0
	case OpLocalGet, OpGlobalGet, OpMemorySize, OpI32Const, OpI64Const, OpF32Const, OpF64Const:
		return 0, 1
	case OpLocalTee, OpMemoryGrow:
		return 1, 1
	case OpSelect:
		return 3, 1
	case OpCall:
		sig, _ := scope.GetFunctionSignature(i.Funcidx())
		return len(sig.ParamTypes), len(sig.ReturnTypes)
	case OpCallIndirect:
		sig, _ := scope.GetType(i.Typeidx())
		return len(sig.ParamTypes) + 1, len(sig.ReturnTypes)
	case OpPrefix:
		if _, ok := prefixedUnopShapes[i.Immediate]; ok {
			return 1, 1
		}
	}

	return 0, 0
}

// Types returns the value types i pops and pushes, for consumers (the
// tracer) that need more than the counts Stack gives.
func (i *Instruction) Types(scope Scope) (pop, push []wasm.ValueType) {
	type stack = []wasm.ValueType

	if t, ok := loadResult[i.Opcode]; ok {
		return stack{wasm.ValueTypeI32}, stack{t}
	}
	if t, ok := storeOperand[i.Opcode]; ok {
		return stack{wasm.ValueTypeI32, t}, nil
	}
	if s, ok := unopShapes[i.Opcode]; ok {
		return stack{s.operand}, stack{s.result}
	}
	if s, ok := binopShapes[i.Opcode]; ok {
		return stack{s.operand, s.operand}, stack{s.result}
	}

	switch i.Opcode {
	case OpIf, OpBrIf, OpBrTable:
		return stack{wasm.ValueTypeI32}, nil

	case OpDrop:
		return stack{wasm.ValueTypeT}, nil
	case OpSelect:
		return stack{wasm.ValueTypeT, wasm.ValueTypeT, wasm.ValueTypeI32}, stack{wasm.ValueTypeT}

	case OpLocalGet:
		type_, _ := scope.GetLocalType(i.Localidx())
		return nil, stack{type_}
	case OpLocalSet:
		type_, _ := scope.GetLocalType(i.Localidx())
		return stack{type_}, nil
	case OpLocalTee:
		type_, _ := scope.GetLocalType(i.Localidx())
		return stack{type_}, stack{type_}

	case OpGlobalGet:
		type_, _ := scope.GetGlobalType(i.Globalidx())
		return nil, stack{type_.Type}
	case OpGlobalSet:
		type_, _ := scope.GetGlobalType(i.Globalidx())
		return stack{type_.Type}, nil

	case OpMemorySize:
		return nil, stack{wasm.ValueTypeI32}
	case OpMemoryGrow:
		return stack{wasm.ValueTypeI32}, stack{wasm.ValueTypeI32}

	case OpI32Const:
		return nil, stack{wasm.ValueTypeI32}
	case OpI64Const:
		return nil, stack{wasm.ValueTypeI64}
	case OpF32Const:
		return nil, stack{wasm.ValueTypeF32}
	case OpF64Const:
		return nil, stack{wasm.ValueTypeF64}

	case OpCall:
		sig, _ := scope.GetFunctionSignature(i.Funcidx())
		return sig.ParamTypes, sig.ReturnTypes
	case OpCallIndirect:
		sig, _ := scope.GetType(i.Typeidx())
		return sig.ParamTypes, sig.ReturnTypes

	case OpPrefix:
		if s, ok := prefixedUnopShapes[i.Immediate]; ok {
			return stack{s.operand}, stack{s.result}
		}
	}

	return nil, nil
}

func (i *Instruction) Encode(w io.Writer) error {
	return encodeInstruction(w, *i)
}

func (i *Instruction) Decode(r io.Reader) error {
	instr, err := decodeSingleInstruction(r)
	if err != nil {
		return err
	}
	*i = instr
	return nil
}

func (i *Instruction) blockString(op string) string {
	switch i.Immediate & BlockTypeMask {
	case BlockTypeEmpty:
		return op
	case BlockTypeI32:
		return fmt.Sprintf("%s (result i32)", op)
	case BlockTypeI64:
		return fmt.Sprintf("%s (result i64)", op)
	case BlockTypeF32:
		return fmt.Sprintf("%s (result f32)", op)
	case BlockTypeF64:
		return fmt.Sprintf("%s (result f64)", op)
	default:
		return fmt.Sprintf("%s (type %v)", op, i.Typeidx())
	}
}

func (i *Instruction) memString(op string) string {
	var b strings.Builder
	b.WriteString(op)
	offset, align := i.Memarg()
	if offset != 0 {
		fmt.Fprintf(&b, " offset=%v", offset)
	}
	if align != 0 {
		fmt.Fprintf(&b, " align=%v", align)
	}
	return b.String()
}

// String renders i in text-format spelling, operands included.
func (i *Instruction) String() string {
	switch i.Opcode {
	case OpBlock, OpLoop, OpIf:
		return i.blockString(i.OpString())
	case OpBr, OpBrIf:
		return fmt.Sprintf("%s %d", i.OpString(), i.Labelidx())
	case OpBrTable:
		var b strings.Builder

		b.WriteString("br_table")
		for _, l := range i.Labels {
			fmt.Fprintf(&b, " %d", l)
		}
		fmt.Fprintf(&b, " %d", i.Labelidx())
		return b.String()
	case OpCall:
		return fmt.Sprintf("call %d", i.Funcidx())
	case OpCallIndirect:
		return fmt.Sprintf("call_indirect (type %v)", i.Typeidx())
	case OpLocalGet, OpLocalSet, OpLocalTee:
		return fmt.Sprintf("%s %v", i.OpString(), i.Localidx())
	case OpGlobalGet, OpGlobalSet:
		return fmt.Sprintf("%s %v", i.OpString(), i.Globalidx())
	case OpI32Const:
		return fmt.Sprintf("i32.const %d", i.I32())
	case OpI64Const:
		return fmt.Sprintf("i64.const %d", i.I64())
	case OpF32Const:
		return fmt.Sprintf("f32.const %g", i.F32())
	case OpF64Const:
		return fmt.Sprintf("f64.const %g", i.F64())
	default:
		if hasMemarg(i.Opcode) {
			return i.memString(i.OpString())
		}
		return i.OpString()
	}
}

// opcodeMnemonics maps an opcode byte to its text-format mnemonic, the
// same name wast/token.go's keyword table maps back to an opcode when
// assembling. Kept as a map rather than a switch so OpString and a
// disassembler only ever need to agree with one source of truth.
var opcodeMnemonics = map[byte]string{
	OpUnreachable: "unreachable", OpNop: "nop", OpBlock: "block", OpLoop: "loop",
	OpIf: "if", OpElse: "else", OpEnd: "end", OpBr: "br", OpBrIf: "br_if",
	OpBrTable: "br_table", OpReturn: "return", OpCall: "call", OpCallIndirect: "call_indirect",
	OpDrop: "drop", OpSelect: "select",
	OpLocalGet: "local.get", OpLocalSet: "local.set", OpLocalTee: "local.tee",
	OpGlobalGet: "global.get", OpGlobalSet: "global.set",

	OpI32Load: "i32.load", OpI64Load: "i64.load", OpF32Load: "f32.load", OpF64Load: "f64.load",
	OpI32Load8S: "i32.load8_s", OpI32Load8U: "i32.load8_u", OpI32Load16S: "i32.load16_s", OpI32Load16U: "i32.load16_u",
	OpI64Load8S: "i64.load8_s", OpI64Load8U: "i64.load8_u", OpI64Load16S: "i64.load16_s", OpI64Load16U: "i64.load16_u",
	OpI64Load32S: "i64.load32_s", OpI64Load32U: "i64.load32_u",
	OpI32Store: "i32.store", OpI64Store: "i64.store", OpF32Store: "f32.store", OpF64Store: "f64.store",
	OpI32Store8: "i32.store8", OpI32Store16: "i32.store16",
	OpI64Store8: "i64.store8", OpI64Store16: "i64.store16", OpI64Store32: "i64.store32",
	OpMemorySize: "memory.size", OpMemoryGrow: "memory.grow",

	OpI32Const: "i32.const", OpI64Const: "i64.const", OpF32Const: "f32.const", OpF64Const: "f64.const",

	OpI32Eqz: "i32.eqz", OpI32Eq: "i32.eq", OpI32Ne: "i32.ne",
	OpI32LtS: "i32.lt_s", OpI32LtU: "i32.lt_u", OpI32GtS: "i32.gt_s", OpI32GtU: "i32.gt_u",
	OpI32LeS: "i32.le_s", OpI32LeU: "i32.le_u", OpI32GeS: "i32.ge_s", OpI32GeU: "i32.ge_u",

	OpI64Eqz: "i64.eqz", OpI64Eq: "i64.eq", OpI64Ne: "i64.ne",
	OpI64LtS: "i64.lt_s", OpI64LtU: "i64.lt_u", OpI64GtS: "i64.gt_s", OpI64GtU: "i64.gt_u",
	OpI64LeS: "i64.le_s", OpI64LeU: "i64.le_u", OpI64GeS: "i64.ge_s", OpI64GeU: "i64.ge_u",

	OpF32Eq: "f32.eq", OpF32Ne: "f32.ne", OpF32Lt: "f32.lt", OpF32Gt: "f32.gt", OpF32Le: "f32.le", OpF32Ge: "f32.ge",
	OpF64Eq: "f64.eq", OpF64Ne: "f64.ne", OpF64Lt: "f64.lt", OpF64Gt: "f64.gt", OpF64Le: "f64.le", OpF64Ge: "f64.ge",

	OpI32Clz: "i32.clz", OpI32Ctz: "i32.ctz", OpI32Popcnt: "i32.popcnt",
	OpI32Add: "i32.add", OpI32Sub: "i32.sub", OpI32Mul: "i32.mul",
	OpI32DivS: "i32.div_s", OpI32DivU: "i32.div_u", OpI32RemS: "i32.rem_s", OpI32RemU: "i32.rem_u",
	OpI32And: "i32.and", OpI32Or: "i32.or", OpI32Xor: "i32.xor",
	OpI32Shl: "i32.shl", OpI32ShrS: "i32.shr_s", OpI32ShrU: "i32.shr_u", OpI32Rotl: "i32.rotl", OpI32Rotr: "i32.rotr",

	OpI64Clz: "i64.clz", OpI64Ctz: "i64.ctz", OpI64Popcnt: "i64.popcnt",
	OpI64Add: "i64.add", OpI64Sub: "i64.sub", OpI64Mul: "i64.mul",
	OpI64DivS: "i64.div_s", OpI64DivU: "i64.div_u", OpI64RemS: "i64.rem_s", OpI64RemU: "i64.rem_u",
	OpI64And: "i64.and", OpI64Or: "i64.or", OpI64Xor: "i64.xor",
	OpI64Shl: "i64.shl", OpI64ShrS: "i64.shr_s", OpI64ShrU: "i64.shr_u", OpI64Rotl: "i64.rotl", OpI64Rotr: "i64.rotr",

	OpF32Abs: "f32.abs", OpF32Neg: "f32.neg", OpF32Ceil: "f32.ceil", OpF32Floor: "f32.floor",
	OpF32Trunc: "f32.trunc", OpF32Nearest: "f32.nearest", OpF32Sqrt: "f32.sqrt",
	OpF32Add: "f32.add", OpF32Sub: "f32.sub", OpF32Mul: "f32.mul", OpF32Div: "f32.div",
	OpF32Min: "f32.min", OpF32Max: "f32.max", OpF32Copysign: "f32.copysign",

	OpF64Abs: "f64.abs", OpF64Neg: "f64.neg", OpF64Ceil: "f64.ceil", OpF64Floor: "f64.floor",
	OpF64Trunc: "f64.trunc", OpF64Nearest: "f64.nearest", OpF64Sqrt: "f64.sqrt",
	OpF64Add: "f64.add", OpF64Sub: "f64.sub", OpF64Mul: "f64.mul", OpF64Div: "f64.div",
	OpF64Min: "f64.min", OpF64Max: "f64.max", OpF64Copysign: "f64.copysign",

	OpI32WrapI64:   "i32.wrap_i64",
	OpI32TruncF32S: "i32.trunc_f32_s", OpI32TruncF32U: "i32.trunc_f32_u",
	OpI32TruncF64S: "i32.trunc_f64_s", OpI32TruncF64U: "i32.trunc_f64_u",
	OpI64ExtendI32S: "i64.extend_i32_s", OpI64ExtendI32U: "i64.extend_i32_u",
	OpI64TruncF32S: "i64.trunc_f32_s", OpI64TruncF32U: "i64.trunc_f32_u",
	OpI64TruncF64S: "i64.trunc_f64_s", OpI64TruncF64U: "i64.trunc_f64_u",
	OpF32ConvertI32S: "f32.convert_i32_s", OpF32ConvertI32U: "f32.convert_i32_u",
	OpF32ConvertI64S: "f32.convert_i64_s", OpF32ConvertI64U: "f32.convert_i64_u",
	OpF32DemoteF64:   "f32.demote_f64",
	OpF64ConvertI32S: "f64.convert_i32_s", OpF64ConvertI32U: "f64.convert_i32_u",
	OpF64ConvertI64S: "f64.convert_i64_s", OpF64ConvertI64U: "f64.convert_i64_u",
	OpF64PromoteF32:     "f64.promote_f32",
	OpI32ReinterpretF32: "i32.reinterpret_f32", OpI64ReinterpretF64: "i64.reinterpret_f64",
	OpF32ReinterpretI32: "f32.reinterpret_i32", OpF64ReinterpretI64: "f64.reinterpret_i64",

	OpI32Extend8S: "i32.extend8_s", OpI32Extend16S: "i32.extend16_s",
	OpI64Extend8S: "i64.extend8_s", OpI64Extend16S: "i64.extend16_s", OpI64Extend32S: "i64.extend32_s",
}

// prefixedOpcodeMnemonics mirrors opcodeMnemonics for the 0xfc-prefixed
// saturating-truncation operators, whose second opcode byte is encoded
// into Immediate rather than Opcode (see decodeSingleInstruction).
var prefixedOpcodeMnemonics = map[uint64]string{
	OpI32TruncSatF32S: "i32.trunc_sat_f32_s", OpI32TruncSatF32U: "i32.trunc_sat_f32_u",
	OpI32TruncSatF64S: "i32.trunc_sat_f64_s", OpI32TruncSatF64U: "i32.trunc_sat_f64_u",
	OpI64TruncSatF32S: "i64.trunc_sat_f32_s", OpI64TruncSatF32U: "i64.trunc_sat_f32_u",
	OpI64TruncSatF64S: "i64.trunc_sat_f64_s", OpI64TruncSatF64U: "i64.trunc_sat_f64_u",
}

// OpString returns the text-format mnemonic for i's opcode, with no
// operands rendered (see String for that).
func (i *Instruction) OpString() string {
	if i.Opcode == OpPrefix {
		if s, ok := prefixedOpcodeMnemonics[i.Immediate]; ok {
			return s
		}
		return "invalid"
	}
	if s, ok := opcodeMnemonics[i.Opcode]; ok {
		return s
	}
	return "invalid"
}
