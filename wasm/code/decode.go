package code

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/leb128"
)

var ErrInvalidInstruction = errors.New("wasm: invalid instruction")

// immKind classifies an opcode's immediate encoding. Decoding from a
// byte slice, decoding from a stream, and encoding all dispatch on this
// one classification instead of each repeating the opcode groups.
type immKind int

const (
	immNone immKind = iota
	immBlockType
	immIndex
	immBrTable
	immCallIndirect
	immMemarg
	immReservedByte
	immI32
	immI64
	immF32
	immF64
	immPrefixed
)

func immediateKind(op byte) immKind {
	switch op {
	case OpBlock, OpLoop, OpIf:
		return immBlockType
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		return immIndex
	case OpBrTable:
		return immBrTable
	case OpCallIndirect:
		return immCallIndirect
	case OpMemorySize, OpMemoryGrow:
		return immReservedByte
	case OpI32Const:
		return immI32
	case OpI64Const:
		return immI64
	case OpF32Const:
		return immF32
	case OpF64Const:
		return immF64
	case OpPrefix:
		return immPrefixed
	}
	if hasMemarg(op) {
		return immMemarg
	}
	return immNone
}

func decodeBlockType(body []byte) (uint64, []byte, error) {
	if len(body) == 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}

	switch body[0] {
	case 0x40, 0x7f, 0x7e, 0x7d, 0x7c:
		return uint64(body[0]) | BlockTypeSpecial, body[1:], nil
	default:
		index, read, err := leb128.GetVarint64(body)
		if err != nil {
			return 0, nil, err
		}
		return uint64(index) &^ uint64(BlockTypeSpecial), body[read:], nil
	}
}

type Metrics struct {
	MaxNesting    int  // The maximum block nesting for the function.
	MaxStackDepth int  // The maximum stack depth for the function.
	LabelCount    int  // The number of labels in the function.
	HasLoops      bool // True if this function has loops
}

type block struct {
	*Instruction

	in, out     []wasm.ValueType
	stackHeight int
	unreachable bool
}

type decoder struct {
	Scope

	ibuf    []Instruction
	metrics Metrics

	blocks []block
	stack  []wasm.ValueType
}

type Body struct {
	Instructions []Instruction
	Metrics      Metrics
}

func Decode(body []byte, scope Scope, out []wasm.ValueType) (Body, error) {
	decoder := decoder{Scope: scope}
	return decoder.decode(body, out)
}

func (d *decoder) popOpd() (wasm.ValueType, error) {
	b := &d.blocks[len(d.blocks)-1]
	if b.unreachable && len(d.stack) == b.stackHeight {
		return wasm.ValueTypeT, nil
	}
	if len(d.stack) == b.stackHeight {
		return 0, wasm.ValidationError("stack underflow")
	}
	t := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return t, nil
}

func (d *decoder) popOpds(types ...wasm.ValueType) error {
	for i := len(types) - 1; i >= 0; i-- {
		expected := types[i]
		actual, err := d.popOpd()
		if err != nil {
			return err
		}
		if actual != wasm.ValueTypeT && expected != wasm.ValueTypeT && actual != expected {
			return wasm.ValidationError("stack type mismatch")
		}
	}
	return nil
}

func (d *decoder) pushOpds(types ...wasm.ValueType) {
	d.stack = append(d.stack, types...)

	if len(d.stack) > d.metrics.MaxStackDepth {
		d.metrics.MaxStackDepth = len(d.stack)
	}
}

func (d *decoder) pushBlock(instr *Instruction, in, out []wasm.ValueType) {
	d.blocks = append(d.blocks, block{
		Instruction: instr,
		in:          in,
		out:         out,
		stackHeight: len(d.stack),
	})
	d.pushOpds(in...)

	if len(d.blocks) > d.metrics.MaxNesting {
		d.metrics.MaxNesting = len(d.blocks)
	}
	d.metrics.LabelCount++
}

func (d *decoder) popBlock() (*block, error) {
	if len(d.blocks) == 0 {
		return nil, wasm.ValidationError("label stack underflow")
	}
	b := &d.blocks[len(d.blocks)-1]
	if err := d.popOpds(b.out...); err != nil {
		return nil, err
	}
	if b.Instruction != nil && len(d.stack) != b.stackHeight {
		return nil, wasm.ValidationError("unbalanced stack")
	}
	d.blocks = d.blocks[:len(d.blocks)-1]
	return b, nil
}

func (d *decoder) labelTypes(n int) ([]wasm.ValueType, error) {
	if len(d.blocks)-1 < n {
		return nil, wasm.ValidationError("invalid label")
	}

	b := &d.blocks[len(d.blocks)-1-n]
	if b.Instruction != nil && b.Opcode == OpLoop {
		return b.in, nil
	}
	return b.out, nil
}

func (d *decoder) unreachable() {
	b := &d.blocks[len(d.blocks)-1]
	d.stack = d.stack[:b.stackHeight]
	b.unreachable = true
}

// load checks that memory 0 exists, pops an i32 address, and pushes a
// value of result. store checks memory 0 exists and pops (address,
// value). unop/binop pop one or two operands and push the result.
func (d *decoder) load(result wasm.ValueType) error {
	if !d.HasMemory(0) {
		return wasm.ValidationError("unknown memory")
	}
	if err := d.popOpds(wasm.ValueTypeI32); err != nil {
		return err
	}
	d.pushOpds(result)
	return nil
}

func (d *decoder) store(value wasm.ValueType) error {
	if !d.HasMemory(0) {
		return wasm.ValidationError("unknown memory")
	}
	return d.popOpds(wasm.ValueTypeI32, value)
}

func (d *decoder) unop(s unopShape) error {
	if err := d.popOpds(s.operand); err != nil {
		return err
	}
	d.pushOpds(s.result)
	return nil
}

func (d *decoder) binop(s unopShape) error {
	if err := d.popOpds(s.operand, s.operand); err != nil {
		return err
	}
	d.pushOpds(s.result)
	return nil
}

// doStack applies i's stack effect. The regular shapes come straight
// out of the opcode trait tables; the switch below covers only the
// operators whose effect depends on the scope (variable access, calls)
// or on memory presence.
func (d *decoder) doStack(i *Instruction) error {
	if t, ok := loadResult[i.Opcode]; ok {
		return d.load(t)
	}
	if t, ok := storeOperand[i.Opcode]; ok {
		return d.store(t)
	}
	if s, ok := unopShapes[i.Opcode]; ok {
		return d.unop(s)
	}
	if s, ok := binopShapes[i.Opcode]; ok {
		return d.binop(s)
	}

	switch i.Opcode {
	case OpLocalGet:
		t, ok := d.GetLocalType(i.Localidx())
		if !ok {
			return wasm.ValidationError("unknown local")
		}
		d.pushOpds(t)

	case OpLocalSet:
		t, ok := d.GetLocalType(i.Localidx())
		if !ok {
			return wasm.ValidationError("unknown local")
		}
		return d.popOpds(t)

	case OpLocalTee:
		t, ok := d.GetLocalType(i.Localidx())
		if !ok {
			return wasm.ValidationError("unknown local")
		}
		if err := d.popOpds(t); err != nil {
			return err
		}
		d.pushOpds(t)

	case OpGlobalGet:
		t, ok := d.GetGlobalType(i.Globalidx())
		if !ok {
			return wasm.ValidationError("unknown global")
		}
		d.pushOpds(t.Type)

	case OpGlobalSet:
		t, ok := d.GetGlobalType(i.Globalidx())
		if !ok {
			return wasm.ValidationError("unknown global")
		}
		if !t.Mutable {
			return wasm.ValidationError("global is immutable")
		}
		return d.popOpds(t.Type)

	case OpMemorySize:
		if !d.HasMemory(0) {
			return wasm.ValidationError("unknown memory")
		}
		d.pushOpds(wasm.ValueTypeI32)

	case OpMemoryGrow:
		return d.load(wasm.ValueTypeI32)

	case OpI32Const:
		d.pushOpds(wasm.ValueTypeI32)
	case OpI64Const:
		d.pushOpds(wasm.ValueTypeI64)
	case OpF32Const:
		d.pushOpds(wasm.ValueTypeF32)
	case OpF64Const:
		d.pushOpds(wasm.ValueTypeF64)

	case OpCall:
		sig, ok := d.GetFunctionSignature(i.Funcidx())
		if !ok {
			return wasm.ValidationError("unknown function")
		}
		if err := d.popOpds(sig.ParamTypes...); err != nil {
			return err
		}
		d.pushOpds(sig.ReturnTypes...)

	case OpCallIndirect:
		if !d.HasTable(0) {
			return wasm.ValidationError("unknown table")
		}
		sig, ok := d.GetType(i.Typeidx())
		if !ok {
			return wasm.ValidationError("unknown type")
		}
		if err := d.popOpds(wasm.ValueTypeI32); err != nil {
			return err
		}
		if err := d.popOpds(sig.ParamTypes...); err != nil {
			return err
		}
		d.pushOpds(sig.ReturnTypes...)

	case OpPrefix:
		if s, ok := prefixedUnopShapes[i.Immediate]; ok {
			return d.unop(s)
		}
	}

	return nil
}

// decodeInstruction reads one instruction from the front of body,
// appending it to the decoder's instruction buffer. Immediates follow
// the opcode's immediateKind.
func (d *decoder) decodeInstruction(body []byte) (*Instruction, []byte, error) {
	if len(body) == 0 {
		return nil, nil, io.ErrUnexpectedEOF
	}

	ip := len(d.ibuf)
	opcode := body[0]
	body = body[1:]

	var immediate uint64
	var labels []int
	var err error
	switch immediateKind(opcode) {
	case immBlockType:
		immediate, body, err = decodeBlockType(body)
		if err != nil {
			return nil, nil, err
		}
		switch opcode {
		case OpBlock:
			labels = []int{0}
		case OpLoop:
			d.metrics.HasLoops = true
			labels = []int{ip}
		case OpIf:
			labels = []int{0, 0}
		}

	case immIndex:
		index, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(index), body[read:]

	case immBrTable:
		numLabels, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		body = body[read:]

		labels = make([]int, int(numLabels))
		for i := 0; i < len(labels); i++ {
			label, read, err := leb128.GetVarUint32(body)
			if err != nil {
				return nil, nil, err
			}
			labels[i], body = int(label), body[read:]
		}

		defaultLabel, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(defaultLabel), body[read:]

	case immCallIndirect:
		index, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(index), body[read:]

		if len(body) == 0 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		if body[0] != 0x00 {
			return nil, nil, ErrInvalidInstruction
		}
		body = body[1:]

	case immMemarg:
		align, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		body = body[read:]

		offset, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		body = body[read:]

		immediate = memarg(offset, align)

	case immReservedByte:
		if len(body) == 0 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		if body[0] != 0x00 {
			return nil, nil, ErrInvalidInstruction
		}
		body = body[1:]

	case immI32:
		value, read, err := leb128.GetVarint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(value), body[read:]

	case immI64:
		value, read, err := leb128.GetVarint64(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(value), body[read:]

	case immF32:
		if len(body) < 4 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		immediate, body = uint64(binary.LittleEndian.Uint32(body)), body[4:]

	case immF64:
		if len(body) < 8 {
			return nil, nil, io.ErrUnexpectedEOF
		}
		immediate, body = binary.LittleEndian.Uint64(body), body[8:]

	case immPrefixed:
		satOp, read, err := leb128.GetVarUint32(body)
		if err != nil {
			return nil, nil, err
		}
		immediate, body = uint64(satOp), body[read:]

	case immNone:
		if opcode == OpElse {
			labels = []int{0}
		}
	}

	d.ibuf = append(d.ibuf, Instruction{
		Opcode:    opcode,
		Immediate: immediate,
		Labels:    labels,
	})
	return &d.ibuf[len(d.ibuf)-1], body, nil
}

// enterBlock validates and pushes a block/loop/if label, recording the
// enclosing stack height into the instruction's immediate for the
// interpreter's branch relocation.
func (d *decoder) enterBlock(instr *Instruction) error {
	in, out, ok := instr.BlockType(d)
	if !ok {
		return wasm.ValidationError("unknown type")
	}
	if err := d.popOpds(in...); err != nil {
		return err
	}
	d.pushBlock(instr, in, out)

	stackHeight := d.blocks[len(d.blocks)-1].stackHeight
	instr.Immediate |= (uint64(stackHeight) << 32) & StackHeightMask
	return nil
}

// enterElse closes the then-arm of an if and reopens the same label for
// the else-arm, recording the arm boundary in the if's labels.
func (d *decoder) enterElse(instr *Instruction, ip int) error {
	b, err := d.popBlock()
	if err != nil {
		return err
	}

	if b.Opcode != OpIf || b.Labels[1] != 0 {
		return wasm.ValidationError("invalid nesting")
	}
	b.Labels[1] = ip

	d.pushBlock(b.Instruction, b.in, b.out)
	return nil
}

// branchTo type-checks a branch to label depth n and returns the types
// the branch carries.
func (d *decoder) branchTo(n int) error {
	pop, err := d.labelTypes(n)
	if err != nil {
		return err
	}
	return d.popOpds(pop...)
}

func (d *decoder) decode(body []byte, out []wasm.ValueType) (Body, error) {
	d.ibuf = make([]Instruction, 0, len(body))

	var instr *Instruction
	d.pushBlock(instr, nil, out)

	var err error
	for {
		ip := len(d.ibuf)
		if instr, body, err = d.decodeInstruction(body); err != nil {
			return Body{}, err
		}

		switch instr.Opcode {
		default:
			if err := d.doStack(instr); err != nil {
				return Body{}, err
			}

		case OpDrop:
			if _, err := d.popOpd(); err != nil {
				return Body{}, err
			}

		case OpSelect:
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			t, err := d.popOpd()
			if err != nil {
				return Body{}, err
			}
			if err := d.popOpds(t); err != nil {
				return Body{}, err
			}
			d.pushOpds(t)

		case OpUnreachable:
			d.unreachable()

		case OpIf:
			d.popOpds(wasm.ValueTypeI32)
			fallthrough
		case OpBlock, OpLoop:
			if err := d.enterBlock(instr); err != nil {
				return Body{}, err
			}

		case OpElse:
			if err := d.enterElse(instr, ip); err != nil {
				return Body{}, err
			}

		case OpEnd:
			b, err := d.popBlock()
			if err != nil {
				return Body{}, err
			}

			switch {
			case b.Instruction != nil:
				if b.Opcode != OpLoop {
					b.Labels[0] = ip + 1
				}
				if b.Opcode == OpIf && b.Labels[1] != 0 {
					d.ibuf[b.Labels[1]].Labels[0] = ip + 1
				}
				d.pushOpds(b.out...)
			case len(body) != 0:
				return Body{}, wasm.ValidationError("unexpected end instruction")
			default:
				if len(d.stack) != 0 {
					return Body{}, wasm.ValidationError("type mismatch")
				}

				// Condense the instruction list.
				if cap(d.ibuf)-len(d.ibuf) > len(d.ibuf)/10 {
					result := make([]Instruction, len(d.ibuf))
					copy(result, d.ibuf)
					d.ibuf = result
				}
				return Body{
					Instructions: d.ibuf,
					Metrics:      d.metrics,
				}, nil
			}

		case OpBr:
			if err := d.branchTo(instr.Labelidx()); err != nil {
				return Body{}, err
			}
			d.unreachable()

		case OpBrIf:
			pop, err := d.labelTypes(instr.Labelidx())
			if err != nil {
				return Body{}, err
			}
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			if err := d.popOpds(pop...); err != nil {
				return Body{}, err
			}
			d.pushOpds(pop...)

		case OpBrTable:
			pop, err := d.labelTypes(instr.Default())
			if err != nil {
				return Body{}, err
			}
			for _, l := range instr.Labels {
				typs, err := d.labelTypes(l)
				if err != nil {
					return Body{}, err
				}
				if len(typs) != len(pop) {
					return Body{}, wasm.ValidationError("br_table type mismatch")
				}
				for i, t := range typs {
					if pop[i] != t {
						return Body{}, wasm.ValidationError("br_table type mismatch")
					}
				}
			}
			if err := d.popOpds(wasm.ValueTypeI32); err != nil {
				return Body{}, err
			}
			if err := d.popOpds(pop...); err != nil {
				return Body{}, err
			}
			d.unreachable()

		case OpReturn:
			if err := d.popOpds(d.blocks[0].out...); err != nil {
				return Body{}, err
			}
			d.unreachable()
		}
	}
}

func decodeSingleBlockType(r io.Reader) (uint64, error) {
	n, err := leb128.ReadVarint64(r)
	if err != nil {
		return 0, err
	}
	if n >= 0 {
		return uint64(n) &^ uint64(BlockTypeSpecial), nil
	}

	switch n & 0x7f {
	case 0x40, 0x7f, 0x7e, 0x7d, 0x7c:
		return uint64(n&0x7f) | BlockTypeSpecial, nil
	default:
		return 0, fmt.Errorf("unexpected block type 0x%02x", byte(n&0x7f))
	}
}

// decodeSingleInstruction is the streaming form of decodeInstruction,
// used by the trace decoder; it shares the immediateKind classification
// but has no instruction buffer or label bookkeeping.
func decodeSingleInstruction(r io.Reader) (Instruction, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return Instruction{}, err
	}

	opcode := buf[0]
	var immediate uint64
	var labels []int
	switch immediateKind(opcode) {
	case immBlockType:
		blockType, err := decodeSingleBlockType(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = blockType

	case immIndex:
		index, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = uint64(index)

	case immBrTable:
		numLabels, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}

		labels = make([]int, int(numLabels))
		for i := 0; i < len(labels); i++ {
			label, err := leb128.ReadVarUint32(r)
			if err != nil {
				return Instruction{}, err
			}
			labels[i] = int(label)
		}

		defaultLabel, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = uint64(defaultLabel)

	case immCallIndirect:
		index, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = uint64(index)

		if _, err = io.ReadFull(r, buf[:1]); err != nil {
			return Instruction{}, err
		}
		if buf[0] != 0x00 {
			return Instruction{}, ErrInvalidInstruction
		}

	case immMemarg:
		align, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}
		offset, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = memarg(offset, align)

	case immReservedByte:
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return Instruction{}, err
		}
		if buf[0] != 0x00 {
			return Instruction{}, ErrInvalidInstruction
		}

	case immI32:
		value, err := leb128.ReadVarint32(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = uint64(value)

	case immI64:
		value, err := leb128.ReadVarint64(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = uint64(value)

	case immF32:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return Instruction{}, err
		}
		immediate = uint64(binary.LittleEndian.Uint32(buf[:4]))

	case immF64:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return Instruction{}, err
		}
		immediate = binary.LittleEndian.Uint64(buf[:8])

	case immPrefixed:
		satOp, err := leb128.ReadVarUint32(r)
		if err != nil {
			return Instruction{}, err
		}
		immediate = uint64(satOp)
	}

	return Instruction{
		Opcode:    opcode,
		Immediate: immediate,
		Labels:    labels,
	}, nil
}
