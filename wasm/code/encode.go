package code

import (
	"encoding/binary"
	"io"

	"github.com/sassembla/wasmcore/wasm/leb128"
)

// encodeBlockType writes the packed block-type immediate of a
// block/loop/if: a type-section index as a signed LEB128, or one of the
// five inline value types (BlockTypeSpecial set) as its single byte.
func encodeBlockType(w io.Writer, instr Instruction) error {
	if instr.Immediate&uint64(BlockTypeSpecial) != 0 {
		_, err := w.Write([]byte{byte(instr.Immediate)})
		return err
	}

	_, err := leb128.WriteVarint64(w, int64(instr.Immediate))
	return err
}

// encodeInstruction writes one instruction's opcode byte followed by
// its immediate per the opcode's immediateKind — the same
// classification decodeInstruction reads by.
func encodeInstruction(w io.Writer, instr Instruction) error {
	if _, err := w.Write([]byte{byte(instr.Opcode)}); err != nil {
		return err
	}

	switch immediateKind(instr.Opcode) {
	case immBlockType:
		return encodeBlockType(w, instr)

	case immIndex:
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err

	case immBrTable:
		if _, err := leb128.WriteVarUint32(w, uint32(len(instr.Labels))); err != nil {
			return err
		}
		for _, l := range instr.Labels {
			if _, err := leb128.WriteVarUint32(w, uint32(l)); err != nil {
				return err
			}
		}
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err

	case immCallIndirect:
		if _, err := leb128.WriteVarUint32(w, uint32(instr.Immediate)); err != nil {
			return err
		}
		_, err := w.Write([]byte{0x00})
		return err

	case immMemarg:
		offset, align := instr.Memarg()
		if _, err := leb128.WriteVarUint32(w, align); err != nil {
			return err
		}
		_, err := leb128.WriteVarUint32(w, offset)
		return err

	case immReservedByte:
		_, err := w.Write([]byte{0x00})
		return err

	case immI32:
		_, err := leb128.WriteVarint64(w, int64(int32(instr.Immediate)))
		return err

	case immI64:
		_, err := leb128.WriteVarint64(w, int64(instr.Immediate))
		return err

	case immF32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(instr.Immediate))
		_, err := w.Write(buf[:])
		return err

	case immF64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], instr.Immediate)
		_, err := w.Write(buf[:])
		return err

	case immPrefixed:
		_, err := leb128.WriteVarUint32(w, uint32(instr.Immediate))
		return err
	}

	return nil
}

// Encode writes body, which must be terminated by its function-level
// end instruction.
func Encode(w io.Writer, body []Instruction) error {
	for {
		if len(body) == 0 {
			return io.ErrUnexpectedEOF
		}

		if err := encodeInstruction(w, body[0]); err != nil {
			return err
		}
		if body[0].Opcode == OpEnd && len(body) == 1 {
			return nil
		}
		body = body[1:]
	}
}
