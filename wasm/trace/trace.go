// Package trace defines the wire format for a step-by-step execution
// trace: a stream of entries (call enter/leave, instruction, end) a
// Thread built with NewDebugThread writes as it runs, and a Decoder
// reads back for offline inspection.
package trace

import (
	"io"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
	"github.com/sassembla/wasmcore/wasm/leb128"
)

// EntryKind describes the type of a trace entry, and is also the
// entry's one-byte wire tag.
type EntryKind byte

const (
	EntryEnter       EntryKind = 0x01
	EntryLeave       EntryKind = 0x02
	EntryInstruction EntryKind = 0x03
	EntryEnd         EntryKind = 0x04
)

// An Entry is a single record in an execution trace.
type Entry interface {
	// Kind returns the kind of the trace entry.
	Kind() EntryKind
	// Encode encodes the trace entry to the given writer.
	Encode(w io.Writer) error

	decode(r io.Reader) error
}

// entryFactories maps a wire tag to a constructor for the entry it
// introduces.
var entryFactories = map[EntryKind]func() Entry{
	EntryEnter:       func() Entry { return &EnterEntry{} },
	EntryLeave:       func() Entry { return &LeaveEntry{} },
	EntryInstruction: func() Entry { return &InstructionEntry{} },
	EntryEnd:         func() Entry { return &EndEntry{} },
}

// writeKind writes an entry's tag byte ahead of its payload.
func writeKind(w io.Writer, kind EntryKind) error {
	_, err := w.Write([]byte{byte(kind)})
	return err
}

// A Decoder decodes trace entries from an io.Reader.
type Decoder struct {
	r     io.Reader
	entry Entry
	err   error
}

// NewDecoder creates a new decoder that reads from the given io.Reader.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Entry returns the trace entry decoded by the last call to Next, if any.
func (t *Decoder) Entry() Entry {
	return t.entry
}

// Error returns the error encountered during decoding, if any.
func (t *Decoder) Error() error {
	return t.err
}

// Next decodes the next entry in the trace. It returns false at the
// end of the trace or on error; a stream that stops after an end entry
// is complete, not truncated.
func (t *Decoder) Next() bool {
	var buf [1]byte
	if _, t.err = io.ReadFull(t.r, buf[:]); t.err != nil {
		if t.entry != nil && t.entry.Kind() == EntryEnd {
			t.err = nil
		}
		return false
	}

	factory, ok := entryFactories[EntryKind(buf[0])]
	if !ok {
		return false
	}

	entry := factory()
	if t.err = entry.decode(t.r); t.err != nil {
		return false
	}
	t.entry = entry
	return true
}

// Decode decodes an execution trace from the given reader.
func Decode(r io.Reader) ([]Entry, error) {
	decoder := NewDecoder(r)

	var trace []Entry
	for decoder.Next() {
		trace = append(trace, decoder.Entry())
	}
	if err := decoder.Error(); err != nil {
		return nil, err
	}
	return trace, nil
}

// EnterEntry records a call: the callee's module, index, and signature.
//
// Wire format:
//
//	0x01 | ModuleName vec(byte) | FunctionIndex u32 | FunctionSignature
//
// The signature is encoded in its WASM format; integers are
// LEB128-encoded.
type EnterEntry struct {
	ModuleName        string           `json:"moduleName"`
	FunctionIndex     uint32           `json:"functionIndex"`
	FunctionSignature wasm.FunctionSig `json:"functionSignature"`
}

func (t *EnterEntry) Kind() EntryKind {
	return EntryEnter
}

func (t *EnterEntry) Encode(w io.Writer) error {
	if err := writeKind(w, EntryEnter); err != nil {
		return err
	}

	if _, err := leb128.WriteVarUint32(w, uint32(len(t.ModuleName))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(t.ModuleName)); err != nil {
		return err
	}

	if _, err := leb128.WriteVarUint32(w, t.FunctionIndex); err != nil {
		return err
	}

	return t.FunctionSignature.MarshalWASM(w)
}

func (t *EnterEntry) decode(r io.Reader) error {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	moduleName := make([]byte, int(n))
	if _, err = io.ReadFull(r, moduleName); err != nil {
		return err
	}

	functionIndex, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}

	if err := t.FunctionSignature.UnmarshalWASM(r); err != nil {
		return err
	}

	t.ModuleName = string(moduleName)
	t.FunctionIndex = functionIndex
	return nil
}

// LeaveEntry records a return; it carries no payload (wire format:
// a bare 0x02).
type LeaveEntry struct{}

func (t *LeaveEntry) Kind() EntryKind {
	return EntryLeave
}

func (t *LeaveEntry) Encode(w io.Writer) error {
	return writeKind(w, EntryLeave)
}

func (t *LeaveEntry) decode(r io.Reader) error {
	return nil
}

// InstructionEntry records one executed instruction with the typed
// values it consumed and produced.
//
// Wire format:
//
//	0x03 | IP u32 | Instruction | Args vec(type byte, u64) | Results vec(type byte, u64)
//
// The instruction is encoded in its WASM format; integers are
// LEB128-encoded.
type InstructionEntry struct {
	IP          int              `json:"ip"`
	Instruction code.Instruction `json:"instruction"`
	ArgTypes    []wasm.ValueType `json:"argTypes"`
	ResultTypes []wasm.ValueType `json:"resultTypes"`
	Args        []uint64         `json:"args"`
	Results     []uint64         `json:"results"`
}

func (t *InstructionEntry) Kind() EntryKind {
	return EntryInstruction
}

func (t *InstructionEntry) Encode(w io.Writer) error {
	if err := writeKind(w, EntryInstruction); err != nil {
		return err
	}

	if _, err := leb128.WriteVarUint32(w, uint32(t.IP)); err != nil {
		return err
	}

	if err := t.Instruction.Encode(w); err != nil {
		return err
	}

	if err := writeTypedValues(w, t.Args, t.ArgTypes); err != nil {
		return err
	}
	return writeTypedValues(w, t.Results, t.ResultTypes)
}

// writeTypedValues writes a vec(type byte, u64) pair for each value in
// values, pairing it with the matching entry of types (or
// wasm.ValueTypeT if types runs short, e.g. an untyped host-function
// boundary). Args and Results share this exact shape, so both Encode and
// decode route through one helper rather than two copies of the same
// loop.
func writeTypedValues(w io.Writer, values []uint64, types []wasm.ValueType) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(values))); err != nil {
		return err
	}
	for i, v := range values {
		t := wasm.ValueTypeT
		if i < len(types) {
			t = types[i]
		}
		if _, err := w.Write([]byte{byte(t)}); err != nil {
			return err
		}
		if _, err := leb128.WriteVarUint64(w, v); err != nil {
			return err
		}
	}
	return nil
}

// readTypedValues is writeTypedValues's inverse.
func readTypedValues(r io.Reader) ([]wasm.ValueType, []uint64, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, nil, err
	}

	types, values := make([]wasm.ValueType, int(n)), make([]uint64, int(n))
	var typeByte [1]byte
	for i := range values {
		if _, err := io.ReadFull(r, typeByte[:]); err != nil {
			return nil, nil, err
		}
		types[i] = wasm.ValueType(typeByte[0])

		v, err := leb128.ReadVarUint64(r)
		if err != nil {
			return nil, nil, err
		}
		values[i] = v
	}
	return types, values, nil
}

func (t *InstructionEntry) decode(r io.Reader) error {
	ip, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}

	var instr code.Instruction
	if err := instr.Decode(r); err != nil {
		return err
	}

	argTypes, args, err := readTypedValues(r)
	if err != nil {
		return err
	}
	resultTypes, results, err := readTypedValues(r)
	if err != nil {
		return err
	}

	t.IP = int(ip)
	t.Instruction = instr
	t.ArgTypes = argTypes
	t.ResultTypes = resultTypes
	t.Args = args
	t.Results = results
	return nil
}

// EndEntry terminates a trace; it carries no payload (wire format: a
// bare 0x04).
type EndEntry struct{}

func (t *EndEntry) Kind() EntryKind {
	return EntryEnd
}

func (t *EndEntry) Encode(w io.Writer) error {
	return writeKind(w, EntryEnd)
}

func (t *EndEntry) decode(r io.Reader) error {
	return nil
}
