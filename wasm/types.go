package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sassembla/wasmcore/wasm/leb128"
)

// Marshaler is implemented by types that can write their own binary encoding.
type Marshaler interface {
	MarshalWASM(w io.Writer) error
}

// Unmarshaler is implemented by types that can read their own binary encoding.
type Unmarshaler interface {
	UnmarshalWASM(r io.Reader) error
}

// ValueType is one of the four WASM MVP value types, encoded as the
// negative-range LEB128 byte used by the binary format.
type ValueType int8

const (
	ValueTypeI32 ValueType = -0x01
	ValueTypeI64 ValueType = -0x02
	ValueTypeF32 ValueType = -0x03
	ValueTypeF64 ValueType = -0x04

	// ValueTypeT is a sentinel "top"/polymorphic type used by the code
	// validator's stack when an operand's type has not been constrained
	// yet (e.g. just after `unreachable`).
	ValueTypeT ValueType = 0x00
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeT:
		return "<poly>"
	default:
		return fmt.Sprintf("<invalid value type 0x%x>", uint8(t))
	}
}

func (t *ValueType) UnmarshalWASM(r io.Reader) error {
	v, err := leb128.ReadVarint32(r)
	if err != nil {
		return err
	}
	vt := ValueType(v)
	switch vt {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		*t = vt
		return nil
	default:
		return ValidationError(fmt.Sprintf("invalid value type 0x%x", v))
	}
}

func (t ValueType) MarshalWASM(w io.Writer) error {
	_, err := leb128.WriteVarint32(w, int32(t))
	return err
}

// ElemType is the element kind of a table. MVP has exactly one.
type ElemType int8

const ElemTypeAnyFunc ElemType = -0x10

func (t *ElemType) UnmarshalWASM(r io.Reader) error {
	v, err := leb128.ReadVarint32(r)
	if err != nil {
		return err
	}
	if ElemType(v) != ElemTypeAnyFunc {
		return ValidationError(fmt.Sprintf("invalid element type 0x%x", v))
	}
	*t = ElemType(v)
	return nil
}

func (t ElemType) MarshalWASM(w io.Writer) error {
	_, err := leb128.WriteVarint32(w, int32(t))
	return err
}

// External identifies the kind of an import or export entry.
type External uint8

const (
	ExternalFunction External = 0
	ExternalTable    External = 1
	ExternalMemory   External = 2
	ExternalGlobal   External = 3
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return "unknown"
	}
}

func (e *External) UnmarshalWASM(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	if b[0] > byte(ExternalGlobal) {
		return InvalidExternalError(b[0])
	}
	*e = External(b[0])
	return nil
}

func (e External) MarshalWASM(w io.Writer) error {
	_, err := w.Write([]byte{byte(e)})
	return err
}

// ResizableLimits is the (initial, maximum?) pair that bounds a table or
// memory; Flags bit 0 indicates Maximum is present.
type ResizableLimits struct {
	Flags   uint8
	Initial uint32
	Maximum uint32
}

// HasMax reports whether a maximum was declared.
func (l ResizableLimits) HasMax() bool {
	return l.Flags&0x1 != 0
}

func (l *ResizableLimits) UnmarshalWASM(r io.Reader) error {
	flags, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	l.Flags = uint8(flags)
	if l.Initial, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if l.HasMax() {
		if l.Maximum, err = leb128.ReadVarUint32(r); err != nil {
			return err
		}
		if l.Maximum < l.Initial {
			return ValidationError("limits: maximum is less than initial")
		}
	}
	return nil
}

func (l ResizableLimits) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, uint32(l.Flags&0x1)); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, l.Initial); err != nil {
		return err
	}
	if l.HasMax() {
		if _, err := leb128.WriteVarUint32(w, l.Maximum); err != nil {
			return err
		}
	}
	return nil
}

// Table describes a table's element kind and size limits, measured in
// elements.
type Table struct {
	ElementType ElemType
	Limits      ResizableLimits
}

func (t *Table) UnmarshalWASM(r io.Reader) error {
	if err := t.ElementType.UnmarshalWASM(r); err != nil {
		return err
	}
	return t.Limits.UnmarshalWASM(r)
}

func (t Table) MarshalWASM(w io.Writer) error {
	if err := t.ElementType.MarshalWASM(w); err != nil {
		return err
	}
	return t.Limits.MarshalWASM(w)
}

// Memory describes a linear memory's size limits, measured in 64KiB pages.
type Memory struct {
	Limits ResizableLimits
}

func (m *Memory) UnmarshalWASM(r io.Reader) error {
	return m.Limits.UnmarshalWASM(r)
}

func (m Memory) MarshalWASM(w io.Writer) error {
	return m.Limits.MarshalWASM(w)
}

// GlobalVar is the type of a global variable: its value type and whether
// it may be assigned after initialization.
type GlobalVar struct {
	Type    ValueType
	Mutable bool
}

func (g *GlobalVar) UnmarshalWASM(r io.Reader) error {
	if err := g.Type.UnmarshalWASM(r); err != nil {
		return err
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	if b[0] > 1 {
		return ValidationError("invalid mutability flag")
	}
	g.Mutable = b[0] == 1
	return nil
}

func (g GlobalVar) MarshalWASM(w io.Writer) error {
	if err := g.Type.MarshalWASM(w); err != nil {
		return err
	}
	m := byte(0)
	if g.Mutable {
		m = 1
	}
	_, err := w.Write([]byte{m})
	return err
}

// FunctionSig is a function type: an ordered parameter list and an
// ordered result list (length 0 or 1 in MVP).
type FunctionSig struct {
	Form        byte
	ParamTypes  []ValueType
	ReturnTypes []ValueType
}

// Equals reports whether two signatures are structurally identical.
func (f FunctionSig) Equals(o FunctionSig) bool {
	if len(f.ParamTypes) != len(o.ParamTypes) || len(f.ReturnTypes) != len(o.ReturnTypes) {
		return false
	}
	for i, t := range f.ParamTypes {
		if o.ParamTypes[i] != t {
			return false
		}
	}
	for i, t := range f.ReturnTypes {
		if o.ReturnTypes[i] != t {
			return false
		}
	}
	return true
}

const functionSigForm = 0x60

func (f *FunctionSig) UnmarshalWASM(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	if b[0] != functionSigForm {
		return ValidationError(fmt.Sprintf("invalid function type form 0x%x", b[0]))
	}
	f.Form = b[0]

	paramCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	f.ParamTypes = make([]ValueType, paramCount)
	for i := range f.ParamTypes {
		if err := f.ParamTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}

	retCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	f.ReturnTypes = make([]ValueType, retCount)
	for i := range f.ReturnTypes {
		if err := f.ReturnTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}
	return nil
}

func (f FunctionSig) MarshalWASM(w io.Writer) error {
	if _, err := w.Write([]byte{functionSigForm}); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(f.ParamTypes))); err != nil {
		return err
	}
	for _, t := range f.ParamTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(f.ReturnTypes))); err != nil {
		return err
	}
	for _, t := range f.ReturnTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	return nil
}

// ValidationError reports a structural defect in a decoded or assembled
// module: a type mismatch, an out-of-range index, or a limits violation.
type ValidationError string

func (e ValidationError) Error() string { return "wasm: validation: " + string(e) }

// ErrEmptyInitExpr is returned when an initializer expression's byte
// stream contains no operator before its terminating `end`.
var ErrEmptyInitExpr = ValidationError("empty initializer expression")

// InvalidInitExprOpError reports an opcode that is not a legal
// initializer-expression operator.
type InvalidInitExprOpError byte

func (e InvalidInitExprOpError) Error() string {
	return fmt.Sprintf("wasm: invalid initializer expression opcode 0x%x", byte(e))
}

const (
	opEnd       = 0x0b
	opGlobalGet = 0x23
	opI32Const  = 0x41
	opI64Const  = 0x42
	opF32Const  = 0x43
	opF64Const  = 0x44
)

// readInitExpr copies the bytes of a single initializer expression,
// including its terminating `end` opcode, without evaluating them. The
// walk must be opcode-aware: an `end` byte inside a const's LEB128
// immediate does not terminate the expression.
func readInitExpr(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	tee := io.TeeReader(r, &buf)
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(tee, b); err != nil {
			return nil, err
		}
		switch b[0] {
		case opEnd:
			return buf.Bytes(), nil
		case opI32Const:
			if _, err := leb128.ReadVarint32(tee); err != nil {
				return nil, err
			}
		case opI64Const:
			if _, err := leb128.ReadVarint64(tee); err != nil {
				return nil, err
			}
		case opF32Const:
			if _, err := io.CopyN(io.Discard, tee, 4); err != nil {
				return nil, err
			}
		case opF64Const:
			if _, err := io.CopyN(io.Discard, tee, 8); err != nil {
				return nil, err
			}
		case opGlobalGet:
			if _, err := leb128.ReadVarUint32(tee); err != nil {
				return nil, err
			}
		default:
			return nil, InvalidInitExprOpError(b[0])
		}
	}
}

func readBytes(r io.Reader, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readBytesUint(r io.Reader) ([]byte, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	return readBytes(r, n)
}

func writeBytesUint(w io.Writer, b []byte) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readUTF8StringUint(r io.Reader) (string, error) {
	b, err := readBytesUint(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeStringUint(w io.Writer, s string) error {
	return writeBytesUint(w, []byte(s))
}
