package exec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
	"github.com/sassembla/wasmcore/wasm/leb128"
)

// InvalidGlobalIndexError reports a global.get in a constant expression
// whose operand does not name an already-imported global.
type InvalidGlobalIndexError uint32

func (e InvalidGlobalIndexError) Error() string {
	return fmt.Sprintf("wasm: invalid index into global index space: %#x", uint32(e))
}

// InvalidValueTypeInitExprError reports a constant expression whose
// result type doesn't match what the consumer (a global's declared type,
// or the i32 offset a data/element segment requires) expects.
type InvalidValueTypeInitExprError struct {
	Wanted reflect.Kind
	Got    reflect.Kind
}

func (e InvalidValueTypeInitExprError) Error() string {
	return fmt.Sprintf("wasm: initializer expression wanted a %v result, got %v", e.Wanted, e.Got)
}

// constEvaluator walks an encoded initializer expression one instruction
// at a time. Per the module's invariants an initializer is always a
// single constant-producing operator or a global.get of an imported
// immutable global, so the evaluator never needs an operand stack deeper
// than one value — it just remembers the most recent (value, type) pair
// and returns it at End.
type constEvaluator struct {
	imports []*Global
	rest    []byte

	has   bool
	value uint64
	typ   wasm.ValueType
}

// EvalConstantExpression evaluates an encoded constant expression — an
// i32/i64/f32/f64 const, or a global.get referencing an entry of
// imports — and returns its boxed result.
func EvalConstantExpression(imports []*Global, expr []byte) (interface{}, error) {
	if len(expr) == 0 {
		return nil, wasm.ErrEmptyInitExpr
	}

	e := constEvaluator{imports: imports, rest: expr}
	for {
		if len(e.rest) == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		op := e.rest[0]
		e.rest = e.rest[1:]

		if op == code.OpEnd {
			return e.result()
		}
		if err := e.step(op); err != nil {
			return nil, err
		}
	}
}

func (e *constEvaluator) step(op byte) error {
	switch op {
	case code.OpI32Const:
		v, sz, err := leb128.GetVarint32(e.rest)
		if err != nil {
			return err
		}
		e.rest = e.rest[sz:]
		e.set(uint64(v), wasm.ValueTypeI32)
	case code.OpI64Const:
		v, sz, err := leb128.GetVarint64(e.rest)
		if err != nil {
			return err
		}
		e.rest = e.rest[sz:]
		e.set(uint64(v), wasm.ValueTypeI64)
	case code.OpF32Const:
		if len(e.rest) < 4 {
			return io.ErrUnexpectedEOF
		}
		e.set(uint64(binary.LittleEndian.Uint32(e.rest)), wasm.ValueTypeF32)
		e.rest = e.rest[4:]
	case code.OpF64Const:
		if len(e.rest) < 8 {
			return io.ErrUnexpectedEOF
		}
		e.set(binary.LittleEndian.Uint64(e.rest), wasm.ValueTypeF64)
		e.rest = e.rest[8:]
	case code.OpGlobalGet:
		index, sz, err := leb128.GetVarUint32(e.rest)
		if err != nil {
			return err
		}
		e.rest = e.rest[sz:]
		if index >= uint32(len(e.imports)) {
			return InvalidGlobalIndexError(index)
		}
		g := e.imports[int(index)]
		e.set(g.value, g.typ)
	default:
		return wasm.InvalidInitExprOpError(op)
	}
	return nil
}

func (e *constEvaluator) set(bits uint64, typ wasm.ValueType) {
	e.has, e.value, e.typ = true, bits, typ
}

func (e *constEvaluator) result() (interface{}, error) {
	if !e.has {
		return nil, nil
	}
	switch e.typ {
	case wasm.ValueTypeI32:
		return int32(e.value), nil
	case wasm.ValueTypeI64:
		return int64(e.value), nil
	case wasm.ValueTypeF32:
		return math.Float32frombits(uint32(e.value)), nil
	case wasm.ValueTypeF64:
		return math.Float64frombits(e.value), nil
	default:
		panic("unreachable")
	}
}
