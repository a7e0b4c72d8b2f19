package exec

import (
	"fmt"
	"math"

	"github.com/sassembla/wasmcore/wasm"
)

// HostFunction adapts a native Go closure to the Function interface so an
// Importer can hand it back for a function import. Unlike instanceFunction,
// a HostFunction has no bytecode: UncheckedCall marshals the raw uint64
// calling convention to/from boxed values and invokes Go directly.
type HostFunction struct {
	Signature wasm.FunctionSig
	Func      func(args []interface{}) []interface{}
}

// NewHostFunction builds a HostFunction with the given signature, calling
// fn on invocation. fn receives boxed arguments (int32/int64/float32/
// float64) in declared order and must return boxed results in declared
// order.
func NewHostFunction(sig wasm.FunctionSig, fn func(args []interface{}) []interface{}) *HostFunction {
	return &HostFunction{Signature: sig, Func: fn}
}

func (f *HostFunction) GetSignature() wasm.FunctionSig {
	return f.Signature
}

func (f *HostFunction) Call(thread *Thread, args ...interface{}) []interface{} {
	if len(args) != len(f.Signature.ParamTypes) {
		panic(fmt.Errorf("expected %v args; got %v", len(f.Signature.ParamTypes), len(args)))
	}
	thread.Enter()
	defer thread.Leave()
	results := f.Func(args)
	if len(results) != len(f.Signature.ReturnTypes) {
		panic(fmt.Errorf("host function returned %v results; expected %v", len(results), len(f.Signature.ReturnTypes)))
	}
	return results
}

func (f *HostFunction) UncheckedCall(thread *Thread, args, returns []uint64) {
	boxedArgs := make([]interface{}, len(args))
	for i, t := range f.Signature.ParamTypes {
		boxedArgs[i] = unboxValue(t, args[i])
	}

	thread.Enter()
	results := f.Func(boxedArgs)
	thread.Leave()

	for i, v := range results {
		returns[i] = boxValue(v)
	}
}

func unboxValue(t wasm.ValueType, raw uint64) interface{} {
	switch t {
	case wasm.ValueTypeI32:
		return int32(raw)
	case wasm.ValueTypeI64:
		return int64(raw)
	case wasm.ValueTypeF32:
		return math.Float32frombits(uint32(raw))
	case wasm.ValueTypeF64:
		return math.Float64frombits(raw)
	default:
		panic("unreachable")
	}
}

func boxValue(v interface{}) uint64 {
	switch v := v.(type) {
	case int32:
		return uint64(v)
	case int64:
		return uint64(v)
	case float32:
		return uint64(math.Float32bits(v))
	case float64:
		return math.Float64bits(v)
	default:
		panic(fmt.Errorf("cannot box result of type %T", v))
	}
}
