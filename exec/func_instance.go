package exec

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
)

// instanceFunction is a function defined by an instantiated module, backed
// by a decoded function body. Its bytecode is decoded into icode lazily, on
// first call, and then cached for the life of the instance.
type instanceFunction struct {
	module       *Instance
	index        uint32
	signature    wasm.FunctionSig
	localEntries []wasm.LocalEntry
	numLocals    int
	metrics      code.Metrics
	kind         frameKind
	bytecode     []byte
	icode        []code.Instruction
}

func (f *instanceFunction) GetSignature() wasm.FunctionSig {
	return f.signature
}

// localTypes expands the body's (count, type) local groups into the
// flat local index space: parameters first, then each group in order.
func (f *instanceFunction) localTypes() []wasm.ValueType {
	locals := append([]wasm.ValueType(nil), f.signature.ParamTypes...)
	for _, entry := range f.localEntries {
		for i := 0; i < int(entry.Count); i++ {
			locals = append(locals, entry.Type)
		}
	}
	return locals
}

// Call adapts interface{} arguments/returns to the raw uint64 calling
// convention, checking each argument against the function's declared
// parameter types.
func (f *instanceFunction) Call(thread *Thread, args ...interface{}) []interface{} {
	if len(args) != len(f.signature.ParamTypes) {
		panic(fmt.Errorf("expected %v args; got %v", len(f.signature.ParamTypes), len(args)))
	}

	rawArgs, rawReturns := make([]uint64, len(args)), make([]uint64, len(f.signature.ReturnTypes))
	for i, v := range args {
		paramType := f.signature.ParamTypes[i]

		switch v := v.(type) {
		case int32:
			if paramType != wasm.ValueTypeI32 {
				panic(fmt.Errorf("cannot assign int32 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = uint64(v)
		case int64:
			if paramType != wasm.ValueTypeI64 {
				panic(fmt.Errorf("cannot assign int64 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = uint64(v)
		case float32:
			if paramType != wasm.ValueTypeF32 {
				panic(fmt.Errorf("cannot assign float32 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = uint64(math.Float32bits(v))
		case float64:
			if paramType != wasm.ValueTypeF64 {
				panic(fmt.Errorf("cannot assign float64 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = math.Float64bits(v)
		default:
			panic(fmt.Errorf("cannot assign %T argument to a parameter of type %v", v, f.signature.ParamTypes[i]))
		}
	}

	f.UncheckedCall(thread, rawArgs, rawReturns)

	returns := make([]interface{}, len(f.signature.ReturnTypes))
	for i, t := range f.signature.ReturnTypes {
		switch t {
		case wasm.ValueTypeI32:
			returns[i] = int32(rawReturns[i])
		case wasm.ValueTypeI64:
			returns[i] = int64(rawReturns[i])
		case wasm.ValueTypeF32:
			returns[i] = math.Float32frombits(uint32(rawReturns[i]))
		case wasm.ValueTypeF64:
			returns[i] = math.Float64frombits(rawReturns[i])
		default:
			panic("unreachable")
		}
	}
	return returns
}

// UncheckedCall runs f on a freshly allocated machine, translating any Go
// runtime error that escapes interpretation into the corresponding Trap.
func (f *instanceFunction) UncheckedCall(thread *Thread, args, returns []uint64) {
	var m machine
	m.init(thread)

	maxStack := len(args)
	if len(returns) > maxStack {
		maxStack = len(returns)
	}

	caller := instanceFunction{
		metrics: code.Metrics{MaxStackDepth: maxStack, MaxNesting: 1},
		kind:    frameKindVirtual,
	}

	frame := m.pushFrame(&caller)

	defer func() {
		if x := recover(); x != nil {
			err, _ := x.(runtime.Error)
			if trap, ok := TranslateRuntimeError(err); ok {
				frame.trap(trap)
			}
			panic(x)
		}
	}()

	frame.pushn(args)
	frame.invokeDirect(f)
	frame.popn(returns)
}
