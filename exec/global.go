package exec

import (
	"math"

	"github.com/sassembla/wasmcore/wasm"
)

// Global is one global cell. Its value lives in the interpreter's raw
// uint64 calling convention; typ records how to interpret the bits.
type Global struct {
	typ       wasm.ValueType
	immutable bool
	value     uint64
}

func NewGlobalI32(immutable bool, value int32) Global {
	return Global{typ: wasm.ValueTypeI32, immutable: immutable, value: uint64(value)}
}

func NewGlobalI64(immutable bool, value int64) Global {
	return Global{typ: wasm.ValueTypeI64, immutable: immutable, value: uint64(value)}
}

func NewGlobalF32(immutable bool, value float32) Global {
	return Global{typ: wasm.ValueTypeF32, immutable: immutable, value: uint64(math.Float32bits(value))}
}

func NewGlobalF64(immutable bool, value float64) Global {
	return Global{typ: wasm.ValueTypeF64, immutable: immutable, value: math.Float64bits(value)}
}

// Type returns the global's declared type and mutability.
func (g *Global) Type() wasm.GlobalVar {
	return wasm.GlobalVar{Type: g.typ, Mutable: !g.immutable}
}

// Get returns the global's raw bits.
func (g *Global) Get() uint64 {
	return g.value
}

// Set stores raw bits. The interpreter only emits a Set against
// globals the validator accepted as mutable.
func (g *Global) Set(v uint64) {
	g.value = v
}

// Value returns the global's value boxed per its declared type.
func (g *Global) Value() interface{} {
	return unboxValue(g.typ, g.value)
}
