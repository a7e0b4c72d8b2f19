package exec_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassembla/wasmcore/exec"
	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
)

func expr(instrs ...code.Instruction) []byte {
	var buf bytes.Buffer
	if err := code.Encode(&buf, instrs); err != nil {
		panic(fmt.Errorf("encoding expression: %w", err))
	}
	return buf.Bytes()
}

func instantiate(t *testing.T, mod *wasm.Module) *exec.Instance {
	inst, err := exec.Instantiate(mod, nil, exec.ExecutionPolicy{})
	require.NoError(t, err)
	return inst
}

// TestAddWraparound mirrors the "add" scenario: i32 addition wraps
// silently on overflow rather than trapping.
func TestAddWraparound(t *testing.T) {
	mod := &wasm.Module{
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "add", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(code.LocalGet(0), code.LocalGet(1), code.I32Add(), code.End()),
			}},
		},
	}

	inst := instantiate(t, mod)
	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()

	results, err := inst.Invoke(&thread, "add", int32(2), int32(3))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(5)}, results)

	results, err = inst.Invoke(&thread, "add", int32(2147483647), int32(1))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(-2147483648)}, results)
}

// TestDivideByZeroTraps mirrors the "divide-trap" scenario: dividing by
// zero surfaces as an error from Invoke, not a panic.
func TestDivideByZeroTraps(t *testing.T) {
	mod := &wasm.Module{
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "div_s", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{
				Code: expr(code.LocalGet(0), code.LocalGet(1), code.I32DivS(), code.End()),
			}},
		},
	}

	inst := instantiate(t, mod)
	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()

	results, err := inst.Invoke(&thread, "div_s", int32(1), int32(0))
	require.Error(t, err)
	assert.Nil(t, results)

	trap, ok := err.(exec.Trap)
	require.True(t, ok)
	assert.Equal(t, exec.TrapIntegerDivideByZero, trap)
}

// TestFactorialRecursive mirrors the "fac" scenario: a recursive function
// using a folded if/then/else exercises call and control-flow together.
func TestFactorialRecursive(t *testing.T) {
	sig := wasm.FunctionSig{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	facBody := expr(
		code.LocalGet(0), code.I32Eqz(),
		code.If(code.BlockTypeI32),
		code.I32Const(1),
		code.Else(),
		code.LocalGet(0),
		code.LocalGet(0), code.I32Const(1), code.I32Sub(), code.Call(0),
		code.I32Mul(),
		code.End(),
		code.End(),
	)

	mod := &wasm.Module{
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{{FieldStr: "fac", Kind: wasm.ExternalFunction, Index: 0}},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: facBody}},
		},
	}

	inst := instantiate(t, mod)
	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()

	results, err := inst.Invoke(&thread, "fac", int32(0))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(1)}, results)

	results, err = inst.Invoke(&thread, "fac", int32(5))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(120)}, results)
}
