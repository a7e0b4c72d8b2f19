package exec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassembla/wasmcore/exec"
	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
)

func invokeTrap(t *testing.T, inst *exec.Instance, name string, args ...interface{}) exec.Trap {
	t.Helper()

	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()

	results, err := inst.Invoke(&thread, name, args...)
	require.Error(t, err)
	require.Nil(t, results)

	trap, ok := err.(exec.Trap)
	require.True(t, ok, "expected a Trap, got %T: %v", err, err)
	return trap
}

func invoke1(t *testing.T, inst *exec.Instance, name string, args ...interface{}) interface{} {
	t.Helper()

	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()

	results, err := inst.Invoke(&thread, name, args...)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

// memoryModule has one page of memory capped at one page, a data segment,
// and accessors that exercise every memory boundary case in one place.
func memoryModule() *wasm.Module {
	sigI32I32 := wasm.FunctionSig{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}
	sigI32 := wasm.FunctionSig{Form: 0x60, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	return &wasm.Module{
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sigI32I32, sigI32}},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 0, 0, 1}},
		Memory: &wasm.SectionMemories{Entries: []wasm.Memory{
			{Limits: wasm.ResizableLimits{Flags: 1, Initial: 1, Maximum: 1}},
		}},
		Export: &wasm.SectionExports{Entries: []wasm.ExportEntry{
			{FieldStr: "load8", Kind: wasm.ExternalFunction, Index: 0},
			{FieldStr: "load32", Kind: wasm.ExternalFunction, Index: 1},
			{FieldStr: "grow", Kind: wasm.ExternalFunction, Index: 2},
			{FieldStr: "size", Kind: wasm.ExternalFunction, Index: 3},
		}},
		Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{
			{Code: expr(code.LocalGet(0), code.I32Load8U(0, 0), code.End())},
			{Code: expr(code.LocalGet(0), code.I32Load(0, 0), code.End())},
			{Code: expr(code.LocalGet(0), code.MemoryGrow(), code.End())},
			{Code: expr(code.MemorySize(), code.End())},
		}},
		Data: &wasm.SectionData{Entries: []wasm.DataSegment{
			{Index: 0, Offset: expr(code.I32Const(0), code.End()), Data: []byte("abc")},
		}},
	}
}

func TestMemoryDataSegmentInitialized(t *testing.T) {
	inst := instantiate(t, memoryModule())

	assert.Equal(t, int32('a'), invoke1(t, inst, "load8", int32(0)))
	assert.Equal(t, int32('c'), invoke1(t, inst, "load8", int32(2)))
	assert.Equal(t, int32(0), invoke1(t, inst, "load8", int32(3)))
}

func TestMemoryAccessBounds(t *testing.T) {
	inst := instantiate(t, memoryModule())

	// The last byte of the page is accessible; one past it traps.
	assert.Equal(t, int32(0), invoke1(t, inst, "load8", int32(65535)))
	assert.Equal(t, exec.TrapOutOfBoundsMemoryAccess, invokeTrap(t, inst, "load8", int32(65536)))

	// A 4-byte access must fit entirely within the page.
	assert.Equal(t, int32(0), invoke1(t, inst, "load32", int32(65532)))
	assert.Equal(t, exec.TrapOutOfBoundsMemoryAccess, invokeTrap(t, inst, "load32", int32(65533)))

	// Negative addresses are out of bounds, not huge unsigned offsets.
	assert.Equal(t, exec.TrapOutOfBoundsMemoryAccess, invokeTrap(t, inst, "load8", int32(-1)))
}

func TestMemoryGrowBeyondMaximum(t *testing.T) {
	inst := instantiate(t, memoryModule())

	assert.Equal(t, int32(-1), invoke1(t, inst, "grow", int32(1)))
	assert.Equal(t, int32(1), invoke1(t, inst, "size"))

	// Growing by zero pages succeeds and reports the current size.
	assert.Equal(t, int32(1), invoke1(t, inst, "grow", int32(0)))
}

func TestBrTableDefaultTarget(t *testing.T) {
	sig := wasm.FunctionSig{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	body := expr(
		code.Block(), code.Block(), code.Block(),
		code.LocalGet(0),
		code.BrTable(0, 1, 2),
		code.End(),
		code.I32Const(10), code.Return(),
		code.End(),
		code.I32Const(11), code.Return(),
		code.End(),
		code.I32Const(12), code.Return(),
		code.End(),
	)

	mod := &wasm.Module{
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{Entries: []wasm.ExportEntry{
			{FieldStr: "select_const", Kind: wasm.ExternalFunction, Index: 0},
		}},
		Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{{Code: body}}},
	}

	inst := instantiate(t, mod)

	assert.Equal(t, int32(10), invoke1(t, inst, "select_const", int32(0)))
	assert.Equal(t, int32(11), invoke1(t, inst, "select_const", int32(1)))
	// Any index at or past the table length lands on the default target.
	assert.Equal(t, int32(12), invoke1(t, inst, "select_const", int32(2)))
	assert.Equal(t, int32(12), invoke1(t, inst, "select_const", int32(100)))
	assert.Equal(t, int32(12), invoke1(t, inst, "select_const", int32(-1)))
}

func TestCallIndirect(t *testing.T) {
	sigI32 := wasm.FunctionSig{Form: 0x60, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}
	sigI32I32 := wasm.FunctionSig{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	mod := &wasm.Module{
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sigI32, sigI32I32}},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 0, 1}},
		Table: &wasm.SectionTables{Entries: []wasm.Table{
			{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Flags: 1, Initial: 4, Maximum: 4}},
		}},
		Export: &wasm.SectionExports{Entries: []wasm.ExportEntry{
			{FieldStr: "dispatch", Kind: wasm.ExternalFunction, Index: 2},
		}},
		Elements: &wasm.SectionElements{Entries: []wasm.ElementSegment{
			{Index: 0, Offset: expr(code.I32Const(0), code.End()), Elems: []uint32{0, 1, 2}},
		}},
		Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{
			{Code: expr(code.I32Const(10), code.End())},
			{Code: expr(code.I32Const(20), code.End())},
			{Code: expr(code.LocalGet(0), code.CallIndirect(0), code.End())},
		}},
	}

	inst := instantiate(t, mod)

	assert.Equal(t, int32(10), invoke1(t, inst, "dispatch", int32(0)))
	assert.Equal(t, int32(20), invoke1(t, inst, "dispatch", int32(1)))

	// Slot 2 holds a function of the wrong type.
	assert.Equal(t, exec.TrapIndirectCallTypeMismatch, invokeTrap(t, inst, "dispatch", int32(2)))
	// Slot 3 was never written by an element segment.
	assert.Equal(t, exec.TrapUninitializedElement, invokeTrap(t, inst, "dispatch", int32(3)))
	// An index past the table length is undefined.
	assert.Equal(t, exec.TrapUndefinedElement, invokeTrap(t, inst, "dispatch", int32(100)))
}

func TestCallStackExhaustion(t *testing.T) {
	sig := wasm.FunctionSig{Form: 0x60}

	mod := &wasm.Module{
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{Entries: []wasm.ExportEntry{
			{FieldStr: "forever", Kind: wasm.ExternalFunction, Index: 0},
		}},
		Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{
			{Code: expr(code.Call(0), code.End())},
		}},
	}

	inst := instantiate(t, mod)

	thread := exec.NewThread(16)
	defer thread.Close()

	_, err := inst.Invoke(&thread, "forever")
	require.Error(t, err)
	assert.Equal(t, exec.TrapCallStackExhausted, err)
}

func TestUnreachableTraps(t *testing.T) {
	sig := wasm.FunctionSig{Form: 0x60}

	mod := &wasm.Module{
		Types:    &wasm.SectionTypes{Entries: []wasm.FunctionSig{sig}},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{Entries: []wasm.ExportEntry{
			{FieldStr: "boom", Kind: wasm.ExternalFunction, Index: 0},
		}},
		Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{
			{Code: expr(code.Unreachable(), code.End())},
		}},
	}

	inst := instantiate(t, mod)
	assert.Equal(t, exec.TrapUnreachable, invokeTrap(t, inst, "boom"))
}

func TestSpecTestImporter(t *testing.T) {
	sigPrintI32 := wasm.FunctionSig{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}}
	sigGetI32 := wasm.FunctionSig{Form: 0x60, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	mod := &wasm.Module{
		Types: &wasm.SectionTypes{Entries: []wasm.FunctionSig{sigPrintI32, sigGetI32}},
		Import: &wasm.SectionImports{Entries: []wasm.ImportEntry{
			{ModuleName: "spectest", FieldName: "print_i32", Type: wasm.FuncImport{Type: 0}},
			{ModuleName: "spectest", FieldName: "global_i32", Type: wasm.GlobalVarImport{Type: wasm.GlobalVar{Type: wasm.ValueTypeI32}}},
			{ModuleName: "spectest", FieldName: "memory", Type: wasm.MemoryImport{Type: wasm.Memory{Limits: wasm.ResizableLimits{Flags: 1, Initial: 1, Maximum: 2}}}},
			{ModuleName: "spectest", FieldName: "table", Type: wasm.TableImport{Type: wasm.Table{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Flags: 1, Initial: 10, Maximum: 20}}}},
		}},
		Function: &wasm.SectionFunctions{Types: []uint32{1, 0}},
		Export: &wasm.SectionExports{Entries: []wasm.ExportEntry{
			{FieldStr: "get", Kind: wasm.ExternalFunction, Index: 1},
			{FieldStr: "print", Kind: wasm.ExternalFunction, Index: 2},
		}},
		Code: &wasm.SectionCode{Bodies: []wasm.FunctionBody{
			{Code: expr(code.GlobalGet(0), code.End())},
			{Code: expr(code.LocalGet(0), code.Call(0), code.End())},
		}},
	}

	var out bytes.Buffer
	importer := exec.NamespacedImporter{"spectest": &exec.SpecTestImporter{Out: &out}}

	inst, err := exec.Instantiate(mod, importer, exec.ExecutionPolicy{})
	require.NoError(t, err)

	assert.Equal(t, int32(666), invoke1(t, inst, "get"))

	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()
	results, err := inst.Invoke(&thread, "print", int32(42))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "42\n", out.String())
}

func TestHostFunctionRoundTrip(t *testing.T) {
	sig := wasm.FunctionSig{Form: 0x60, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	host := exec.NewHostFunction(sig, func(args []interface{}) []interface{} {
		return []interface{}{args[0].(int32) * args[1].(int32)}
	})

	thread := exec.NewThread(exec.DefaultMaxCallStackDepth)
	defer thread.Close()

	results := host.Call(&thread, int32(6), int32(7))
	require.Len(t, results, 1)
	assert.Equal(t, int32(42), results[0])
}
