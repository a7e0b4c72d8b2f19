package exec

import (
	"errors"
	"reflect"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
	"github.com/sassembla/wasmcore/wasm/validate"
)

// ErrInvalidMemoryIndex indicates that a memory export names a memory
// index other than 0, the only index the MVP permits.
var ErrInvalidMemoryIndex = errors.New("wasm: invalid memory index")

// Instance is a single instantiated WASM module: its resolved imports,
// allocated functions, memory, table, and globals, and the exports a
// caller may look up by name.
type Instance struct {
	name string

	types     []wasm.FunctionSig
	functions []instanceFunction
	mem0      *Memory
	table0    *Table
	globals   []Global

	importedFunctions []Function
	importedGlobals   []*Global

	exports map[string]interface{}
}

func (m *Instance) blockType(instr *code.Instruction) (ins []wasm.ValueType, outs []wasm.ValueType) {
	blockType := instr.Immediate & code.BlockTypeMask
	switch blockType {
	case code.BlockTypeEmpty:
		return nil, nil
	case code.BlockTypeI32:
		return nil, []wasm.ValueType{wasm.ValueTypeI32}
	case code.BlockTypeI64:
		return nil, []wasm.ValueType{wasm.ValueTypeI64}
	case code.BlockTypeF32:
		return nil, []wasm.ValueType{wasm.ValueTypeF32}
	case code.BlockTypeF64:
		return nil, []wasm.ValueType{wasm.ValueTypeF64}
	default:
		t := &m.types[int(blockType)]
		return t.ParamTypes, t.ReturnTypes
	}
}

func (m *Instance) blockArity(instr *code.Instruction, isLoop bool) int {
	ins, outs := m.blockType(instr)
	if isLoop {
		return len(ins)
	}
	return len(outs)
}

func (m *Instance) getFunction(index uint32) (Function, bool) {
	if index < uint32(len(m.importedFunctions)) {
		return m.importedFunctions[int(index)], true
	}
	index -= uint32(len(m.importedFunctions))
	if index >= uint32(len(m.functions)) {
		return nil, false
	}
	return &m.functions[int(index)], true
}

func (m *Instance) getGlobal(index uint32) (*Global, bool) {
	if index < uint32(len(m.importedGlobals)) {
		return m.importedGlobals[int(index)], true
	}
	index -= uint32(len(m.importedGlobals))
	if index >= uint32(len(m.globals)) {
		return nil, false
	}
	return &m.globals[int(index)], true
}

// Name returns the name given to Instantiate.
func (m *Instance) Name() string {
	return m.name
}

func (m *Instance) newExportError(name string, importKind wasm.External, export interface{}) error {
	if export == nil {
		return &ExportNotFoundError{ModuleName: m.name, FieldName: name}
	}

	var exportKind wasm.External
	switch export.(type) {
	case *instanceFunction, Function:
		exportKind = wasm.ExternalFunction
	case *Table:
		exportKind = wasm.ExternalTable
	case *Memory:
		exportKind = wasm.ExternalMemory
	case *Global:
		exportKind = wasm.ExternalGlobal
	default:
		panic("unreachable")
	}
	return NewKindMismatchError(m.name, name, importKind, exportKind)
}

// GetFunction returns the exported function with the given name.
func (m *Instance) GetFunction(name string) (Function, error) {
	export := m.exports[name]
	if fn, ok := export.(Function); ok {
		return fn, nil
	}
	return nil, m.newExportError(name, wasm.ExternalFunction, export)
}

// GetTable returns the exported table with the given name.
func (m *Instance) GetTable(name string) (*Table, error) {
	export := m.exports[name]
	if table, ok := export.(*Table); ok {
		return table, nil
	}
	return nil, m.newExportError(name, wasm.ExternalTable, export)
}

// GetMemory returns the exported memory with the given name.
func (m *Instance) GetMemory(name string) (*Memory, error) {
	export := m.exports[name]
	if mem, ok := export.(*Memory); ok {
		return mem, nil
	}
	return nil, m.newExportError(name, wasm.ExternalMemory, export)
}

// GetGlobal returns the exported global with the given name.
func (m *Instance) GetGlobal(name string) (*Global, error) {
	export := m.exports[name]
	if global, ok := export.(*Global); ok {
		return global, nil
	}
	return nil, m.newExportError(name, wasm.ExternalGlobal, export)
}

// Invoke calls the exported function named name with args and returns its
// results as an explicit outcome: internally the interpreter unwinds a
// trap with a Go panic, but Invoke recovers it at this boundary so a
// caller never needs its own recover to observe a trap.
func (m *Instance) Invoke(thread *Thread, name string, args ...interface{}) (results []interface{}, err error) {
	fn, err := m.GetFunction(name)
	if err != nil {
		return nil, err
	}

	defer func() {
		if x := recover(); x != nil {
			if trap, ok := x.(Trap); ok {
				results, err = nil, trap
				return
			}
			panic(x)
		}
	}()

	return fn.Call(thread, args...), nil
}

// Instantiate allocates and links mod: it allocates globals, functions
// and the module's own memory/table, resolves every import through
// importer, initializes globals, checks and then writes the element/data
// segments, and finally runs the start function if the module declares
// one. The returned Instance is ready to call.
func Instantiate(mod *wasm.Module, importer Importer, policy ExecutionPolicy) (*Instance, error) {
	if err := validate.ValidateModule(mod, true); err != nil {
		return nil, err
	}

	m := &Instance{name: "", exports: map[string]interface{}{}}

	if mod.Types != nil {
		m.types = mod.Types.Entries
	}

	var importEntries []wasm.ImportEntry
	if mod.Import != nil {
		importEntries = mod.Import.Entries

		funcImports, globalImports := 0, 0
		for _, e := range importEntries {
			switch e.Type.(type) {
			case wasm.FuncImport:
				funcImports++
			case wasm.GlobalVarImport:
				globalImports++
			}
		}
		m.importedFunctions = make([]Function, funcImports)
		m.importedGlobals = make([]*Global, globalImports)
	}

	if mod.Global != nil {
		m.globals = allocateGlobals(mod.Global.Globals)
	}

	functions, err := allocateFunctions(m, mod)
	if err != nil {
		return nil, err
	}
	m.functions = functions

	if mod.Memory != nil && len(mod.Memory.Entries) != 0 {
		memDef := mod.Memory.Entries[0]
		min, max := memDef.Limits.Initial, memDef.Limits.Maximum
		if memDef.Limits.Flags == 0 {
			max = policy.maxMemoryPages()
		} else if max > policy.maxMemoryPages() {
			max = policy.maxMemoryPages()
		}
		mem := NewMemory(min, max)
		m.mem0 = &mem
	}

	if mod.Table != nil && len(mod.Table.Entries) != 0 {
		tableDef := mod.Table.Entries[0]
		min, max := tableDef.Limits.Initial, tableDef.Limits.Maximum
		if tableDef.Limits.Flags == 0 {
			max = ^uint32(0)
		}
		table := NewTable(min, max)
		m.table0 = &table
	}

	// Resolve imports.
	funcidx, globalidx := 0, 0
	for _, entry := range importEntries {
		switch type_ := entry.Type.(type) {
		case wasm.FuncImport:
			if type_.Type >= uint32(len(m.types)) {
				return nil, ErrInvalidTypeIndex
			}
			sig := m.types[int(type_.Type)]
			f, err := importer.ImportFunction(entry.ModuleName, entry.FieldName, sig)
			if err != nil {
				return nil, err
			}
			if !f.GetSignature().Equals(sig) {
				return nil, newImportError(entry.ModuleName, entry.FieldName, "function signature mismatch")
			}
			m.importedFunctions[funcidx] = f
			funcidx++
		case wasm.MemoryImport:
			if m.mem0 != nil {
				return nil, newImportError(entry.ModuleName, entry.FieldName, "module already defines memory 0")
			}
			mem, err := importer.ImportMemory(entry.ModuleName, entry.FieldName, type_.Type)
			if err != nil {
				return nil, err
			}
			min, max := mem.Limits()
			if !limitsMatch(min, max, type_.Type.Limits) {
				return nil, newImportError(entry.ModuleName, entry.FieldName, "memory limits do not satisfy import")
			}
			m.mem0 = mem
		case wasm.TableImport:
			if m.table0 != nil {
				return nil, newImportError(entry.ModuleName, entry.FieldName, "module already defines table 0")
			}
			table, err := importer.ImportTable(entry.ModuleName, entry.FieldName, type_.Type)
			if err != nil {
				return nil, err
			}
			min, max := table.Limits()
			if !limitsMatch(min, max, type_.Type.Limits) {
				return nil, newImportError(entry.ModuleName, entry.FieldName, "table limits do not satisfy import")
			}
			m.table0 = table
		case wasm.GlobalVarImport:
			g, err := importer.ImportGlobal(entry.ModuleName, entry.FieldName, type_.Type)
			if err != nil {
				return nil, err
			}
			if g.Type() != type_.Type {
				return nil, newImportError(entry.ModuleName, entry.FieldName, "global type mismatch")
			}
			m.importedGlobals[globalidx] = g
			globalidx++
		default:
			panic("unreachable")
		}
	}

	// Initialize globals.
	if mod.Global != nil {
		if err := initializeGlobals(m, mod.Global.Globals); err != nil {
			return nil, err
		}
	}

	// Define exports.
	if mod.Export != nil {
		for _, export := range mod.Export.Entries {
			switch export.Kind {
			case wasm.ExternalFunction:
				m.exports[export.FieldStr], _ = m.getFunction(export.Index)
			case wasm.ExternalMemory:
				if export.Index != 0 {
					return nil, ErrInvalidMemoryIndex
				}
				m.exports[export.FieldStr] = m.mem0
			case wasm.ExternalTable:
				if export.Index != 0 {
					return nil, InvalidTableIndexError(export.Index)
				}
				m.exports[export.FieldStr] = m.table0
			case wasm.ExternalGlobal:
				m.exports[export.FieldStr], _ = m.getGlobal(export.Index)
			}
		}
	}

	// Check and evaluate element and data segments.
	var elements []wasm.ElementSegment
	if mod.Elements != nil {
		elements = mod.Elements.Entries
	}
	elementOffsets, err := checkElementSegments(m, elements)
	if err != nil {
		return nil, err
	}

	var data []wasm.DataSegment
	if mod.Data != nil {
		data = mod.Data.Entries
	}
	dataOffsets, err := checkDataSegments(m, data)
	if err != nil {
		return nil, err
	}

	evaluateElementSegments(m, elements, elementOffsets)
	evaluateDataSegments(m, data, dataOffsets)

	// Run the start function, if any.
	if mod.Start != nil {
		thread := NewThread(policy.maxCallStackDepth())
		fn, _ := m.getFunction(mod.Start.Index)
		fn.UncheckedCall(&thread, nil, nil)
	}

	return m, nil
}

func allocateGlobals(entries []wasm.GlobalEntry) []Global {
	// A zero bit pattern is the zero value for all four types, so
	// allocation never needs to dispatch on the declared type.
	globals := make([]Global, len(entries))
	for i, entry := range entries {
		globals[i] = Global{typ: entry.Type.Type, immutable: !entry.Type.Mutable}
	}
	return globals
}

func allocateFunctions(m *Instance, mod *wasm.Module) ([]instanceFunction, error) {
	if mod.Code == nil {
		return nil, nil
	}

	functions := make([]instanceFunction, len(mod.Code.Bodies))
	for i, body := range mod.Code.Bodies {
		f := &functions[i]
		f.module = m
		f.index = uint32(len(m.importedFunctions) + i)
		f.bytecode = body.Code
		f.localEntries = body.Locals
		f.kind = frameKindBytecode

		typeIndex := mod.Function.Types[i]
		f.signature = mod.Types.Entries[typeIndex]
	}
	return functions, nil
}

func initializeGlobals(m *Instance, entries []wasm.GlobalEntry) error {
	for i, entry := range entries {
		value, err := EvalConstantExpression(m.importedGlobals, entry.Init)
		if err != nil {
			return err
		}
		m.globals[i].value = boxValue(value)
	}
	return nil
}

func checkElementSegments(m *Instance, elements []wasm.ElementSegment) ([]int, error) {
	offsets := make([]int, len(elements))
	for i, element := range elements {
		offsetV, err := EvalConstantExpression(m.importedGlobals, element.Offset)
		if err != nil {
			return nil, err
		}
		offset, ok := offsetV.(int32)
		if !ok {
			return nil, InvalidValueTypeInitExprError{Wanted: reflect.Int32, Got: reflect.ValueOf(offsetV).Kind()}
		}

		if element.Index != 0 || m.table0 == nil {
			return nil, InvalidTableIndexError(element.Index)
		}

		entries := m.table0.Entries()
		if offset < 0 || offset > int32(len(entries)) || len(element.Elems) > len(entries[int(offset):]) {
			return nil, ErrElementSegmentDoesNotFit
		}
		offsets[i] = int(offset)
	}
	return offsets, nil
}

func evaluateElementSegments(m *Instance, elements []wasm.ElementSegment, offsets []int) {
	for i, element := range elements {
		offset, entries := offsets[i], m.table0.Entries()
		for j, funcIndex := range element.Elems {
			entries[offset+j], _ = m.getFunction(funcIndex)
		}
	}
}

func checkDataSegments(m *Instance, data []wasm.DataSegment) ([]int, error) {
	offsets := make([]int, len(data))
	for i, entry := range data {
		offsetV, err := EvalConstantExpression(m.importedGlobals, entry.Offset)
		if err != nil {
			return nil, err
		}
		offset, ok := offsetV.(int32)
		if !ok {
			return nil, InvalidValueTypeInitExprError{Wanted: reflect.Int32, Got: reflect.ValueOf(offsetV).Kind()}
		}

		if entry.Index != 0 || m.mem0 == nil {
			return nil, InvalidTableIndexError(entry.Index)
		}

		bytes := m.mem0.Bytes()
		if offset < 0 || offset > int32(len(bytes)) || len(bytes[int(offset):]) < len(entry.Data) {
			return nil, ErrDataSegmentDoesNotFit
		}
		offsets[i] = int(offset)
	}
	return offsets, nil
}

func evaluateDataSegments(m *Instance, data []wasm.DataSegment, offsets []int) {
	for i, entry := range data {
		offset, bytes := offsets[i], m.mem0.Bytes()
		copy(bytes[offset:], entry.Data)
	}
}
