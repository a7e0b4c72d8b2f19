package code

import "github.com/sassembla/wasmcore/wasm"

// ModuleScope resolves a wasm.Module's concatenated index spaces
// (imports first, then local definitions) as a Scope, for consumers
// that decode bodies straight off the data model: the validator and
// the text writer both use it rather than maintaining their own copy
// of the index-space bookkeeping.
type ModuleScope struct {
	m *wasm.Module

	importedFunctions []uint32
	importedGlobals   []wasm.GlobalVar
	tables            int
	memories          int

	locals []wasm.ValueType
}

func NewModuleScope(m *wasm.Module) *ModuleScope {
	s := &ModuleScope{m: m}

	if m.Import != nil {
		for _, entry := range m.Import.Entries {
			switch t := entry.Type.(type) {
			case wasm.FuncImport:
				s.importedFunctions = append(s.importedFunctions, t.Type)
			case wasm.GlobalVarImport:
				s.importedGlobals = append(s.importedGlobals, t.Type)
			case wasm.TableImport:
				s.tables++
			case wasm.MemoryImport:
				s.memories++
			}
		}
	}
	if m.Table != nil {
		s.tables += len(m.Table.Entries)
	}
	if m.Memory != nil {
		s.memories += len(m.Memory.Entries)
	}
	return s
}

// ImportedFunctionCount returns how many functions the module imports;
// local function index i lives at index space slot
// ImportedFunctionCount() + i.
func (s *ModuleScope) ImportedFunctionCount() int {
	return len(s.importedFunctions)
}

// ImportedGlobals returns the module's imported global types, in import
// order — the only globals an initializer expression may reference.
func (s *ModuleScope) ImportedGlobals() []wasm.GlobalVar {
	return s.importedGlobals
}

// SetLocals installs one function body's local index space (parameters
// then expanded local groups) ahead of decoding that body.
func (s *ModuleScope) SetLocals(sig wasm.FunctionSig, body wasm.FunctionBody) {
	s.locals = append(s.locals[:0], sig.ParamTypes...)
	for _, l := range body.Locals {
		for i := uint32(0); i < l.Count; i++ {
			s.locals = append(s.locals, l.Type)
		}
	}
}

func (s *ModuleScope) GetLocalType(localidx uint32) (wasm.ValueType, bool) {
	if localidx >= uint32(len(s.locals)) {
		return 0, false
	}
	return s.locals[int(localidx)], true
}

func (s *ModuleScope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	if globalidx < uint32(len(s.importedGlobals)) {
		return s.importedGlobals[int(globalidx)], true
	}
	globalidx -= uint32(len(s.importedGlobals))
	if s.m.Global == nil || globalidx >= uint32(len(s.m.Global.Globals)) {
		return wasm.GlobalVar{}, false
	}
	return s.m.Global.Globals[int(globalidx)].Type, true
}

func (s *ModuleScope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	if funcidx < uint32(len(s.importedFunctions)) {
		return s.GetType(s.importedFunctions[int(funcidx)])
	}
	funcidx -= uint32(len(s.importedFunctions))
	if s.m.Function == nil || funcidx >= uint32(len(s.m.Function.Types)) {
		return wasm.FunctionSig{}, false
	}
	return s.GetType(s.m.Function.Types[int(funcidx)])
}

func (s *ModuleScope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	if s.m.Types == nil || typeidx >= uint32(len(s.m.Types.Entries)) {
		return wasm.FunctionSig{}, false
	}
	return s.m.Types.Entries[int(typeidx)], true
}

func (s *ModuleScope) HasTable(tableidx uint32) bool {
	return tableidx < uint32(s.tables)
}

func (s *ModuleScope) HasMemory(memoryidx uint32) bool {
	return memoryidx < uint32(s.memories)
}
