package exec

import (
	"fmt"
	"io"

	"github.com/sassembla/wasmcore/wasm"
)

// SpecTestImporter is the built-in importer for the "spectest" module used
// by the upstream WebAssembly spec test suite: a handful of print
// functions that discard their arguments (after writing them to an
// optional sink), one global of each value type, a memory with limits
// (1, 2), and a table of 10..20 funcref slots.
//
// The four Import* methods are the same Importer a real host implements;
// SpecTestImporter just has fixed, spec-mandated answers instead of
// consulting a linker.
type SpecTestImporter struct {
	// Out, if non-nil, receives one line per spectest.print* call.
	Out io.Writer

	globalI32 Global
	globalI64 Global
	globalF32 Global
	globalF64 Global
	memory    Memory
	table     Table
	init      bool
}

func (s *SpecTestImporter) ensureInit() {
	if s.init {
		return
	}
	s.globalI32 = NewGlobalI32(true, 666)
	s.globalI64 = NewGlobalI64(true, 666)
	s.globalF32 = NewGlobalF32(true, 666)
	s.globalF64 = NewGlobalF64(true, 666)
	s.memory = NewMemory(1, 2)
	s.table = NewTable(10, 20)
	s.init = true
}

func i32Sig() wasm.FunctionSig {
	return wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}}
}
func i64Sig() wasm.FunctionSig {
	return wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeI64}}
}
func f32Sig() wasm.FunctionSig {
	return wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeF32}}
}
func f64Sig() wasm.FunctionSig {
	return wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeF64}}
}

func (s *SpecTestImporter) print(format string, args ...interface{}) []interface{} {
	if s.Out != nil {
		fmt.Fprintf(s.Out, format+"\n", args...)
	}
	return nil
}

func (s *SpecTestImporter) ImportFunction(moduleName, fieldName string, type_ wasm.FunctionSig) (Function, error) {
	if moduleName != "spectest" {
		return nil, newImportError(moduleName, fieldName, "unknown module")
	}

	var sig wasm.FunctionSig
	var fn func(args []interface{}) []interface{}

	switch fieldName {
	case "print":
		sig, fn = wasm.FunctionSig{}, func(args []interface{}) []interface{} { return s.print("") }
	case "print_i32":
		sig, fn = i32Sig(), func(args []interface{}) []interface{} { return s.print("%v", args[0]) }
	case "print_i64":
		sig, fn = i64Sig(), func(args []interface{}) []interface{} { return s.print("%v", args[0]) }
	case "print_f32":
		sig, fn = f32Sig(), func(args []interface{}) []interface{} { return s.print("%v", args[0]) }
	case "print_f64":
		sig, fn = f64Sig(), func(args []interface{}) []interface{} { return s.print("%v", args[0]) }
	case "print_i32_f32":
		sig = wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeF32}}
		fn = func(args []interface{}) []interface{} { return s.print("%v %v", args[0], args[1]) }
	case "print_f64_f64":
		sig = wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeF64, wasm.ValueTypeF64}}
		fn = func(args []interface{}) []interface{} { return s.print("%v %v", args[0], args[1]) }
	default:
		return nil, newImportError(moduleName, fieldName, "unknown field")
	}

	if !sig.Equals(type_) {
		return nil, newImportError(moduleName, fieldName, "function signature mismatch")
	}
	return NewHostFunction(sig, fn), nil
}

func (s *SpecTestImporter) ImportGlobal(moduleName, fieldName string, type_ wasm.GlobalVar) (*Global, error) {
	if moduleName != "spectest" {
		return nil, newImportError(moduleName, fieldName, "unknown module")
	}
	s.ensureInit()

	var g *Global
	switch fieldName {
	case "global_i32":
		g = &s.globalI32
	case "global_i64":
		g = &s.globalI64
	case "global_f32":
		g = &s.globalF32
	case "global_f64":
		g = &s.globalF64
	default:
		return nil, newImportError(moduleName, fieldName, "unknown field")
	}
	if g.Type() != type_ {
		return nil, newImportError(moduleName, fieldName, "global type mismatch")
	}
	return g, nil
}

func (s *SpecTestImporter) ImportMemory(moduleName, fieldName string, type_ wasm.Memory) (*Memory, error) {
	if moduleName != "spectest" || fieldName != "memory" {
		return nil, newImportError(moduleName, fieldName, "unknown import")
	}
	s.ensureInit()
	min, max := s.memory.Limits()
	if !limitsMatch(min, max, type_.Limits) {
		return nil, newImportError(moduleName, fieldName, "memory limits do not satisfy import")
	}
	return &s.memory, nil
}

func (s *SpecTestImporter) ImportTable(moduleName, fieldName string, type_ wasm.Table) (*Table, error) {
	if moduleName != "spectest" || fieldName != "table" {
		return nil, newImportError(moduleName, fieldName, "unknown import")
	}
	s.ensureInit()
	min, max := s.table.Limits()
	if !limitsMatch(min, max, type_.Limits) {
		return nil, newImportError(moduleName, fieldName, "table limits do not satisfy import")
	}
	return &s.table, nil
}

// NamespacedImporter composes multiple Importers keyed by module name,
// letting a test harness combine the spectest namespace with a linker
// for the module under test.
type NamespacedImporter map[string]Importer

func (n NamespacedImporter) resolve(moduleName string) (Importer, error) {
	imp, ok := n[moduleName]
	if !ok {
		return nil, newImportError(moduleName, "", "unknown module")
	}
	return imp, nil
}

func (n NamespacedImporter) ImportFunction(moduleName, fieldName string, type_ wasm.FunctionSig) (Function, error) {
	imp, err := n.resolve(moduleName)
	if err != nil {
		return nil, err
	}
	return imp.ImportFunction(moduleName, fieldName, type_)
}

func (n NamespacedImporter) ImportGlobal(moduleName, fieldName string, type_ wasm.GlobalVar) (*Global, error) {
	imp, err := n.resolve(moduleName)
	if err != nil {
		return nil, err
	}
	return imp.ImportGlobal(moduleName, fieldName, type_)
}

func (n NamespacedImporter) ImportMemory(moduleName, fieldName string, type_ wasm.Memory) (*Memory, error) {
	imp, err := n.resolve(moduleName)
	if err != nil {
		return nil, err
	}
	return imp.ImportMemory(moduleName, fieldName, type_)
}

func (n NamespacedImporter) ImportTable(moduleName, fieldName string, type_ wasm.Table) (*Table, error) {
	imp, err := n.resolve(moduleName)
	if err != nil {
		return nil, err
	}
	return imp.ImportTable(moduleName, fieldName, type_)
}
