// Package validate performs static module validation: every index
// reference resolves within its index space, limits respect
// initial <= maximum, import/export signatures agree with their
// declarations, and the start function (if any) has type [] -> [].
// Instantiate runs it first, before allocating anything.
package validate

import (
	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
)

// validator wraps the module's index spaces (a code.ModuleScope) with
// the per-concern check passes.
type validator struct {
	*code.ModuleScope

	module       *wasm.Module
	validateCode bool
}

// ValidateModule runs every static check against m. When validateCode is
// true, function bodies are also stack-typed via code.Decode; a caller
// that has already validated bodies some other way (or doesn't need to
// run them) can skip that pass and validate only the module-level shape.
func ValidateModule(m *wasm.Module, validateCode bool) error {
	v := validator{
		ModuleScope:  code.NewModuleScope(m),
		module:       m,
		validateCode: validateCode,
	}
	return v.run()
}

// checks lists the per-concern passes run() walks in order; a data-driven
// list rather than a hand-written chain of "if err := v.validateX(); err
// != nil { return err }" statements, so adding a check is one append
// rather than one more repeated stanza.
func (v *validator) checks() []func() error {
	return []func() error{
		v.validateFunctions,
		v.validateTables,
		v.validateMemories,
		v.validateGlobals,
		v.validateElements,
		v.validateData,
		v.validateStart,
		v.validateImports,
		v.validateExports,
	}
}

func (v *validator) run() error {
	for _, check := range v.checks() {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateFunctions() error {
	var types []uint32
	if v.module.Function != nil {
		types = v.module.Function.Types
	}

	var bodies []wasm.FunctionBody
	if v.module.Code != nil {
		bodies = v.module.Code.Bodies
	}

	if len(types) != len(bodies) {
		return wasm.ValidationError("function and code section have inconsistent lengths")
	}

	for i, typeidx := range types {
		sig, ok := v.GetType(typeidx)
		if !ok {
			return wasm.ValidationError("unknown type")
		}
		if !v.validateCode {
			continue
		}

		v.SetLocals(sig, bodies[i])
		if _, err := code.Decode(bodies[i].Code, v, sig.ReturnTypes); err != nil {
			return err
		}
	}

	return nil
}

func (v *validator) validateLimits(limits wasm.ResizableLimits) error {
	if limits.Flags != 0 && limits.Initial > limits.Maximum {
		return wasm.ValidationError("size minimum must not be greater than maximum")
	}
	return nil
}

func (v *validator) validateTables() error {
	if v.module.Table == nil || len(v.module.Table.Entries) == 0 {
		return nil
	}
	if v.HasTable(1) {
		return wasm.ValidationError("multiple tables")
	}
	return v.validateLimits(v.module.Table.Entries[0].Limits)
}

// maxAddressablePages is the MVP's hard ceiling on linear memory: a
// 32-bit address space divided into 64 KiB pages.
const maxAddressablePages = 65536

func (v *validator) validateMemories() error {
	if v.module.Memory == nil || len(v.module.Memory.Entries) == 0 {
		return nil
	}
	if v.HasMemory(1) {
		return wasm.ValidationError("multiple memories")
	}

	limits := v.module.Memory.Entries[0].Limits
	if err := v.validateLimits(limits); err != nil {
		return err
	}
	if limits.Initial > maxAddressablePages || limits.Flags != 0 && limits.Maximum > maxAddressablePages {
		return wasm.ValidationError("memory size must be at most 65536 pages (4GiB)")
	}
	return nil
}

func (v *validator) validateGlobals() error {
	if v.module.Global == nil {
		return nil
	}

	scope := constGlobalScope{importedGlobals: v.ImportedGlobals()}
	for _, g := range v.module.Global.Globals {
		if err := v.validateInitExpr(g.Init, g.Type.Type, scope); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateElements() error {
	if v.module.Elements == nil {
		return nil
	}
	for _, elem := range v.module.Elements.Entries {
		if !v.HasTable(elem.Index) {
			return wasm.ValidationError("unknown table")
		}
		if err := v.validateInitExpr(elem.Offset, wasm.ValueTypeI32, v); err != nil {
			return err
		}
		for _, funcidx := range elem.Elems {
			if _, ok := v.GetFunctionSignature(funcidx); !ok {
				return wasm.ValidationError("unknown function")
			}
		}
	}
	return nil
}

func (v *validator) validateData() error {
	if v.module.Data == nil {
		return nil
	}
	for _, data := range v.module.Data.Entries {
		if !v.HasMemory(data.Index) {
			return wasm.ValidationError("unknown memory")
		}
		if err := v.validateInitExpr(data.Offset, wasm.ValueTypeI32, v); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateStart() error {
	if v.module.Start == nil {
		return nil
	}
	sig, ok := v.GetFunctionSignature(v.module.Start.Index)
	if !ok {
		return wasm.ValidationError("unknown function")
	}
	if len(sig.ParamTypes) != 0 || len(sig.ReturnTypes) != 0 {
		return wasm.ValidationError("start function")
	}
	return nil
}

func (v *validator) validateImports() error {
	if v.module.Import == nil {
		return nil
	}
	for _, entry := range v.module.Import.Entries {
		switch t := entry.Type.(type) {
		case wasm.FuncImport:
			if _, ok := v.GetType(t.Type); !ok {
				return wasm.ValidationError("unknown type")
			}
		case wasm.TableImport:
			if err := v.validateLimits(t.Type.Limits); err != nil {
				return err
			}
		case wasm.MemoryImport:
			if err := v.validateLimits(t.Type.Limits); err != nil {
				return err
			}
		case wasm.GlobalVarImport:
			// any type/mutability is a valid import descriptor
		}
	}
	return nil
}

func (v *validator) validateExports() error {
	if v.module.Export == nil {
		return nil
	}

	seen := map[string]bool{}
	for _, e := range v.module.Export.Entries {
		if seen[e.FieldStr] {
			return wasm.ValidationError("duplicate export name")
		}
		seen[e.FieldStr] = true

		switch e.Kind {
		case wasm.ExternalFunction:
			if _, ok := v.GetFunctionSignature(e.Index); !ok {
				return wasm.ValidationError("unknown function")
			}
		case wasm.ExternalTable:
			if !v.HasTable(e.Index) {
				return wasm.ValidationError("unknown table")
			}
		case wasm.ExternalMemory:
			if !v.HasMemory(e.Index) {
				return wasm.ValidationError("unknown memory")
			}
		case wasm.ExternalGlobal:
			if _, ok := v.GetGlobalType(e.Index); !ok {
				return wasm.ValidationError("unknown global")
			}
		}
	}
	return nil
}

// validateInitExpr checks that expr decodes to a well-typed single
// instruction, then enforces the narrower "constant expression" grammar:
// only a const of the expected type, or a global.get of an already-
// imported immutable global, is allowed.
func (v *validator) validateInitExpr(expr []byte, expected wasm.ValueType, scope code.Scope) error {
	decoded, err := code.Decode(expr, scope, []wasm.ValueType{expected})
	if err != nil {
		return err
	}
	imports := v.ImportedGlobals()
	for _, instr := range decoded.Instructions {
		switch instr.Opcode {
		case code.OpI32Const, code.OpI64Const, code.OpF32Const, code.OpF64Const, code.OpEnd:
			// constant-producing operators are always allowed
		case code.OpGlobalGet:
			idx := instr.Globalidx()
			if idx >= uint32(len(imports)) {
				return wasm.ValidationError("constant expression required")
			}
			if imports[int(idx)].Mutable {
				return wasm.ValidationError("constant expression required")
			}
		default:
			return wasm.ValidationError("constant expression required")
		}
	}
	return nil
}

// constGlobalScope is the narrow scope initializer expressions of
// module-defined globals decode against: only imported globals are
// visible, nothing else resolves.
type constGlobalScope struct {
	importedGlobals []wasm.GlobalVar
}

func (s constGlobalScope) GetLocalType(localidx uint32) (wasm.ValueType, bool) {
	return 0, false
}

func (s constGlobalScope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	if globalidx < uint32(len(s.importedGlobals)) {
		return s.importedGlobals[int(globalidx)], true
	}
	return wasm.GlobalVar{}, false
}

func (s constGlobalScope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	return wasm.FunctionSig{}, false
}

func (s constGlobalScope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	return wasm.FunctionSig{}, false
}

func (s constGlobalScope) HasTable(tableidx uint32) bool {
	return false
}

func (s constGlobalScope) HasMemory(memoryidx uint32) bool {
	return false
}
