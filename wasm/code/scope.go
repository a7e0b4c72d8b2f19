// Package code implements the shared binary-instruction decoder used by
// both wasm/validate (stack-typing a function body) and exec (lazily
// decoding it once per body the first time it runs): one decode pass,
// two consumers, so the bytecode grammar is defined exactly once.
package code

import "github.com/sassembla/wasmcore/wasm"

// Scope is everything Decode needs to resolve an index operand against
// the module a function body belongs to: local/global/function/type
// lookups plus the yes/no table and memory presence checks used by
// memory- and table-touching opcodes. wasm/validate implements it
// directly against the module under validation; exec implements it
// against an already-validated Instance's resolved index spaces.
type Scope interface {
	GetLocalType(localidx uint32) (wasm.ValueType, bool)
	GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool)
	GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool)
	GetType(typeidx uint32) (wasm.FunctionSig, bool)

	HasTable(tableidx uint32) bool
	HasMemory(memoryidx uint32) bool
}

// UnknownTypes is the param/return slice returned for any index
// UnknownScope is asked about.
var UnknownTypes = []wasm.ValueType{}

// UnknownScope answers every index query as present and typed
// wasm.ValueTypeT. It lets Decode run over an instruction stream purely
// for its side effects (e.g. computing encoded length) when no real
// module scope is available yet.
var UnknownScope = unknownScope(0)

type unknownScope int

func (unknownScope) GetLocalType(localidx uint32) (wasm.ValueType, bool) {
	return wasm.ValueTypeT, true
}

func (unknownScope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	return wasm.GlobalVar{Type: wasm.ValueTypeT}, true
}

func (unknownScope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	return wasm.FunctionSig{ParamTypes: UnknownTypes, ReturnTypes: UnknownTypes}, true
}

func (unknownScope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	return wasm.FunctionSig{ParamTypes: UnknownTypes, ReturnTypes: UnknownTypes}, true
}

func (unknownScope) HasTable(tableidx uint32) bool {
	return true
}

func (unknownScope) HasMemory(memoryidx uint32) bool {
	return true
}
