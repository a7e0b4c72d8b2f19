// Module-level AST: the tree parseModuleBody builds for a (module ...)
// form. Identifier references stay symbolic (Var) until
// module_decode.go's definition pass assigns indices.
package wast

import "github.com/sassembla/wasmcore/wasm"

type Module struct {
	Pos Pos

	Name     string
	Types    []*Typedef
	Funcs    []*Func
	Imports  []*Import
	Exports  []*Export
	Tables   []*Table
	Memories []*Memory
	Globals  []*Global
	Elems    []*Elem
	Data     []*Data
	Start    *Var
}

func (m *Module) ModuleName() string { return m.Name }
func (m *Module) CommandPos() Pos    { return m.Pos }
func (*Module) isCommand()           {}

// Var is an unresolved reference into one of the index spaces: either
// a $name or a bare numeric index.
type Var struct {
	Name  string
	Index uint32
}

// Param is one typed binding with an optional $name. Locals share the
// exact same shape and grammar.
type Param struct {
	Name string
	Type wasm.ValueType
}

type Local = Param

// FuncType is a type use: a (type $id) reference, inline
// param/result clauses, or both (which must then agree).
type FuncType struct {
	Var     *Var
	Params  []*Param
	Results []wasm.ValueType
}

type Typedef struct {
	Name    string
	Params  []*Param
	Results []wasm.ValueType
}

type GlobalType struct {
	Mutable bool
	Type    wasm.ValueType
}

type Range struct {
	Min uint32
	Max *uint32
}

// InlineImport promotes the field that carries it to an import.
type InlineImport struct {
	Module string
	Name   string
}

// Module fields. Each may carry inline export names, and all but
// Typedef/Elem/Data may be promoted to an import.

type Func struct {
	Name    string
	Exports []string
	Import  *InlineImport
	Type    *FuncType
	Locals  []*Local
	Instrs  []Instr
}

type Table struct {
	Name    string
	Exports []string
	Import  *InlineImport
	Range   *Range
	Values  []Var
}

type Memory struct {
	Name    string
	Exports []string
	Import  *InlineImport
	Range   *Range
	Data    []string
}

type Global struct {
	Name    string
	Exports []string
	Import  *InlineImport
	Type    GlobalType
	Init    []Instr
}

type Import struct {
	Module   string
	Name     string
	External External
}

type Export struct {
	Name string
	Kind wasm.External
	Var  Var
}

type Elem struct {
	Var    *Var
	Offset []Instr
	Values []Var
}

type Data struct {
	Var    *Var
	Offset []Instr
	Values []string
}

// External is an import's descriptor: what kind of value the import
// expects and its declared type.
type External interface {
	isExternal()
}

// externNode marks a type as an External descriptor.
type externNode struct{}

func (externNode) isExternal() {}

type ExternalFunc struct {
	externNode
	Name string
	Type *FuncType
}

type ExternalGlobal struct {
	externNode
	Name string
	Type GlobalType
}

type ExternalTable struct {
	externNode
	Name  string
	Range Range
}

type ExternalMemory struct {
	externNode
	Name  string
	Range Range
}

// Instr is one parsed instruction, folded or plain.
type Instr interface {
	isInstr()
}

// instrNode marks a type as an Instr.
type instrNode struct{}

func (instrNode) isInstr() {}

type Block struct {
	instrNode
	Name   string
	Type   *FuncType
	Instrs []Instr
}

type Loop struct {
	instrNode
	Name   string
	Type   *FuncType
	Instrs []Instr
}

type If struct {
	instrNode
	Name      string
	Type      *FuncType
	Condition []Instr
	Then      []Instr
	Else      []Instr
}

// Op is a no-operand operator; VarOp carries label/index operands;
// CallIndirect carries a type use; MemOp carries offset/align
// immediates; ConstOp carries one numeric literal.

type Op struct {
	instrNode
	Code TokenKind
}

type VarOp struct {
	instrNode
	Code TokenKind
	Vars []Var
}

type CallIndirect struct {
	instrNode
	Type FuncType
}

type MemOp struct {
	instrNode
	Code   TokenKind
	Offset *int64
	Align  *int64
}

type ConstOp struct {
	instrNode
	Code  TokenKind
	Value interface{}
}
