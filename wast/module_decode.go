package wast

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
)

// Decode assembles the parsed module into its binary data model,
// resolving every $name reference in a post-pass after all definitions
// have been collected (pushModuleNames).
func (m *Module) Decode() (*wasm.Module, error) {
	decoder := moduleDecoder{m: m}
	return decoder.decodeModule()
}

// indexes assigns final indices in each index space as definitions are
// collected, and deduplicates structurally equal function types.
type indexes struct {
	functionTypes map[string]int

	types     []*FuncType
	functions []int
	tables    int
	memories  int
	globals   int
}

func valueTypeKey(t wasm.ValueType) rune {
	switch t {
	case wasm.ValueTypeI32:
		return 'i'
	case wasm.ValueTypeI64:
		return 'I'
	case wasm.ValueTypeF32:
		return 'f'
	case wasm.ValueTypeF64:
		return 'F'
	default:
		panic("unreachable")
	}
}

func functionTypeKey(params []*Param, results []wasm.ValueType) string {
	var b strings.Builder
	b.WriteRune('p')
	for _, p := range params {
		b.WriteRune(valueTypeKey(p.Type))
	}
	b.WriteRune('r')
	for _, t := range results {
		b.WriteRune(valueTypeKey(t))
	}
	return b.String()
}

func (i *indexes) functionType(params []*Param, results []wasm.ValueType) int {
	k := functionTypeKey(params, results)
	if typeidx, ok := i.functionTypes[k]; ok {
		return typeidx
	}
	return i.defType(&Typedef{Params: params, Results: results})
}

func (i *indexes) defType(type_ *Typedef) int {
	i.types = append(i.types, &FuncType{Params: type_.Params, Results: type_.Results})
	typeidx := len(i.types) - 1

	k := functionTypeKey(type_.Params, type_.Results)
	if _, ok := i.functionTypes[k]; !ok {
		i.functionTypes[k] = typeidx
	}
	return typeidx
}

func (i *indexes) defFunction(typeidx int) int {
	i.functions = append(i.functions, typeidx)
	return len(i.functions) - 1
}

// nameSpace holds one index space's $name bindings. define panics with
// DuplicateIdentifierError on rebinding; a blank name never occupies
// the space.
type nameSpace map[string]int

func (ns nameSpace) define(name string, index int) {
	if name == "" {
		return
	}
	if _, exists := ns[name]; exists {
		panic(DuplicateIdentifierError(name))
	}
	ns[name] = index
}

type names struct {
	types     nameSpace
	functions nameSpace
	tables    nameSpace
	memories  nameSpace
	globals   nameSpace
}

// context is one scope level: the module-wide names and indexes
// (shared by every level) plus this level's locals and labels.
type context struct {
	*names

	indexes *indexes
	parent  *context

	locals nameSpace
	labels map[string]int
}

func (c *context) push() *context {
	var idx *indexes
	var nm *names
	if c == nil {
		idx = &indexes{functionTypes: map[string]int{}}
		nm = &names{
			types:     nameSpace{},
			functions: nameSpace{},
			tables:    nameSpace{},
			memories:  nameSpace{},
			globals:   nameSpace{},
		}
	} else {
		idx, nm = c.indexes, c.names
	}

	return &context{
		parent:  c,
		indexes: idx,
		names:   nm,
		locals:  nameSpace{},
		labels:  map[string]int{},
	}
}

func (c *context) pop() *context {
	return c.parent
}

func (c *context) functionType(type_ *FuncType) int {
	if type_.Var == nil {
		return c.indexes.functionType(type_.Params, type_.Results)
	}

	index := c.useType(*type_.Var)
	if len(type_.Params) != 0 || len(type_.Results) != 0 {
		// A use that carries both a (type $id) reference and inline
		// param/result clauses must agree with the referenced type.
		if index >= len(c.indexes.types) || !inlineTypeMatches(c.indexes.types[index], type_) {
			panic(TypeMismatchError{Name: type_.Var.Name})
		}
	}
	return index
}

func inlineTypeMatches(ref *FuncType, use *FuncType) bool {
	if len(ref.Params) != len(use.Params) || len(ref.Results) != len(use.Results) {
		return false
	}
	for i, p := range use.Params {
		if ref.Params[i].Type != p.Type {
			return false
		}
	}
	for i, r := range use.Results {
		if ref.Results[i] != r {
			return false
		}
	}
	return true
}

func (c *context) defType(name string, type_ *Typedef) {
	c.types.define(name, c.indexes.defType(type_))
}

func (c *context) defFunction(name string, type_ *FuncType) {
	c.functions.define(name, c.indexes.defFunction(c.functionType(type_)))
}

func (c *context) defTable(name string) {
	c.tables.define(name, c.indexes.tables)
	c.indexes.tables++
}

func (c *context) defMemory(name string) {
	c.memories.define(name, c.indexes.memories)
	c.indexes.memories++
}

func (c *context) defGlobal(name string) {
	c.globals.define(name, c.indexes.globals)
	c.indexes.globals++
}

func (c *context) defLocal(name string, index int) {
	c.locals.define(name, index)
}

func (c *context) defLabel(name string, depth int) {
	// Labels may legitimately shadow an outer label of the same name
	// (nested blocks reusing a loop label is common and unambiguous,
	// since `br $l` always resolves to the nearest enclosing binding),
	// so labels are exempt from the duplicate-identifier check applied
	// to the module-level and local index spaces.
	if name != "" {
		c.labels[name] = depth
	}
}

// resolve looks v up in the space pick selects, walking the context
// chain outward. Unresolved names panic with a spelling suggestion
// drawn from the innermost space.
func (c *context) resolve(pick func(*context) map[string]int, v Var) int {
	if v.Name == "" {
		return int(v.Index)
	}
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if index, ok := pick(ctx)[v.Name]; ok {
			return index
		}
	}
	panic(UnresolvedIdentifierError{Name: v.Name, Suggestion: suggest(v.Name, pick(c))})
}

func (c *context) useType(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.types }, v)
}

func (c *context) useFunction(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.functions }, v)
}

func (c *context) useTable(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.tables }, v)
}

func (c *context) useMemory(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.memories }, v)
}

func (c *context) useGlobal(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.globals }, v)
}

func (c *context) useLocal(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.locals }, v)
}

func (c *context) useLabel(v Var) int {
	return c.resolve(func(c *context) map[string]int { return c.labels }, v)
}

// getType returns the function type v names. A function name is also
// accepted, resolving to that function's type, matching the text
// format's permissiveness about (type $f) naming a function.
func (c *context) getType(v Var) *FuncType {
	if v.Name == "" {
		return c.indexes.types[int(v.Index)]
	}

	index, ok := c.types[v.Name]
	if !ok {
		index, ok = c.functions[v.Name]
		if !ok {
			panic(UnresolvedIdentifierError{Name: v.Name, Suggestion: suggest(v.Name, c.types)})
		}
	}
	return c.indexes.types[index]
}

// kindCounts tallies how one kind's index space is populated:
// standalone (import ...) fields first, then fields promoted by an
// inline (import ...), then local definitions.
type kindCounts struct {
	imports       int
	inlineImports int
	defined       int
}

// fieldIndexer walks a kind's module fields in declaration order and
// hands each its final index within the kind's index space.
type fieldIndexer struct {
	importidx, idx int
}

func (c kindCounts) indexer() fieldIndexer {
	return fieldIndexer{importidx: c.imports, idx: c.imports + c.inlineImports}
}

func (fi *fieldIndexer) next(imported bool) int {
	if imported {
		i := fi.importidx
		fi.importidx++
		return i
	}
	i := fi.idx
	fi.idx++
	return i
}

type moduleDecoder struct {
	m *Module

	context *context
	depth   int

	imports   int
	functions kindCounts
	tables    kindCounts
	memories  kindCounts
	globals   kindCounts
}

// pushModuleNames is the definition pass: every field that occupies an
// index space is assigned its index, imports ahead of local
// definitions, before any use is resolved.
func (b *moduleDecoder) pushModuleNames() {
	b.context = b.context.push()

	for _, item := range b.m.Types {
		b.context.defType(item.Name, item)
	}

	for _, item := range b.m.Imports {
		switch external := item.External.(type) {
		case *ExternalFunc:
			b.context.defFunction(external.Name, external.Type)
			b.functions.imports++
		case *ExternalTable:
			b.context.defTable(external.Name)
			b.tables.imports++
		case *ExternalMemory:
			b.context.defMemory(external.Name)
			b.memories.imports++
		case *ExternalGlobal:
			b.context.defGlobal(external.Name)
			b.globals.imports++
		}
		b.imports++
	}

	for _, item := range b.m.Funcs {
		if item.Import != nil {
			b.context.defFunction(item.Name, item.Type)
			b.functions.inlineImports++
			b.imports++
		}
	}
	for _, item := range b.m.Tables {
		if item.Import != nil {
			b.context.defTable(item.Name)
			b.tables.inlineImports++
			b.imports++
		}
	}
	for _, item := range b.m.Memories {
		if item.Import != nil {
			b.context.defMemory(item.Name)
			b.memories.inlineImports++
			b.imports++
		}
	}
	for _, item := range b.m.Globals {
		if item.Import != nil {
			b.context.defGlobal(item.Name)
			b.globals.inlineImports++
			b.imports++
		}
	}

	for _, item := range b.m.Funcs {
		if item.Import == nil {
			b.context.defFunction(item.Name, item.Type)
			b.functions.defined++
		}
	}
	for _, item := range b.m.Tables {
		if item.Import == nil {
			b.context.defTable(item.Name)
			b.tables.defined++
		}
	}
	for _, item := range b.m.Memories {
		if item.Import == nil {
			b.context.defMemory(item.Name)
			b.memories.defined++
		}
	}
	for _, item := range b.m.Globals {
		if item.Import == nil {
			b.context.defGlobal(item.Name)
			b.globals.defined++
		}
	}
}

func (b *moduleDecoder) pushFuncNames(fn *Func) {
	b.context = b.context.push()

	arity := 0
	if fn.Type.Var != nil {
		typ := b.context.getType(*fn.Type.Var)
		b.defParamNames(typ.Params)
		arity = len(typ.Params)
	} else {
		arity = len(fn.Type.Params)
	}

	b.defParamNames(fn.Type.Params)

	for i, l := range fn.Locals {
		b.context.defLocal(l.Name, arity+i)
	}
}

func (b *moduleDecoder) pushBlock(name string, type_ *FuncType) {
	b.context = b.context.push()
	b.context.labels[name] = b.depth
	if type_ != nil {
		b.defParamNames(type_.Params)
	}
	b.depth++
}

func (b *moduleDecoder) pop() {
	b.context = b.context.pop()
}

func (b *moduleDecoder) popBlock() {
	b.pop()
	b.depth--
}

func (b *moduleDecoder) useLabel(v Var) int {
	if v.Name == "" {
		return int(v.Index)
	}
	return b.depth - b.context.useLabel(v) - 1
}

func (b *moduleDecoder) defParamNames(params []*Param) {
	for i, p := range params {
		b.context.defLocal(p.Name, i)
	}
}

func (b *moduleDecoder) decodeModule() (module *wasm.Module, err error) {
	defer func() {
		if x := recover(); x != nil {
			e, ok := x.(error)
			if !ok {
				panic(x)
			}
			err = e
		}
	}()

	b.pushModuleNames()

	// Every decode step reports failure by panicking with one of the
	// typed errors; the recover above is the single exit for all of
	// them.
	function, bodies := b.decodeFuncs()
	mod := &wasm.Module{
		Types:    b.decodeTypes(),
		Import:   b.decodeImports(),
		Function: function,
		Table:    b.decodeTables(),
		Memory:   b.decodeMemories(),
		Global:   b.decodeGlobals(),
		Export:   b.decodeExports(),
		Start:    b.decodeStart(),
		Elements: b.decodeElems(),
		Code:     bodies,
		Data:     b.decodeData(),
	}
	omitEmptySections(mod)

	if nameSection := b.decodeNameSection(); nameSection != nil {
		mod.Customs = append(mod.Customs, nameSection)
	}

	return mod, nil
}

// decodeNameSection builds the "name" custom section from the module's
// textual identifier, if any, plus the names bound to its functions. It
// returns nil if the module carries no names worth recording.
func (b *moduleDecoder) decodeNameSection() *wasm.SectionCustom {
	var entries []wasm.NameSubsection

	if b.m.Name != "" {
		entries = append(entries, &wasm.ModuleNameSubsection{Name: strings.TrimPrefix(b.m.Name, "$")})
	}

	if len(b.context.names.functions) > 0 {
		naming := make([]wasm.Naming, 0, len(b.context.names.functions))
		for name, index := range b.context.names.functions {
			naming = append(naming, wasm.Naming{Index: uint32(index), Name: name})
		}
		sort.Slice(naming, func(i, j int) bool { return naming[i].Index < naming[j].Index })
		entries = append(entries, &wasm.FunctionNamesSubsection{Names: naming})
	}

	if len(entries) == 0 {
		return nil
	}

	names := wasm.NameSection{Entries: entries}
	var buf bytes.Buffer
	if err := names.MarshalWASM(&buf); err != nil {
		panic(err)
	}
	return &wasm.SectionCustom{Name: wasm.CustomSectionName, Data: buf.Bytes()}
}

// omitEmptySections nils out a freshly assembled module's typed section
// fields that ended up with no entries, so a minimal source like `(module)`
// encodes to the zero-section canonical binary instead of a string of
// present-but-empty sections.
func omitEmptySections(m *wasm.Module) {
	if m.Types != nil && len(m.Types.Entries) == 0 {
		m.Types = nil
	}
	if m.Import != nil && len(m.Import.Entries) == 0 {
		m.Import = nil
	}
	if m.Function != nil && len(m.Function.Types) == 0 {
		m.Function = nil
		m.Code = nil
	}
	if m.Table != nil && len(m.Table.Entries) == 0 {
		m.Table = nil
	}
	if m.Memory != nil && len(m.Memory.Entries) == 0 {
		m.Memory = nil
	}
	if m.Global != nil && len(m.Global.Globals) == 0 {
		m.Global = nil
	}
	if m.Export != nil && len(m.Export.Entries) == 0 {
		m.Export = nil
	}
	if m.Elements != nil && len(m.Elements.Entries) == 0 {
		m.Elements = nil
	}
	if m.Data != nil && len(m.Data.Entries) == 0 {
		m.Data = nil
	}
}

func (b *moduleDecoder) decodeTypes() *wasm.SectionTypes {
	section := wasm.SectionTypes{
		Entries: make([]wasm.FunctionSig, len(b.context.indexes.types)),
	}
	for i, type_ := range b.context.indexes.types {
		section.Entries[i] = decodeFunctionSig(type_.Params, type_.Results)
	}
	return &section
}

func (b *moduleDecoder) decodeImports() *wasm.SectionImports {
	section := wasm.SectionImports{
		Entries: make([]wasm.ImportEntry, len(b.m.Imports), b.imports),
	}
	for i, import_ := range b.m.Imports {
		var type_ wasm.Import
		switch external := import_.External.(type) {
		case *ExternalFunc:
			type_ = wasm.FuncImport{Type: uint32(b.context.functionType(external.Type))}
		case *ExternalTable:
			type_ = wasm.TableImport{Type: decodeTableRange(external.Range)}
		case *ExternalMemory:
			type_ = wasm.MemoryImport{Type: decodeMemoryRange(external.Range)}
		case *ExternalGlobal:
			type_ = wasm.GlobalVarImport{Type: decodeGlobalType(external.Type)}
		}
		section.Entries[i] = wasm.ImportEntry{
			ModuleName: import_.Module,
			FieldName:  import_.Name,
			Type:       type_,
		}
	}

	// Inline imports follow the standalone entries, in field order
	// within each kind.
	inline := func(imp *InlineImport, type_ wasm.Import) {
		section.Entries = append(section.Entries, wasm.ImportEntry{
			ModuleName: imp.Module,
			FieldName:  imp.Name,
			Type:       type_,
		})
	}
	for _, item := range b.m.Funcs {
		if item.Import != nil {
			inline(item.Import, wasm.FuncImport{Type: uint32(b.context.functionType(item.Type))})
		}
	}
	for _, item := range b.m.Tables {
		if item.Import != nil {
			inline(item.Import, wasm.TableImport{Type: decodeTableType(item)})
		}
	}
	for _, item := range b.m.Memories {
		if item.Import != nil {
			inline(item.Import, wasm.MemoryImport{Type: decodeMemoryType(item)})
		}
	}
	for _, item := range b.m.Globals {
		if item.Import != nil {
			inline(item.Import, wasm.GlobalVarImport{Type: decodeGlobalType(item.Type)})
		}
	}

	return &section
}

func (b *moduleDecoder) decodeFuncs() (*wasm.SectionFunctions, *wasm.SectionCode) {
	functions := wasm.SectionFunctions{
		Types: make([]uint32, 0, b.functions.defined),
	}
	code := wasm.SectionCode{
		Bodies: make([]wasm.FunctionBody, 0, b.functions.defined),
	}
	for _, f := range b.m.Funcs {
		if f.Import == nil {
			functions.Types = append(functions.Types, uint32(b.context.functionType(f.Type)))
			code.Bodies = append(code.Bodies, b.decodeFunctionBody(f))
		}
	}
	return &functions, &code
}

func (b *moduleDecoder) decodeTables() *wasm.SectionTables {
	tables := wasm.SectionTables{
		Entries: make([]wasm.Table, 0, b.tables.defined),
	}
	for _, t := range b.m.Tables {
		if t.Import == nil {
			tables.Entries = append(tables.Entries, decodeTableType(t))
		}
	}
	return &tables
}

func (b *moduleDecoder) decodeMemories() *wasm.SectionMemories {
	memories := wasm.SectionMemories{
		Entries: make([]wasm.Memory, 0, b.memories.defined),
	}
	for _, m := range b.m.Memories {
		if m.Import == nil {
			memories.Entries = append(memories.Entries, decodeMemoryType(m))
		}
	}
	return &memories
}

func (b *moduleDecoder) decodeGlobals() *wasm.SectionGlobals {
	section := wasm.SectionGlobals{
		Globals: make([]wasm.GlobalEntry, 0, b.globals.defined),
	}
	for _, global := range b.m.Globals {
		if global.Import == nil {
			section.Globals = append(section.Globals, wasm.GlobalEntry{
				Type: decodeGlobalType(global.Type),
				Init: b.decodeBytecode(global.Init, empty),
			})
		}
	}
	return &section
}

func (b *moduleDecoder) decodeExports() *wasm.SectionExports {
	section := wasm.SectionExports{
		Entries: make([]wasm.ExportEntry, 0, len(b.m.Exports)+b.functions.defined+b.tables.defined+b.memories.defined+b.globals.defined),
	}
	addExport := func(name string, kind wasm.External, index int) {
		section.Entries = append(section.Entries, wasm.ExportEntry{
			FieldStr: name,
			Kind:     kind,
			Index:    uint32(index),
		})
	}

	for _, export := range b.m.Exports {
		var index int
		switch export.Kind {
		case wasm.ExternalFunction:
			index = b.context.useFunction(export.Var)
		case wasm.ExternalTable:
			index = b.context.useTable(export.Var)
		case wasm.ExternalMemory:
			index = b.context.useMemory(export.Var)
		case wasm.ExternalGlobal:
			index = b.context.useGlobal(export.Var)
		}
		addExport(export.Name, export.Kind, index)
	}

	// Inline exports address their own field's eventual index.
	fi := b.functions.indexer()
	for _, fn := range b.m.Funcs {
		index := fi.next(fn.Import != nil)
		for _, export := range fn.Exports {
			addExport(export, wasm.ExternalFunction, index)
		}
	}

	fi = b.tables.indexer()
	for _, table := range b.m.Tables {
		index := fi.next(table.Import != nil)
		for _, export := range table.Exports {
			addExport(export, wasm.ExternalTable, index)
		}
	}

	fi = b.memories.indexer()
	for _, memory := range b.m.Memories {
		index := fi.next(memory.Import != nil)
		for _, export := range memory.Exports {
			addExport(export, wasm.ExternalMemory, index)
		}
	}

	fi = b.globals.indexer()
	for _, global := range b.m.Globals {
		index := fi.next(global.Import != nil)
		for _, export := range global.Exports {
			addExport(export, wasm.ExternalGlobal, index)
		}
	}

	return &section
}

func (b *moduleDecoder) decodeStart() *wasm.SectionStartFunction {
	if b.m.Start == nil {
		return nil
	}
	return &wasm.SectionStartFunction{Index: uint32(b.context.useFunction(*b.m.Start))}
}

func (b *moduleDecoder) decodeElems() *wasm.SectionElements {
	section := wasm.SectionElements{
		Entries: make([]wasm.ElementSegment, len(b.m.Elems)),
	}
	for i, elem := range b.m.Elems {
		tableidx := 0
		if elem.Var != nil {
			tableidx = b.context.useTable(*elem.Var)
		}

		section.Entries[i] = wasm.ElementSegment{
			Index:  uint32(tableidx),
			Offset: b.decodeBytecode(elem.Offset, empty),
			Elems:  b.functionIndices(elem.Values),
		}
	}

	// A table with inline (elem ...) values contributes a segment at
	// offset 0 covering its whole initial extent.
	fi := b.tables.indexer()
	for _, table := range b.m.Tables {
		index := fi.next(table.Import != nil)
		if len(table.Values) != 0 {
			section.Entries = append(section.Entries, wasm.ElementSegment{
				Index:  uint32(index),
				Offset: zeroI32,
				Elems:  b.functionIndices(table.Values),
			})
		}
	}

	return &section
}

func (b *moduleDecoder) functionIndices(vars []Var) []uint32 {
	elems := make([]uint32, len(vars))
	for i, v := range vars {
		elems[i] = uint32(b.context.useFunction(v))
	}
	return elems
}

func (b *moduleDecoder) decodeData() *wasm.SectionData {
	section := wasm.SectionData{
		Entries: make([]wasm.DataSegment, len(b.m.Data)),
	}
	for i, data := range b.m.Data {
		memidx := 0
		if data.Var != nil {
			memidx = b.context.useMemory(*data.Var)
		}

		section.Entries[i] = wasm.DataSegment{
			Index:  uint32(memidx),
			Offset: b.decodeBytecode(data.Offset, empty),
			Data:   catBytes(data.Values),
		}
	}

	// A memory with inline (data "...") contributes a segment at
	// offset 0.
	fi := b.memories.indexer()
	for _, memory := range b.m.Memories {
		index := fi.next(memory.Import != nil)
		if len(memory.Data) != 0 {
			section.Entries = append(section.Entries, wasm.DataSegment{
				Index:  uint32(index),
				Offset: zeroI32,
				Data:   catBytes(memory.Data),
			})
		}
	}

	return &section
}

func catBytes(literals []string) []byte {
	var out []byte
	for _, l := range literals {
		out = append(out, []byte(l)...)
	}
	return out
}

func decodeFunctionSig(params []*Param, results []wasm.ValueType) wasm.FunctionSig {
	paramTypes := make([]wasm.ValueType, len(params))
	for i, p := range params {
		paramTypes[i] = p.Type
	}
	return wasm.FunctionSig{Form: 0x60, ParamTypes: paramTypes, ReturnTypes: results}
}

func decodeTableType(table *Table) wasm.Table {
	if table.Range != nil {
		return decodeTableRange(*table.Range)
	}
	return decodeTableRange(Range{Min: uint32(len(table.Values))})
}

func decodeTableRange(range_ Range) wasm.Table {
	return wasm.Table{
		ElementType: wasm.ElemTypeAnyFunc,
		Limits:      decodeResizableLimits(range_),
	}
}

// decodeMemoryType sizes an inline-data memory at exactly the page
// count its literal needs, with the maximum pinned to the same count.
func decodeMemoryType(memory *Memory) wasm.Memory {
	if memory.Range != nil {
		return decodeMemoryRange(*memory.Range)
	}

	var byteCount uint32
	for _, d := range memory.Data {
		byteCount += uint32(len(d))
	}
	pages := (byteCount + 65536 - 1) / 65536
	return decodeMemoryRange(Range{Min: pages, Max: &pages})
}

func decodeMemoryRange(range_ Range) wasm.Memory {
	return wasm.Memory{Limits: decodeResizableLimits(range_)}
}

func decodeGlobalType(global GlobalType) wasm.GlobalVar {
	return wasm.GlobalVar{
		Type:    global.Type,
		Mutable: global.Mutable,
	}
}

func decodeResizableLimits(range_ Range) wasm.ResizableLimits {
	max, flags := uint32(0), uint8(0)
	if range_.Max != nil {
		max, flags = *range_.Max, 1
	}
	return wasm.ResizableLimits{
		Flags:   flags,
		Initial: range_.Min,
		Maximum: max,
	}
}

func (b *moduleDecoder) decodeFunctionBody(f *Func) wasm.FunctionBody {
	locals := make([]wasm.LocalEntry, 0, len(f.Locals))

	run := 0
	for i, l := range f.Locals {
		if i == 0 || f.Locals[i-1].Type == l.Type {
			run++
		} else {
			locals = append(locals, wasm.LocalEntry{
				Count: uint32(run),
				Type:  f.Locals[i-1].Type,
			})
			run = 1
		}
	}
	if run > 0 {
		locals = append(locals, wasm.LocalEntry{
			Count: uint32(run),
			Type:  f.Locals[len(f.Locals)-1].Type,
		})
	}

	b.pushFuncNames(f)
	defer b.pop()

	return wasm.FunctionBody{
		Locals: locals,
		Code:   b.decodeBytecode(f.Instrs, empty),
	}
}

func (b *moduleDecoder) decodeBytecode(instrs []Instr, or []byte) []byte {
	if len(instrs) == 0 {
		return or
	}

	// linearize the body and synthesize an end if necessary
	var body []code.Instruction
	b.linearizeInstrs(&body, instrs)
	if op, ok := instrs[len(instrs)-1].(*Op); !ok || op.Code != END {
		body = append(body, code.End())
	}

	var buf bytes.Buffer
	if err := code.Encode(&buf, body); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (b *moduleDecoder) linearizeInstrs(dest *[]code.Instruction, instrs []Instr) {
	for _, i := range instrs {
		b.linearize(dest, i)
	}
}

// linearizeBlock lowers a block or loop: open, children, end, with the
// label bound for the children's branches.
func (b *moduleDecoder) linearizeBlock(dest *[]code.Instruction, name string, typ *FuncType, instrs []Instr, open func(...uint64) code.Instruction) {
	b.pushBlock(name, typ)
	defer b.popBlock()

	*dest = append(*dest, open(b.decodeBlockType(typ)))
	b.linearizeInstrs(dest, instrs)
	*dest = append(*dest, code.End())
}

func (b *moduleDecoder) linearizeIf(dest *[]code.Instruction, instr *If) {
	b.pushBlock(instr.Name, instr.Type)
	defer b.popBlock()

	b.linearizeInstrs(dest, instr.Condition)
	*dest = append(*dest, code.If(b.decodeBlockType(instr.Type)))
	b.linearizeInstrs(dest, instr.Then)
	if len(instr.Else) != 0 {
		*dest = append(*dest, code.Else())
		b.linearizeInstrs(dest, instr.Else)
	}
	*dest = append(*dest, code.End())
}

func (b *moduleDecoder) linearize(dest *[]code.Instruction, instr Instr) {
	switch instr := instr.(type) {
	case *Block:
		b.linearizeBlock(dest, instr.Name, instr.Type, instr.Instrs, code.Block)
	case *Loop:
		b.linearizeBlock(dest, instr.Name, instr.Type, instr.Instrs, code.Loop)
	case *If:
		b.linearizeIf(dest, instr)
	case *Op:
		*dest = append(*dest, b.decodeOp(instr))
	case *VarOp:
		*dest = append(*dest, b.decodeVarOp(instr))
	case *CallIndirect:
		*dest = append(*dest, code.CallIndirect(uint32(b.context.functionType(&instr.Type))))
	case *MemOp:
		*dest = append(*dest, b.decodeMemOp(instr))
	case *ConstOp:
		*dest = append(*dest, b.decodeConstOp(instr))
	default:
		panic("unreachable")
	}
}

func (b *moduleDecoder) decodeBlockType(t *FuncType) uint64 {
	switch {
	case t == nil:
		return code.BlockTypeEmpty
	case t.Var != nil:
		return code.BlockType(uint32(b.context.functionType(t)))
	case len(t.Params) == 0 && len(t.Results) == 0:
		return code.BlockTypeEmpty
	case len(t.Params) == 0 && len(t.Results) == 1:
		switch t.Results[0] {
		case wasm.ValueTypeI32:
			return code.BlockTypeI32
		case wasm.ValueTypeI64:
			return code.BlockTypeI64
		case wasm.ValueTypeF32:
			return code.BlockTypeF32
		case wasm.ValueTypeF64:
			return code.BlockTypeF64
		default:
			panic("unreachable")
		}
	default:
		return code.BlockType(uint32(b.context.functionType(t)))
	}
}

// plainOpConstructors maps each no-operand mnemonic to its instruction
// constructor. The parser consults the same table to recognize a plain
// operator token, so the set can't drift between parse and assembly.
var plainOpConstructors = map[TokenKind]func() code.Instruction{
	UNREACHABLE: code.Unreachable, NOP: code.Nop, RETURN: code.Return,
	DROP: code.Drop, SELECT: code.Select,
	MEMORY_GROW: code.MemoryGrow, MEMORY_SIZE: code.MemorySize,

	I32_EQZ: code.I32Eqz, I32_EQ: code.I32Eq, I32_NE: code.I32Ne,
	I32_LT_S: code.I32LtS, I32_LT_U: code.I32LtU, I32_GT_S: code.I32GtS, I32_GT_U: code.I32GtU,
	I32_LE_S: code.I32LeS, I32_LE_U: code.I32LeU, I32_GE_S: code.I32GeS, I32_GE_U: code.I32GeU,

	I64_EQZ: code.I64Eqz, I64_EQ: code.I64Eq, I64_NE: code.I64Ne,
	I64_LT_S: code.I64LtS, I64_LT_U: code.I64LtU, I64_GT_S: code.I64GtS, I64_GT_U: code.I64GtU,
	I64_LE_S: code.I64LeS, I64_LE_U: code.I64LeU, I64_GE_S: code.I64GeS, I64_GE_U: code.I64GeU,

	F32_EQ: code.F32Eq, F32_NE: code.F32Ne, F32_LT: code.F32Lt,
	F32_GT: code.F32Gt, F32_LE: code.F32Le, F32_GE: code.F32Ge,

	F64_EQ: code.F64Eq, F64_NE: code.F64Ne, F64_LT: code.F64Lt,
	F64_GT: code.F64Gt, F64_LE: code.F64Le, F64_GE: code.F64Ge,

	I32_CLZ: code.I32Clz, I32_CTZ: code.I32Ctz, I32_POPCNT: code.I32Popcnt,
	I32_ADD: code.I32Add, I32_SUB: code.I32Sub, I32_MUL: code.I32Mul,
	I32_DIV_S: code.I32DivS, I32_DIV_U: code.I32DivU, I32_REM_S: code.I32RemS, I32_REM_U: code.I32RemU,
	I32_AND: code.I32And, I32_OR: code.I32Or, I32_XOR: code.I32Xor,
	I32_SHL: code.I32Shl, I32_SHR_S: code.I32ShrS, I32_SHR_U: code.I32ShrU,
	I32_ROTL: code.I32Rotl, I32_ROTR: code.I32Rotr,

	I64_CLZ: code.I64Clz, I64_CTZ: code.I64Ctz, I64_POPCNT: code.I64Popcnt,
	I64_ADD: code.I64Add, I64_SUB: code.I64Sub, I64_MUL: code.I64Mul,
	I64_DIV_S: code.I64DivS, I64_DIV_U: code.I64DivU, I64_REM_S: code.I64RemS, I64_REM_U: code.I64RemU,
	I64_AND: code.I64And, I64_OR: code.I64Or, I64_XOR: code.I64Xor,
	I64_SHL: code.I64Shl, I64_SHR_S: code.I64ShrS, I64_SHR_U: code.I64ShrU,
	I64_ROTL: code.I64Rotl, I64_ROTR: code.I64Rotr,

	F32_ABS: code.F32Abs, F32_NEG: code.F32Neg, F32_CEIL: code.F32Ceil, F32_FLOOR: code.F32Floor,
	F32_TRUNC: code.F32Trunc, F32_NEAREST: code.F32Nearest, F32_SQRT: code.F32Sqrt,
	F32_ADD: code.F32Add, F32_SUB: code.F32Sub, F32_MUL: code.F32Mul, F32_DIV: code.F32Div,
	F32_MIN: code.F32Min, F32_MAX: code.F32Max, F32_COPYSIGN: code.F32Copysign,

	F64_ABS: code.F64Abs, F64_NEG: code.F64Neg, F64_CEIL: code.F64Ceil, F64_FLOOR: code.F64Floor,
	F64_TRUNC: code.F64Trunc, F64_NEAREST: code.F64Nearest, F64_SQRT: code.F64Sqrt,
	F64_ADD: code.F64Add, F64_SUB: code.F64Sub, F64_MUL: code.F64Mul, F64_DIV: code.F64Div,
	F64_MIN: code.F64Min, F64_MAX: code.F64Max, F64_COPYSIGN: code.F64Copysign,

	I32_WRAP_I64:    code.I32WrapI64,
	I32_TRUNC_F32_S: code.I32TruncF32S, I32_TRUNC_F32_U: code.I32TruncF32U,
	I32_TRUNC_F64_S: code.I32TruncF64S, I32_TRUNC_F64_U: code.I32TruncF64U,
	I64_EXTEND_I32_S: code.I64ExtendI32S, I64_EXTEND_I32_U: code.I64ExtendI32U,
	I64_TRUNC_F32_S: code.I64TruncF32S, I64_TRUNC_F32_U: code.I64TruncF32U,
	I64_TRUNC_F64_S: code.I64TruncF64S, I64_TRUNC_F64_U: code.I64TruncF64U,
	F32_CONVERT_I32_S: code.F32ConvertI32S, F32_CONVERT_I32_U: code.F32ConvertI32U,
	F32_CONVERT_I64_S: code.F32ConvertI64S, F32_CONVERT_I64_U: code.F32ConvertI64U,
	F32_DEMOTE_F64:    code.F32DemoteF64,
	F64_CONVERT_I32_S: code.F64ConvertI32S, F64_CONVERT_I32_U: code.F64ConvertI32U,
	F64_CONVERT_I64_S: code.F64ConvertI64S, F64_CONVERT_I64_U: code.F64ConvertI64U,
	F64_PROMOTE_F32:     code.F64PromoteF32,
	I32_REINTERPRET_F32: code.I32ReinterpretF32, I64_REINTERPRET_F64: code.I64ReinterpretF64,
	F32_REINTERPRET_I32: code.F32ReinterpretI32, F64_REINTERPRET_I64: code.F64ReinterpretI64,

	I32_EXTEND8_S: code.I32Extend8S, I32_EXTEND16_S: code.I32Extend16S,
	I64_EXTEND8_S: code.I64Extend8S, I64_EXTEND16_S: code.I64Extend16S, I64_EXTEND32_S: code.I64Extend32S,

	I32_TRUNC_SAT_F32_S: code.I32TruncSatF32S, I32_TRUNC_SAT_F32_U: code.I32TruncSatF32U,
	I32_TRUNC_SAT_F64_S: code.I32TruncSatF64S, I32_TRUNC_SAT_F64_U: code.I32TruncSatF64U,
	I64_TRUNC_SAT_F32_S: code.I64TruncSatF32S, I64_TRUNC_SAT_F32_U: code.I64TruncSatF32U,
	I64_TRUNC_SAT_F64_S: code.I64TruncSatF64S, I64_TRUNC_SAT_F64_U: code.I64TruncSatF64U,
}

func (b *moduleDecoder) decodeOp(op *Op) code.Instruction {
	ctor, ok := plainOpConstructors[op.Code]
	if !ok {
		panic(fmt.Errorf("invalid Op %v", op.Code))
	}
	return ctor()
}

func (b *moduleDecoder) decodeVarOp(op *VarOp) code.Instruction {
	switch op.Code {
	case BR_TABLE:
		indices := make([]int, len(op.Vars))
		for i, v := range op.Vars {
			indices[i] = b.useLabel(v)
		}
		return code.BrTable(indices[0], indices[1:]...)
	case BR:
		return code.Br(b.useLabel(op.Vars[0]))
	case BR_IF:
		return code.BrIf(b.useLabel(op.Vars[0]))
	case CALL:
		return code.Call(uint32(b.context.useFunction(op.Vars[0])))
	case LOCAL_GET:
		return code.LocalGet(uint32(b.context.useLocal(op.Vars[0])))
	case LOCAL_SET:
		return code.LocalSet(uint32(b.context.useLocal(op.Vars[0])))
	case LOCAL_TEE:
		return code.LocalTee(uint32(b.context.useLocal(op.Vars[0])))
	case GLOBAL_GET:
		return code.GlobalGet(uint32(b.context.useGlobal(op.Vars[0])))
	case GLOBAL_SET:
		return code.GlobalSet(uint32(b.context.useGlobal(op.Vars[0])))
	default:
		panic(fmt.Errorf("invalid VarOp %v", op.Code))
	}
}

// memOpConstructors pairs each load/store mnemonic with its constructor
// and natural alignment in bytes; the parser shares the table for token
// recognition, and decodeMemOp uses the alignment to reject an align=
// larger than the access width.
var memOpConstructors = map[TokenKind]struct {
	make         func(offset, align uint32) code.Instruction
	naturalAlign uint32
}{
	I32_LOAD8_S: {code.I32Load8S, 1}, I32_LOAD8_U: {code.I32Load8U, 1},
	I64_LOAD8_S: {code.I64Load8S, 1}, I64_LOAD8_U: {code.I64Load8U, 1},
	I32_STORE8: {code.I32Store8, 1}, I64_STORE8: {code.I64Store8, 1},

	I32_LOAD16_S: {code.I32Load16S, 2}, I32_LOAD16_U: {code.I32Load16U, 2},
	I64_LOAD16_S: {code.I64Load16S, 2}, I64_LOAD16_U: {code.I64Load16U, 2},
	I32_STORE16: {code.I32Store16, 2}, I64_STORE16: {code.I64Store16, 2},

	I32_LOAD: {code.I32Load, 4}, F32_LOAD: {code.F32Load, 4},
	I64_LOAD32_S: {code.I64Load32S, 4}, I64_LOAD32_U: {code.I64Load32U, 4},
	I32_STORE: {code.I32Store, 4}, F32_STORE: {code.F32Store, 4},
	I64_STORE32: {code.I64Store32, 4},

	I64_LOAD: {code.I64Load, 8}, F64_LOAD: {code.F64Load, 8},
	I64_STORE: {code.I64Store, 8}, F64_STORE: {code.F64Store, 8},
}

func (b *moduleDecoder) decodeMemOp(op *MemOp) code.Instruction {
	mem, ok := memOpConstructors[op.Code]
	if !ok {
		panic(fmt.Errorf("invalid MemOp %v", op.Code))
	}

	offset, align := uint32(0), uint32(0)
	if op.Offset != nil {
		offset = uint32(*op.Offset)
	}
	if op.Align != nil {
		align = uint32(*op.Align)
		if ones := bits.OnesCount32(align); ones != 1 {
			panic(errors.New("alignment"))
		}
		if align > mem.naturalAlign {
			panic(fmt.Errorf("alignment must not be larger than natural"))
		}
	}

	return mem.make(offset, align)
}

func (b *moduleDecoder) decodeConstOp(op *ConstOp) code.Instruction {
	switch op.Code {
	case F32_CONST:
		v, ok := op.Value.(float32)
		if !ok {
			panic(fmt.Errorf("invalid F32 constant %v", op.Value))
		}
		return code.F32Const(v)
	case F64_CONST:
		v, ok := op.Value.(float64)
		if !ok {
			panic(fmt.Errorf("invalid F64 constant %v", op.Value))
		}
		return code.F64Const(v)
	case I32_CONST:
		v, ok := op.Value.(int32)
		if !ok {
			panic(fmt.Errorf("invalid I32 constant %v", op.Value))
		}
		return code.I32Const(v)
	case I64_CONST:
		v, ok := op.Value.(int64)
		if !ok {
			panic(fmt.Errorf("invalid I64 constant %v", op.Value))
		}
		return code.I64Const(v)
	default:
		panic(fmt.Errorf("invalid ConstOp %v", op.Value))
	}
}

func mustEncode(expr ...code.Instruction) []byte {
	var b bytes.Buffer
	err := code.Encode(&b, expr)
	if err != nil {
		panic(err)
	}
	return b.Bytes()
}

var empty = mustEncode(code.End())
var zeroI32 = mustEncode(code.I32Const(0), code.End())
