package wast

import (
	"github.com/sassembla/wasmcore/wasm"
)

// ParseModule parses a single (module ...) form.
func ParseModule(scanner *Scanner) (module *Module, err error) {
	defer func() {
		if v := recover(); v != nil {
			e, ok := v.(error)
			if !ok {
				panic(v)
			}
			err = e
		}
	}()

	p := parser{s: scanner}
	p.start()
	pos := p.tok.Pos
	p.expect('(')
	m := p.parseModule(pos, false).(*Module)
	p.expect(EOF)
	return m, nil
}

func (p *parser) parseModule(pos Pos, allowCommand bool) ModuleCommand {
	p.expect(MODULE)

	name, _ := p.maybe(VAR).(string)

	if allowCommand && (p.tok.Kind == BINARY || p.tok.Kind == QUOTE) {
		return p.parseModuleLiteral(pos, name)
	}

	m := p.parseModuleBody(name)
	m.Pos = pos

	p.expect(')')
	return m
}

// moduleFieldParsers dispatches each section keyword to the parser that
// appends its field to the module under construction.
var moduleFieldParsers = map[TokenKind]func(p *parser, m *Module){
	TYPE:   func(p *parser, m *Module) { m.Types = append(m.Types, p.parseTypedef()) },
	FUNC:   func(p *parser, m *Module) { m.Funcs = append(m.Funcs, p.parseFunc()) },
	IMPORT: func(p *parser, m *Module) { m.Imports = append(m.Imports, p.parseImport()) },
	EXPORT: func(p *parser, m *Module) { m.Exports = append(m.Exports, p.parseExport()) },
	TABLE:  func(p *parser, m *Module) { m.Tables = append(m.Tables, p.parseTable()) },
	MEMORY: func(p *parser, m *Module) { m.Memories = append(m.Memories, p.parseMemory()) },
	GLOBAL: func(p *parser, m *Module) { m.Globals = append(m.Globals, p.parseGlobal()) },
	ELEM:   func(p *parser, m *Module) { m.Elems = append(m.Elems, p.parseElem()) },
	DATA:   func(p *parser, m *Module) { m.Data = append(m.Data, p.parseData()) },
	START: func(p *parser, m *Module) {
		if m.Start != nil {
			panic(p.errorf("multiple start sections"))
		}
		m.Start = p.parseStart()
	},
}

func (p *parser) parseModuleBody(name string) *Module {
	m := Module{Name: name}

	for p.tok.Kind == '(' {
		parse, ok := moduleFieldParsers[p.peek()]
		if !ok {
			panic(p.errorf("expected TYPE, FUNC, IMPORT, EXPORT, TABLE, MEMORY, GLOBAL, ELEM, DATA, or START (got %v)", p.tok.Kind))
		}
		parse(p, &m)
	}

	return &m
}

// openField consumes "(<kind>" plus the field's optional $name.
func (p *parser) openField(kind TokenKind) string {
	p.expectSExpr(kind)
	name, _ := p.maybe(VAR).(string)
	return name
}

func (p *parser) parseTypedef() *Typedef {
	name := p.openField(TYPE)
	defer p.closeSExpr()

	p.expectSExpr(FUNC)
	defer p.closeSExpr()

	return &Typedef{
		Name:    name,
		Params:  p.parseParams(),
		Results: p.parseResults(),
	}
}

func (p *parser) parseFunc() *Func {
	name := p.openField(FUNC)
	defer p.closeSExpr()

	exports := p.parseInlineExports()
	import_ := p.parseInlineImport()
	typ := p.parseFuncType()

	locals, instrs := []*Local(nil), []Instr(nil)
	if import_ == nil {
		locals, instrs = p.parseLocals(), p.parseInstrs(')')
	}

	return &Func{
		Name:    name,
		Exports: exports,
		Import:  import_,
		Type:    typ,
		Locals:  locals,
		Instrs:  instrs,
	}
}

// externalParsers dispatches an import's descriptor form.
var externalParsers = map[TokenKind]func(p *parser) External{
	FUNC: func(p *parser) External {
		name := p.openField(FUNC)
		defer p.closeSExpr()
		return &ExternalFunc{Name: name, Type: p.parseFuncType()}
	},
	GLOBAL: func(p *parser) External {
		name := p.openField(GLOBAL)
		defer p.closeSExpr()
		return &ExternalGlobal{Name: name, Type: p.parseGlobalType()}
	},
	TABLE: func(p *parser) External {
		name := p.openField(TABLE)
		defer p.closeSExpr()
		rng := p.parseRange()
		p.expect(FUNCREF)
		return &ExternalTable{Name: name, Range: *rng}
	},
	MEMORY: func(p *parser) External {
		name := p.openField(MEMORY)
		defer p.closeSExpr()
		return &ExternalMemory{Name: name, Range: *p.parseRange()}
	},
}

func (p *parser) parseImport() *Import {
	p.expectSExpr(IMPORT)
	defer p.closeSExpr()

	module, name := p.expect(STRING).(string), p.expect(STRING).(string)

	var external External
	if parse, ok := externalParsers[p.peek()]; ok {
		external = parse(p)
	}

	return &Import{
		Module:   module,
		Name:     name,
		External: external,
	}
}

// exportKinds maps an export descriptor keyword to its external kind.
var exportKinds = map[TokenKind]wasm.External{
	FUNC:   wasm.ExternalFunction,
	GLOBAL: wasm.ExternalGlobal,
	TABLE:  wasm.ExternalTable,
	MEMORY: wasm.ExternalMemory,
}

func (p *parser) parseExport() *Export {
	p.expectSExpr(EXPORT)
	defer p.closeSExpr()

	name := p.expect(STRING).(string)

	p.expect('(')
	defer p.closeSExpr()

	kind, ok := exportKinds[p.tok.Kind]
	if !ok {
		panic(p.errorf("expected FUNC, GLOBAL, TABLE, or MEMORY"))
	}
	p.scan()

	return &Export{
		Name: name,
		Kind: kind,
		Var:  *p.parseVar(),
	}
}

func (p *parser) parseTable() *Table {
	name := p.openField(TABLE)
	defer p.closeSExpr()

	exports := p.parseInlineExports()

	// funcref followed by an inline (elem ...) sizes the table by its
	// element list.
	if p.tok.Kind == FUNCREF {
		p.scan()

		p.expectSExpr(ELEM)
		defer p.closeSExpr()

		var values []Var
		for p.tok.Kind != ')' {
			values = append(values, *p.parseVar())
		}

		return &Table{
			Name:    name,
			Exports: exports,
			Values:  values,
		}
	}

	import_ := p.parseInlineImport()
	rng := p.parseRange()
	p.expect(FUNCREF)

	return &Table{
		Name:    name,
		Exports: exports,
		Import:  import_,
		Range:   rng,
	}
}

func (p *parser) parseMemory() *Memory {
	name := p.openField(MEMORY)
	defer p.closeSExpr()

	exports := p.parseInlineExports()

	// An inline (data ...) form implies the memory's limits.
	if p.scanSExpr(DATA) {
		defer p.closeSExpr()

		var data []string
		for p.tok.Kind != ')' {
			data = append(data, p.expect(STRING).(string))
		}

		return &Memory{
			Name:    name,
			Exports: exports,
			Data:    data,
		}
	}

	return &Memory{
		Name:    name,
		Exports: exports,
		Import:  p.parseInlineImport(),
		Range:   p.parseRange(),
	}
}

func (p *parser) parseGlobal() *Global {
	name := p.openField(GLOBAL)
	defer p.closeSExpr()

	exports := p.parseInlineExports()
	import_ := p.parseInlineImport()
	typ := p.parseGlobalType()

	var init []Instr
	if import_ == nil {
		init = p.parseInstrs(')')
	}

	return &Global{
		Name:    name,
		Exports: exports,
		Import:  import_,
		Type:    typ,
		Init:    init,
	}
}

// parseOffsetExpr parses a segment offset: an explicit (offset ...)
// form or a bare folded expression.
func (p *parser) parseOffsetExpr() []Instr {
	if p.scanSExpr(OFFSET) {
		offset := p.parseInstrs(')')
		p.closeSExpr()
		return offset
	}
	return p.parseExpr()
}

func (p *parser) parseElem() *Elem {
	p.expectSExpr(ELEM)
	defer p.closeSExpr()

	var_ := p.parseVar()
	offset := p.parseOffsetExpr()

	var vars []Var
	for p.tok.Kind != ')' {
		vars = append(vars, *p.parseVar())
	}

	return &Elem{
		Var:    var_,
		Offset: offset,
		Values: vars,
	}
}

func (p *parser) parseData() *Data {
	p.expectSExpr(DATA)
	defer p.closeSExpr()

	var_ := p.parseVar()
	offset := p.parseOffsetExpr()

	var values []string
	for p.tok.Kind != ')' {
		values = append(values, p.expect(STRING).(string))
	}

	return &Data{
		Var:    var_,
		Offset: offset,
		Values: values,
	}
}

func (p *parser) parseStart() *Var {
	p.expectSExpr(START)
	defer p.closeSExpr()

	return p.parseVar()
}

// parseBlockBody parses the shared plain-form body of block and loop:
// the keyword, optional label, block type, instructions, and the
// terminating end with its optional repeated label.
func (p *parser) parseBlockBody(kind TokenKind) (name string, typ *FuncType, instrs []Instr) {
	p.expect(kind)

	name, _ = p.maybe(VAR).(string)
	typ = p.parseFuncType()
	instrs = p.parseInstrs(END)

	p.expect(END)
	p.maybe(VAR)
	return name, typ, instrs
}

func (p *parser) parseBlock() *Block {
	name, typ, instrs := p.parseBlockBody(BLOCK)
	return &Block{Name: name, Type: typ, Instrs: instrs}
}

func (p *parser) parseLoop() *Loop {
	name, typ, instrs := p.parseBlockBody(LOOP)
	return &Loop{Name: name, Type: typ, Instrs: instrs}
}

// parseFoldedBlockBody is parseBlockBody for the folded form, where
// the closing paren stands in for end.
func (p *parser) parseFoldedBlockBody(kind TokenKind) (name string, typ *FuncType, instrs []Instr) {
	name = p.openField(kind)
	typ = p.parseFuncType()
	instrs = p.parseInstrs(')')
	p.closeSExpr()
	return name, typ, instrs
}

func (p *parser) parseBlockExpr() *Block {
	name, typ, instrs := p.parseFoldedBlockBody(BLOCK)
	return &Block{Name: name, Type: typ, Instrs: instrs}
}

func (p *parser) parseLoopExpr() *Loop {
	name, typ, instrs := p.parseFoldedBlockBody(LOOP)
	return &Loop{Name: name, Type: typ, Instrs: instrs}
}

func (p *parser) parseIf() *If {
	p.expect(IF)

	name, _ := p.maybe(VAR).(string)

	typ := p.parseFuncType()
	then := p.parseInstrs(END, ELSE)

	var else_ []Instr
	if p.tok.Kind == ELSE {
		p.scan()
		p.maybe(VAR)

		else_ = p.parseInstrs(END)
	}

	p.expect(END)
	p.maybe(VAR)

	return &If{
		Name: name,
		Type: typ,
		Then: then,
		Else: else_,
	}
}

func (p *parser) parseIfExpr() *If {
	name := p.openField(IF)
	defer p.closeSExpr()

	typ := p.parseFuncType()

	var condition []Instr
	for !p.peekSExpr(THEN) {
		condition = append(condition, p.parseExpr()...)
	}

	p.expectSExpr(THEN)
	then := p.parseInstrs(')')
	p.closeSExpr()

	var else_ []Instr
	if p.scanSExpr(ELSE) {
		else_ = p.parseInstrs(')')
		p.closeSExpr()
	}

	return &If{
		Name:      name,
		Type:      typ,
		Condition: condition,
		Then:      then,
		Else:      else_,
	}
}

func (p *parser) parseInlineExports() []string {
	var exports []string
	for p.scanSExpr(EXPORT) {
		exports = append(exports, p.expect(STRING).(string))
		p.closeSExpr()
	}
	return exports
}

func (p *parser) parseInlineImport() *InlineImport {
	if !p.scanSExpr(IMPORT) {
		return nil
	}
	defer p.closeSExpr()

	return &InlineImport{
		Module: p.expect(STRING).(string),
		Name:   p.expect(STRING).(string),
	}
}

// parseExpr parses one folded instruction: the children are emitted
// before the head, producing the same linear sequence the plain form
// would.
func (p *parser) parseExpr() []Instr {
	switch p.peek() {
	case BLOCK:
		return []Instr{p.parseBlockExpr()}
	case LOOP:
		return []Instr{p.parseLoopExpr()}
	case IF:
		return []Instr{p.parseIfExpr()}
	}

	p.expect('(')
	defer p.closeSExpr()

	final := p.parseOp()
	var instrs []Instr
	for p.tok.Kind != ')' {
		instrs = append(instrs, p.parseExpr()...)
	}

	return append(instrs, final)
}

func (p *parser) parseInstrs(term ...TokenKind) []Instr {
	var instrs []Instr
	for !anyKind(p.tok.Kind, term) {
		switch p.tok.Kind {
		case BLOCK:
			instrs = append(instrs, p.parseBlock())
		case LOOP:
			instrs = append(instrs, p.parseLoop())
		case IF:
			instrs = append(instrs, p.parseIf())
		case '(':
			instrs = append(instrs, p.parseExpr()...)
		default:
			instrs = append(instrs, p.parseOp())
		}
	}
	return instrs
}

func (p *parser) parseFuncType() *FuncType {
	var var_ *Var
	if p.scanSExpr(TYPE) {
		var_ = p.parseVar()
		p.closeSExpr()
	}

	return &FuncType{
		Var:     var_,
		Params:  p.parseParams(),
		Results: p.parseResults(),
	}
}

func (p *parser) parseGlobalType() GlobalType {
	if p.scanSExpr(MUT) {
		defer p.closeSExpr()

		return GlobalType{Mutable: true, Type: p.parseValType()}
	}
	return GlobalType{Type: p.parseValType()}
}

// parseTypedBindings parses a run of (kind ...) forms, each holding
// either one named typed binding or any number of anonymous ones.
// Params and locals share this grammar exactly.
func (p *parser) parseTypedBindings(kind TokenKind) []*Param {
	var bindings []*Param
	for p.scanSExpr(kind) {
		if p.tok.Kind == VAR {
			bindings = append(bindings, &Param{
				Name: p.expect(VAR).(string),
				Type: p.parseValType(),
			})
		} else {
			for p.tok.Kind != ')' {
				bindings = append(bindings, &Param{Type: p.parseValType()})
			}
		}
		p.closeSExpr()
	}
	return bindings
}

func (p *parser) parseParams() []*Param {
	return p.parseTypedBindings(PARAM)
}

func (p *parser) parseLocals() []*Local {
	return p.parseTypedBindings(LOCAL)
}

func (p *parser) parseRange() *Range {
	min := uint32(p.expectI(INT))

	var max *uint32
	if p.tok.Kind == INT {
		m := uint32(p.expectI(INT))
		max = &m
	}

	return &Range{
		Min: min,
		Max: max,
	}
}

func (p *parser) parseResults() []wasm.ValueType {
	var results []wasm.ValueType
	for p.scanSExpr(RESULT) {
		for p.tok.Kind != ')' {
			results = append(results, p.parseValType())
		}
		p.closeSExpr()
	}
	return results
}

func (p *parser) parseValType() wasm.ValueType {
	switch p.tok.Kind {
	case I32:
		p.scan()
		return wasm.ValueTypeI32
	case I64:
		p.scan()
		return wasm.ValueTypeI64
	case F32:
		p.scan()
		return wasm.ValueTypeF32
	case F64:
		p.scan()
		return wasm.ValueTypeF64
	default:
		panic(p.errorf("expected I32, I64, F32, or F64"))
	}
}

func (p *parser) parseVar() *Var {
	switch p.tok.Kind {
	case INT, NAT:
		return &Var{Index: uint32(p.expectI(p.tok.Kind))}
	case VAR:
		return &Var{Name: p.expect(VAR).(string)}
	default:
		return nil
	}
}

func (p *parser) parseConstOp(kind TokenKind) *ConstOp {
	p.scan()

	var v interface{}
	var ok bool
	switch kind {
	case F32_CONST:
		v, ok = p.F32()
	case F64_CONST:
		v, ok = p.F64()
	case I32_CONST:
		v, ok = p.I32()
	case I64_CONST:
		v, ok = p.I64()
	}
	if !ok {
		panic(p.errorf("expected a numeric literal"))
	}
	p.scan()
	return &ConstOp{Code: kind, Value: v}
}

// parseOp parses one plain-form operator. The no-operand and memory
// operators are recognized through the assembler's constructor tables,
// so a mnemonic the assembler can't lower is rejected here too.
func (p *parser) parseOp() Instr {
	kind := p.tok.Kind
	switch kind {
	case BR_TABLE:
		p.scan()

		var vars []Var
		for p.tok.Kind == VAR || p.tok.Kind == NAT || p.tok.Kind == INT {
			vars = append(vars, *p.parseVar())
		}
		return &VarOp{Code: kind, Vars: vars}

	case CALL_INDIRECT:
		p.scan()

		typ := p.parseFuncType()
		return &CallIndirect{Type: *typ}

	case BR, BR_IF, CALL, LOCAL_GET, LOCAL_SET, LOCAL_TEE, GLOBAL_GET, GLOBAL_SET:
		p.scan()

		return &VarOp{Code: kind, Vars: []Var{*p.parseVar()}}

	case F32_CONST, F64_CONST, I32_CONST, I64_CONST:
		return p.parseConstOp(kind)
	}

	if _, ok := memOpConstructors[kind]; ok {
		p.scan()

		var offset *int64
		if p.tok.Kind == OFFSET {
			o := p.expectI(OFFSET, '=', INT)
			offset = &o
		}

		var align *int64
		if p.tok.Kind == ALIGN {
			a := p.expectI(ALIGN, '=', INT)
			align = &a
		}

		return &MemOp{Code: kind, Offset: offset, Align: align}
	}

	if _, ok := plainOpConstructors[kind]; ok {
		p.scan()
		return &Op{Code: kind}
	}

	panic(p.errorf("unknown operator"))
}
