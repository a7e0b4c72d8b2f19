// Script parsing: ParseScript reads a full .wast fixture (module
// definitions plus test-script commands) into a *Script. A file may
// also open directly with bare section forms, which parse as one
// implicit module command, matching the conformance suite's shorthand.
package wast

import "strings"

func ParseScript(scanner *Scanner) (script *Script, err error) {
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
	return p.parseScript(), nil
}

func (p *parser) parseScript() *Script {
	var commands []Command
	for p.tok.Kind != EOF {
		commands = append(commands, p.parseCommand())
	}
	p.expect(EOF)
	return &Script{Commands: commands}
}

// commandParsers dispatches a command form by its head keyword. The
// opening paren has already been consumed.
var commandParsers map[TokenKind]func(p *parser, pos Pos) Command

func init() {
	commandParsers = map[TokenKind]func(p *parser, pos Pos) Command{
		MODULE:   func(p *parser, pos Pos) Command { return p.parseModule(pos, true) },
		REGISTER: func(p *parser, pos Pos) Command { return p.parseRegister(pos) },
		INVOKE:   func(p *parser, pos Pos) Command { return p.parseInvoke(pos) },
		GET:      func(p *parser, pos Pos) Command { return p.parseGet(pos) },

		ASSERT_RETURN:     func(p *parser, pos Pos) Command { return p.parseAssertReturn(pos) },
		ASSERT_TRAP:       func(p *parser, pos Pos) Command { return p.parseAssertTrap(pos) },
		ASSERT_EXHAUSTION: func(p *parser, pos Pos) Command { return p.parseAssertExhaustion(pos) },
		ASSERT_MALFORMED:  func(p *parser, pos Pos) Command { return p.parseModuleAssertion(pos) },
		ASSERT_INVALID:    func(p *parser, pos Pos) Command { return p.parseModuleAssertion(pos) },
		ASSERT_UNLINKABLE: func(p *parser, pos Pos) Command { return p.parseModuleAssertion(pos) },

		SCRIPT: func(p *parser, pos Pos) Command { return p.parseScriptCommand(pos) },
		INPUT: func(p *parser, pos Pos) Command {
			name, path := p.parsePathCommand(INPUT)
			return &Input{Pos: pos, Name: name, Path: path}
		},
		OUTPUT: func(p *parser, pos Pos) Command {
			name, path := p.parsePathCommand(OUTPUT)
			return &Output{Pos: pos, Name: name, Path: path}
		},
	}
}

func (p *parser) parseCommand() Command {
	if p.tok.Kind == '(' {
		switch p.peek() {
		case TYPE, FUNC, IMPORT, EXPORT, TABLE, MEMORY, GLOBAL, ELEM, DATA, START:
			return p.parseModuleBody("")
		}
	}

	pos := p.tok.Pos
	p.expect('(')

	parse, ok := commandParsers[p.tok.Kind]
	if !ok {
		panic(p.errorf("expected action, assertion, or meta command"))
	}
	return parse(p, pos)
}

func (p *parser) parseModuleLiteral(pos Pos, name string) *ModuleLiteral {
	defer p.closeSExpr()

	isBinary := false
	switch p.tok.Kind {
	case BINARY:
		isBinary = true
	case QUOTE:
		// OK
	default:
		panic(p.errorf("expected BINARY or QUOTE"))
	}
	p.scan()

	var data strings.Builder
	for p.tok.Kind != ')' {
		data.WriteString(p.expect(STRING).(string))
	}

	return &ModuleLiteral{
		Pos:      pos,
		Name:     name,
		IsBinary: isBinary,
		Data:     data.String(),
	}
}

func (p *parser) parseRegister(pos Pos) *Register {
	p.expect(REGISTER)
	defer p.closeSExpr()

	export := p.expect(STRING).(string)
	name, _ := p.maybe(VAR).(string)
	return &Register{
		Pos:    pos,
		Export: export,
		Name:   name,
	}
}

func (p *parser) parseAction(pos Pos) Action {
	p.expect('(')

	switch p.tok.Kind {
	case INVOKE:
		return p.parseInvoke(pos)
	case GET:
		return p.parseGet(pos)
	default:
		panic(p.errorf("expected INVOKE or GET"))
	}
}

func (p *parser) parseInvoke(pos Pos) *Invoke {
	defer p.closeSExpr()
	p.scan()

	name, _ := p.maybe(VAR).(string)

	export := p.expect(STRING).(string)

	var args []interface{}
	for p.tok.Kind != ')' {
		p.expect('(')
		switch p.tok.Kind {
		case F32_CONST, F64_CONST, I32_CONST, I64_CONST:
			args = append(args, p.parseConstOp(p.tok.Kind).Value)
		default:
			panic(p.errorf("expected F32_CONST, F64_CONST, I32_CONST, or I64_CONST"))
		}
		p.closeSExpr()
	}

	return &Invoke{
		Pos:    pos,
		Name:   name,
		Export: export,
		Args:   args,
	}
}

func (p *parser) parseGet(pos Pos) *Get {
	defer p.closeSExpr()
	p.scan()

	name, _ := p.maybe(VAR).(string)
	return &Get{
		Pos:    pos,
		Name:   name,
		Export: p.expect(STRING).(string),
	}
}

// parseResult parses one expected invocation result: a const form, or
// the nan:canonical/nan:arithmetic wildcards the suite uses for float
// results.
func (p *parser) parseResult() interface{} {
	p.expect('(')
	defer p.closeSExpr()

	switch p.tok.Kind {
	case F32_CONST, F64_CONST:
		if n := p.peek(); n == NAN_ARITHMETIC || n == NAN_CANONICAL {
			p.scan()
			p.scan()
			return n
		}
		return p.parseConstOp(p.tok.Kind).Value
	case I32_CONST, I64_CONST:
		return p.parseConstOp(p.tok.Kind).Value
	default:
		panic(p.errorf("expected F32_CONST, F64_CONST, I32_CONST, or I64_CONST"))
	}
}

func (p *parser) parseAssertReturn(pos Pos) *AssertReturn {
	p.expect(ASSERT_RETURN)
	defer p.closeSExpr()

	action := p.parseAction(p.tok.Pos)

	var results []interface{}
	for p.tok.Kind != ')' {
		results = append(results, p.parseResult())
	}

	return &AssertReturn{
		Pos:     pos,
		Action:  action,
		Results: results,
	}
}

func (p *parser) parseAssertTrap(pos Pos) *AssertTrap {
	p.expect(ASSERT_TRAP)
	defer p.closeSExpr()

	return &AssertTrap{
		Pos:     pos,
		Command: p.parseCommand(),
		Failure: p.expect(STRING).(string),
	}
}

func (p *parser) parseAssertExhaustion(pos Pos) *AssertExhaustion {
	p.expect(ASSERT_EXHAUSTION)
	defer p.closeSExpr()

	return &AssertExhaustion{
		Pos:     pos,
		Action:  p.parseAction(p.tok.Pos),
		Failure: p.expect(STRING).(string),
	}
}

func (p *parser) parseModuleAssertion(pos Pos) *ModuleAssertion {
	defer p.closeSExpr()

	kind := p.tok.Kind
	p.scan()

	modulePos := p.tok.Pos
	p.expect('(')
	module := p.parseModule(modulePos, true)

	return &ModuleAssertion{
		Pos:     pos,
		Kind:    kind,
		Module:  module,
		Failure: p.expect(STRING).(string),
	}
}

func (p *parser) parseScriptCommand(pos Pos) *ScriptCommand {
	p.expect(SCRIPT)
	defer p.closeSExpr()

	name, _ := p.maybe(VAR).(string)
	return &ScriptCommand{
		Pos:    pos,
		Name:   name,
		Script: p.parseScript(),
	}
}

// parsePathCommand parses the shared (input ...)/(output ...) body:
// the keyword, an optional name, and the path string.
func (p *parser) parsePathCommand(kind TokenKind) (name, path string) {
	p.expect(kind)
	defer p.closeSExpr()

	name, _ = p.maybe(VAR).(string)
	path = p.expect(STRING).(string)
	return name, path
}
