// Script-command AST: the node kinds ParseScript produces for the
// .wast conformance-test grammar. ModuleCommand is the subset this
// module's assembler (module_decode.go) can lower to a wasm.Module;
// the remaining commands exist so a full fixture parses cleanly even
// though the script runner that would drive them is an external
// collaborator.
package wast

import (
	"strings"

	"github.com/sassembla/wasmcore/wasm"
)

type Command interface {
	CommandPos() Pos

	isCommand()
}

// commandNode marks a type as a Command.
type commandNode struct{}

func (commandNode) isCommand() {}

// Action is a command that exercises an instantiated module: an invoke
// or a global get.
type Action interface {
	Command
	isAction()
}

type actionNode struct{ commandNode }

func (actionNode) isAction() {}

type Script struct {
	Commands []Command
}

// ModuleCommand is any command that denotes a module: an inline
// (module ...) body or a binary/quoted literal.
type ModuleCommand interface {
	Command

	Decode() (*wasm.Module, error)
	ModuleName() string
}

// ModuleLiteral is a (module binary ...) or (module quote ...) form,
// holding the module as undecoded bytes or source text.
type ModuleLiteral struct {
	commandNode
	Pos Pos

	Name     string
	IsBinary bool
	Data     string
}

func (m *ModuleLiteral) Decode() (*wasm.Module, error) {
	if m.IsBinary {
		return wasm.DecodeModule(strings.NewReader(m.Data))
	}

	tm, err := ParseModule(NewScanner(strings.NewReader(m.Data)))
	if err != nil {
		return nil, err
	}
	return tm.Decode()
}

func (m *ModuleLiteral) ModuleName() string { return m.Name }
func (m *ModuleLiteral) CommandPos() Pos    { return m.Pos }

type Register struct {
	commandNode
	Pos Pos

	Export string
	Name   string
}

func (r *Register) CommandPos() Pos { return r.Pos }

type Invoke struct {
	actionNode
	Pos Pos

	Name   string
	Export string
	Args   []interface{}
}

func (i *Invoke) CommandPos() Pos { return i.Pos }

type Get struct {
	actionNode
	Pos Pos

	Name   string
	Export string
}

func (g *Get) CommandPos() Pos { return g.Pos }

type AssertReturn struct {
	commandNode
	Pos Pos

	Action  Action
	Results []interface{}
}

func (a *AssertReturn) CommandPos() Pos { return a.Pos }

type AssertTrap struct {
	commandNode
	Pos Pos

	Command Command
	Failure string
}

func (a *AssertTrap) CommandPos() Pos { return a.Pos }

type AssertExhaustion struct {
	commandNode
	Pos Pos

	Action  Action
	Failure string
}

func (a *AssertExhaustion) CommandPos() Pos { return a.Pos }

// ModuleAssertion is assert_malformed/assert_invalid/assert_unlinkable,
// tagged by Kind.
type ModuleAssertion struct {
	commandNode
	Pos Pos

	Kind    TokenKind
	Module  ModuleCommand
	Failure string
}

func (m *ModuleAssertion) CommandPos() Pos { return m.Pos }

type ScriptCommand struct {
	commandNode
	Pos Pos

	Name   string
	Script *Script
}

func (s *ScriptCommand) CommandPos() Pos { return s.Pos }

type Input struct {
	commandNode
	Pos Pos

	Name string
	Path string
}

func (i *Input) CommandPos() Pos { return i.Pos }

type Output struct {
	commandNode
	Pos Pos

	Name string
	Path string
}

func (o *Output) CommandPos() Pos { return o.Pos }
