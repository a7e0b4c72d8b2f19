package wast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassembla/wasmcore/wasm"
)

func assembleModule(t *testing.T, text string) *wasm.Module {
	t.Helper()

	ast, err := ParseModule(NewScanner(strings.NewReader(text)))
	require.NoError(t, err)

	mod, err := ast.Decode()
	require.NoError(t, err)

	return mod
}

func TestAssembleEmptyModuleHasNoSections(t *testing.T) {
	mod := assembleModule(t, `(module)`)

	assert.Nil(t, mod.Types)
	assert.Nil(t, mod.Import)
	assert.Nil(t, mod.Function)
	assert.Nil(t, mod.Table)
	assert.Nil(t, mod.Memory)
	assert.Nil(t, mod.Global)
	assert.Nil(t, mod.Export)
	assert.Nil(t, mod.Start)
	assert.Nil(t, mod.Elements)
	assert.Nil(t, mod.Code)
	assert.Nil(t, mod.Data)
	assert.Empty(t, mod.Customs)
}

func TestAssembleNamedModuleEmitsNameSection(t *testing.T) {
	mod := assembleModule(t, `(module $m)`)

	require.Len(t, mod.Customs, 1)
	assert.Equal(t, wasm.CustomSectionName, mod.Customs[0].Name)

	names, err := mod.Names()
	require.NoError(t, err)
	require.NotEmpty(t, names.Entries)

	modName, ok := names.Entries[0].(*wasm.ModuleNameSubsection)
	require.True(t, ok)
	assert.Equal(t, "m", modName.Name)
}

func TestAssembleInlineMemoryDataSetsPageLimits(t *testing.T) {
	mod := assembleModule(t, `(module (memory (data "hello world")))`)

	require.NotNil(t, mod.Memory)
	require.Len(t, mod.Memory.Entries, 1)

	limits := mod.Memory.Entries[0].Limits
	assert.Equal(t, uint8(1), limits.Flags)
	assert.Equal(t, uint32(1), limits.Initial)
	assert.Equal(t, uint32(1), limits.Maximum)

	require.NotNil(t, mod.Data)
	require.Len(t, mod.Data.Entries, 1)

	seg := mod.Data.Entries[0]
	assert.Equal(t, uint32(0), seg.Index)
	assert.Equal(t, []byte("hello world"), seg.Data)
}

func assertAssembleFails(t *testing.T, text string) {
	t.Helper()

	_, err := ParseModule(NewScanner(strings.NewReader(text)))
	require.Error(t, err)

	_, ok := err.(*SyntaxError)
	assert.True(t, ok, "expected *SyntaxError, got %T: %v", err, err)
}

func TestAssembleRejectsUnsupportedLimitsClause(t *testing.T) {
	assertAssembleFails(t, `(module (memory (limits +10 +40)))`)
}

func TestAssembleRejectsDuplicateLimitsClauses(t *testing.T) {
	assertAssembleFails(t, `(module (memory (limits 10 40) (limits 10 40)))`)
}

func TestAssembleRejectsImportMemoryWithoutLimits(t *testing.T) {
	assertAssembleFails(t, `(module (memory (import "mod" "mem")))`)
}

func decodeFails(t *testing.T, text string) error {
	t.Helper()

	ast, err := ParseModule(NewScanner(strings.NewReader(text)))
	require.NoError(t, err)

	_, err = ast.Decode()
	require.Error(t, err)
	return err
}

func TestAssembleRejectsDuplicateFunctionName(t *testing.T) {
	err := decodeFails(t, `(module (func $f) (func $f))`)

	dup, ok := err.(DuplicateIdentifierError)
	require.True(t, ok, "expected DuplicateIdentifierError, got %T: %v", err, err)
	assert.Equal(t, "$f", string(dup))
}

func TestAssembleSuggestsClosestIdentifier(t *testing.T) {
	err := decodeFails(t, `(module (func $helper) (start $helpr))`)

	unresolved, ok := err.(UnresolvedIdentifierError)
	require.True(t, ok, "expected UnresolvedIdentifierError, got %T: %v", err, err)
	assert.Equal(t, "$helpr", unresolved.Name)
	assert.Equal(t, "$helper", unresolved.Suggestion)
}

func TestAssembleRejectsMismatchedTypeUse(t *testing.T) {
	err := decodeFails(t, `(module
	  (type $t (func (param i32) (result i32)))
	  (func (type $t) (param f64) (result i32) i32.const 0))`)

	_, ok := err.(TypeMismatchError)
	require.True(t, ok, "expected TypeMismatchError, got %T: %v", err, err)
}

func TestAssembleAcceptsMatchingTypeUse(t *testing.T) {
	mod := assembleModule(t, `(module
	  (type $t (func (param i32) (result i32)))
	  (func (type $t) (param i32) (result i32) local.get 0))`)

	require.NotNil(t, mod.Types)
	assert.Len(t, mod.Types.Entries, 1)
}
