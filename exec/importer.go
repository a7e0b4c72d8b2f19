package exec

import (
	"errors"
	"fmt"

	"github.com/sassembla/wasmcore/wasm"
)

// ErrInvalidTypeIndex is returned by Instantiate if a function import names a
// type index outside the module's type section.
var ErrInvalidTypeIndex = errors.New("wasm: invalid type index")

// Function is any callable an instance can hold: a function defined by
// a module body, or a host-implemented one (HostFunction). Call boxes
// its arguments and results; UncheckedCall works directly in the
// interpreter's raw uint64 convention and performs no checking — the
// caller is responsible for matching the signature's argument and
// result counts.
type Function interface {
	GetSignature() wasm.FunctionSig
	Call(thread *Thread, args ...interface{}) []interface{}
	UncheckedCall(thread *Thread, args, returns []uint64)
}

// An Importer resolves a module's import entries to concrete function,
// global, memory, and table instances. A single Importer serves all of a
// module's imports; unlike a multi-module linker, it has no notion of
// separately instantiated modules — it is free to synthesize values on
// the fly (as the spec-test importer does) or to hand back instances it
// owns.
type Importer interface {
	// ImportFunction resolves a function import. The returned function's
	// signature must equal type_ or Instantiate fails with an ImportError.
	ImportFunction(moduleName, fieldName string, type_ wasm.FunctionSig) (Function, error)
	// ImportGlobal resolves a global import. The returned global's type
	// must equal type_ or Instantiate fails with an ImportError.
	ImportGlobal(moduleName, fieldName string, type_ wasm.GlobalVar) (*Global, error)
	// ImportMemory resolves a memory import. The returned memory's minimum
	// must be at least type_'s minimum and, when type_ declares a maximum,
	// its maximum must not exceed that maximum, or Instantiate fails with
	// an ImportError.
	ImportMemory(moduleName, fieldName string, type_ wasm.Memory) (*Memory, error)
	// ImportTable resolves a table import. The returned table's minimum
	// must be at least type_'s minimum and, when type_ declares a maximum,
	// its maximum must not exceed that maximum, or Instantiate fails with
	// an ImportError.
	ImportTable(moduleName, fieldName string, type_ wasm.Table) (*Table, error)
}

// An ImportError reports that an import entry could not be resolved, or
// that the value an Importer returned for it does not match the entry's
// declared type.
type ImportError struct {
	ModuleName string
	FieldName  string
	Reason     string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("wasm: import %s.%s: %s", e.ModuleName, e.FieldName, e.Reason)
}

func newImportError(moduleName, fieldName, reason string) error {
	return &ImportError{ModuleName: moduleName, FieldName: fieldName, Reason: reason}
}

func limitsMatch(min, max uint32, expected wasm.ResizableLimits) bool {
	return min >= expected.Initial && (expected.Flags == 0 || max <= expected.Maximum)
}
