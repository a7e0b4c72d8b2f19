package exec

import (
	"runtime"
	"strings"
)

// Trap is a WASM trap: a runtime fault identified by one of the
// WebAssembly specification's closed set of messages. It implements
// error so it can cross the Instance.Invoke boundary as an ordinary
// returned error, even though internally the interpreter raises one via
// panic and lets Invoke's recover turn it back into this type.
type Trap string

func (t Trap) Error() string {
	return string(t)
}

// The closed set of spec-mandated trap messages.
var (
	TrapGeneric                    = Trap("")
	TrapUndefinedElement           = Trap("undefined element")
	TrapUninitializedElement       = Trap("uninitialized element")
	TrapIndirectCallTypeMismatch   = Trap("indirect call type mismatch")
	TrapOutOfBoundsMemoryAccess    = Trap("out of bounds memory access")
	TrapIntegerOverflow            = Trap("integer overflow")
	TrapInvalidConversionToInteger = Trap("invalid conversion to integer")
	TrapIntegerDivideByZero        = Trap("integer divide by zero")
	TrapCallStackExhausted         = Trap("call stack exhausted")
	TrapUnreachable                = Trap("unreachable")
)

// runtimeTrapPrefixes maps a Go runtime.Error's message prefix to the
// spec trap it corresponds to. A slice rather than a switch so a new
// mapping can be added without touching TranslateRuntimeError's logic.
var runtimeTrapPrefixes = []struct {
	prefix string
	trap   Trap
}{
	{"runtime error: index out of range", TrapOutOfBoundsMemoryAccess},
	{"runtime error: slice bounds out of range", TrapOutOfBoundsMemoryAccess},
	{"runtime error: invalid memory address or nil pointer dereference", TrapOutOfBoundsMemoryAccess},
	{"runtime error: integer divide by zero", TrapIntegerDivideByZero},
}

// TranslateRuntimeError maps a Go runtime panic (an out-of-range slice
// index, say) to the spec trap an embedder should see instead of a raw
// Go error. The interpreter deliberately leans on Go's own bounds checks
// for memory/table access rather than re-checking bounds itself; this is
// what turns those panics back into spec-conformant traps.
func TranslateRuntimeError(err runtime.Error) (Trap, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	for _, m := range runtimeTrapPrefixes {
		if strings.HasPrefix(msg, m.prefix) {
			return m.trap, true
		}
	}
	return "", false
}

// TranslateRecover inspects the result of recover() at a call boundary:
// a Go runtime.Error it recognizes is re-panicked as the matching Trap,
// anything else is re-panicked unchanged, and nil is a no-op. Callers
// install it as:
//
//	defer func() { exec.TranslateRecover(recover()) }()
func TranslateRecover(x interface{}) {
	if x == nil {
		return
	}
	if err, ok := x.(runtime.Error); ok {
		if trap, ok := TranslateRuntimeError(err); ok {
			panic(trap)
		}
	}
	panic(x)
}
