package exec

import (
	"io"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/trace"
)

// unboundedDepth is the sentinel maxDepth NewThread installs when called
// with 0, meaning "no call-stack cap" rather than "cap of zero".
const unboundedDepth = (1 << 32) - 1

// Frame is one WASM activation record, linked to its caller so a tracer
// or a future stack-walking API can recover the call chain.
type Frame struct {
	Caller            *Frame
	ModuleName        string
	FunctionIndex     uint32
	FunctionSignature wasm.FunctionSig
	Locals            []uint64
}

// Thread is the execution context a call to Instance.Invoke or
// Function.Call runs on: its nesting depth against a cap, its active
// frame chain, and an optional step tracer.
type Thread struct {
	active   *Frame
	trace    io.Writer
	debug    bool
	depth    uint
	maxDepth uint
}

// NewThread creates a thread whose nested calls trap with
// TrapCallStackExhausted past maxDepth activations. maxDepth of 0 means
// unbounded.
func NewThread(maxDepth uint) Thread {
	if maxDepth == 0 {
		maxDepth = unboundedDepth
	}
	return Thread{maxDepth: maxDepth}
}

// NewDebugThread is NewThread plus a step tracer: every frame entry and
// exit (EnterFrame/LeaveFrame) and every instruction executed on this
// thread is also recorded to w in the wasm/trace wire format, terminated
// by Close.
func NewDebugThread(w io.Writer, maxDepth uint) Thread {
	t := NewThread(maxDepth)
	t.trace, t.debug = w, true
	return t
}

// Close finalizes the thread's trace stream, if it has one.
func (t *Thread) Close() error {
	if t.trace == nil {
		return nil
	}
	var end trace.EndEntry
	return end.Encode(t.trace)
}

// Trace returns the thread's tracer, if NewDebugThread created it.
func (t *Thread) Trace() (io.Writer, bool) {
	if t.trace == nil {
		return nil, false
	}
	return t.trace, true
}

// Debug reports whether frames entered on this thread are traced.
func (t *Thread) Debug() bool {
	return t.debug
}

// MaxDepth returns the thread's call-stack depth cap.
func (t *Thread) MaxDepth() uint {
	return t.maxDepth
}

// Enter accounts for one more nested activation without attaching a
// Frame, for callees (like HostFunction) that don't need a Frame's
// module/function bookkeeping but still must count against the depth
// cap. Every Enter must be matched by a Leave.
func (t *Thread) Enter() {
	if t.depth >= t.maxDepth {
		panic(TrapCallStackExhausted)
	}
	t.depth++
}

// Leave undoes one Enter.
func (t *Thread) Leave() {
	t.depth--
}

// EnterFrame is Enter plus pushing f onto the active frame chain and
// emitting a trace entry if the thread is debugging. Every EnterFrame
// must be matched by a LeaveFrame.
func (t *Thread) EnterFrame(f *Frame) {
	t.Enter()
	f.Caller, t.active = t.active, f

	if t.trace == nil {
		return
	}
	enter := trace.EnterEntry{
		ModuleName:        f.ModuleName,
		FunctionIndex:     f.FunctionIndex,
		FunctionSignature: f.FunctionSignature,
	}
	enter.Encode(t.trace)
}

// LeaveFrame undoes one EnterFrame.
func (t *Thread) LeaveFrame() {
	t.Leave()
	t.active = t.active.Caller

	if t.trace == nil {
		return
	}
	var leave trace.LeaveEntry
	leave.Encode(t.trace)
}
