package exec

import (
	"io"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
	"github.com/sassembla/wasmcore/wasm/trace"
)

// frameKind distinguishes a bytecode-backed activation (one with a
// decoded body to interpret) from a virtual one pushed only to carry
// arguments/returns for a call into an externally-implemented Function
// (a host function, or any Function that isn't *instanceFunction).
type frameKind int

const (
	frameKindBytecode frameKind = iota
	frameKindVirtual
)

// frame is one live activation inside the machine's arena. Its locals,
// blocks, and stack slices all alias the arena; base records where the
// frame's own storage (past the caller-supplied params) begins.
type frame struct {
	m *machine

	module *Instance
	params int
	base   int
	locals []uint64
	blocks []uint64
	stack  []uint64
}

// machine owns the backing storage for one thread's call stack: a single
// growable []uint64 arena sliced into each active frame's locals, block
// labels, and operand stack, avoiding a per-call allocation.
type machine struct {
	thread *Thread

	arena  []uint64
	frames []frame
}

// scope adapts an Instance's resolved index spaces to code.Scope so a
// body can be decoded lazily against the module it belongs to.
type scope struct {
	module *Instance
	locals []wasm.ValueType
}

func (s *scope) GetLocalType(localidx uint32) (wasm.ValueType, bool) {
	if localidx >= uint32(len(s.locals)) {
		return 0, false
	}
	return s.locals[int(localidx)], true
}

func (s *scope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	global, ok := s.module.getGlobal(globalidx)
	if !ok {
		return wasm.GlobalVar{}, false
	}
	return global.Type(), true
}

func (s *scope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	fn, ok := s.module.getFunction(funcidx)
	if !ok {
		return wasm.FunctionSig{}, false
	}
	return fn.GetSignature(), true
}

func (s *scope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	if typeidx >= uint32(len(s.module.types)) {
		return wasm.FunctionSig{}, false
	}
	return s.module.types[int(typeidx)], true
}

func (s *scope) HasTable(tableidx uint32) bool {
	return tableidx == 0 && s.module.table0 != nil
}

func (s *scope) HasMemory(memoryidx uint32) bool {
	return memoryidx == 0 && s.module.mem0 != nil
}

func (m *machine) init(t *Thread) {
	m.thread = t
	m.arena = make([]uint64, 0, 1024)
	m.frames = make([]frame, 0, 128)
}

func clear64(s []uint64) {
	for i := range s {
		s[i] = 0
	}
}

// top is the arena offset one past the frame's storage.
//
// Frame layout within the arena:
//
//	params (f.params)                      <-- f.locals starts here
//	---
//	locals (len(f.locals) - f.params)      <-- base points here
//	blocks (cap(f.blocks))                 <-- f.blocks starts here
//	stack  (len(f.stack))                  <-- f.stack starts here
func (f *frame) top() int {
	return f.base + len(f.stack) + cap(f.blocks) + len(f.locals) - f.params
}

// grow reallocates the arena with room for at least need more slots and
// re-slices every live frame's views into the new backing array.
func (m *machine) grow(arena []uint64, need int) []uint64 {
	extra := (need/1024 + 1) * 1024
	grown := make([]uint64, len(arena), len(arena)+extra)
	copy(grown, arena)

	for i := range m.frames {
		f := &m.frames[i]

		fr := grown[f.base-f.params:]
		f.locals, fr = fr[0:len(f.locals):len(f.locals)], fr[len(f.locals):]
		f.blocks, fr = fr[0:len(f.blocks):cap(f.blocks)], fr[cap(f.blocks):]
		f.stack = fr[0:len(f.stack):cap(f.stack)]
	}
	return grown
}

// alloc carves a new frame out of the arena, overlapping its params
// with the top of the caller's operand stack so arguments are passed
// without copying.
func (m *machine) alloc(nparams, nlocals, maxStack, maxBlocks int) *frame {
	frameSize := maxStack + nlocals + maxBlocks - nparams

	arena := m.arena
	if len(m.frames) != 0 {
		arena = m.arena[:m.frames[len(m.frames)-1].top()]
	}
	if cap(arena)-len(arena) < frameSize {
		arena = m.grow(arena, frameSize)
	}

	if cap(m.frames)-len(m.frames) < 1 {
		frames := make([]frame, len(m.frames), cap(m.frames)+128)
		copy(frames, m.frames)
		m.frames = frames
	}
	m.frames = m.frames[:len(m.frames)+1]
	f := &m.frames[len(m.frames)-1]

	base := len(arena)
	fr := arena[base-nparams:]
	flocals := fr[0 : nlocals : nlocals+maxStack]
	fblocks := fr[nlocals : nlocals : nlocals+maxBlocks]
	fstack := fr[nlocals+maxBlocks : nlocals+maxBlocks : nlocals+maxBlocks+maxStack]
	clear64(fr[nparams:nlocals])

	m.arena = arena[:len(arena)+frameSize]

	f.m = m
	f.params = nparams
	f.base = base
	f.locals = flocals
	f.blocks = fblocks
	f.stack = fstack
	return f
}

// pushFrame allocates an activation for fn, decoding and caching its
// body on first call.
func (m *machine) pushFrame(fn *instanceFunction) *frame {
	if fn.kind == frameKindBytecode && fn.icode == nil {
		locals := fn.localTypes()
		fn.numLocals = len(locals)

		body, err := code.Decode(fn.bytecode, &scope{
			module: fn.module,
			locals: locals,
		}, fn.signature.ReturnTypes)
		if err != nil {
			panic(err)
		}
		fn.icode, fn.metrics, fn.bytecode = body.Instructions, body.Metrics, nil
	}

	nblocks := fn.metrics.MaxNesting * 2
	if fn.kind == frameKindVirtual {
		nblocks = 0
	}

	f := m.alloc(len(fn.signature.ParamTypes), fn.numLocals, fn.metrics.MaxStackDepth, nblocks)
	f.module = fn.module
	return f
}

// popFrame relocates fn's results down over its params and releases the
// frame's arena storage.
func (m *machine) popFrame(fn *instanceFunction) {
	f := &m.frames[len(m.frames)-1]

	nresults := len(fn.signature.ReturnTypes)
	sp := f.base - f.params
	copy(m.arena[sp:], f.stack[len(f.stack)-nresults:])

	m.arena = m.arena[:sp+nresults]
	m.frames = m.frames[:len(m.frames)-1]
}

func (f *frame) trap(t Trap) {
	panic(t)
}

func (f *frame) runDebug(fn *instanceFunction) {
	f.m.thread.EnterFrame(&Frame{
		ModuleName:        f.module.name,
		FunctionIndex:     fn.index,
		FunctionSignature: fn.signature,
		Locals:            f.locals,
	})

	if tracer, tracing := f.m.thread.Trace(); tracing {
		f.runTraced(tracer, fn)
	} else {
		f.runICode(fn)
	}

	f.m.thread.LeaveFrame()
}

// runTraced is runICode one step at a time, recording each
// instruction's consumed and produced values to the trace sink.
func (f *frame) runTraced(w io.Writer, fn *instanceFunction) {
	f.blocks = f.blocks[:2]
	f.blocks[0] = uint64(len(fn.icode) - 1)
	f.blocks[1] = uint64(len(fn.signature.ReturnTypes))

	s := scope{module: f.module, locals: fn.localTypes()}
	ip := 0
	for {
		instr := &fn.icode[ip]
		popT, pushT := instr.Types(&s)
		pop, push := len(popT), len(pushT)
		entry := trace.InstructionEntry{
			IP:          ip,
			Instruction: *instr,
			ArgTypes:    popT,
			ResultTypes: pushT,
			Args:        make([]uint64, pop),
			Results:     make([]uint64, push),
		}
		copy(entry.Args, f.stack[len(f.stack)-pop:])

		ip = f.step(fn.icode, ip)

		copy(entry.Results, f.stack[len(f.stack)-push:])
		entry.Encode(w)

		if ip == len(fn.icode) {
			return
		}
	}
}

// invoke calls any Function from f's stack. A non-native callee gets a
// virtual frame whose locals are the arguments and whose stack receives
// the results.
func (f *frame) invoke(fn Function) {
	if fn, ok := fn.(*instanceFunction); ok {
		f.invokeDirect(fn)
		return
	}

	sig := fn.GetSignature()
	desc := instanceFunction{
		signature: sig,
		metrics: code.Metrics{
			MaxStackDepth: len(sig.ReturnTypes),
			MaxNesting:    1,
		},
		kind:      frameKindVirtual,
		numLocals: len(sig.ParamTypes),
	}

	callee := f.m.pushFrame(&desc)
	callee.stack = callee.stack[:len(sig.ReturnTypes)]
	fn.UncheckedCall(callee.m.thread, callee.locals, callee.stack)
	callee.m.popFrame(&desc)

	f.stack = f.stack[:len(f.stack)-len(sig.ParamTypes)+len(sig.ReturnTypes)]
}

func (f *frame) invokeDirect(fn *instanceFunction) {
	callee := f.m.pushFrame(fn)

	if f.m.thread.Debug() {
		callee.runDebug(fn)
	} else {
		callee.m.thread.Enter()
		callee.runICode(fn)
		callee.m.thread.Leave()
	}

	callee.m.popFrame(fn)

	f.stack = f.stack[:len(f.stack)-len(fn.signature.ParamTypes)+len(fn.signature.ReturnTypes)]
}
