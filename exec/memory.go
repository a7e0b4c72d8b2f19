package exec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ErrLimitExceeded is returned by Memory.Grow when the requested size
// would exceed the memory's maximum.
var ErrLimitExceeded = fmt.Errorf("wasm: memory limit exceeded")

const pageSize = 65536

// absoluteMaxPages is a hard ceiling on memory growth independent of
// ExecutionPolicy: a module's own declared maximum, or the policy's cap
// for an unbounded one, is already enforced by the time a Memory exists
// (see Instantiate), but Grow still guards against a pathological max
// that would overflow when multiplied by pageSize.
const absoluteMaxPages = pageSize

// Memory is a WASM linear memory: a contiguous byte array whose length is
// always a multiple of pageSize. None of its accessors bounds-check their
// effective address — an out-of-range access panics with Go's own
// index/slice-bounds runtime error, which the recover in
// instanceFunction.UncheckedCall translates into
// TrapOutOfBoundsMemoryAccess. This mirrors how the interpreter
// handles every other trap: the fault is detected by the runtime that
// already has to do the bounds arithmetic, not by a second redundant
// check here.
type Memory struct {
	min, max uint32
	bytes    []byte
}

// NewMemory allocates a zero-filled memory of min pages, capped at max.
func NewMemory(min, max uint32) Memory {
	return Memory{min: min, max: max, bytes: make([]byte, int(min)*pageSize)}
}

// Limits returns the memory's minimum and maximum size, in pages.
func (m *Memory) Limits() (min, max uint32) {
	return m.min, m.max
}

// Size returns the current size of the memory, in pages.
func (m *Memory) Size() uint32 {
	return uint32(len(m.bytes) / pageSize)
}

// Grow extends the memory by the given number of pages, returning its
// size before growth. It fails without mutating the memory if the
// resulting size would exceed the memory's maximum or absoluteMaxPages.
func (m *Memory) Grow(pages uint32) (uint32, error) {
	before := m.Size()
	after := uint64(before) + uint64(pages)
	if after > uint64(m.max) || after > absoluteMaxPages {
		return before, ErrLimitExceeded
	}
	grown := make([]byte, int(after)*pageSize)
	copy(grown, m.bytes)
	m.bytes = grown
	return before, nil
}

// Bytes returns the memory's underlying byte slice.
func (m *Memory) Bytes() []byte {
	return m.bytes
}

// effectiveAddr combines a dynamic base (from the operand stack) with an
// instruction's static offset immediate into one linear address.
func effectiveAddr(base, offset uint32) uint64 {
	return uint64(base) + uint64(offset)
}

// Byte and Uint8 are aliases: WASM's i32.load8_u/i64.load8_u instructions
// both read one raw byte. The interpreter's opcode dispatch uses Byte
// and PutByte; Uint8 and PutUint8 are the same accessors under the
// fixed-width naming of Uint16, Uint32 and Uint64.

func (m *Memory) Byte(base, offset uint32) byte {
	return m.bytes[effectiveAddr(base, offset)]
}

func (m *Memory) Uint8(base, offset uint32) byte {
	return m.bytes[effectiveAddr(base, offset)]
}

func (m *Memory) PutByte(v byte, base, offset uint32) {
	m.bytes[effectiveAddr(base, offset)] = v
}

func (m *Memory) PutUint8(v byte, base, offset uint32) {
	m.bytes[effectiveAddr(base, offset)] = v
}

func (m *Memory) Uint16(base, offset uint32) uint16 {
	return binary.LittleEndian.Uint16(m.bytes[effectiveAddr(base, offset):])
}

func (m *Memory) PutUint16(v uint16, base, offset uint32) {
	binary.LittleEndian.PutUint16(m.bytes[effectiveAddr(base, offset):], v)
}

func (m *Memory) Uint32(base, offset uint32) uint32 {
	return binary.LittleEndian.Uint32(m.bytes[effectiveAddr(base, offset):])
}

func (m *Memory) PutUint32(v uint32, base, offset uint32) {
	binary.LittleEndian.PutUint32(m.bytes[effectiveAddr(base, offset):], v)
}

func (m *Memory) Uint64(base, offset uint32) uint64 {
	return binary.LittleEndian.Uint64(m.bytes[effectiveAddr(base, offset):])
}

func (m *Memory) PutUint64(v uint64, base, offset uint32) {
	binary.LittleEndian.PutUint64(m.bytes[effectiveAddr(base, offset):], v)
}

// Float32 and Float64 reinterpret the raw little-endian bit pattern at
// the effective address rather than decoding a float directly, so a NaN's
// payload bits survive the round trip exactly as WASM requires.

func (m *Memory) Float32(base, offset uint32) float32 {
	return math.Float32frombits(m.Uint32(base, offset))
}

func (m *Memory) PutFloat32(v float32, base, offset uint32) {
	m.PutUint32(math.Float32bits(v), base, offset)
}

func (m *Memory) Float64(base, offset uint32) float64 {
	return math.Float64frombits(m.Uint64(base, offset))
}

func (m *Memory) PutFloat64(v float64, base, offset uint32) {
	m.PutUint64(math.Float64bits(v), base, offset)
}
