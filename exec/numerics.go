package exec

import "math"

// canonicalNaN64Bits is the bit pattern of the canonical (arithmetic) NaN
// for f64: a quiet NaN with no payload beyond the quiet bit.
const canonicalNaN64Bits = 0x7ff8000000000000

// canonicalNaN32Bits is the bit pattern of the canonical (arithmetic) NaN
// for f32.
const canonicalNaN32Bits = 0x7fc00000

// canonicalNaN returns the canonical quiet NaN, discarding any payload
// carried by a propagated NaN operand.
func canonicalNaN() float64 {
	return math.Float64frombits(canonicalNaN64Bits)
}

// CanonicalNaN32 returns the canonical quiet NaN at f32 width.
func CanonicalNaN32() float32 {
	return math.Float32frombits(canonicalNaN32Bits)
}

func I32DivS(i1, i2 int32) int32 {
	if i1 == math.MinInt32 && i2 == -1 {
		panic(TrapIntegerOverflow)
	}
	return i1 / i2
}

func I64DivS(i1, i2 int64) int64 {
	if i1 == math.MinInt64 && i2 == -1 {
		panic(TrapIntegerOverflow)
	}
	return i1 / i2
}

// Fmax implements WASM's f64.max: if either operand is a NaN, the result
// is the canonical NaN rather than the operand's own payload.
func Fmax(z1, z2 float64) float64 {
	if math.IsNaN(z1) || math.IsNaN(z2) {
		return canonicalNaN()
	}
	return math.Max(z1, z2)
}

// Fmin implements WASM's f64.min: if either operand is a NaN, the result
// is the canonical NaN rather than the operand's own payload.
func Fmin(z1, z2 float64) float64 {
	if math.IsNaN(z1) || math.IsNaN(z2) {
		return canonicalNaN()
	}
	return math.Min(z1, z2)
}

// F32Max implements WASM's f32.max at native width, so a NaN result is
// canonicalized without passing through a float64 round-trip.
func F32Max(z1, z2 float32) float32 {
	if math.IsNaN(float64(z1)) || math.IsNaN(float64(z2)) {
		return CanonicalNaN32()
	}
	if z1 > z2 {
		return z1
	}
	if z2 > z1 {
		return z2
	}
	// +0 and -0 compare equal; max(+0, -0) is +0.
	if math.Signbit(float64(z1)) {
		return z2
	}
	return z1
}

// F32Min implements WASM's f32.min at native width, so a NaN result is
// canonicalized without passing through a float64 round-trip.
func F32Min(z1, z2 float32) float32 {
	if math.IsNaN(float64(z1)) || math.IsNaN(float64(z2)) {
		return CanonicalNaN32()
	}
	if z1 < z2 {
		return z1
	}
	if z2 < z1 {
		return z2
	}
	if math.Signbit(float64(z1)) {
		return z1
	}
	return z2
}

// truncFloat truncates toward zero, trapping on NaN; the per-width
// trunc operators below add their own range checks. The 64-bit bounds
// compare exclusively because the maxima are not exactly representable
// at float64 precision.
func truncFloat(z float64) float64 {
	z = math.Trunc(z)
	if math.IsNaN(z) {
		panic(TrapInvalidConversionToInteger)
	}
	return z
}

func I32TruncS(z float64) int32 {
	z = truncFloat(z)
	if z < math.MinInt32 || z > math.MaxInt32 {
		panic(TrapIntegerOverflow)
	}
	return int32(z)
}

func I32TruncU(z float64) uint32 {
	z = truncFloat(z)
	if z <= -1 || z > math.MaxUint32 {
		panic(TrapIntegerOverflow)
	}
	return uint32(z)
}

func I64TruncS(z float64) int64 {
	z = truncFloat(z)
	if z < math.MinInt64 || z >= math.MaxInt64 {
		panic(TrapIntegerOverflow)
	}
	return int64(z)
}

func I64TruncU(z float64) uint64 {
	z = truncFloat(z)
	if z <= -1 || z >= math.MaxUint64 {
		panic(TrapIntegerOverflow)
	}
	return uint64(z)
}

func I32TruncSatS(z float64) int32 {
	switch {
	case math.IsNaN(z):
		return 0
	case math.IsInf(z, -1) || z <= math.MinInt32:
		return math.MinInt32
	case math.IsInf(z, 1) || z >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(z)
	}
}

func I32TruncSatU(z float64) uint32 {
	switch {
	case math.IsNaN(z) || math.IsInf(z, -1) || z < 0:
		return 0
	case math.IsInf(z, 1) || z >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(z)
	}
}

func I64TruncSatS(z float64) int64 {
	switch {
	case math.IsNaN(z):
		return 0
	case math.IsInf(z, -1) || z <= math.MinInt64:
		return math.MinInt64
	case math.IsInf(z, 1) || z >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(z)
	}
}

func I64TruncSatU(z float64) uint64 {
	switch {
	case math.IsNaN(z) || math.IsInf(z, -1) || z < 0:
		return 0
	case math.IsInf(z, 1) || z >= math.MaxUint64:
		return math.MaxUint64
	default:
		return uint64(z)
	}
}
