package xpt

import (
	"encoding/binary"
	"math"
)

// The transport format stores numerics as big-endian IBM System/360
// doubles: a sign bit, a 7-bit excess-64 base-16 exponent, and a
// 56-bit fraction normalized to a nonzero leading hex digit. Missing
// values are a sentinel byte ('.', '_', or 'A' through 'Z') followed
// by seven zero bytes.

// ibmToFloat converts one 8-byte IBM double. ok is false when the
// bytes encode a missing value.
func ibmToFloat(b []byte) (f float64, ok bool) {
	bits := binary.BigEndian.Uint64(b)
	frac := bits & 0x00ffffffffffffff
	if frac == 0 {
		if missingSentinel(b[0]) {
			return 0, false
		}
		// Plain zero, possibly signed.
		return math.Float64frombits(bits & 0x8000000000000000), true
	}

	sign := bits & 0x8000000000000000
	exp := int64((bits >> 56) & 0x7f)

	// Count leading zero bits of the fraction so the implicit IEEE
	// leading 1 lands on bit 52.
	var shift int64
	for frac&0x0080000000000000 == 0 {
		frac <<= 1
		shift++
	}

	e := 4*exp + 766 - shift
	switch {
	case e >= 2047:
		return signedInf(sign), true
	case e <= 0:
		// Below the IEEE normal range; flush to signed zero.
		return math.Float64frombits(sign), true
	}

	mantissa := (frac &^ 0x0080000000000000) >> 3
	return math.Float64frombits(sign | uint64(e)<<52 | mantissa), true
}

// floatToIBM converts an IEEE double to the 8-byte transport form.
// NaN, infinities, and magnitudes beyond the IBM exponent range have
// no transport representation and are written as the generic missing
// value.
func floatToIBM(f float64) [8]byte {
	var out [8]byte
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return missingValue()
	}
	bits := math.Float64bits(f)
	sign := bits & 0x8000000000000000
	exp := int64((bits >> 52) & 0x7ff)
	if exp == 0 {
		// Zero and subnormals; subnormals are below the IBM range.
		out[0] = byte(sign >> 56)
		return out
	}

	// 53-bit significand with the implicit bit restored.
	sig := (bits & 0x000fffffffffffff) | (1 << 52)
	p := exp - 1023

	// Pick k in 0..3 so the shifted significand is hex-normalized and
	// the base-16 exponent stays integral.
	k := (p + 260) % 4
	if k < 0 {
		k += 4
	}
	e := (p + 260 - k) / 4
	if e > 0x7f {
		return missingValue()
	}
	if e < 0 {
		out[0] = byte(sign >> 56)
		return out
	}

	ibm := sign | uint64(e)<<56 | sig<<uint(k)
	binary.BigEndian.PutUint64(out[:], ibm)
	return out
}

// missingSentinel reports whether b opens a missing-value field.
func missingSentinel(b byte) bool {
	return b == '.' || b == '_' || (b >= 'A' && b <= 'Z')
}

// missingValue returns the generic missing numeric ('.' then zeros).
func missingValue() [8]byte {
	return [8]byte{'.'}
}

func signedInf(sign uint64) float64 {
	if sign != 0 {
		return math.Inf(-1)
	}
	return math.Inf(1)
}
