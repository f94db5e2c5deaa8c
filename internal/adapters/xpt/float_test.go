package xpt

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

func ibmBits(bits uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

func TestIBMToFloatKnownValues(t *testing.T) {
	cases := []struct {
		name string
		bits uint64
		want float64
	}{
		{"zero", 0x0000000000000000, 0},
		{"one", 0x4110000000000000, 1},
		{"two", 0x4120000000000000, 2},
		{"three", 0x4130000000000000, 3},
		{"sixteen", 0x4210000000000000, 16},
		{"one-fifty", 0x4296000000000000, 150},
		{"minus-one", 0xC110000000000000, -1},
		{"one-sixteenth", 0x4010000000000000, 0.0625},
		{"half", 0x4080000000000000, 0.5},
		{"unnormalized", 0x4008000000000000, 0.03125},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ibmToFloat(ibmBits(tc.bits))
			if !ok {
				t.Fatalf("ibmToFloat(%#016x) reported missing", tc.bits)
			}
			if got != tc.want {
				t.Fatalf("ibmToFloat(%#016x) = %v, want %v", tc.bits, got, tc.want)
			}
		})
	}
}

func TestIBMToFloatMissing(t *testing.T) {
	for _, lead := range []byte{'.', '_', 'A', 'M', 'Z'} {
		b := make([]byte, 8)
		b[0] = lead
		if _, ok := ibmToFloat(b); ok {
			t.Fatalf("lead byte %q should decode as missing", lead)
		}
	}
	// A sentinel-looking lead byte with a nonzero fraction is data.
	b := ibmBits(0x4110000000000000)
	if _, ok := ibmToFloat(b); !ok {
		t.Fatalf("nonzero fraction misread as missing")
	}
}

func TestFloatToIBMKnownValues(t *testing.T) {
	cases := []struct {
		in   float64
		want uint64
	}{
		{0, 0x0000000000000000},
		{1, 0x4110000000000000},
		{2, 0x4120000000000000},
		{16, 0x4210000000000000},
		{150, 0x4296000000000000},
		{-1, 0xC110000000000000},
		{0.0625, 0x4010000000000000},
	}
	for _, tc := range cases {
		got := floatToIBM(tc.in)
		if bits := binary.BigEndian.Uint64(got[:]); bits != tc.want {
			t.Fatalf("floatToIBM(%v) = %#016x, want %#016x", tc.in, bits, tc.want)
		}
	}
}

func TestFloatToIBMUnrepresentable(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e77} {
		got := floatToIBM(f)
		if got[0] != '.' {
			t.Fatalf("floatToIBM(%v) = %v, want missing sentinel", f, got)
		}
		if _, ok := ibmToFloat(got[:]); ok {
			t.Fatalf("floatToIBM(%v) did not round-trip to missing", f)
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		f := (rng.Float64() - 0.5) * math.Pow(10, float64(rng.Intn(12)))
		b := floatToIBM(f)
		got, ok := ibmToFloat(b[:])
		if !ok {
			t.Fatalf("round trip of %v reported missing", f)
		}
		if got != f {
			t.Fatalf("round trip of %v returned %v", f, got)
		}
	}
}

func TestTruncatedNumericZeroExtends(t *testing.T) {
	// Shorter numerics drop low-order fraction bytes; zero extension
	// must restore whole values exactly.
	full := floatToIBM(1234)
	short := append([]byte{}, full[:4]...)
	v := variable{kind: typeNumeric, length: 4}
	cell := decodeField(v, short)
	f, ok := cell.Float()
	if !ok {
		t.Fatalf("truncated numeric decoded as non-numeric")
	}
	if f != 1234 {
		t.Fatalf("truncated numeric = %v, want 1234", f)
	}
}
