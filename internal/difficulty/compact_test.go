package difficulty

import (
	"testing"

	"github.com/holiman/uint256"
)

// roundTripValue builds a target that is exactly representable in compact
// form: a 24-bit mantissa with its top bit clear, shifted left by a whole
// number of bytes. Mantissas whose leading byte has its top bit set (such as
// 0x008000 and 0x00ff00) go through the sign-bit shift and still fit.
// Encoding and decoding such a value must be lossless.
func roundTripValue(mantissa uint32, byteShift uint) *uint256.Int {
	v := new(uint256.Int).SetUint64(uint64(mantissa))
	return v.Lsh(v, 8*byteShift)
}

func TestCompactRoundTrip(t *testing.T) {
	mantissas := []uint32{0x008000, 0x123456, 0x7fffff, 0x00ff00}
	for _, m := range mantissas {
		for shift := uint(0); shift <= 29; shift++ {
			want := roundTripValue(m, shift)
			if want.IsZero() {
				continue
			}
			c := ToCompact(want)
			got, negative, overflow := FromCompact(c)
			if negative || overflow {
				t.Fatalf("mantissa=%#x shift=%d: unexpected negative=%v overflow=%v", m, shift, negative, overflow)
			}
			if got.Cmp(want) != 0 {
				t.Fatalf("mantissa=%#x shift=%d: round trip mismatch: want %s got %s", m, shift, want.Hex(), got.Hex())
			}
		}
	}
}

func TestCompactZero(t *testing.T) {
	if ToCompact(new(uint256.Int)) != 0 {
		t.Fatalf("ToCompact(0) should be 0")
	}
	got, negative, overflow := FromCompact(0)
	if negative || overflow {
		t.Fatalf("FromCompact(0) should not report negative/overflow")
	}
	if !got.IsZero() {
		t.Fatalf("FromCompact(0) should be zero, got %s", got.Hex())
	}
}

func TestCompactNegativeSignBit(t *testing.T) {
	// nSize=3, mantissa with the sign bit set.
	c := CompactTarget(0x03800000)
	_, negative, _ := FromCompact(c)
	if !negative {
		t.Fatalf("expected negative encoding to be flagged")
	}
	if _, ok := Valid(c, nil); ok {
		t.Fatalf("Valid should reject a negative encoding")
	}
}

func TestCompactOverflow(t *testing.T) {
	// nSize=34 overflows a 256-bit integer outright.
	c := CompactTarget(0x22010000)
	_, _, overflow := FromCompact(c)
	if !overflow {
		t.Fatalf("expected nSize=34 to overflow")
	}
}

func TestValidRejectsAboveLimit(t *testing.T) {
	limit := new(uint256.Int).SetUint64(0xff)
	c := ToCompact(new(uint256.Int).SetUint64(0xffff))
	if _, ok := Valid(c, limit); ok {
		t.Fatalf("Valid should reject a target above the configured limit")
	}
}

func TestCompactString(t *testing.T) {
	c := ToCompact(new(uint256.Int).SetUint64(0x123456))
	if c.String() == "" {
		t.Fatalf("String should not be empty")
	}
}
