package difficulty

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CompactTarget is the 32-bit "nBits" encoding of a 256-bit difficulty
// target: high byte is the exponent, low 24 bits are the mantissa, and a set
// top bit of the mantissa byte flags a negative (always-invalid) encoding.
type CompactTarget uint32

// ToCompact encodes a 256-bit target in the compact "nBits" form, matching
// arith_uint256::GetCompact. The caller is responsible for ensuring t fits
// the consensus range (0, PowLimit]; ToCompact itself just encodes.
func ToCompact(t *uint256.Int) CompactTarget {
	if t.IsZero() {
		return 0
	}

	// nSize: number of bytes needed to represent t, counting from the most
	// significant non-zero byte down to byte 0.
	bitLen := t.BitLen()
	nSize := uint32((bitLen + 7) / 8)

	var compact uint32
	if nSize <= 3 {
		compact = uint32(t.Uint64()) << (8 * (3 - nSize))
	} else {
		shifted := new(uint256.Int).Rsh(t, uint(8*(nSize-3)))
		compact = uint32(shifted.Uint64())
	}

	// The mantissa's top bit is reserved as a sign flag; if it would be set
	// by the natural encoding, shift one byte right and bump nSize.
	if compact&0x00800000 != 0 {
		compact >>= 8
		nSize++
	}

	compact |= nSize << 24
	return CompactTarget(compact)
}

// FromCompact decodes a compact target, reporting whether the encoding is
// negative or overflows a 256-bit integer. A negative or overflowing
// encoding must be rejected by callers per the CompactTarget invariant in
// the spec: target must lie in (0, PowLimit].
func FromCompact(c CompactTarget) (t *uint256.Int, negative bool, overflow bool) {
	nSize := uint32(c) >> 24
	nWord := uint32(c) & 0x007fffff

	negative = uint32(c)&0x00800000 != 0

	t = new(uint256.Int)
	if nSize <= 3 {
		word := nWord >> (8 * (3 - nSize))
		t.SetUint64(uint64(word))
	} else {
		t.SetUint64(uint64(nWord))
		*t = *new(uint256.Int).Lsh(t, uint(8*(nSize-3)))
	}

	overflow = nWord != 0 && (nSize > 34 || (nWord > 0xff && nSize > 33) || (nWord > 0xffff && nSize > 32))
	return t, negative, overflow
}

// Valid reports whether c decodes to a target in (0, limit], rejecting
// negative or overflowing encodings per the spec's CompactTarget invariant.
func Valid(c CompactTarget, limit *uint256.Int) (*uint256.Int, bool) {
	t, negative, overflow := FromCompact(c)
	if negative || overflow || t.IsZero() {
		return nil, false
	}
	if limit != nil && t.Cmp(limit) > 0 {
		return nil, false
	}
	return t, true
}

func (c CompactTarget) String() string {
	t, neg, overflow := FromCompact(c)
	if neg {
		return fmt.Sprintf("0x%08x (negative)", uint32(c))
	}
	if overflow {
		return fmt.Sprintf("0x%08x (overflow)", uint32(c))
	}
	return fmt.Sprintf("0x%08x (%s)", uint32(c), t.Hex())
}
