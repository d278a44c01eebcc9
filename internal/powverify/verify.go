package powverify

import (
	"bytes"
	"errors"

	"github.com/holiman/uint256"

	"github.com/zrxpow/zrxpow/internal/chainindex"
	"github.com/zrxpow/zrxpow/internal/difficulty"
	"github.com/zrxpow/zrxpow/internal/params"
	"github.com/zrxpow/zrxpow/internal/randomxkeys"
)

// ErrSeedAncestorMissing is returned by ResolveSeed when prev's ancestor
// walk can't reach the computed seed height. It never escapes CheckSolution
// or Accept as a typed error — per spec.md §7 runtime checks collapse to a
// plain accept/reject boolean.
var ErrSeedAncestorMissing = errors.New("powverify: seed ancestor not found in chain index")

// ResolveSeed implements spec.md §4.4's seed resolution for a block-aware
// (non-mining, non-stateless) check: nextHeight is prev's height plus one;
// if the seed height for nextHeight is 0 the genesis seed applies,
// otherwise the seed is the block hash of prev's ancestor at that height.
func ResolveSeed(nextHeight uint64, prev chainindex.BlockIndex) ([32]byte, error) {
	sh := randomxkeys.SeedHeight(nextHeight)
	if sh == 0 {
		return randomxkeys.GenesisSeed(), nil
	}

	ancestor := prev.AncestorAt(sh)
	if ancestor == nil {
		return [32]byte{}, ErrSeedAncestorMissing
	}
	return [32]byte(ancestor.BlockHash()), nil
}

// CheckSolution implements spec.md §4.4's four-step procedure: build the
// preimage, hash it under the resolved seed, and compare to the header's
// stored solution. prev == nil means the stateless/mining path: use the key
// manager's current main seed instead of resolving one from chain state.
func CheckSolution(h *HeaderFields, mgr *randomxkeys.Manager, prev chainindex.BlockIndex) bool {
	preimage := Preimage(h)

	var (
		hash [32]byte
		ok   bool
	)
	if prev == nil {
		hash, ok = mgr.Hash(preimage)
	} else {
		seed, err := ResolveSeed(prev.Height()+1, prev)
		if err != nil {
			return false
		}
		hash, ok = mgr.HashWithSeed(seed, preimage)
	}
	if !ok {
		return false
	}

	if len(h.Solution) != 32 {
		return false
	}
	return bytes.Equal(h.Solution, hash[:])
}

// CheckTarget implements spec.md §4.4's separate target predicate: decode
// bits, reject a negative/zero/overflowing/above-limit encoding, and accept
// iff the hash's numeric value is at most the target.
//
// hash is interpreted the way Bitcoin-derived consensus code interprets a
// block hash as a number: byte 0 is the least-significant byte, matching
// arith_uint256's in-memory layout, so the bytes are reversed before being
// handed to uint256.Int.SetBytes (which expects big-endian input).
func CheckTarget(hash [32]byte, bits uint32, p *params.Params) bool {
	target, ok := difficulty.Valid(difficulty.CompactTarget(bits), p.PowLimit)
	if !ok {
		return false
	}

	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = hash[31-i]
	}
	hashInt := new(uint256.Int).SetBytes(be[:])

	return hashInt.Cmp(target) <= 0
}

// Accept composes CheckSolution and CheckTarget, matching spec.md §4.4's
// closing sentence: a header is accepted by the PoW core iff both accept.
func Accept(h *HeaderFields, mgr *randomxkeys.Manager, prev chainindex.BlockIndex, p *params.Params) bool {
	if !CheckSolution(h, mgr, prev) {
		return false
	}

	var sol [32]byte
	copy(sol[:], h.Solution)
	return CheckTarget(sol, h.Bits, p)
}
