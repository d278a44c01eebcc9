// Package difficulty implements the windowed-average difficulty retarget
// described in the spec: a pure function from a predecessor chain segment to
// the compact target the next block must meet. It has no knowledge of
// RandomX, the emission schedule, or anything else outside arith on chain
// headers.
package difficulty

import (
	"github.com/zrxpow/zrxpow/internal/chainindex"
	"github.com/zrxpow/zrxpow/internal/params"

	"github.com/holiman/uint256"
)

// CandidateHeader is the minimal header data the min-difficulty testnet
// exception (step 3 of NextWorkRequired) needs from the block being built.
type CandidateHeader struct {
	Time int64
}

// NextWorkRequired computes the compact target for the block that extends
// prev. candidate is only consulted for the testnet min-difficulty
// exception and may be nil (e.g. stateless verification paths that already
// know bits came from a header, or mining code that hasn't picked a
// timestamp yet).
//
// prev == nil means "prev is the genesis block's non-existent predecessor":
// NextWorkRequired returns the PoW limit, exactly as GetNextWorkRequired
// does for pindexLast == NULL.
func NextWorkRequired(prev chainindex.BlockIndex, candidate *CandidateHeader, p *params.Params) CompactTarget {
	if prev == nil {
		return ToCompact(p.PowLimit)
	}

	if p.PowNoRetargeting {
		return CompactTarget(prev.Bits())
	}

	nextHeight := prev.Height() + 1

	if p.PowAllowMinDifficultyAfterHeight != nil && prev.Height() >= *p.PowAllowMinDifficultyAfterHeight {
		if candidate != nil && candidate.Time > int64(prev.Time())+6*p.TargetSpacing(nextHeight) {
			return ToCompact(p.PowLimit)
		}
	}

	window := p.AveragingWindow
	if window <= 0 || prev.Height() < uint64(window) {
		return ToCompact(p.PowLimit)
	}

	// Sum the W ancestors starting at prev (inclusive) and walking back;
	// pindexFirst in the reference implementation ends up one step further
	// back still, at prev.Height()-window, once the summing loop finishes.
	bnTot := new(uint256.Int)
	for i := int64(0); i < window; i++ {
		ancestor := prev.AncestorAt(prev.Height() - uint64(i))
		if ancestor == nil {
			return ToCompact(p.PowLimit)
		}
		target, _, _ := FromCompact(CompactTarget(ancestor.Bits()))
		bnTot = bnTot.Add(bnTot, target)
	}

	first := prev.AncestorAt(prev.Height() - uint64(window))
	if first == nil {
		return ToCompact(p.PowLimit)
	}

	bnAvg := new(uint256.Int).Div(bnTot, uint256.NewInt(uint64(window)))

	return CalculateNextWorkRequired(bnAvg, prev.MedianTimePast(), first.MedianTimePast(), p, nextHeight)
}

// CalculateNextWorkRequired implements steps 5-9 of the spec's algorithm:
// dampen the actual timespan toward the expected one, clamp it, and rescale
// the windowed average target by actual/expected — in that division order,
// so intermediate products never exceed 256 bits, matching the historical
// chain bit-for-bit.
func CalculateNextWorkRequired(bnAvg *uint256.Int, lastMTP, firstMTP int64, p *params.Params, nextHeight uint64) CompactTarget {
	spacing := p.TargetSpacing(nextHeight)
	expected := p.AveragingWindow * spacing

	actual := lastMTP - firstMTP
	actual = expected + (actual-expected)/4

	minActual := expected * (100 - p.MaxAdjustUp) / 100
	maxActual := expected * (100 + p.MaxAdjustDown) / 100
	if actual < minActual {
		actual = minActual
	}
	if actual > maxActual {
		actual = maxActual
	}

	newTarget := new(uint256.Int).Div(bnAvg, uint256.NewInt(uint64(expected)))
	newTarget = newTarget.Mul(newTarget, uint256.NewInt(uint64(actual)))

	if newTarget.Cmp(p.PowLimit) > 0 {
		newTarget = new(uint256.Int).Set(p.PowLimit)
	}

	return ToCompact(newTarget)
}
