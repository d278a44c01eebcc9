package powverify

import (
	"testing"

	"github.com/zrxpow/zrxpow/internal/chainindex"
	"github.com/zrxpow/zrxpow/internal/difficulty"
	"github.com/zrxpow/zrxpow/internal/params"
	"github.com/zrxpow/zrxpow/internal/randomxkeys"
)

func solvedHeader(t *testing.T, mgr *randomxkeys.Manager) *HeaderFields {
	t.Helper()
	h := sampleHeader()
	hash, ok := mgr.Hash(Preimage(h))
	if !ok {
		t.Fatal("mgr.Hash failed while constructing a solved header")
	}
	h.Solution = append([]byte(nil), hash[:]...)
	return h
}

func TestCheckSolutionAcceptsCorrectSolution(t *testing.T) {
	mgr := randomxkeys.NewManager(randomxkeys.Blake2bBackend{})
	defer mgr.Shutdown(randomxkeys.DefaultShutdownGrace)

	h := solvedHeader(t, mgr)
	if !CheckSolution(h, mgr, nil) {
		t.Fatal("expected correct solution to be accepted")
	}
}

func TestCheckSolutionRejectsFlippedBits(t *testing.T) {
	mgr := randomxkeys.NewManager(randomxkeys.Blake2bBackend{})
	defer mgr.Shutdown(randomxkeys.DefaultShutdownGrace)

	base := solvedHeader(t, mgr)

	flipSolution := *base
	flipSolution.Solution = append([]byte(nil), base.Solution...)
	flipSolution.Solution[0] ^= 0x01

	flipNonce := *base
	flipNonce.Nonce[0] ^= 0x01

	flipTime := *base
	flipTime.Time ^= 0x01

	flipBits := *base
	flipBits.Bits ^= 0x01

	for name, h := range map[string]*HeaderFields{
		"solution": &flipSolution,
		"nonce":    &flipNonce,
		"time":     &flipTime,
		"bits":     &flipBits,
	} {
		if CheckSolution(h, mgr, nil) {
			t.Errorf("flipping %s should invalidate the solution", name)
		}
	}
}

func TestCheckSolutionRejectsWrongLength(t *testing.T) {
	mgr := randomxkeys.NewManager(randomxkeys.Blake2bBackend{})
	defer mgr.Shutdown(randomxkeys.DefaultShutdownGrace)

	h := solvedHeader(t, mgr)
	h.Solution = h.Solution[:16]
	if CheckSolution(h, mgr, nil) {
		t.Fatal("expected a truncated solution to be rejected")
	}
}

func TestCheckSolutionWithChainContext(t *testing.T) {
	mgr := randomxkeys.NewManager(randomxkeys.Blake2bBackend{})
	defer mgr.Shutdown(randomxkeys.DefaultShutdownGrace)

	// A single-block chain: seed_height(1) is 0, so the seed is the genesis
	// seed regardless of the ancestor's hash, the same seed Hash uses.
	prev := chainindex.NewSliceChain([]chainindex.SliceEntry{
		{HeightVal: 0, BitsVal: 0x1d00ffff, TimeVal: 1000},
	})

	h := sampleHeader()
	seed, err := ResolveSeed(prev.Height()+1, prev)
	if err != nil {
		t.Fatalf("ResolveSeed: %v", err)
	}
	hash, ok := mgr.HashWithSeed(seed, Preimage(h))
	if !ok {
		t.Fatal("HashWithSeed failed")
	}
	h.Solution = append([]byte(nil), hash[:]...)

	if !CheckSolution(h, mgr, prev) {
		t.Fatal("expected chain-aware solution check to accept")
	}
}

func TestCheckTargetAcceptsWithinLimit(t *testing.T) {
	p := params.Select(params.TestNet)
	bits := uint32(difficulty.ToCompact(p.PowLimit))

	var hash [32]byte // the all-zero hash is numerically 0, always <= any valid target
	if !CheckTarget(hash, bits, p) {
		t.Fatal("expected an all-zero hash to satisfy any valid target")
	}
}

func TestCheckTargetRejectsAboveTarget(t *testing.T) {
	p := params.Select(params.TestNet)
	// A tiny target (small exponent, small mantissa) that the all-0xff hash
	// cannot possibly satisfy.
	bits := uint32(0x03010000)

	var hash [32]byte
	for i := range hash {
		hash[i] = 0xff
	}
	if CheckTarget(hash, bits, p) {
		t.Fatal("expected a maximal hash to exceed a minimal target")
	}
}

func TestCheckTargetRejectsInvalidEncoding(t *testing.T) {
	p := params.Select(params.TestNet)
	// Sign bit set: an invalid compact encoding, must always be rejected
	// regardless of hash value.
	bits := uint32(0x03800000)

	var hash [32]byte
	if CheckTarget(hash, bits, p) {
		t.Fatal("expected a negative-encoded target to be rejected")
	}
}
