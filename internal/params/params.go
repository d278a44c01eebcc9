// Package params holds the frozen, network-selected consensus configuration
// consumed by the difficulty engine, the emission schedule, and the header
// verifier. A Params value is resolved once at process start and treated as
// read-only afterwards, except for the regtest mutators used by tests.
package params

import (
	"github.com/holiman/uint256"
)

// Network selects one of the three consensus profiles.
type Network int

const (
	MainNet Network = iota
	TestNet
	RegTest
)

func (n Network) String() string {
	switch n {
	case MainNet:
		return "main"
	case TestNet:
		return "test"
	case RegTest:
		return "regtest"
	default:
		return "unknown"
	}
}

// Upgrade identifies a network upgrade by name. Only the upgrades that the
// funding/lockbox schedule needs to reason about are named; earlier upgrades
// collapse into "always active" for this module's purposes.
type Upgrade int

const (
	UpgradeCanopy Upgrade = iota
	UpgradeNU5
	UpgradeNU6
	UpgradeNU6_1
	numUpgrades
)

// Params is the frozen consensus configuration for one network.
type Params struct {
	Network Network

	NetworkMagic [4]byte
	DefaultPort  uint16

	EquihashN uint32
	EquihashK uint32

	PowLimit                         *uint256.Int
	AveragingWindow                  int64
	MaxAdjustDown                    int64 // percent
	MaxAdjustUp                      int64 // percent
	PowNoRetargeting                 bool
	PowAllowMinDifficultyAfterHeight *uint64

	// PreBlossomTargetSpacing and PostBlossomTargetSpacing bound
	// TargetSpacing: before the Blossom upgrade height blocks are spaced
	// PreBlossomTargetSpacing seconds apart, after it PostBlossomTargetSpacing.
	PreBlossomTargetSpacing  int64
	PostBlossomTargetSpacing int64
	BlossomActivationHeight  uint64

	upgradeHeights [numUpgrades]*uint64
}

// TargetSpacing returns the target spacing, in seconds, between the block at
// nextHeight and its predecessor. Blossom halves the spacing.
func (p *Params) TargetSpacing(nextHeight uint64) int64 {
	if nextHeight >= p.BlossomActivationHeight {
		return p.PostBlossomTargetSpacing
	}
	return p.PreBlossomTargetSpacing
}

// ActivationHeight returns the height at which u activates, or false if u is
// not scheduled to activate on this network.
func (p *Params) ActivationHeight(u Upgrade) (uint64, bool) {
	if u < 0 || u >= numUpgrades {
		return 0, false
	}
	h := p.upgradeHeights[u]
	if h == nil {
		return 0, false
	}
	return *h, true
}

// UpgradeActive reports whether u is active at height.
func (p *Params) UpgradeActive(height uint64, u Upgrade) bool {
	h, ok := p.ActivationHeight(u)
	return ok && height >= h
}

func setHeight(h uint64) *uint64 {
	v := h
	return &v
}

// Select resolves the frozen Params for a network. Callers that need
// regtest-specific overrides should call the mutators below on the returned
// value before using it anywhere.
func Select(n Network) *Params {
	switch n {
	case TestNet:
		return testNetParams()
	case RegTest:
		return regTestParams()
	default:
		return mainNetParams()
	}
}

func mainNetParams() *Params {
	return &Params{
		Network:      MainNet,
		NetworkMagic: [4]byte{0x24, 0xe9, 0x27, 0x64},
		DefaultPort:  8233,

		EquihashN: 200,
		EquihashK: 9,

		PowLimit:                         powLimitFromExponent(0x00ff),
		AveragingWindow:                  100,
		MaxAdjustDown:                    32,
		MaxAdjustUp:                      16,
		PowNoRetargeting:                 false,
		PowAllowMinDifficultyAfterHeight: nil,

		PreBlossomTargetSpacing:  150,
		PostBlossomTargetSpacing: 75,
		BlossomActivationHeight:  653600,

		upgradeHeights: [numUpgrades]*uint64{
			UpgradeCanopy: setHeight(1046400),
			UpgradeNU5:    setHeight(1687104),
			UpgradeNU6:    setHeight(2726400),
			UpgradeNU6_1:  setHeight(3146400),
		},
	}
}

func testNetParams() *Params {
	minDiffHeight := uint64(299187)
	return &Params{
		Network:      TestNet,
		NetworkMagic: [4]byte{0xfa, 0x1a, 0xf9, 0xbf},
		DefaultPort:  18233,

		EquihashN: 200,
		EquihashK: 9,

		PowLimit:                         powLimitFromExponent(0x00ff),
		AveragingWindow:                  100,
		MaxAdjustDown:                    32,
		MaxAdjustUp:                      16,
		PowNoRetargeting:                 false,
		PowAllowMinDifficultyAfterHeight: &minDiffHeight,

		PreBlossomTargetSpacing:  150,
		PostBlossomTargetSpacing: 75,
		BlossomActivationHeight:  584000,

		upgradeHeights: [numUpgrades]*uint64{
			UpgradeCanopy: setHeight(1028500),
			UpgradeNU5:    setHeight(1842420),
			UpgradeNU6:    setHeight(2976000),
			UpgradeNU6_1:  setHeight(3381000),
		},
	}
}

func regTestParams() *Params {
	minDiffHeight := uint64(0)
	return &Params{
		Network:      RegTest,
		NetworkMagic: [4]byte{0xaa, 0xe8, 0x3f, 0x5f},
		DefaultPort:  18344,

		EquihashN: 48,
		EquihashK: 5,

		PowLimit:                         powLimitFromExponent(0x0f0f),
		AveragingWindow:                  17,
		MaxAdjustDown:                    0,
		MaxAdjustUp:                      0,
		PowNoRetargeting:                 true,
		PowAllowMinDifficultyAfterHeight: &minDiffHeight,

		PreBlossomTargetSpacing:  150,
		PostBlossomTargetSpacing: 150,
		BlossomActivationHeight:  1,

		upgradeHeights: [numUpgrades]*uint64{
			UpgradeCanopy: setHeight(1),
			UpgradeNU5:    setHeight(1),
			UpgradeNU6:    setHeight(1),
			UpgradeNU6_1:  setHeight(1),
		},
	}
}

// powLimitFromExponent builds the PoW limit from a compact-style
// (leading byte<<8 | repeating fill byte) shorthand used in the table above:
// 0x00ff means "a 0x00 top byte, then 0xff repeated" i.e. 0x00ffff...ff,
// 0x0f0f means 0x0f repeated across all 32 bytes. This mirrors how the
// reference chain parameters are written as literal hex constants rather
// than computed.
func powLimitFromExponent(marker uint32) *uint256.Int {
	topByte := byte(marker >> 8)
	fillByte := byte(marker)

	var b [32]byte
	b[0] = topByte
	for i := 1; i < 32; i++ {
		b[i] = fillByte
	}
	return new(uint256.Int).SetBytes(b[:])
}

// SetRegtestActivationHeight overrides an upgrade's activation height on a
// regtest Params in place. Panics if p is not a regtest profile, mirroring
// the "regtest-only mutators" restriction in the spec: production profiles
// are immutable once selected.
func (p *Params) SetRegtestActivationHeight(u Upgrade, height uint64) {
	p.mustBeRegtest()
	p.upgradeHeights[u] = setHeight(height)
}

// SetRegtestPowLimit overrides the PoW limit on a regtest Params in place.
func (p *Params) SetRegtestPowLimit(limit *uint256.Int) {
	p.mustBeRegtest()
	p.PowLimit = limit
}

// SetRegtestAveragingWindow overrides the averaging window on a regtest
// Params in place, for tests that want a shorter window than the default 17.
func (p *Params) SetRegtestAveragingWindow(window int64) {
	p.mustBeRegtest()
	p.AveragingWindow = window
}

func (p *Params) mustBeRegtest() {
	if p.Network != RegTest {
		panic("params: regtest mutator called on a non-regtest profile")
	}
}
