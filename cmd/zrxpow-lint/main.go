// Command zrxpow-lint drives the consensus core end to end against a
// JSON-encoded header and ancestor-chain segment, without standing up a
// node. It's this module's answer to the teacher's `-test` flag: a
// deterministic, non-interactive way to exercise chain parameters, the
// difficulty engine, the RandomX key manager, and the header verifier
// together.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zrxpow/zrxpow/internal/chainindex"
	"github.com/zrxpow/zrxpow/internal/difficulty"
	"github.com/zrxpow/zrxpow/internal/params"
	"github.com/zrxpow/zrxpow/internal/powverify"
	"github.com/zrxpow/zrxpow/internal/randomxkeys"
)

type headerJSON struct {
	Version    int32  `json:"version"`
	PrevHash   string `json:"prev_hash"`
	MerkleRoot string `json:"merkle_root"`
	Time       uint32 `json:"time"`
	Bits       uint32 `json:"bits"`
	Nonce      string `json:"nonce"`
	Solution   string `json:"solution"`
}

type ancestorJSON struct {
	Height    uint64 `json:"height"`
	Bits      uint32 `json:"bits"`
	Time      uint32 `json:"time"`
	ChainWork uint64 `json:"chainwork"`
	Hash      string `json:"hash"`
}

type chainInputJSON struct {
	Ancestors []ancestorJSON `json:"ancestors"`
	Header    headerJSON     `json:"header"`
}

// RegtestOverrides lets a regtest run tweak upgrade heights and PoW
// parameters without a bespoke flag per field, per spec.md §4.5's
// "regtest-only mutators" allowance.
type RegtestOverrides struct {
	UpgradeHeights  map[string]uint64 `yaml:"upgrade_heights"`
	PowLimitHex     string            `yaml:"pow_limit_hex"`
	AveragingWindow *int64            `yaml:"averaging_window"`
}

var upgradeNames = map[string]params.Upgrade{
	"canopy": params.UpgradeCanopy,
	"nu5":    params.UpgradeNU5,
	"nu6":    params.UpgradeNU6,
	"nu6.1":  params.UpgradeNU6_1,
}

func main() {
	network := flag.String("network", "main", "chain profile: main, test, or regtest")
	chainPath := flag.String("chain", "", "path to a JSON-encoded header + ancestor chain segment")
	regtestParamsPath := flag.String("regtest-params", "", "optional YAML file overriding regtest upgrade heights / PoW params")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *chainPath == "" {
		log.Fatal().Msg("-chain is required")
	}

	p, err := resolveParams(*network, *regtestParamsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("resolving chain parameters")
	}

	input, err := loadChainInput(*chainPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading chain input")
	}

	prev, header, closeIndex, err := buildIndex(input)
	if err != nil {
		log.Fatal().Err(err).Msg("building chain index")
	}
	defer closeIndex()

	mgr := randomxkeys.NewManager(randomxkeys.Blake2bBackend{})
	defer mgr.Shutdown(randomxkeys.DefaultShutdownGrace)

	expected := difficulty.NextWorkRequired(prev, &difficulty.CandidateHeader{Time: int64(header.Time)}, p)

	checkSolution := powverify.CheckSolution(header, mgr, prev)
	var accepted bool
	if checkSolution {
		var sol [32]byte
		copy(sol[:], header.Solution)
		accepted = powverify.CheckTarget(sol, header.Bits, p)
	}

	logEvent := log.Info()
	if !accepted {
		logEvent = log.Warn()
	}
	logEvent.
		Str("network", p.Network.String()).
		Bool("check_solution", checkSolution).
		Bool("accepted", accepted).
		Uint32("actual_bits", header.Bits).
		Uint32("expected_bits", uint32(expected)).
		Msg("zrxpow-lint verdict")

	if !accepted {
		os.Exit(1)
	}
}

func resolveParams(network, overridesPath string) (*params.Params, error) {
	var net params.Network
	switch network {
	case "main":
		net = params.MainNet
	case "test":
		net = params.TestNet
	case "regtest":
		net = params.RegTest
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}

	p := params.Select(net)
	if overridesPath == "" {
		return p, nil
	}
	if net != params.RegTest {
		return nil, fmt.Errorf("-regtest-params requires -network=regtest")
	}

	raw, err := os.ReadFile(overridesPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", overridesPath, err)
	}
	var overrides RegtestOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", overridesPath, err)
	}

	for name, height := range overrides.UpgradeHeights {
		u, ok := upgradeNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown upgrade %q in %s", name, overridesPath)
		}
		p.SetRegtestActivationHeight(u, height)
	}
	if overrides.PowLimitHex != "" {
		limit, err := uint256.FromHex(overrides.PowLimitHex)
		if err != nil {
			return nil, fmt.Errorf("parsing pow_limit_hex: %w", err)
		}
		p.SetRegtestPowLimit(limit)
	}
	if overrides.AveragingWindow != nil {
		p.SetRegtestAveragingWindow(*overrides.AveragingWindow)
	}

	return p, nil
}

func loadChainInput(path string) (*chainInputJSON, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var input chainInputJSON
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &input, nil
}

// buildIndex loads the ancestor chain segment into a temporary bbolt-backed
// BlockIndex: the lint CLI's job is to exercise the real read path a node
// would use, not the in-memory stand-in that's only for unit tests.
func buildIndex(input *chainInputJSON) (chainindex.BlockIndex, *powverify.HeaderFields, func(), error) {
	header, err := decodeHeader(input.Header)
	if err != nil {
		return nil, nil, func() {}, err
	}

	if len(input.Ancestors) == 0 {
		return nil, header, func() {}, nil
	}

	dbFile, err := os.CreateTemp("", "zrxpow-lint-*.bolt")
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("creating temp index db: %w", err)
	}
	dbPath := dbFile.Name()
	dbFile.Close()

	closeFn := func() {
		os.Remove(dbPath)
	}

	var tipHeight uint64
	idx, err := chainindex.OpenBoltIndex(dbPath, 0)
	if err != nil {
		closeFn()
		return nil, nil, func() {}, err
	}

	for i, a := range input.Ancestors {
		if a.Height != uint64(i) {
			idx.Close()
			closeFn()
			return nil, nil, func() {}, fmt.Errorf("ancestors must be contiguous from height 0, got height %d at index %d", a.Height, i)
		}
		hashBytes, err := decodeHash(a.Hash)
		if err != nil {
			idx.Close()
			closeFn()
			return nil, nil, func() {}, fmt.Errorf("ancestor %d hash: %w", a.Height, err)
		}
		if err := idx.PutHeader(a.Height, a.Bits, a.Time, a.ChainWork, chainhash.Hash(hashBytes)); err != nil {
			idx.Close()
			closeFn()
			return nil, nil, func() {}, fmt.Errorf("ancestor %d: %w", a.Height, err)
		}
		tipHeight = a.Height
	}
	idx.Close()

	prev, err := chainindex.OpenBoltIndex(dbPath, tipHeight)
	if err != nil {
		closeFn()
		return nil, nil, func() {}, err
	}

	return prev, header, func() {
		prev.Close()
		closeFn()
	}, nil
}

func decodeHeader(h headerJSON) (*powverify.HeaderFields, error) {
	prevHash, err := decodeHash(h.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("prev_hash: %w", err)
	}
	merkle, err := decodeHash(h.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("merkle_root: %w", err)
	}
	nonce, err := decodeHash(h.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	solution, err := hex.DecodeString(h.Solution)
	if err != nil {
		return nil, fmt.Errorf("solution: %w", err)
	}

	return &powverify.HeaderFields{
		Version:    h.Version,
		PrevHash:   prevHash,
		MerkleRoot: merkle,
		Time:       h.Time,
		Bits:       h.Bits,
		Nonce:      nonce,
		Solution:   solution,
	}, nil
}

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
