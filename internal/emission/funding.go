package emission

import (
	"fmt"

	"github.com/zrxpow/zrxpow/internal/params"
)

// RecipientKind distinguishes the three kinds of funding-stream recipient
// the spec names: a transparent payment, a shielded payment, or a lockbox
// (no outward payment; balance accrues for a later one-time disbursement).
type RecipientKind int

const (
	RecipientTransparent RecipientKind = iota
	RecipientShielded
	RecipientLockbox
)

func (k RecipientKind) String() string {
	switch k {
	case RecipientTransparent:
		return "transparent"
	case RecipientShielded:
		return "shielded"
	case RecipientLockbox:
		return "lockbox"
	default:
		return "unknown"
	}
}

// Recipient identifies where a funding stream's share of the subsidy goes
// for one period. Address is empty for a lockbox recipient.
type Recipient struct {
	Kind    RecipientKind
	Address string
}

// FSInfo is the static, non-height-dependent description of a funding
// stream: its name, specification reference, and num/denom share of the
// block subsidy. Mirrors Consensus::FSInfo.
type FSInfo struct {
	Name          string
	Specification string
	Numerator     int64
	Denominator   int64
}

// Value returns this stream's share of subsidy, floored.
func (f FSInfo) Value(subsidy uint64) uint64 {
	return subsidy * uint64(f.Numerator) / uint64(f.Denominator)
}

// FundingPeriodLength is the height span of one funding-stream recipient
// rotation period. The reference chain aligns funding periods with the
// standard halving interval.
const FundingPeriodLength = StandardInterval

// firstHalvingHeight is the height at which halving epoch 1 begins, derived
// from InitialHalvingEnd per the spec's Open Question decision (ignore the
// source's disagreeing HalvingHeight() prose; derive from StandardInterval).
const firstHalvingHeight = InitialHalvingEnd + 1

// FundingPeriodIndex returns the index, within [0, recipients), of the
// recipient active at height for a stream that starts at startHeight. It is
// total: callers must have validated at load time that every height the
// stream can reach maps to an in-range index.
func FundingPeriodIndex(startHeight, height uint64) int64 {
	if height < startHeight {
		return 0
	}

	// startOffset corrects for startHeight not lying on a period boundary,
	// so the first (possibly short) period still ends exactly on a boundary
	// aligned with firstHalvingHeight.
	startOffset := int64(startHeight-firstHalvingHeight) % FundingPeriodLength
	if startOffset < 0 {
		startOffset += FundingPeriodLength
	}

	return (int64(height-startHeight) + startOffset) / FundingPeriodLength
}

// FundingStream is one validated, active funding-stream configuration:
// a [start, end) height range, its static info, and the rotating
// recipients indexed by FundingPeriodIndex.
type FundingStream struct {
	Info       FSInfo
	Start, End uint64
	recipients []Recipient
}

// Recipient returns the recipient active at height, per spec.md's
// period_index formula. Panics if the index resolves out of range, which
// load-time validation rules out for heights in [Start, End), per the
// spec's "parse-time only" failure model. Height itself is not checked
// against [Start, End): any height whose index is in range returns a
// recipient.
func (fs *FundingStream) Recipient(height uint64) Recipient {
	idx := FundingPeriodIndex(fs.Start, height)
	if idx < 0 || idx >= int64(len(fs.recipients)) {
		panic(fmt.Sprintf("emission: period index %d out of range for stream %q with %d recipients", idx, fs.Info.Name, len(fs.recipients)))
	}
	return fs.recipients[idx]
}

// ConfigErrorKind tags one of the parse-time funding/lockbox validation
// failures from spec.md §7. These abort startup; they are never returned
// from a per-block runtime check.
type ConfigErrorKind int

const (
	CanopyNotActive ConfigErrorKind = iota
	IllegalHeightRange
	InsufficientRecipients
	Nu6NotActive
	InvalidAddress
	LockboxBeforeNu6_1
)

func (k ConfigErrorKind) String() string {
	switch k {
	case CanopyNotActive:
		return "CanopyNotActive"
	case IllegalHeightRange:
		return "IllegalHeightRange"
	case InsufficientRecipients:
		return "InsufficientRecipients"
	case Nu6NotActive:
		return "Nu6NotActive"
	case InvalidAddress:
		return "InvalidAddress"
	case LockboxBeforeNu6_1:
		return "LockboxBeforeNu6_1"
	default:
		return "Unknown"
	}
}

// ConfigError is the sum-type configuration error from spec.md §7.
type ConfigError struct {
	Kind   ConfigErrorKind
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("emission: %s: %s", e.Kind, e.Detail)
}

// FundingStreamSpec is the unvalidated, caller-supplied description of a
// funding stream, as it would be parsed out of a chain-parameter file.
type FundingStreamSpec struct {
	Info       FSInfo
	Start, End uint64
	Recipients []Recipient
}

// ParseFundingStream validates spec against p's upgrade table, following
// Consensus::FundingStream::ValidateFundingStream: Canopy must be active at
// the start height, the range must not be inverted, enough recipients must
// be supplied to cover every period the stream can reach, and lockbox
// recipients may not appear before NU6 activates.
func ParseFundingStream(p *params.Params, spec FundingStreamSpec) (*FundingStream, error) {
	if !p.UpgradeActive(spec.Start, params.UpgradeCanopy) {
		return nil, &ConfigError{CanopyNotActive, fmt.Sprintf("stream %q starts at height %d", spec.Info.Name, spec.Start)}
	}
	if spec.End < spec.Start {
		return nil, &ConfigError{IllegalHeightRange, fmt.Sprintf("stream %q has end %d < start %d", spec.Info.Name, spec.End, spec.Start)}
	}

	expected := FundingPeriodIndex(spec.Start, spec.End-1) + 1
	if expected < 0 || int64(len(spec.Recipients)) < expected {
		return nil, &ConfigError{InsufficientRecipients, fmt.Sprintf("stream %q needs %d recipients, got %d", spec.Info.Name, expected, len(spec.Recipients))}
	}

	if !p.UpgradeActive(spec.Start, params.UpgradeNU6) {
		for _, r := range spec.Recipients {
			if r.Kind == RecipientLockbox {
				return nil, &ConfigError{Nu6NotActive, fmt.Sprintf("stream %q has a lockbox recipient before NU6", spec.Info.Name)}
			}
		}
	}

	for _, r := range spec.Recipients {
		if r.Kind != RecipientLockbox && r.Address == "" {
			return nil, &ConfigError{InvalidAddress, fmt.Sprintf("stream %q has a recipient with no address", spec.Info.Name)}
		}
	}

	recipients := make([]Recipient, len(spec.Recipients))
	copy(recipients, spec.Recipients)
	return &FundingStream{Info: spec.Info, Start: spec.Start, End: spec.End, recipients: recipients}, nil
}

// OnetimeLockboxDisbursement is a one-time P2SH payment made out of the
// lockbox balance at a later upgrade's activation height.
type OnetimeLockboxDisbursement struct {
	Upgrade   params.Upgrade
	Amount    uint64
	Recipient Recipient
}

// DisbursementSpec is the unvalidated, caller-supplied description of a
// one-time lockbox disbursement.
type DisbursementSpec struct {
	Upgrade   params.Upgrade
	Amount    uint64
	Recipient Recipient
}

// ParseLockboxDisbursement validates that a disbursement is not declared
// before NU6.1, per Consensus::OnetimeLockboxDisbursement::Parse.
func ParseLockboxDisbursement(spec DisbursementSpec) (*OnetimeLockboxDisbursement, error) {
	if spec.Upgrade < params.UpgradeNU6_1 {
		return nil, &ConfigError{LockboxBeforeNu6_1, "one-time lockbox disbursements cannot be declared prior to NU6.1"}
	}
	if spec.Recipient.Kind != RecipientTransparent || spec.Recipient.Address == "" {
		return nil, &ConfigError{InvalidAddress, "one-time lockbox disbursement requires a transparent P2SH address"}
	}
	return &OnetimeLockboxDisbursement{Upgrade: spec.Upgrade, Amount: spec.Amount, Recipient: spec.Recipient}, nil
}

// FundingConfig is the validated, ready-to-query set of funding streams and
// one-time lockbox disbursements for one chain-parameter profile. Build it
// once at startup with LoadFundingConfig; every method on it is then a pure,
// total runtime query.
type FundingConfig struct {
	streams       []*FundingStream
	disbursements []*OnetimeLockboxDisbursement
}

// LoadFundingConfig parses and validates every stream and disbursement spec
// against p, returning the first ConfigError encountered. The node must not
// start with a malformed funding configuration.
func LoadFundingConfig(p *params.Params, streamSpecs []FundingStreamSpec, disbursementSpecs []DisbursementSpec) (*FundingConfig, error) {
	cfg := &FundingConfig{}
	for _, spec := range streamSpecs {
		fs, err := ParseFundingStream(p, spec)
		if err != nil {
			return nil, err
		}
		cfg.streams = append(cfg.streams, fs)
	}
	for _, spec := range disbursementSpecs {
		d, err := ParseLockboxDisbursement(spec)
		if err != nil {
			return nil, err
		}
		cfg.disbursements = append(cfg.disbursements, d)
	}
	return cfg, nil
}

// ActiveStream pairs a stream's static info with the recipient it resolves
// to at the height ActiveStreams was called with.
type ActiveStream struct {
	Info      FSInfo
	Recipient Recipient
}

// ActiveStreams returns every funding stream whose [Start, End) range
// contains height, each paired with the recipient selected for that height,
// provided Canopy is active at height. Returns nil before Canopy.
func (c *FundingConfig) ActiveStreams(height uint64, p *params.Params) []ActiveStream {
	if !p.UpgradeActive(height, params.UpgradeCanopy) {
		return nil
	}

	var active []ActiveStream
	for _, fs := range c.streams {
		if height >= fs.Start && height < fs.End {
			active = append(active, ActiveStream{Info: fs.Info, Recipient: fs.Recipient(height)})
		}
	}
	return active
}

// LockboxDisbursements returns the one-time disbursements due at height:
// those whose configured upgrade activates exactly at height, provided
// NU6.1 is active at height.
func (c *FundingConfig) LockboxDisbursements(height uint64, p *params.Params) []OnetimeLockboxDisbursement {
	if !p.UpgradeActive(height, params.UpgradeNU6_1) {
		return nil
	}

	var due []OnetimeLockboxDisbursement
	for _, d := range c.disbursements {
		activation, ok := p.ActivationHeight(d.Upgrade)
		if ok && activation == height {
			due = append(due, *d)
		}
	}
	return due
}
