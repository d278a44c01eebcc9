// Package chainindex defines the external BlockIndex contract the
// difficulty engine and header verifier consult, plus two small
// implementations of it: an in-memory one for unit tests and a bbolt-backed
// one for the lint CLI. Block and transaction storage proper stays an
// external collaborator per the spec; this package only ever answers
// ancestor-walk and timestamp questions about headers it's told about.
package chainindex

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// BlockIndex is the read-only view of chain state that the difficulty
// engine and header verifier need: a predecessor pointer, the ability to
// walk back to an arbitrary ancestor height, and the two block-header
// fields (nBits, nTime) and derived value (MedianTimePast) consensus rules
// are defined in terms of.
type BlockIndex interface {
	// Height is this entry's height.
	Height() uint64
	// Bits is this entry's compact target ("nBits").
	Bits() uint32
	// Time is this entry's block header timestamp (nTime).
	Time() uint32
	// ChainWork is the cumulative proof-of-work work up to and including
	// this entry.
	ChainWork() uint64
	// BlockHash returns this entry's block hash.
	BlockHash() chainhash.Hash
	// AncestorAt walks back (or, in a skip-list implementation, jumps) to
	// the ancestor at the given height. Returns nil if height is out of
	// range for this index (greater than Height(), or before genesis).
	AncestorAt(height uint64) BlockIndex
	// MedianTimePast returns the median nTime of this entry and its 10
	// immediate predecessors (11 total, or fewer near genesis).
	MedianTimePast() int64
}
