package chainindex

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// SliceEntry is a plain-data header summary: exactly the fields the
// difficulty engine and header verifier need, none of the block body they
// attach to. It's the in-memory BlockIndex's storage unit.
type SliceEntry struct {
	HeightVal    uint64
	BitsVal      uint32
	TimeVal      uint32
	ChainWorkVal uint64
	Hash         chainhash.Hash
}

// SliceIndex is a simple, contiguous-from-genesis, in-memory BlockIndex
// implementation for unit tests that don't want bbolt's file overhead.
// Index i in entries must have HeightVal == i.
type SliceIndex struct {
	entries []SliceEntry
	at      int // this entry's position within entries
}

// NewSliceIndex builds a BlockIndex for entries[at], with AncestorAt free to
// walk anywhere in entries at or before at.
func NewSliceIndex(entries []SliceEntry, at int) *SliceIndex {
	return &SliceIndex{entries: entries, at: at}
}

// NewSliceChain builds a BlockIndex for the tip (last element) of entries,
// a convenience for tests that only care about the chain's head.
func NewSliceChain(entries []SliceEntry) BlockIndex {
	if len(entries) == 0 {
		return nil
	}
	return NewSliceIndex(entries, len(entries)-1)
}

func (s *SliceIndex) Height() uint64           { return s.entries[s.at].HeightVal }
func (s *SliceIndex) Bits() uint32             { return s.entries[s.at].BitsVal }
func (s *SliceIndex) Time() uint32             { return s.entries[s.at].TimeVal }
func (s *SliceIndex) ChainWork() uint64        { return s.entries[s.at].ChainWorkVal }
func (s *SliceIndex) BlockHash() chainhash.Hash { return s.entries[s.at].Hash }

func (s *SliceIndex) AncestorAt(height uint64) BlockIndex {
	if height > uint64(s.at) {
		return nil
	}
	idx := int(height)
	if idx < 0 || idx >= len(s.entries) {
		return nil
	}
	return &SliceIndex{entries: s.entries, at: idx}
}

// MedianTimePast returns the median nTime of this entry and up to 10
// immediate predecessors (11 total, fewer near genesis), matching Bitcoin's
// GetMedianTimePast.
func (s *SliceIndex) MedianTimePast() int64 {
	const window = 11

	times := make([]int64, 0, window)
	for i := 0; i < window; i++ {
		idx := s.at - i
		if idx < 0 {
			break
		}
		times = append(times, int64(s.entries[idx].TimeVal))
	}

	// Insertion sort: window is at most 11 elements.
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j-1] > times[j]; j-- {
			times[j-1], times[j] = times[j], times[j-1]
		}
	}

	return times[len(times)/2]
}
