// Package powverify implements the header verifier from spec.md §4.4: it
// builds the canonical RandomX preimage for a header, resolves which seed
// that header's height is bound to, and composes the solution check with
// the separate compact-target predicate. It consults chain state through
// the chainindex.BlockIndex contract but never mutates it.
package powverify

import "encoding/binary"

// HeaderFields is the minimal header data the RandomX preimage and the
// solution/target checks need. Deserialization and signature/merkle
// verification live outside this core, per spec.md §1's scope boundary.
type HeaderFields struct {
	Version    int32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Time       uint32
	Bits       uint32
	Nonce      [32]byte
	Solution   []byte
}

// Preimage serialises h in the fixed little-endian layout spec.md §6
// defines for RandomX: version | prev_hash | merkle_root | time | bits |
// nonce. Solution is never part of the preimage — it holds the output.
func Preimage(h *HeaderFields) []byte {
	buf := make([]byte, 4+32+32+4+4+32)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], uint32(h.Version))
	off += 4
	copy(buf[off:], h.PrevHash[:])
	off += 32
	copy(buf[off:], h.MerkleRoot[:])
	off += 32
	binary.LittleEndian.PutUint32(buf[off:], h.Time)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Bits)
	off += 4
	copy(buf[off:], h.Nonce[:])

	return buf
}
