package powverify

import "testing"

func sampleHeader() *HeaderFields {
	h := &HeaderFields{
		Version: 4,
		Time:    1_650_000_000,
		Bits:    0x1d00ffff,
	}
	for i := range h.PrevHash {
		h.PrevHash[i] = byte(i)
	}
	for i := range h.MerkleRoot {
		h.MerkleRoot[i] = byte(0xa0 + i)
	}
	for i := range h.Nonce {
		h.Nonce[i] = byte(0xf0 + i)
	}
	return h
}

func TestPreimageLength(t *testing.T) {
	buf := Preimage(sampleHeader())
	want := 4 + 32 + 32 + 4 + 4 + 32
	if len(buf) != want {
		t.Fatalf("preimage length = %d, want %d", len(buf), want)
	}
}

func TestPreimageDeterministic(t *testing.T) {
	h := sampleHeader()
	a := Preimage(h)
	b := Preimage(h)
	if string(a) != string(b) {
		t.Fatal("Preimage is not deterministic for the same header")
	}
}

func TestPreimageFieldLayout(t *testing.T) {
	h := sampleHeader()
	buf := Preimage(h)

	if buf[0] != 4 || buf[1] != 0 || buf[2] != 0 || buf[3] != 0 {
		t.Fatalf("version not little-endian at offset 0: %v", buf[:4])
	}
	if string(buf[4:36]) != string(h.PrevHash[:]) {
		t.Fatal("prev_hash not at offset 4")
	}
	if string(buf[36:68]) != string(h.MerkleRoot[:]) {
		t.Fatal("merkle_root not at offset 36")
	}
	gotTime := uint32(buf[68]) | uint32(buf[69])<<8 | uint32(buf[70])<<16 | uint32(buf[71])<<24
	if gotTime != h.Time {
		t.Fatalf("time at offset 68 = %d, want %d", gotTime, h.Time)
	}
	gotBits := uint32(buf[72]) | uint32(buf[73])<<8 | uint32(buf[74])<<16 | uint32(buf[75])<<24
	if gotBits != h.Bits {
		t.Fatalf("bits at offset 72 = %#x, want %#x", gotBits, h.Bits)
	}
	if string(buf[76:108]) != string(h.Nonce[:]) {
		t.Fatal("nonce not at offset 76")
	}
}

func TestPreimageChangesWithNonce(t *testing.T) {
	h := sampleHeader()
	a := Preimage(h)
	h.Nonce[0] ^= 0x01
	b := Preimage(h)
	if string(a) == string(b) {
		t.Fatal("preimage did not change after flipping a nonce bit")
	}
}
