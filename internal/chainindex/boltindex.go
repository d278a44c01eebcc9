package chainindex

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	bolt "go.etcd.io/bbolt"
)

// bucketHeaders mirrors the teacher's bucketHeights convention (big-endian
// height keys) but stores the fixed-size header summary a BlockIndex needs,
// not a full block. This package never touches block or transaction bodies
// — that storage stays an external collaborator per spec.md §1.
var bucketHeaders = []byte("headers")

const headerRecordSize = 4 + 4 + 8 + chainhash.HashSize // bits, time, chainwork, hash

// BoltIndex is a bbolt-backed BlockIndex: a read path over a height-keyed
// bucket of header summaries, used by the lint CLI so it can exercise
// AncestorAt/MedianTimePast through bbolt's on-disk read path rather than an
// in-memory slice.
type BoltIndex struct {
	db     *bolt.DB
	height uint64
}

// OpenBoltIndex opens (creating if necessary) a bbolt database at path and
// returns the BlockIndex positioned at height. Callers must call Close.
func OpenBoltIndex(path string, height uint64) (*BoltIndex, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("chainindex: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketHeaders)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("chainindex: create bucket: %w", err)
	}
	return &BoltIndex{db: db, height: height}, nil
}

// Close closes the underlying database.
func (b *BoltIndex) Close() error { return b.db.Close() }

func heightKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)
	return key
}

func encodeHeaderRecord(bits, t uint32, work uint64, hash chainhash.Hash) []byte {
	rec := make([]byte, headerRecordSize)
	binary.BigEndian.PutUint32(rec[0:4], bits)
	binary.BigEndian.PutUint32(rec[4:8], t)
	binary.BigEndian.PutUint64(rec[8:16], work)
	copy(rec[16:], hash[:])
	return rec
}

func decodeHeaderRecord(rec []byte) (bits, t uint32, work uint64, hash chainhash.Hash, ok bool) {
	if len(rec) != headerRecordSize {
		return 0, 0, 0, chainhash.Hash{}, false
	}
	bits = binary.BigEndian.Uint32(rec[0:4])
	t = binary.BigEndian.Uint32(rec[4:8])
	work = binary.BigEndian.Uint64(rec[8:16])
	copy(hash[:], rec[16:])
	return bits, t, work, hash, true
}

// PutHeader writes the header summary for height, for use by loaders that
// populate a BoltIndex from an external source (e.g. the lint CLI's JSON
// ancestor-chain input).
func (b *BoltIndex) PutHeader(height uint64, bits, t uint32, work uint64, hash chainhash.Hash) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeaders).Put(heightKey(height), encodeHeaderRecord(bits, t, work, hash))
	})
}

func (b *BoltIndex) readAt(height uint64) (bits, t uint32, work uint64, hash chainhash.Hash, ok bool) {
	_ = b.db.View(func(tx *bolt.Tx) error {
		rec := tx.Bucket(bucketHeaders).Get(heightKey(height))
		if rec == nil {
			return nil
		}
		bits, t, work, hash, ok = decodeHeaderRecord(rec)
		return nil
	})
	return
}

func (b *BoltIndex) Height() uint64 { return b.height }

func (b *BoltIndex) Bits() uint32 {
	bits, _, _, _, _ := b.readAt(b.height)
	return bits
}

func (b *BoltIndex) Time() uint32 {
	_, t, _, _, _ := b.readAt(b.height)
	return t
}

func (b *BoltIndex) ChainWork() uint64 {
	_, _, work, _, _ := b.readAt(b.height)
	return work
}

func (b *BoltIndex) BlockHash() chainhash.Hash {
	_, _, _, hash, _ := b.readAt(b.height)
	return hash
}

func (b *BoltIndex) AncestorAt(height uint64) BlockIndex {
	if height > b.height {
		return nil
	}
	if _, _, _, _, ok := b.readAt(height); !ok {
		return nil
	}
	return &BoltIndex{db: b.db, height: height}
}

func (b *BoltIndex) MedianTimePast() int64 {
	const window = 11

	times := make([]int64, 0, window)
	for i := uint64(0); i < window; i++ {
		if b.height < i {
			break
		}
		_, t, _, _, ok := b.readAt(b.height - i)
		if !ok {
			break
		}
		times = append(times, int64(t))
	}
	if len(times) == 0 {
		return 0
	}

	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j-1] > times[j]; j-- {
			times[j-1], times[j] = times[j], times[j-1]
		}
	}
	return times[len(times)/2]
}
