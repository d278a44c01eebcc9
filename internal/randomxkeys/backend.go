// Package randomxkeys implements the process-wide RandomX key manager from
// the spec: a bounded-LRU registry of keyed caches shared across
// goroutines, paired with a per-seed pool of VMs that amortises the cost of
// VM creation across repeated hashes under the same key.
//
// RandomX itself is treated as a black box (spec.md §1): "allocate cache →
// init with a 32-byte key → create VM bound to cache → hash → destroy".
// Backend is that black box's Go interface; Hash, the only real consensus
// property that matters at this layer, is implemented by a keyed-BLAKE2b
// stand-in suitable for tests and for any embedder that hasn't linked a
// real RandomX binding yet.
package randomxkeys

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Backend is the RandomX primitive's interface, as spec.md §1 defines it:
// allocate a cache keyed by a 32-byte seed, then create VMs bound to it.
type Backend interface {
	AllocCache(seed [32]byte) (Cache, error)
}

// Cache is an initialised, keyed RandomX cache. It is shared-owned between
// the registry and every VM created from it. The Manager never evicts (and
// so never calls Release on) a cache while a checkout is outstanding;
// Shutdown is the exception, releasing every cache once its grace period
// has elapsed whether or not a checkout is still outstanding.
type Cache interface {
	NewVM() (VM, error)
	Release()
}

// VM is a single-threaded RandomX virtual machine bound to one Cache. Hash
// is CPU-bound and must never be called concurrently on the same VM.
type VM interface {
	Hash(input []byte) [32]byte
	Destroy()
}

// Blake2bBackend is the shipped reference/test Backend. It is explicitly
// not memory-hard — it exists so this module's consensus logic (seed
// resolution, epoch scheduling, solution/target checks) can be exercised
// and tested without linking a real RandomX library, matching spec.md §1's
// treatment of RandomX as an external, swappable primitive.
type Blake2bBackend struct{}

func (Blake2bBackend) AllocCache(seed [32]byte) (Cache, error) {
	// blake2b.New256 validates key length <= 64 itself; 32 always passes.
	if _, err := blake2b.New256(seed[:]); err != nil {
		return nil, fmt.Errorf("randomxkeys: alloc cache for seed: %w", err)
	}
	s := seed
	return &blake2bCache{seed: s}, nil
}

type blake2bCache struct {
	seed [32]byte
}

func (c *blake2bCache) NewVM() (VM, error) {
	h, err := blake2b.New256(c.seed[:])
	if err != nil {
		return nil, fmt.Errorf("randomxkeys: create vm: %w", err)
	}
	return &blake2bVM{h: h}, nil
}

func (c *blake2bCache) Release() {}

type blake2bVM struct {
	h interface {
		Reset()
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

func (v *blake2bVM) Hash(input []byte) [32]byte {
	v.h.Reset()
	v.h.Write(input)
	var out [32]byte
	copy(out[:], v.h.Sum(nil))
	return out
}

func (v *blake2bVM) Destroy() {}
