package randomxkeys

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/zrxpow/zrxpow/internal/lockdebug"
)

// EpochBlocks and Lag define the seed-height schedule from spec.md §6:
// the seed changes every EpochBlocks heights, with a Lag-block delay before
// a newly-mined seed block is actually used as a key.
const (
	EpochBlocks = 2048
	Lag         = 96

	// DefaultCapacity is the maximum number of resident caches: current
	// epoch, its predecessor during the lag window, and headroom for a
	// reorg touching one or two older epochs.
	DefaultCapacity = 5

	// DefaultShutdownGrace is the minimum pause between setting the
	// shutting-down flag and tearing down the registry, giving in-flight
	// hashes on other goroutines a chance to finish.
	DefaultShutdownGrace = 100 * time.Millisecond
)

// GenesisSeed is the fixed RandomX key used for every height up to and
// including EpochBlocks+Lag: byte 0 is 0x08, the remaining 31 bytes zero.
func GenesisSeed() [32]byte {
	var s [32]byte
	s[0] = 0x08
	return s
}

// SeedHeight returns the height whose block hash is the RandomX seed for
// the block at height. EpochBlocks being a power of two turns the "round
// down to the nearest multiple" step into a bitmask.
func SeedHeight(height uint64) uint64 {
	if height <= EpochBlocks+Lag {
		return 0
	}
	return (height - Lag - 1) &^ (EpochBlocks - 1)
}

type cacheEntry struct {
	seed     [32]byte
	cache    Cache
	lastUsed int64 // UnixNano, updated under Manager.mu
	refCount int   // outstanding checkouts; 0 means eligible for eviction
	vmPool   sync.Pool
}

func (e *cacheEntry) getVM() (VM, error) {
	if v, ok := e.vmPool.Get().(VM); ok {
		return v, nil
	}
	return e.cache.NewVM()
}

func (e *cacheEntry) putVM(vm VM) {
	e.vmPool.Put(vm)
}

// Manager is the process-wide registry described in spec.md §4.3: a
// bounded-LRU map from seed to keyed cache, a main-seed slot for
// stateless/mining callers, and shutdown quiescence. The zero value is not
// usable; construct with NewManager.
type Manager struct {
	backend  Backend
	capacity int

	mu      *lockdebug.Mutex
	entries map[[32]byte]*cacheEntry
	// pinned tracks seeds with at least one outstanding checkout, so
	// eviction never picks a cache a VM is actively bound to.
	pinned mapset.Set[[32]byte]

	mainMu   *lockdebug.Mutex
	mainSeed *[32]byte

	shuttingDown atomic.Bool

	// recent is best-effort diagnostics only: a TTL cache of the last time
	// each seed was touched, read through RecentSeedTouch without taking the
	// registry lock. It never participates in the eviction decision.
	recent *bigcache.BigCache
}

// NewManager constructs a Manager bound to backend with the default
// capacity-5 eviction policy.
func NewManager(backend Backend) *Manager {
	recent, _ := bigcache.New(context.Background(), bigcache.DefaultConfig(30*time.Minute))
	return &Manager{
		backend:  backend,
		capacity: DefaultCapacity,
		mu:       lockdebug.NewMutex("randomxkeys.registry", lockdebug.ClassRegistry),
		entries:  make(map[[32]byte]*cacheEntry),
		pinned:   mapset.NewThreadUnsafeSet[[32]byte](),
		mainMu:   lockdebug.NewMutex("randomxkeys.mainSeed", lockdebug.ClassMainSeed),
		recent:   recent,
	}
}

// SetMainSeed idempotently installs seed as the seed used by Hash (the
// no-chain-context entry point for mining and stateless mempool checks),
// and eagerly materialises its cache so the first block doesn't pay RandomX
// init cost on the mining hot path.
func (m *Manager) SetMainSeed(seed [32]byte) {
	m.mainMu.Lock()
	if m.mainSeed != nil && *m.mainSeed == seed {
		m.mainMu.Unlock()
		return
	}
	s := seed
	m.mainSeed = &s
	m.mainMu.Unlock()

	entry, err := m.acquire(seed)
	if err != nil {
		return
	}
	m.release(entry)
}

// Hash computes a RandomX hash of input under the current main seed,
// auto-initialising it to the genesis seed on first use if SetMainSeed was
// never called. Returns ok=false if the manager is shutting down.
func (m *Manager) Hash(input []byte) (out [32]byte, ok bool) {
	m.mainMu.Lock()
	if m.mainSeed == nil {
		g := GenesisSeed()
		m.mainSeed = &g
	}
	seed := *m.mainSeed
	m.mainMu.Unlock()

	return m.HashWithSeed(seed, input)
}

// HashWithSeed computes a RandomX hash of input under seed. Returns
// ok=false if the manager is shutting down or the backend fails to
// materialise the cache; both are structurally indistinguishable failures
// per spec.md §7.
func (m *Manager) HashWithSeed(seed [32]byte, input []byte) (out [32]byte, ok bool) {
	if m.shuttingDown.Load() {
		return out, false
	}

	entry, err := m.acquire(seed)
	if err != nil {
		return out, false
	}
	defer m.release(entry)

	vm, err := entry.getVM()
	if err != nil {
		return out, false
	}
	out = vm.Hash(input)
	entry.putVM(vm)
	return out, true
}

// acquire returns the (possibly newly-created) entry for seed, bumping its
// refcount and last-used time. The slow RandomX cache init happens here,
// under m.mu, exactly as spec.md §4.3's concurrency contract requires: only
// one goroutine materialises a given seed, and goroutines needing other
// seeds only wait behind this short critical section.
func (m *Manager) acquire(seed [32]byte) (*cacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[seed]
	if !ok {
		cache, err := m.backend.AllocCache(seed)
		if err != nil {
			return nil, fmt.Errorf("randomxkeys: alloc cache: %w", err)
		}
		entry = &cacheEntry{seed: seed, cache: cache}
		m.entries[seed] = entry
	}

	entry.lastUsed = time.Now().UnixNano()
	entry.refCount++
	m.pinned.Add(seed)
	m.touchRecent(seed, entry.lastUsed)

	// Only now that the entry we're about to hand back is pinned and
	// freshly timestamped can eviction run without it being its own
	// candidate.
	m.evictLocked()

	return entry, nil
}

func (m *Manager) release(entry *cacheEntry) {
	m.mu.Lock()
	entry.refCount--
	if entry.refCount == 0 {
		m.pinned.Remove(entry.seed)
	}
	m.mu.Unlock()
}

// evictLocked drops the least-recently-used unpinned entry until the
// registry is back at capacity. If every resident entry is pinned (all
// bound to in-flight VMs), it leaves the registry over capacity rather than
// evicting a cache a caller is using — the only back-pressure signal the
// spec allows is an unlucky caller re-paying init cost, never a correctness
// violation.
func (m *Manager) evictLocked() {
	for len(m.entries) > m.capacity {
		var (
			oldestSeed  [32]byte
			oldestTime  int64
			found       bool
		)
		for seed, e := range m.entries {
			if e.refCount > 0 {
				continue
			}
			if !found || e.lastUsed < oldestTime {
				oldestSeed, oldestTime, found = seed, e.lastUsed, true
			}
		}
		if !found {
			return
		}
		m.entries[oldestSeed].cache.Release()
		delete(m.entries, oldestSeed)
	}
}

func (m *Manager) touchRecent(seed [32]byte, lastUsed int64) {
	if m.recent == nil {
		return
	}
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(lastUsed))
	_ = m.recent.Set(hex.EncodeToString(seed[:]), v[:])
}

// RecentSeedTouch reports the last time seed was acquired, per the
// diagnostics cache, and whether it has been touched at all.
func (m *Manager) RecentSeedTouch(seed [32]byte) (time.Time, bool) {
	if m.recent == nil {
		return time.Time{}, false
	}
	v, err := m.recent.Get(hex.EncodeToString(seed[:]))
	if err != nil || len(v) != 8 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v))), true
}

// Resident reports the number of caches currently materialised in the
// registry, for diagnostics.
func (m *Manager) Resident() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Shutdown sets the shutting-down flag, waits at least grace (clamped up
// to DefaultShutdownGrace) for in-flight hashes to finish, then releases
// every cache and clears the registry. Idempotent: calling it twice is
// safe, the second call just waits and finds nothing left to release.
func (m *Manager) Shutdown(grace time.Duration) {
	first := !m.shuttingDown.Swap(true)
	if grace < DefaultShutdownGrace {
		grace = DefaultShutdownGrace
	}
	time.Sleep(grace)

	m.mu.Lock()
	for seed, e := range m.entries {
		e.cache.Release()
		delete(m.entries, seed)
	}
	m.pinned.Clear()
	m.mu.Unlock()

	if first && m.recent != nil {
		_ = m.recent.Close()
	}
}
