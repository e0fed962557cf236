package engine

import (
	"sync"
	"sync/atomic"

	"github.com/yourusername/bgrollout/internal/positionid"
)

// DefaultCacheSize is the number of generator results kept by default.
const DefaultCacheSize = 1 << 14

// cacheEntry stores one generator result. dice is 0 for an empty slot.
type cacheEntry struct {
	key     positionid.Key
	dice    Dice
	results []Position
}

// cacheNode holds primary and secondary entries for two-way associative cache
type cacheNode struct {
	primary   cacheEntry
	secondary cacheEntry
}

// MoveCache is a thread-safe cache of LegalPositions results for o.
// Uses a two-way associative table indexed by the position key hash.
type MoveCache struct {
	entries  []cacheNode
	hashMask uint32

	lookups atomic.Uint64
	hits    atomic.Uint64
	adds    atomic.Uint64

	mu sync.RWMutex
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Size    int     `json:"size"`
	Lookups uint64  `json:"lookups"`
	Hits    uint64  `json:"hits"`
	Adds    uint64  `json:"adds"`
	HitRate float64 `json:"hit_rate"`
}

// NewMoveCache creates a cache holding about size results. Size is
// rounded up to a power of two, minimum 2.
func NewMoveCache(size int) *MoveCache {
	if size > 1<<24 {
		size = 1 << 24
	}
	n := 2
	for n < size {
		n <<= 1
	}
	return &MoveCache{
		entries:  make([]cacheNode, n/2),
		hashMask: uint32(n/2 - 1),
	}
}

func (c *MoveCache) slot(key positionid.Key, d Dice) uint32 {
	h := key.Hash() ^ (uint32(d.high)<<3|uint32(d.low))*0x9e3779b1
	h ^= h >> 15
	return h & c.hashMask
}

// Lookup returns a copy of the cached result for p and d.
func (c *MoveCache) Lookup(p Position, d Dice) ([]Position, bool) {
	key := positionid.MakeKey(p.Board())
	slot := c.slot(key, d)
	c.lookups.Add(1)

	c.mu.RLock()
	defer c.mu.RUnlock()

	node := &c.entries[slot]
	for _, e := range []*cacheEntry{&node.primary, &node.secondary} {
		if e.dice == d && e.key == key {
			c.hits.Add(1)
			return append([]Position(nil), e.results...), true
		}
	}
	return nil, false
}

// Store records the result for p and d, demoting the slot's primary entry.
func (c *MoveCache) Store(p Position, d Dice, results []Position) {
	key := positionid.MakeKey(p.Board())
	slot := c.slot(key, d)

	c.mu.Lock()
	defer c.mu.Unlock()

	node := &c.entries[slot]
	node.secondary = node.primary
	node.primary = cacheEntry{
		key:     key,
		dice:    d,
		results: append([]Position(nil), results...),
	}
	c.adds.Add(1)
}

// Flush clears all entries and counters.
func (c *MoveCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		c.entries[i] = cacheNode{}
	}
	c.lookups.Store(0)
	c.hits.Store(0)
	c.adds.Store(0)
}

// Stats returns cache statistics
func (c *MoveCache) Stats() CacheStats {
	s := CacheStats{
		Size:    len(c.entries) * 2,
		Lookups: c.lookups.Load(),
		Hits:    c.hits.Load(),
		Adds:    c.adds.Load(),
	}
	if s.Lookups > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Lookups) * 100
	}
	return s
}
