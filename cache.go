package sstable

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// nextTableID hands out process-wide monotonic identifiers so that
// distinct Reader instances never collide on a shared BlockCache even if
// they happen to read the same byte offset in different underlying files.
var nextTableID uint64

func newTableID() uint64 {
	return atomic.AddUint64(&nextTableID, 1)
}

type cacheKey struct {
	tableID uint64
	offset  uint64
}

// BlockCache is a bounded, byte-size-limited LRU cache of decoded block
// payloads, keyed by (tableID, offset). It may be shared across multiple
// Readers, including readers of different tables. Entries are immutable
// once inserted, so lookups and inserts need only serialize the
// bookkeeping, not the cached bytes themselves.
type BlockCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[cacheKey, []byte]
	capacity int64
	used     int64
}

// NewBlockCache returns a BlockCache bounded to capacityBytes of decoded
// block payloads.
func NewBlockCache(capacityBytes int64) *BlockCache {
	if capacityBytes <= 0 {
		capacityBytes = 8 << 20
	}
	// The underlying library bounds by entry count; we additionally
	// bound by byte size below, so give it a generous ceiling that
	// byte-size eviction will reach first in practice.
	entries, _ := lru.New[cacheKey, []byte](1 << 20)
	return &BlockCache{entries: entries, capacity: capacityBytes}
}

func (c *BlockCache) get(tableID, offset uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(cacheKey{tableID, offset})
}

func (c *BlockCache) insert(tableID, offset uint64, block []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries.Peek(cacheKey{tableID, offset}); ok {
		return
	}

	c.entries.Add(cacheKey{tableID, offset}, block)
	c.used += int64(len(block))

	for c.used > c.capacity && c.entries.Len() > 1 {
		_, evicted, ok := c.entries.RemoveOldest()
		if !ok {
			break
		}
		c.used -= int64(len(evicted))
	}
}

// evictTable drops every entry belonging to tableID. A Reader calls this
// on Close only for the private cache it allocated; entries in a shared
// cache passed via Options.BlockCache are left in place.
func (c *BlockCache) evictTable(tableID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.entries.Keys() {
		if key.tableID == tableID {
			if v, ok := c.entries.Peek(key); ok {
				c.used -= int64(len(v))
			}
			c.entries.Remove(key)
		}
	}
}
