// Package rconcache holds the original messages cached while a reverse
// connection (RCON) is being established.
//
// TomP2P's Sender caches these in a plain ConcurrentHashMap with no
// eviction policy at all, which leaves the cache unbounded under sustained
// churn. This package bounds it with an LRU, backed by
// github.com/hashicorp/golang-lru/v2.
package rconcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/kadtransport/internal/completion"
)

// DefaultMaxEntries bounds the cache at a reasonable default size.
const DefaultMaxEntries = 1024

// Cache maps a cached message's id to the ResponseCompletion awaiting its
// eventual delivery over the back-channel.
type Cache struct {
	lru *lru.Cache[uint32, *completion.ResponseCompletion]
}

// New creates a Cache bounded at maxEntries (DefaultMaxEntries if <= 0).
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	l, err := lru.New[uint32, *completion.ResponseCompletion](maxEntries)
	if err != nil {
		// Only returns an error for a non-positive size, which we've
		// already guarded against above.
		panic(err)
	}
	return &Cache{lru: l}
}

// Put caches c under id, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *Cache) Put(id uint32, rc *completion.ResponseCompletion) {
	c.lru.Add(id, rc)
}

// Take removes and returns the completion cached under id, if present.
func (c *Cache) Take(id uint32) (*completion.ResponseCompletion, bool) {
	rc, ok := c.lru.Get(id)
	if ok {
		c.lru.Remove(id)
	}
	return rc, ok
}

// Len reports the number of messages currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}
