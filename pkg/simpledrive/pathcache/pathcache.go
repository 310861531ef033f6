// Package pathcache provides an expiring LRU cache of folder records used to
// resolve item full paths without re-reading every ancestor.
package pathcache

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/metrics"
)

// Cache implements simpledrive.FolderCache
type Cache struct {
	lru *expirable.LRU[uuid.UUID, *simpledrive.Item]
}

// New creates a cache holding at most size folders, each for at most ttl
func New(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[uuid.UUID, *simpledrive.Item](size, nil, ttl)}
}

// Get returns a copy of the cached folder
func (c *Cache) Get(id uuid.UUID) (*simpledrive.Item, bool) {
	item, ok := c.lru.Get(id)
	if !ok {
		metrics.PathCacheMisses.Inc()
		return nil, false
	}
	metrics.PathCacheHits.Inc()
	return item.Clone(), true
}

// Add stores a copy of a folder; files are ignored
func (c *Cache) Add(item *simpledrive.Item) {
	if item == nil || !item.IsFolder() {
		return
	}
	c.lru.Add(item.ID, item.Clone())
}

// Remove invalidates a folder after it changed or was deleted
func (c *Cache) Remove(id uuid.UUID) {
	c.lru.Remove(id)
}

// Len returns the number of cached folders
func (c *Cache) Len() int {
	return c.lru.Len()
}

var _ simpledrive.FolderCache = (*Cache)(nil)
