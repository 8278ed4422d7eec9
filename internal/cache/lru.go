package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/clinvar-query/internal/domain"
)

// lruEntry boxes the annotation so a cached "not found" is distinguishable from a miss
type lruEntry struct {
	annotation *domain.ClinicalAnnotation
}

// LRUCache is a size-bounded cache with per-entry expiry
type LRUCache struct {
	lru *expirable.LRU[string, lruEntry]
}

// NewLRUCache creates a cache holding at most size entries for ttl each.
// A zero ttl disables expiry.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, lruEntry](size, nil, ttl)}
}

// Get returns the cached annotation
func (c *LRUCache) Get(_ context.Context, key string) (*domain.ClinicalAnnotation, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return entry.annotation, true, nil
}

// Put stores the annotation, evicting the least recently used entry when full
func (c *LRUCache) Put(_ context.Context, key string, annotation *domain.ClinicalAnnotation) error {
	c.lru.Add(key, lruEntry{annotation: annotation})
	return nil
}

// Len returns the number of live entries
func (c *LRUCache) Len() int {
	return c.lru.Len()
}
