// Package cache holds the clinical annotation cache implementations and the
// memo that coordinates lookups across workers.
package cache

import (
	"context"
	"sync"

	"github.com/clinvar-query/internal/domain"
)

// MemoryCache is an unbounded in-process cache that lives as long as the process
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.ClinicalAnnotation
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*domain.ClinicalAnnotation)}
}

// Get returns the cached annotation; a nil annotation with ok=true is a cached "not found"
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.ClinicalAnnotation, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	annotation, ok := c.entries[key]
	return annotation, ok, nil
}

// Put stores the annotation, or nil for "not found"
func (c *MemoryCache) Put(_ context.Context, key string, annotation *domain.ClinicalAnnotation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = annotation
	return nil
}

// Len returns the number of cached keys
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
