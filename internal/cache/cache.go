package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinvar-query/internal/domain"
)

// New builds the cache backend selected by config
func New(ctx context.Context, config domain.CacheConfig) (domain.AnnotationCache, error) {
	switch strings.ToLower(config.Backend) {
	case "", "memory":
		return NewMemoryCache(), nil
	case "lru":
		return NewLRUCache(config.MaxEntries, config.DefaultTTL), nil
	case "redis":
		return NewRedisCache(ctx, config)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.Backend)
	}
}
