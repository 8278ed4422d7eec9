package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
)

// CachedTranscriptResolver memoizes successful transcript resolutions per
// canonical variant in front of the resolver service.
type CachedTranscriptResolver struct {
	upstream domain.TranscriptResolver

	memoryCache    *lru.Cache
	memoryCacheTTL time.Duration

	logger  *logrus.Logger
	stats   *ResolverStats
	statsMu sync.RWMutex
}

// ResolverStats represents memo performance statistics
type ResolverStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	ExternalCalls int64     `json:"external_calls"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// TranscriptResolverConfig represents configuration for the transcript resolver memo
type TranscriptResolverConfig struct {
	MemoryCacheTTL time.Duration `json:"memory_cache_ttl"`
	MaxMemorySize  int           `json:"max_memory_size"`
}

// NewCachedTranscriptResolver wraps upstream with an LRU memo
func NewCachedTranscriptResolver(
	config TranscriptResolverConfig,
	upstream domain.TranscriptResolver,
	logger *logrus.Logger,
) (*CachedTranscriptResolver, error) {
	if config.MemoryCacheTTL == 0 {
		config.MemoryCacheTTL = 24 * time.Hour
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 10000
	}

	memoryCache, err := lru.New(config.MaxMemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &CachedTranscriptResolver{
		upstream:       upstream,
		memoryCache:    memoryCache,
		memoryCacheTTL: config.MemoryCacheTTL,
		logger:         logger,
		stats: &ResolverStats{
			LastReset: time.Now(),
		},
	}, nil
}

// Resolve returns the memoized resolution or asks the upstream resolver.
// Failed resolutions are returned as-is and never memoized.
func (r *CachedTranscriptResolver) Resolve(ctx context.Context, variant domain.CanonicalVariant) (*domain.TranscriptResolution, error) {
	r.incrementStat("total_requests")
	key := variant.String()

	if res := r.getFromMemoryCache(key); res != nil {
		r.incrementStat("memory_hits")
		r.logger.WithFields(logrus.Fields{
			"variant":    key,
			"cache_tier": "memory",
		}).Debug("Cache hit in memory")
		return res, nil
	}
	r.incrementStat("memory_misses")

	r.incrementStat("external_calls")
	res, err := r.upstream.Resolve(ctx, variant)
	if err != nil {
		r.incrementStat("error_count")
		return res, err
	}

	r.setInMemoryCache(key, res)
	return res, nil
}

// InvalidateCache drops the memoized resolution for a variant
func (r *CachedTranscriptResolver) InvalidateCache(variant domain.CanonicalVariant) {
	r.memoryCache.Remove(variant.String())
	r.logger.WithField("variant", variant.String()).Info("Invalidated cache for variant")
}

// GetCacheStats returns memo performance statistics
func (r *CachedTranscriptResolver) GetCacheStats() ResolverStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return *r.stats
}

func (r *CachedTranscriptResolver) getFromMemoryCache(key string) *domain.TranscriptResolution {
	if value, ok := r.memoryCache.Get(key); ok {
		if entry, ok := value.(*cacheEntry); ok && !entry.isExpired() {
			// callers may annotate the record, so hand out a copy
			res := *entry.resolution
			return &res
		}
		r.memoryCache.Remove(key)
	}
	return nil
}

func (r *CachedTranscriptResolver) setInMemoryCache(key string, res *domain.TranscriptResolution) {
	stored := *res
	r.memoryCache.Add(key, &cacheEntry{
		resolution: &stored,
		expiry:     time.Now().Add(r.memoryCacheTTL),
	})
}

func (r *CachedTranscriptResolver) incrementStat(statName string) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	switch statName {
	case "memory_hits":
		r.stats.MemoryHits++
	case "memory_misses":
		r.stats.MemoryMisses++
	case "external_calls":
		r.stats.ExternalCalls++
	case "total_requests":
		r.stats.TotalRequests++
	case "error_count":
		r.stats.ErrorCount++
	}
}

type cacheEntry struct {
	resolution *domain.TranscriptResolution
	expiry     time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}
