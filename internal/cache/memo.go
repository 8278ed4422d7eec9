package cache

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/clinvar-query/internal/domain"
)

// FetchFunc performs the network lookup on a cache miss
type FetchFunc func(ctx context.Context, key string) (*domain.ClinicalAnnotation, error)

// Memo coordinates check-then-fetch-then-store over an AnnotationCache.
// Concurrent misses on one key share a single fetch.
type Memo struct {
	cache  domain.AnnotationCache
	group  singleflight.Group
	logger *logrus.Logger
}

// NewMemo wraps cache
func NewMemo(cache domain.AnnotationCache, logger *logrus.Logger) *Memo {
	return &Memo{cache: cache, logger: logger}
}

// GetOrFetch returns the cached value for key, fetching and storing it on a
// miss. Both annotations and "not found" results are stored; fetch errors
// are not. hit reports whether the value came from the cache.
func (m *Memo) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (annotation *domain.ClinicalAnnotation, hit bool, err error) {
	if annotation, ok := m.lookup(ctx, key); ok {
		return annotation, true, nil
	}

	type flightResult struct {
		annotation *domain.ClinicalAnnotation
		hit        bool
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// another flight may have stored the key since the first check
		if annotation, ok := m.lookup(ctx, key); ok {
			return flightResult{annotation: annotation, hit: true}, nil
		}

		annotation, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := m.cache.Put(ctx, key, annotation); err != nil {
			m.logger.WithFields(logrus.Fields{
				"hgvs":  key,
				"error": err.Error(),
			}).Warn("Failed to store annotation in cache")
		}
		return flightResult{annotation: annotation}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	res := v.(flightResult)
	return res.annotation, res.hit, nil
}

// lookup treats cache backend errors as misses
func (m *Memo) lookup(ctx context.Context, key string) (*domain.ClinicalAnnotation, bool) {
	annotation, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"hgvs":  key,
			"error": err.Error(),
		}).Warn("Annotation cache read failed")
		return nil, false
	}
	return annotation, ok
}
