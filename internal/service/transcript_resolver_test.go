package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinvar-query/internal/domain"
)

func TestCachedTranscriptResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful_Resolution", func(t *testing.T) {
		upstream := new(MockTranscriptResolver)
		variant := mustVariant("17-43045711-G-A")
		upstream.On("Resolve", ctx, variant).Return(maneResolution(variant.String(), "NM_007294.4:c.5266G>A", "BRCA1"), nil)

		resolver := createTestResolver(t, upstream)

		// First call reaches the upstream resolver
		res, err := resolver.Resolve(ctx, variant)
		require.NoError(t, err)
		assert.Equal(t, "NM_007294.4:c.5266G>A", res.PreferredHGVS())

		// Second call is served from memory
		res2, err := resolver.Resolve(ctx, variant)
		require.NoError(t, err)
		assert.Equal(t, "NM_007294.4:c.5266G>A", res2.MANEHGVSc)

		upstream.AssertNumberOfCalls(t, "Resolve", 1)

		stats := resolver.GetCacheStats()
		assert.Equal(t, int64(2), stats.TotalRequests)
		assert.Equal(t, int64(1), stats.MemoryHits)
		assert.Equal(t, int64(1), stats.MemoryMisses)
		assert.Equal(t, int64(1), stats.ExternalCalls)
	})

	t.Run("Failures_Are_Not_Memoized", func(t *testing.T) {
		upstream := new(MockTranscriptResolver)
		variant := mustVariant("1-100-A-T")
		failed := &domain.TranscriptResolution{Variant: variant.String(), Error: "no transcripts returned"}
		upstream.On("Resolve", ctx, variant).Return(failed, domain.ErrNoTranscripts)

		resolver := createTestResolver(t, upstream)

		for i := 0; i < 2; i++ {
			res, err := resolver.Resolve(ctx, variant)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrNoTranscripts))
			require.NotNil(t, res)
			assert.Empty(t, res.PreferredHGVS())
		}

		upstream.AssertNumberOfCalls(t, "Resolve", 2)
		assert.Equal(t, int64(2), resolver.GetCacheStats().ErrorCount)
	})

	t.Run("Returned_Copies_Are_Independent", func(t *testing.T) {
		upstream := new(MockTranscriptResolver)
		variant := mustVariant("2-200-C-G")
		upstream.On("Resolve", ctx, variant).Return(maneResolution(variant.String(), "NM_000001.1:c.20C>G", "GENE1"), nil)

		resolver := createTestResolver(t, upstream)

		res, err := resolver.Resolve(ctx, variant)
		require.NoError(t, err)
		res.GeneSymbol = "MUTATED"

		res2, err := resolver.Resolve(ctx, variant)
		require.NoError(t, err)
		assert.Equal(t, "GENE1", res2.GeneSymbol)
	})
}

func TestCachedTranscriptResolver_Expiry(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockTranscriptResolver)
	variant := mustVariant("3-300-G-T")
	upstream.On("Resolve", ctx, variant).Return(maneResolution(variant.String(), "NM_000003.1:c.30G>T", "GENE3"), nil)

	resolver, err := NewCachedTranscriptResolver(TranscriptResolverConfig{
		MemoryCacheTTL: time.Millisecond,
		MaxMemorySize:  10,
	}, upstream, testLogger())
	require.NoError(t, err)

	_, err = resolver.Resolve(ctx, variant)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = resolver.Resolve(ctx, variant)
	require.NoError(t, err)

	upstream.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestCachedTranscriptResolver_InvalidateCache(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockTranscriptResolver)
	variant := mustVariant("4-400-A-C")
	upstream.On("Resolve", mock.Anything, variant).Return(maneResolution(variant.String(), "NM_000004.1:c.40A>C", "GENE4"), nil)

	resolver := createTestResolver(t, upstream)

	_, err := resolver.Resolve(ctx, variant)
	require.NoError(t, err)

	resolver.InvalidateCache(variant)

	_, err = resolver.Resolve(ctx, variant)
	require.NoError(t, err)
	upstream.AssertNumberOfCalls(t, "Resolve", 2)
}

func BenchmarkCachedTranscriptResolver_Resolve(b *testing.B) {
	ctx := context.Background()
	upstream := new(MockTranscriptResolver)
	variant := mustVariant("17-43045711-G-A")
	upstream.On("Resolve", ctx, variant).Return(maneResolution(variant.String(), "NM_007294.4:c.5266G>A", "BRCA1"), nil)

	resolver := createTestResolver(b, upstream)
	_, _ = resolver.Resolve(ctx, variant)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = resolver.Resolve(ctx, variant)
	}
}

func createTestResolver(t testing.TB, upstream domain.TranscriptResolver) *CachedTranscriptResolver {
	resolver, err := NewCachedTranscriptResolver(TranscriptResolverConfig{
		MemoryCacheTTL: time.Hour,
		MaxMemorySize:  100,
	}, upstream, testLogger())
	require.NoError(t, err)
	return resolver
}
