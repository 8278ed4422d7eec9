package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/clinvar-query/internal/cache"
	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/logging"
)

// DefaultWorkers is the annotation pool width when none is configured
const DefaultWorkers = 8

// Annotator fans canonical variants out over a bounded worker pool and runs
// resolver, cache and clinical lookup for each one.
type Annotator struct {
	resolver domain.TranscriptResolver
	clinical domain.ClinicalLookup
	memo     *cache.Memo
	workers  int
	logger   *logrus.Logger

	statsMu sync.Mutex
	stats   AnnotatorStats
}

// AnnotatorStats counts outcomes across all Process calls
type AnnotatorStats struct {
	Processed     int64 `json:"processed"`
	Resolved      int64 `json:"resolved"`
	Annotated     int64 `json:"annotated"`
	NotInClinVar  int64 `json:"not_in_clinvar"`
	CacheHits     int64 `json:"cache_hits"`
	ResolverFails int64 `json:"resolver_failures"`
	ClinicalFails int64 `json:"clinical_failures"`
}

// NewAnnotator creates an annotator. The cache is shared by every worker.
func NewAnnotator(
	resolver domain.TranscriptResolver,
	clinical domain.ClinicalLookup,
	annotationCache domain.AnnotationCache,
	workers int,
	logger *logrus.Logger,
) *Annotator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Annotator{
		resolver: resolver,
		clinical: clinical,
		memo:     cache.NewMemo(annotationCache, logger),
		workers:  workers,
		logger:   logger,
	}
}

// Process annotates every variant and returns one record per input, in
// completion order. Failures are recorded on the record, never returned.
func (a *Annotator) Process(ctx context.Context, variants []string) []*domain.CombinedRecord {
	if len(variants) == 0 {
		return []*domain.CombinedRecord{}
	}

	start := time.Now()
	log := logging.FromContext(ctx, a.logger)
	log.WithFields(logrus.Fields{
		"batch_size": len(variants),
		"workers":    a.workers,
	}).Info("Starting variant annotation")

	out := make(chan *domain.CombinedRecord, len(variants))
	var g errgroup.Group
	g.SetLimit(a.workers)

	for i, raw := range variants {
		i, raw := i, raw
		g.Go(func() error {
			out <- a.annotateOne(ctx, i, raw)
			return nil
		})
	}
	_ = g.Wait()
	close(out)

	records := make([]*domain.CombinedRecord, 0, len(variants))
	annotated := 0
	for rec := range out {
		if rec.Clinical != nil {
			annotated++
		}
		records = append(records, rec)
	}

	log.WithFields(logrus.Fields{
		"batch_size": len(variants),
		"annotated":  annotated,
		"duration":   time.Since(start).String(),
	}).Info("Completed variant annotation")

	return records
}

// annotateOne never panics out; a panicking dependency degrades the record
func (a *Annotator) annotateOne(ctx context.Context, index int, raw string) (rec *domain.CombinedRecord) {
	rec = &domain.CombinedRecord{Index: index, InputVariant: raw}
	log := logging.FromContext(ctx, a.logger).WithField("variant", raw)
	clinicalStage := false

	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", fmt.Sprint(p)).Error("Recovered from panic while annotating variant")
			if clinicalStage {
				rec.ClinicalError = fmt.Sprintf("panic: %v", p)
				a.record(func(s *AnnotatorStats) { s.Processed++; s.ClinicalFails++ })
			} else {
				rec.ResolverError = fmt.Sprintf("panic: %v", p)
				a.record(func(s *AnnotatorStats) { s.Processed++; s.ResolverFails++ })
			}
		}
	}()

	variant, err := domain.ParseCanonicalVariant(raw)
	if err != nil {
		rec.ResolverError = err.Error()
		log.WithError(err).Warn("Skipping malformed variant")
		a.record(func(s *AnnotatorStats) { s.Processed++; s.ResolverFails++ })
		return rec
	}
	rec.InputVariant = variant.String()

	if err := ctx.Err(); err != nil {
		rec.ResolverError = err.Error()
		a.record(func(s *AnnotatorStats) { s.Processed++; s.ResolverFails++ })
		return rec
	}

	res, err := a.resolver.Resolve(ctx, variant)
	if res == nil {
		res = &domain.TranscriptResolution{Variant: variant.String()}
	}
	if err != nil {
		if res.Error == "" {
			res.Error = err.Error()
		}
		rec.Resolution = res
		rec.ResolverError = res.Error
		log.WithError(err).Warn("Transcript resolution failed")
		a.record(func(s *AnnotatorStats) { s.Processed++; s.ResolverFails++ })
		return rec
	}
	rec.Resolution = res

	hgvs := res.PreferredHGVS()
	if hgvs == "" {
		log.Info("No transcript HGVS available, skipping clinical lookup")
		a.record(func(s *AnnotatorStats) { s.Processed++; s.Resolved++ })
		return rec
	}

	clinicalStage = true
	annotation, hit, err := a.memo.GetOrFetch(ctx, hgvs, a.clinical.Lookup)
	rec.CacheHit = hit
	if err != nil {
		rec.ClinicalError = err.Error()
		log.WithFields(logrus.Fields{"hgvs": hgvs, "error": err.Error()}).Warn("Clinical lookup failed")
		a.record(func(s *AnnotatorStats) { s.Processed++; s.Resolved++; s.ClinicalFails++ })
		return rec
	}

	rec.Clinical = annotation
	a.record(func(s *AnnotatorStats) {
		s.Processed++
		s.Resolved++
		if hit {
			s.CacheHits++
		}
		if annotation != nil {
			s.Annotated++
		} else {
			s.NotInClinVar++
		}
	})
	return rec
}

func (a *Annotator) record(update func(s *AnnotatorStats)) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	update(&a.stats)
}

// Stats returns a snapshot of the counters
func (a *Annotator) Stats() AnnotatorStats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}

// SortByInput orders records by their position in the input
func SortByInput(records []*domain.CombinedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Index < records[j].Index
	})
}
