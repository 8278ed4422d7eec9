package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/logging"
)

// NoFrequency is stored when the clinical service reports no numeric allele frequency
const NoFrequency = "None found"

// Recorder writes annotated records to the store, one record at a time
type Recorder struct {
	store  domain.AnnotationStore
	logger *logrus.Logger
	now    func() time.Time
}

// PersistSummary counts what happened to each record of a batch
type PersistSummary struct {
	Persisted int `json:"persisted"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// NewRecorder creates a recorder over store
func NewRecorder(store domain.AnnotationStore, logger *logrus.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Persist upserts patient, variant and annotation rows for every record that
// carries a clinical annotation. A failing record is logged and counted; the
// rest of the batch still runs.
func (r *Recorder) Persist(ctx context.Context, patientID string, records []*domain.CombinedRecord) PersistSummary {
	var summary PersistSummary
	log := logging.FromContext(ctx, r.logger).WithField("patient_id", patientID)

	for _, rec := range records {
		if rec == nil || rec.Clinical == nil {
			summary.Skipped++
			if rec != nil {
				log.WithFields(logrus.Fields{
					"variant":        rec.InputVariant,
					"resolver_error": rec.ResolverError,
					"clinical_error": rec.ClinicalError,
				}).Debug("No clinical annotation, not persisting variant")
			}
			continue
		}

		if err := r.persistOne(ctx, patientID, rec); err != nil {
			summary.Failed++
			log.WithFields(logrus.Fields{
				"variant": rec.InputVariant,
				"hgvs":    rec.HGVS(),
				"error":   err.Error(),
			}).Error("Failed to persist variant annotation")
			continue
		}
		summary.Persisted++
	}

	log.WithFields(logrus.Fields{
		"persisted": summary.Persisted,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("Persisted annotation batch")
	return summary
}

func (r *Recorder) persistOne(ctx context.Context, patientID string, rec *domain.CombinedRecord) error {
	now := r.now().UTC()

	if err := r.store.UpsertPatient(ctx, patientID); err != nil {
		return fmt.Errorf("failed to upsert patient: %w", err)
	}

	pv := &domain.PatientVariant{
		PatientVariantKey: domain.PatientVariantKey(patientID, rec.InputVariant),
		VariantID:         rec.InputVariant,
		PatientID:         patientID,
		DateAnnotated:     now,
	}
	if err := r.store.UpsertVariant(ctx, pv); err != nil {
		return fmt.Errorf("failed to upsert variant: %w", err)
	}

	stored := r.toStored(ctx, rec, now)
	if err := r.store.UpsertAnnotation(ctx, stored); err != nil {
		return fmt.Errorf("failed to upsert annotation: %w", err)
	}
	return nil
}

func (r *Recorder) toStored(ctx context.Context, rec *domain.CombinedRecord, now time.Time) *domain.StoredAnnotation {
	flat := rec.AnnotationRecord()
	return &domain.StoredAnnotation{
		VariantID:               flat.VariantID,
		HGVS:                    flat.HGVSTranscript,
		AssociatedConditions:    strings.Join(flat.AssociatedConditions, "; "),
		Chromosome:              flat.Chromosome,
		Gene:                    flat.GeneSymbol,
		HGNCID:                  flat.HGNCID,
		ConsensusClassification: flat.Classification,
		ReviewStatus:            flat.ReviewStatusRaw,
		Stars:                   domain.StarsFromReviewStatus(flat.ReviewStatusRaw),
		StarRating:              domain.RenderStarRating(flat.ReviewStatusRaw),
		AlleleFrequency:         r.coerceFrequency(ctx, flat.VariantID, flat.AlleleFrequency),
		UpdatedAt:               now,
	}
}

// coerceFrequency normalizes a numeric frequency, or returns NoFrequency
func (r *Recorder) coerceFrequency(ctx context.Context, variantID, raw string) string {
	raw = strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if raw != "" {
			logging.FromContext(ctx, r.logger).WithFields(logrus.Fields{
				"variant":   variantID,
				"frequency": raw,
			}).Warn("Allele frequency is not numeric")
		}
		return NoFrequency
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
