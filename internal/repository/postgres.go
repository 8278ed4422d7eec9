package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
)

// PostgresStore implements domain.AnnotationStore on a pgx pool. The schema
// is owned by the database package's migrations.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a store over an open pool
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

func (r *PostgresStore) inTx(ctx context.Context, query string, args ...interface{}) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertPatient records a patient id
func (r *PostgresStore) UpsertPatient(ctx context.Context, patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return domain.NewValidationError("patient_id", "is required", patientID)
	}
	err := r.inTx(ctx, `
		INSERT INTO patient_information (patient_id) VALUES ($1)
		ON CONFLICT (patient_id) DO NOTHING`, patientID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to upsert patient")
		return fmt.Errorf("upserting patient: %w", err)
	}
	return nil
}

// UpsertVariant inserts or fully replaces the (patient, variant) row
func (r *PostgresStore) UpsertVariant(ctx context.Context, v *domain.PatientVariant) error {
	if err := validatePatientVariant(v); err != nil {
		return err
	}
	if v.DateAnnotated.IsZero() {
		v.DateAnnotated = time.Now().UTC()
	}

	query := `
		INSERT INTO variants (patient_variant_key, variant_id, patient_id, date_annotated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_variant_key) DO UPDATE SET
			variant_id = EXCLUDED.variant_id,
			patient_id = EXCLUDED.patient_id,
			date_annotated = EXCLUDED.date_annotated`

	if err := r.inTx(ctx, query, v.PatientVariantKey, v.VariantID, v.PatientID, v.DateAnnotated); err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_variant_key": v.PatientVariantKey,
			"error":               err,
		}).Error("Failed to upsert variant")
		return fmt.Errorf("upserting variant: %w", err)
	}
	return nil
}

// UpsertAnnotation inserts or fully replaces the annotation row for a variant
func (r *PostgresStore) UpsertAnnotation(ctx context.Context, a *domain.StoredAnnotation) error {
	if err := validateAnnotation(a); err != nil {
		return err
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO clinvar (
			variant_id, hgvs, associated_conditions, chromosome, gene, hgnc_id,
			consensus_classification, review_status, stars, star_rating,
			allele_frequency, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (variant_id) DO UPDATE SET
			hgvs = EXCLUDED.hgvs,
			associated_conditions = EXCLUDED.associated_conditions,
			chromosome = EXCLUDED.chromosome,
			gene = EXCLUDED.gene,
			hgnc_id = EXCLUDED.hgnc_id,
			consensus_classification = EXCLUDED.consensus_classification,
			review_status = EXCLUDED.review_status,
			stars = EXCLUDED.stars,
			star_rating = EXCLUDED.star_rating,
			allele_frequency = EXCLUDED.allele_frequency,
			updated_at = EXCLUDED.updated_at`

	err := r.inTx(ctx, query,
		a.VariantID, a.HGVS, a.AssociatedConditions, a.Chromosome, a.Gene, a.HGNCID,
		a.ConsensusClassification, a.ReviewStatus, a.Stars, a.StarRating,
		a.AlleleFrequency, a.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"variant_id": a.VariantID,
			"hgvs":       a.HGVS,
			"error":      err,
		}).Error("Failed to upsert annotation")
		return fmt.Errorf("upserting annotation: %w", err)
	}
	return nil
}

// GetAnnotation retrieves the annotation for a variant
func (r *PostgresStore) GetAnnotation(ctx context.Context, variantID string) (*domain.StoredAnnotation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+annotationColumns+` FROM clinvar c WHERE c.variant_id = $1`, variantID)

	a, err := scanAnnotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("annotation not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting annotation: %w", err)
	}
	return a, nil
}

// ListPatientVariants retrieves every annotated variant of a patient
func (r *PostgresStore) ListPatientVariants(ctx context.Context, patientID string) ([]*domain.PatientVariantAnnotation, error) {
	return r.query(ctx, `
		SELECT `+patientVariantColumns+`
		FROM variants v JOIN clinvar c ON c.variant_id = v.variant_id
		WHERE v.patient_id = $1
		ORDER BY v.variant_id`, patientID)
}

// Search performs a case-insensitive substring match across patient,
// variant and annotation columns.
func (r *PostgresStore) Search(ctx context.Context, term string, limit int) ([]*domain.PatientVariantAnnotation, error) {
	if strings.TrimSpace(term) == "" {
		return nil, domain.NewValidationError("q", "search term is required", term)
	}
	return r.query(ctx, `
		SELECT `+patientVariantColumns+`
		FROM variants v JOIN clinvar c ON c.variant_id = v.variant_id
		WHERE v.patient_id ILIKE $1
			OR v.variant_id ILIKE $1
			OR c.gene ILIKE $1
			OR c.hgnc_id ILIKE $1
			OR c.hgvs ILIKE $1
			OR c.consensus_classification ILIKE $1
			OR c.associated_conditions ILIKE $1
		ORDER BY v.date_annotated DESC, v.patient_variant_key
		LIMIT $2`, likePattern(term), normalizeLimit(limit))
}

// LatestAnnotated retrieves the most recently annotated patient variant
func (r *PostgresStore) LatestAnnotated(ctx context.Context) (*domain.PatientVariantAnnotation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientVariantColumns+`
		FROM variants v JOIN clinvar c ON c.variant_id = v.variant_id
		ORDER BY v.date_annotated DESC
		LIMIT 1`)

	pv, err := scanPatientVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no annotated variants: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting latest annotation: %w", err)
	}
	return pv, nil
}

func (r *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.PatientVariantAnnotation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying patient variants: %w", err)
	}
	defer rows.Close()

	result := []*domain.PatientVariantAnnotation{}
	for rows.Next() {
		pv, err := scanPatientVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient variant: %w", err)
		}
		result = append(result, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient variants: %w", err)
	}
	return result, nil
}

// Close is a no-op; the pool belongs to the caller
func (r *PostgresStore) Close() error {
	return nil
}
