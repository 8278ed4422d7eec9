package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/clinvar-query/internal/domain"
)

// SQLiteStore implements domain.AnnotationStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteStore opens the database at dbPath, creating the file, its
// directory and the schema when missing.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("SQLite annotation store opened")
	return &SQLiteStore{db: db, dbPath: dbPath, log: logger}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patient_information (
		patient_id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS variants (
		patient_variant_key TEXT PRIMARY KEY,
		variant_id TEXT NOT NULL,
		patient_id TEXT NOT NULL REFERENCES patient_information(patient_id) ON DELETE CASCADE,
		date_annotated DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clinvar (
		variant_id TEXT PRIMARY KEY,
		hgvs TEXT NOT NULL DEFAULT '',
		associated_conditions TEXT NOT NULL DEFAULT '',
		chromosome TEXT NOT NULL DEFAULT '',
		gene TEXT NOT NULL DEFAULT '',
		hgnc_id TEXT NOT NULL DEFAULT '',
		consensus_classification TEXT NOT NULL DEFAULT '',
		review_status TEXT NOT NULL DEFAULT '',
		stars INTEGER NOT NULL DEFAULT 0,
		star_rating TEXT NOT NULL DEFAULT '',
		allele_frequency TEXT NOT NULL DEFAULT 'None found',
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_variants_patient_id ON variants(patient_id);
	CREATE INDEX IF NOT EXISTS idx_variants_variant_id ON variants(variant_id);
	CREATE INDEX IF NOT EXISTS idx_variants_date_annotated ON variants(date_annotated);
	CREATE INDEX IF NOT EXISTS idx_clinvar_gene ON clinvar(gene);
	`

	_, err := db.Exec(schema)
	return err
}

// inTx runs one statement in its own transaction
func (s *SQLiteStore) inTx(ctx context.Context, query string, args ...interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// UpsertPatient records a patient id; existing patients are left as they are.
func (s *SQLiteStore) UpsertPatient(ctx context.Context, patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return domain.NewValidationError("patient_id", "is required", patientID)
	}
	err := s.inTx(ctx, `
		INSERT INTO patient_information (patient_id) VALUES (?)
		ON CONFLICT(patient_id) DO NOTHING
	`, patientID)
	if err != nil {
		return fmt.Errorf("failed to upsert patient %s: %w", patientID, err)
	}
	return nil
}

// UpsertVariant inserts or fully replaces the (patient, variant) row
func (s *SQLiteStore) UpsertVariant(ctx context.Context, v *domain.PatientVariant) error {
	if err := validatePatientVariant(v); err != nil {
		return err
	}
	if v.DateAnnotated.IsZero() {
		v.DateAnnotated = time.Now().UTC()
	}
	err := s.inTx(ctx, `
		INSERT INTO variants (patient_variant_key, variant_id, patient_id, date_annotated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(patient_variant_key) DO UPDATE SET
			variant_id = excluded.variant_id,
			patient_id = excluded.patient_id,
			date_annotated = excluded.date_annotated
	`, v.PatientVariantKey, v.VariantID, v.PatientID, v.DateAnnotated.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert variant %s: %w", v.PatientVariantKey, err)
	}
	return nil
}

// UpsertAnnotation inserts or fully replaces the annotation row for a variant
func (s *SQLiteStore) UpsertAnnotation(ctx context.Context, a *domain.StoredAnnotation) error {
	if err := validateAnnotation(a); err != nil {
		return err
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	err := s.inTx(ctx, `
		INSERT INTO clinvar (
			variant_id, hgvs, associated_conditions, chromosome, gene, hgnc_id,
			consensus_classification, review_status, stars, star_rating,
			allele_frequency, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(variant_id) DO UPDATE SET
			hgvs = excluded.hgvs,
			associated_conditions = excluded.associated_conditions,
			chromosome = excluded.chromosome,
			gene = excluded.gene,
			hgnc_id = excluded.hgnc_id,
			consensus_classification = excluded.consensus_classification,
			review_status = excluded.review_status,
			stars = excluded.stars,
			star_rating = excluded.star_rating,
			allele_frequency = excluded.allele_frequency,
			updated_at = excluded.updated_at
	`,
		a.VariantID, a.HGVS, a.AssociatedConditions, a.Chromosome, a.Gene, a.HGNCID,
		a.ConsensusClassification, a.ReviewStatus, a.Stars, a.StarRating,
		a.AlleleFrequency, a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert annotation %s: %w", a.VariantID, err)
	}
	return nil
}

// GetAnnotation returns the stored annotation for a variant or domain.ErrNotFound
func (s *SQLiteStore) GetAnnotation(ctx context.Context, variantID string) (*domain.StoredAnnotation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM clinvar c WHERE c.variant_id = ?`, variantID)

	a, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation for %s: %w", variantID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan annotation: %w", err)
	}
	return a, nil
}

// ListPatientVariants returns every annotated variant of a patient
func (s *SQLiteStore) ListPatientVariants(ctx context.Context, patientID string) ([]*domain.PatientVariantAnnotation, error) {
	return s.query(ctx, `
		SELECT `+patientVariantColumns+`
		FROM variants v JOIN clinvar c ON c.variant_id = v.variant_id
		WHERE v.patient_id = ?
		ORDER BY v.variant_id
	`, patientID)
}

// Search matches term against patient, variant, gene, HGNC id, HGVS,
// classification and conditions.
func (s *SQLiteStore) Search(ctx context.Context, term string, limit int) ([]*domain.PatientVariantAnnotation, error) {
	if strings.TrimSpace(term) == "" {
		return nil, domain.NewValidationError("q", "search term is required", term)
	}
	p := likePattern(term)
	return s.query(ctx, `
		SELECT `+patientVariantColumns+`
		FROM variants v JOIN clinvar c ON c.variant_id = v.variant_id
		WHERE v.patient_id LIKE ? ESCAPE '\'
			OR v.variant_id LIKE ? ESCAPE '\'
			OR c.gene LIKE ? ESCAPE '\'
			OR c.hgnc_id LIKE ? ESCAPE '\'
			OR c.hgvs LIKE ? ESCAPE '\'
			OR c.consensus_classification LIKE ? ESCAPE '\'
			OR c.associated_conditions LIKE ? ESCAPE '\'
		ORDER BY v.date_annotated DESC, v.patient_variant_key
		LIMIT ?
	`, p, p, p, p, p, p, p, normalizeLimit(limit))
}

// LatestAnnotated returns the most recently annotated patient variant
func (s *SQLiteStore) LatestAnnotated(ctx context.Context) (*domain.PatientVariantAnnotation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+patientVariantColumns+`
		FROM variants v JOIN clinvar c ON c.variant_id = v.variant_id
		ORDER BY v.date_annotated DESC
		LIMIT 1
	`)
	pv, err := scanPatientVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest annotation: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan latest annotation: %w", err)
	}
	return pv, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.PatientVariantAnnotation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := []*domain.PatientVariantAnnotation{}
	for rows.Next() {
		pv, err := scanPatientVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, pv)
	}
	return result, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
