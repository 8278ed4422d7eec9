// Package repository persists patients, their variants and clinical
// annotations in SQLite or PostgreSQL.
package repository

import (
	"strings"

	"github.com/clinvar-query/internal/domain"
)

const (
	// DefaultSearchLimit caps Search when the caller passes no limit
	DefaultSearchLimit = 50
	// MaxSearchLimit is the hard ceiling for Search
	MaxSearchLimit = 500
)

const annotationColumns = `c.variant_id, c.hgvs, c.associated_conditions, c.chromosome, c.gene,
	c.hgnc_id, c.consensus_classification, c.review_status, c.stars, c.star_rating,
	c.allele_frequency, c.updated_at`

const patientVariantColumns = `v.patient_variant_key, v.variant_id, v.patient_id, v.date_annotated, ` + annotationColumns

// scanner is an interface for sql.Row, sql.Rows, pgx.Row and pgx.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAnnotation(s scanner) (*domain.StoredAnnotation, error) {
	a := &domain.StoredAnnotation{}
	err := s.Scan(
		&a.VariantID, &a.HGVS, &a.AssociatedConditions, &a.Chromosome, &a.Gene,
		&a.HGNCID, &a.ConsensusClassification, &a.ReviewStatus, &a.Stars, &a.StarRating,
		&a.AlleleFrequency, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanPatientVariant(s scanner) (*domain.PatientVariantAnnotation, error) {
	pv := &domain.PatientVariantAnnotation{Annotation: &domain.StoredAnnotation{}}
	a := pv.Annotation
	err := s.Scan(
		&pv.PatientVariantKey, &pv.VariantID, &pv.PatientID, &pv.DateAnnotated,
		&a.VariantID, &a.HGVS, &a.AssociatedConditions, &a.Chromosome, &a.Gene,
		&a.HGNCID, &a.ConsensusClassification, &a.ReviewStatus, &a.Stars, &a.StarRating,
		&a.AlleleFrequency, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pv, nil
}

// likePattern wraps term for a substring match, escaping LIKE wildcards with '\'
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

func validateAnnotation(a *domain.StoredAnnotation) error {
	if a == nil || strings.TrimSpace(a.VariantID) == "" {
		return domain.NewValidationError("variant_id", "is required", "")
	}
	return nil
}

func validatePatientVariant(v *domain.PatientVariant) error {
	if v == nil || v.VariantID == "" || v.PatientID == "" {
		return domain.NewValidationError("variant", "patient_id and variant_id are required", v)
	}
	if v.PatientVariantKey == "" {
		v.PatientVariantKey = domain.PatientVariantKey(v.PatientID, v.VariantID)
	}
	return nil
}
