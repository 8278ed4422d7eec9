package domain

import (
	"context"
)

// TranscriptResolver maps a genomic variant to its preferred transcript notation
type TranscriptResolver interface {
	Resolve(ctx context.Context, variant CanonicalVariant) (*TranscriptResolution, error)
}

// ClinicalLookup fetches clinical significance for a transcript HGVS string.
// A nil annotation with a nil error means the service has no record.
type ClinicalLookup interface {
	Lookup(ctx context.Context, hgvs string) (*ClinicalAnnotation, error)
}

// AnnotationCache memoizes clinical lookups keyed by transcript HGVS.
// A hit with a nil annotation is the cached "not found" sentinel.
type AnnotationCache interface {
	Get(ctx context.Context, key string) (*ClinicalAnnotation, bool, error)
	Put(ctx context.Context, key string, annotation *ClinicalAnnotation) error
}

// AnnotationStore persists patients, their variants and the clinical annotations
type AnnotationStore interface {
	UpsertPatient(ctx context.Context, patientID string) error
	UpsertVariant(ctx context.Context, variant *PatientVariant) error
	UpsertAnnotation(ctx context.Context, annotation *StoredAnnotation) error

	GetAnnotation(ctx context.Context, variantID string) (*StoredAnnotation, error)
	ListPatientVariants(ctx context.Context, patientID string) ([]*PatientVariantAnnotation, error)
	Search(ctx context.Context, term string, limit int) ([]*PatientVariantAnnotation, error)
	LatestAnnotated(ctx context.Context) (*PatientVariantAnnotation, error)

	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetExternalAPIConfig() *ExternalAPIConfig
	GetServerConfig() *ServerConfig
	Validate() error
	GetDatabaseConnectionString() string
}
