package domain

import (
	"time"
)

// TranscriptResolution is the transcript resolver's answer for one genomic variant.
// When Error is set all transcript fields are empty.
type TranscriptResolution struct {
	Variant            string `json:"variant"`
	MANEAvailable      bool   `json:"mane_available"`
	MANETranscript     string `json:"mane_transcript,omitempty"`
	MANEHGVSc          string `json:"mane_hgvs_c,omitempty"`
	FallbackTranscript string `json:"fallback_transcript,omitempty"`
	FallbackHGVSc      string `json:"fallback_hgvs_c,omitempty"`
	GeneSymbol         string `json:"gene_symbol,omitempty"`
	GeneName           string `json:"gene_name,omitempty"`
	HGNCID             string `json:"hgnc_id,omitempty"`
	Error              string `json:"error,omitempty"`
}

// PreferredHGVS returns the MANE coding notation when available, else the fallback
func (r *TranscriptResolution) PreferredHGVS() string {
	if r == nil || r.Error != "" {
		return ""
	}
	if r.MANEAvailable && r.MANEHGVSc != "" {
		return r.MANEHGVSc
	}
	return r.FallbackHGVSc
}

// ClinicalAnnotation is the clinical significance summary for one HGVS string
type ClinicalAnnotation struct {
	UID                   string   `json:"uid"`
	Title                 string   `json:"title,omitempty"`
	HGVS                  string   `json:"hgvs"`
	GeneSymbol            string   `json:"gene_symbol,omitempty"`
	Classification        string   `json:"classification,omitempty"`
	ReviewStatus          string   `json:"review_status,omitempty"`
	Stars                 int      `json:"stars"`
	Conditions            []string `json:"conditions,omitempty"`
	Chromosome            string   `json:"chromosome,omitempty"`
	AlleleFrequency       string   `json:"allele_frequency,omitempty"`
	AlleleFrequencySource string   `json:"allele_frequency_source,omitempty"`
}

// CombinedRecord is the orchestrator output for one input variant
type CombinedRecord struct {
	Index         int                   `json:"index"`
	InputVariant  string                `json:"input_variant"`
	Resolution    *TranscriptResolution `json:"resolution,omitempty"`
	Clinical      *ClinicalAnnotation   `json:"clinical,omitempty"`
	ResolverError string                `json:"resolver_error,omitempty"`
	ClinicalError string                `json:"clinical_error,omitempty"`
	CacheHit      bool                  `json:"cache_hit"`
}

// HGVS returns the transcript notation used for the clinical lookup, if any
func (c *CombinedRecord) HGVS() string {
	return c.Resolution.PreferredHGVS()
}

// AnnotationRecord flattens the combined record into the per-variant aggregate
func (c *CombinedRecord) AnnotationRecord() *AnnotationRecord {
	rec := &AnnotationRecord{
		VariantID:      c.InputVariant,
		HGVSTranscript: c.HGVS(),
	}
	if c.Resolution != nil {
		rec.GeneSymbol = c.Resolution.GeneSymbol
		rec.HGNCID = c.Resolution.HGNCID
	}
	if cl := c.Clinical; cl != nil {
		rec.Classification = cl.Classification
		rec.ReviewStatusRaw = cl.ReviewStatus
		rec.StarRating = cl.Stars
		rec.AssociatedConditions = cl.Conditions
		rec.AlleleFrequency = cl.AlleleFrequency
		rec.Chromosome = cl.Chromosome
		if rec.GeneSymbol == "" {
			rec.GeneSymbol = cl.GeneSymbol
		}
	}
	return rec
}

// AnnotationRecord is the per-variant aggregate handed to persistence
type AnnotationRecord struct {
	VariantID            string   `json:"variant_id"`
	HGVSTranscript       string   `json:"hgvs_transcript"`
	GeneSymbol           string   `json:"gene_symbol"`
	HGNCID               string   `json:"hgnc_id"`
	Classification       string   `json:"classification"`
	ReviewStatusRaw      string   `json:"review_status_raw"`
	StarRating           int      `json:"star_rating"`
	AssociatedConditions []string `json:"associated_conditions"`
	AlleleFrequency      string   `json:"allele_frequency"`
	Chromosome           string   `json:"chromosome"`
}

// PatientVariant is a row of the variants table
type PatientVariant struct {
	PatientVariantKey string    `json:"patient_variant_key"`
	VariantID         string    `json:"variant_id"`
	PatientID         string    `json:"patient_id"`
	DateAnnotated     time.Time `json:"date_annotated"`
}

// StoredAnnotation is a row of the clinvar table
type StoredAnnotation struct {
	VariantID               string    `json:"variant_id"`
	HGVS                    string    `json:"hgvs"`
	AssociatedConditions    string    `json:"associated_conditions"`
	Chromosome              string    `json:"chromosome"`
	Gene                    string    `json:"gene"`
	HGNCID                  string    `json:"hgnc_id"`
	ConsensusClassification string    `json:"consensus_classification"`
	ReviewStatus            string    `json:"review_status"`
	Stars                   int       `json:"stars"`
	StarRating              string    `json:"star_rating"`
	AlleleFrequency         string    `json:"allele_frequency"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// PatientVariantAnnotation joins a patient's variant with its stored annotation
type PatientVariantAnnotation struct {
	PatientVariant
	Annotation *StoredAnnotation `json:"annotation,omitempty"`
}
