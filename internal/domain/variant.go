package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// CanonicalVariant is a genomic variant keyed as chrom-pos-ref-alt with no "chr" prefix
type CanonicalVariant struct {
	Chromosome  string `json:"chromosome"`
	Position    string `json:"position"`
	Reference   string `json:"reference"`
	Alternative string `json:"alternative"`
}

// NewCanonicalVariant builds a variant from raw positional fields, trimming
// whitespace and the chromosome prefix. It fails when any field ends up empty.
func NewCanonicalVariant(chrom, pos, ref, alt string) (CanonicalVariant, error) {
	v := CanonicalVariant{
		Chromosome:  StripChromosomePrefix(strings.TrimSpace(chrom)),
		Position:    strings.TrimSpace(pos),
		Reference:   strings.TrimSpace(ref),
		Alternative: strings.TrimSpace(alt),
	}
	if v.Chromosome == "" || v.Position == "" || v.Reference == "" || v.Alternative == "" {
		return CanonicalVariant{}, fmt.Errorf("%w: empty field in %q", ErrInvalidVariant, v.String())
	}
	return v, nil
}

// ParseCanonicalVariant parses a chrom-pos-ref-alt string
func ParseCanonicalVariant(s string) (CanonicalVariant, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 4 {
		return CanonicalVariant{}, fmt.Errorf("%w: %q does not have four fields", ErrInvalidVariant, s)
	}
	v, err := NewCanonicalVariant(parts[0], parts[1], parts[2], parts[3])
	if err != nil {
		return CanonicalVariant{}, err
	}
	if _, err := strconv.ParseUint(v.Position, 10, 64); err != nil {
		return CanonicalVariant{}, fmt.Errorf("%w: position %q is not numeric", ErrInvalidVariant, v.Position)
	}
	return v, nil
}

// String renders the canonical chrom-pos-ref-alt key
func (v CanonicalVariant) String() string {
	return v.Chromosome + "-" + v.Position + "-" + v.Reference + "-" + v.Alternative
}

// ResolverQuery renders the genomic change in the chrom:posREF>ALT form the
// transcript resolver expects.
func (v CanonicalVariant) ResolverQuery() string {
	return fmt.Sprintf("%s:%s%s>%s", v.Chromosome, v.Position, v.Reference, v.Alternative)
}

// StripChromosomePrefix removes a leading "chr" token in any case
func StripChromosomePrefix(chrom string) string {
	if len(chrom) >= 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// PatientVariantKey is the idempotency key of a (patient, variant) pair
func PatientVariantKey(patientID, variantID string) string {
	return patientID + ":" + variantID
}

// PatientIDFromPath derives a patient id from files named <patient>_<test>.ext
func PatientIDFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(base), ".gz") {
		base = base[:len(base)-3]
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	id, _, _ := strings.Cut(stem, "_")
	return id
}
