// Package hgvs splits and checks sequence-variant notation of the form
// <accession>:<type>.<change>, e.g. NM_000059.3:c.274G>T.
package hgvs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clinvar-query/internal/domain"
)

// Reference sequence types
const (
	TypeCoding    = "c"
	TypeGenomic   = "g"
	TypeNonCoding = "n"
	TypeProtein   = "p"
	TypeMito      = "m"
	TypeRNA       = "r"
)

var (
	// NM_000059.3, NC_000017.11, ENST00000357654.9
	accessionPattern = regexp.MustCompile(`^([A-Z]{2}_|ENS[A-Z]*)[A-Za-z0-9]+(\.\d+)?$`)

	// position, optional range, then the edit: 274G>T, 1521_1523del, -14+1dup, *5A>C
	nucleotideChangePattern = regexp.MustCompile(`^[*\-]?\d+([+\-]\d+)?(_[*\-]?\d+([+\-]\d+)?)?([ACGTN]+>[ACGTN]+|=|del[ACGTN]*|dup[ACGTN]*|ins[ACGTN]+|delins[ACGTN]+|inv)$`)

	proteinChangePattern = regexp.MustCompile(`^\(?([A-Z][a-z]{2}|[A-Z*])\d+.+$|^\(?=\)?$|^0\??$`)
)

// Notation is a parsed variant description
type Notation struct {
	Accession string
	Type      string
	Change    string
}

// String renders the notation back to its canonical text
func (n Notation) String() string {
	return n.Accession + ":" + n.Type + "." + n.Change
}

// IsTranscript reports whether the notation is relative to a transcript
func (n Notation) IsTranscript() bool {
	return n.Type == TypeCoding || n.Type == TypeNonCoding
}

// Parse validates and splits an HGVS string. Gene-qualified accessions such
// as NM_007294.4(BRCA1):c.68_69del are accepted and the gene is dropped.
func Parse(input string) (Notation, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Notation{}, domain.NewValidationError("hgvs", "HGVS notation cannot be empty", input)
	}

	accession, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Notation{}, domain.NewValidationError("hgvs", "missing reference sequence separator", input)
	}
	if i := strings.IndexByte(accession, '('); i > 0 && strings.HasSuffix(accession, ")") {
		accession = accession[:i]
	}
	if !accessionPattern.MatchString(accession) {
		return Notation{}, domain.NewValidationError("hgvs", fmt.Sprintf("invalid reference sequence %q", accession), input)
	}

	typ, change, ok := strings.Cut(rest, ".")
	if !ok || change == "" {
		return Notation{}, domain.NewValidationError("hgvs", "missing sequence type or change", input)
	}

	switch typ {
	case TypeCoding, TypeGenomic, TypeNonCoding, TypeMito, TypeRNA:
		if !nucleotideChangePattern.MatchString(change) {
			return Notation{}, domain.NewValidationError("hgvs", fmt.Sprintf("invalid %s. change %q", typ, change), input)
		}
	case TypeProtein:
		if !proteinChangePattern.MatchString(change) {
			return Notation{}, domain.NewValidationError("hgvs", fmt.Sprintf("invalid p. change %q", change), input)
		}
	default:
		return Notation{}, domain.NewValidationError("hgvs", fmt.Sprintf("unknown sequence type %q", typ), input)
	}

	return Notation{Accession: accession, Type: typ, Change: change}, nil
}

// IsTranscriptHGVS reports whether s is well-formed c. or n. notation
func IsTranscriptHGVS(s string) bool {
	n, err := Parse(s)
	return err == nil && n.IsTranscript()
}
