// Package parser normalizes CSV and VCF variant rows into canonical
// chrom-pos-ref-alt keys, diverting rows that fail positional checks.
package parser

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/clinvar-query/internal/domain"
)

// MinFields is the number of positional columns a row needs: chrom, pos, id, ref, alt
const MinFields = 5

// Column positions used from each row
const (
	colChrom = 0
	colPos   = 1
	colRef   = 3
	colAlt   = 4
)

// Result holds the normalizer output for one file in input order
type Result struct {
	Variants   []string `json:"variants"`
	Misaligned []string `json:"misaligned"`
}

// VariantsText returns the canonical variants joined by newlines
func (r *Result) VariantsText() string {
	return strings.Join(r.Variants, "\n")
}

// MisalignedText returns the misaligned-row diagnostics joined by newlines
func (r *Result) MisalignedText() string {
	return strings.Join(r.Misaligned, "\n")
}

// DelimiterFor picks the field delimiter from the file extension.
// A trailing .gz is ignored.
func DelimiterFor(path string) (rune, error) {
	name := strings.ToLower(path)
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".csv":
		return ',', nil
	case ".vcf":
		return '\t', nil
	default:
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ParseFile normalizes the file at path. Gzip-compressed input is detected
// from its magic bytes.
func ParseFile(fs afero.Fs, path string) (*Result, error) {
	delim, err := DelimiterFor(path)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return Parse(r, delim)
}

// Parse normalizes delimited rows read from r. Tab-delimited input is split
// on raw tabs with no quote handling, so a stray quote stays inside its field.
func Parse(r io.Reader, delim rune) (*Result, error) {
	next := csvRows(r, delim)
	if delim == '\t' {
		next = tabRows(r)
	}

	result := &Result{Variants: []string{}, Misaligned: []string{}}
	for {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read variant row: %w", err)
		}
		if skipRow(row) {
			continue
		}

		variant, ok := NormalizeRow(row)
		if !ok {
			result.Misaligned = append(result.Misaligned, MisalignedDiagnostic(row))
			continue
		}
		result.Variants = append(result.Variants, variant.String())
	}
	return result, nil
}

// maxLineSize bounds a single VCF line; INFO columns can be long
const maxLineSize = 4 * 1024 * 1024

func csvRows(r io.Reader, delim rune) func() ([]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.Read
}

func tabRows(r io.Reader) func() ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return func() ([]string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := strings.TrimSuffix(scanner.Text(), "\r")
		return strings.Split(line, "\t"), nil
	}
}

// NormalizeRow converts one row to a canonical variant. It reports false when
// the row is short or any of chrom, pos, ref or alt is empty.
func NormalizeRow(row []string) (domain.CanonicalVariant, bool) {
	if len(row) < MinFields {
		return domain.CanonicalVariant{}, false
	}
	v, err := domain.NewCanonicalVariant(row[colChrom], row[colPos], row[colRef], row[colAlt])
	if err != nil {
		return domain.CanonicalVariant{}, false
	}
	return v, true
}

// MisalignedDiagnostic describes a rejected row with its raw fields
func MisalignedDiagnostic(row []string) string {
	return fmt.Sprintf("incomplete or misaligned row %q", row)
}

func skipRow(row []string) bool {
	if len(row) == 0 {
		return true
	}
	if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(row[0]), "#")
}
