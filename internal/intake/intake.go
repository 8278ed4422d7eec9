// Package intake runs the normalizer over an input file and saves the
// processed and misaligned text next to each other for later review.
package intake

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/clinvar-query/internal/parser"
)

// Status reports what happened to the processed output file
type Status string

const (
	StatusCreated     Status = "created"
	StatusOverwritten Status = "overwritten"
	StatusSkipped     Status = "skipped"
)

// Outcome is returned to the caller of Process
type Outcome struct {
	Title          string   `json:"title"`
	Variants       []string `json:"-"`
	Misaligned     []string `json:"-"`
	ProcessedText  string   `json:"processed_text"`
	MisalignedText string   `json:"misaligned_text"`
	ProcessedPath  string   `json:"processed_path,omitempty"`
	MisalignedPath string   `json:"misaligned_path,omitempty"`
	Status         Status   `json:"status"`
}

// HasMisaligned reports whether any row was diverted
func (o *Outcome) HasMisaligned() bool {
	return o.MisalignedText != ""
}

// Processor parses input files and saves the results
type Processor struct {
	fs           afero.Fs
	processedDir string
	errorDir     string
	logger       *logrus.Logger
}

// NewProcessor creates a processor writing into processedDir and errorDir
func NewProcessor(fs afero.Fs, processedDir, errorDir string, logger *logrus.Logger) *Processor {
	return &Processor{
		fs:           fs,
		processedDir: processedDir,
		errorDir:     errorDir,
		logger:       logger,
	}
}

// Title is the file stem used to name outputs, e.g. P001_panel for P001_panel.vcf.gz
func Title(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ProcessedPath returns where the processed text for title is saved
func (p *Processor) ProcessedPath(title string) string {
	return filepath.Join(p.processedDir, title+"_processed.txt")
}

// MisalignedPath returns where the misaligned rows for title are saved
func (p *Processor) MisalignedPath(title string) string {
	return filepath.Join(p.errorDir, "misaligned_"+title+"_processed.txt")
}

// Process parses path and saves its outputs. Without overwrite an existing
// processed file is left untouched and Status is skipped.
func (p *Processor) Process(path string, overwrite bool) (*Outcome, error) {
	title := Title(path)
	log := p.logger.WithFields(logrus.Fields{"file": path, "title": title})

	result, err := parser.ParseFile(p.fs, path)
	if err != nil {
		log.WithError(err).Error("Failed to parse input file")
		return nil, err
	}

	outcome := &Outcome{
		Title:          title,
		Variants:       result.Variants,
		Misaligned:     result.Misaligned,
		ProcessedText:  result.VariantsText(),
		MisalignedText: result.MisalignedText(),
	}

	processedPath := p.ProcessedPath(title)
	exists, err := afero.Exists(p.fs, processedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", processedPath, err)
	}
	if exists && !overwrite {
		log.WithField("path", processedPath).Warn("Processed file already exists and overwrite is false")
		outcome.Status = StatusSkipped
		return outcome, nil
	}
	outcome.Status = StatusCreated
	if exists {
		outcome.Status = StatusOverwritten
	}

	if err := p.save(p.processedDir, processedPath, outcome.ProcessedText); err != nil {
		log.WithError(err).Error("Failed to save processed file")
		return nil, err
	}
	outcome.ProcessedPath = processedPath

	misalignedPath := p.MisalignedPath(title)
	if outcome.HasMisaligned() {
		if err := p.save(p.errorDir, misalignedPath, outcome.MisalignedText); err != nil {
			log.WithError(err).Error("Failed to save misaligned rows")
			return nil, err
		}
		outcome.MisalignedPath = misalignedPath
		log.WithField("misaligned_rows", len(result.Misaligned)).Warn("File processed with misaligned rows")
	} else if err := p.fs.Remove(misalignedPath); err == nil {
		// drop a stale report left by an earlier run of the same file
		log.WithField("path", misalignedPath).Info("Removed stale misaligned file")
	}

	log.WithFields(logrus.Fields{
		"status":   outcome.Status,
		"variants": len(result.Variants),
	}).Info("File processed")
	return outcome, nil
}

func (p *Processor) save(dir, path, content string) error {
	if err := p.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := afero.WriteFile(p.fs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
