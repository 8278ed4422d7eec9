package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/intake"
	"github.com/clinvar-query/internal/logging"
)

// Pipeline runs parse, annotate and persist for one patient file
type Pipeline struct {
	intake    *intake.Processor
	annotator *Annotator
	recorder  *Recorder
	logger    *logrus.Logger
}

// IngestRequest describes one file to ingest. An empty PatientID is derived
// from the file name.
type IngestRequest struct {
	FilePath  string `json:"file_path" binding:"required"`
	PatientID string `json:"patient_id,omitempty"`
	Overwrite bool   `json:"overwrite"`
}

// IngestReport summarizes one ingest run
type IngestReport struct {
	RunID          string                   `json:"run_id"`
	FilePath       string                   `json:"file_path"`
	PatientID      string                   `json:"patient_id"`
	Status         intake.Status            `json:"status"`
	Variants       int                      `json:"variants"`
	MisalignedRows []string                 `json:"misaligned_rows,omitempty"`
	ProcessedPath  string                   `json:"processed_path,omitempty"`
	MisalignedPath string                   `json:"misaligned_path,omitempty"`
	Annotated      int                      `json:"annotated"`
	Persist        PersistSummary           `json:"persist"`
	Records        []*domain.CombinedRecord `json:"records,omitempty"`
	Duration       string                   `json:"duration"`
}

// NewPipeline wires the pipeline stages
func NewPipeline(processor *intake.Processor, annotator *Annotator, recorder *Recorder, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		intake:    processor,
		annotator: annotator,
		recorder:  recorder,
		logger:    logger,
	}
}

// Ingest parses the file, annotates its variants in parallel and persists the
// annotated ones. A file that was already processed and not overwritten is
// reported as skipped without annotation.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	start := time.Now()
	if strings.TrimSpace(req.FilePath) == "" {
		return nil, domain.NewValidationError("file_path", "is required", "")
	}

	ctx, runID := logging.WithRunID(ctx)
	patientID := strings.TrimSpace(req.PatientID)
	if patientID == "" {
		patientID = domain.PatientIDFromPath(req.FilePath)
	}
	if patientID == "" {
		return nil, domain.NewValidationError("patient_id", "could not be derived from the file name", req.FilePath)
	}

	log := logging.FromContext(ctx, p.logger).WithFields(logrus.Fields{
		"file":       req.FilePath,
		"patient_id": patientID,
	})
	log.Info("Starting ingest")

	outcome, err := p.intake.Process(req.FilePath, req.Overwrite)
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", req.FilePath, err)
	}

	report := &IngestReport{
		RunID:          runID,
		FilePath:       req.FilePath,
		PatientID:      patientID,
		Status:         outcome.Status,
		Variants:       len(outcome.Variants),
		MisalignedRows: outcome.Misaligned,
		ProcessedPath:  outcome.ProcessedPath,
		MisalignedPath: outcome.MisalignedPath,
	}

	if outcome.Status == intake.StatusSkipped {
		report.Duration = time.Since(start).String()
		log.Info("File already processed, skipping annotation")
		return report, nil
	}

	records := p.Annotate(ctx, outcome.Variants)
	for _, rec := range records {
		if rec.Clinical != nil {
			report.Annotated++
		}
	}
	report.Records = records
	report.Persist = p.recorder.Persist(ctx, patientID, records)
	report.Duration = time.Since(start).String()

	log.WithFields(logrus.Fields{
		"variants":  report.Variants,
		"annotated": report.Annotated,
		"persisted": report.Persist.Persisted,
		"failed":    report.Persist.Failed,
		"duration":  report.Duration,
	}).Info("Ingest complete")
	return report, nil
}

// Annotate runs the annotator and returns records in input order
func (p *Pipeline) Annotate(ctx context.Context, variants []string) []*domain.CombinedRecord {
	records := p.annotator.Process(ctx, variants)
	SortByInput(records)
	return records
}
