package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/intake"
	"github.com/clinvar-query/internal/service"
)

// IngestFileParams defines parameters for the ingest_file tool
type IngestFileParams struct {
	FilePath  string `json:"file_path" jsonschema:"path of the CSV or VCF file to ingest"`
	PatientID string `json:"patient_id,omitempty" jsonschema:"patient id; derived from the file name when empty"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema:"re-process a file that was already ingested"`
}

// AnnotateVariantsParams defines parameters for the annotate_variants tool
type AnnotateVariantsParams struct {
	Variants []string `json:"variants" jsonschema:"variants in chrom-pos-ref-alt form"`
}

// LookupVariantParams defines parameters for the lookup_variant tool
type LookupVariantParams struct {
	VariantID string `json:"variant_id" jsonschema:"variant in chrom-pos-ref-alt form"`
}

// SearchAnnotationsParams defines parameters for the search_annotations tool
type SearchAnnotationsParams struct {
	Query string `json:"query" jsonschema:"substring to match"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// ListOutputFilesParams defines parameters for the list_output_files tool
type ListOutputFilesParams struct {
	Kind string `json:"kind,omitempty" jsonschema:"processed or misaligned; both when empty"`
}

// ReadOutputFileParams defines parameters for the read_output_file tool
type ReadOutputFileParams struct {
	Kind string `json:"kind" jsonschema:"processed or misaligned"`
	Name string `json:"name" jsonschema:"file name as returned by list_output_files"`
}

func (s *Server) handleIngestFile(ctx context.Context, req *mcp.CallToolRequest, params IngestFileParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "ingest_file").Info("Tool invoked")

	report, err := s.pipeline.Ingest(ctx, service.IngestRequest{
		FilePath:  params.FilePath,
		PatientID: params.PatientID,
		Overwrite: params.Overwrite,
	})
	if err != nil {
		return s.createErrorResult("Ingest failed", err), nil, nil
	}

	summary := fmt.Sprintf("Ingested %s for patient %s (%s): %d variants, %d annotated, %d persisted, %d failed, %d misaligned rows",
		report.FilePath, report.PatientID, report.Status, report.Variants, report.Annotated,
		report.Persist.Persisted, report.Persist.Failed, len(report.MisalignedRows))
	return s.jsonResult(summary, report), nil, nil
}

func (s *Server) handleAnnotateVariants(ctx context.Context, req *mcp.CallToolRequest, params AnnotateVariantsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "annotate_variants").Info("Tool invoked")

	if len(params.Variants) == 0 {
		return s.createErrorResult("Missing required parameter", errors.New("variants must not be empty")), nil, nil
	}

	records := s.pipeline.Annotate(ctx, params.Variants)
	annotated := 0
	for _, rec := range records {
		if rec.Clinical != nil {
			annotated++
		}
	}
	return s.jsonResult(fmt.Sprintf("Annotated %d of %d variants", annotated, len(records)), records), nil, nil
}

func (s *Server) handleLookupVariant(ctx context.Context, req *mcp.CallToolRequest, params LookupVariantParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "lookup_variant").Info("Tool invoked")

	variant, err := domain.ParseCanonicalVariant(params.VariantID)
	if err != nil {
		return s.createErrorResult("Invalid variant", err), nil, nil
	}

	annotation, err := s.store.GetAnnotation(ctx, variant.String())
	if errors.Is(err, domain.ErrNotFound) {
		return s.createErrorResult("No stored annotation for "+variant.String(), nil), nil, nil
	}
	if err != nil {
		return s.createErrorResult("Lookup failed", err), nil, nil
	}

	summary := fmt.Sprintf("%s %s: %s %s", variant, annotation.HGVS, annotation.ConsensusClassification, annotation.StarRating)
	return s.jsonResult(summary, annotation), nil, nil
}

func (s *Server) handleSearchAnnotations(ctx context.Context, req *mcp.CallToolRequest, params SearchAnnotationsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "search_annotations").Info("Tool invoked")

	results, err := s.store.Search(ctx, params.Query, params.Limit)
	if err != nil {
		return s.createErrorResult("Search failed", err), nil, nil
	}
	return s.jsonResult(fmt.Sprintf("Found %d matching variants", len(results)), results), nil, nil
}

func (s *Server) handleListOutputFiles(ctx context.Context, req *mcp.CallToolRequest, params ListOutputFilesParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_output_files").Info("Tool invoked")

	files, err := s.outputs.ListOutputs()
	if err != nil {
		return s.createErrorResult("Failed to list output files", err), nil, nil
	}
	if params.Kind != "" {
		kind, err := intake.ParseOutputKind(params.Kind)
		if err != nil {
			return s.createErrorResult("Invalid kind", err), nil, nil
		}
		filtered := files[:0]
		for _, f := range files {
			if f.Kind == kind {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}
	return s.jsonResult(fmt.Sprintf("Found %d output files", len(files)), files), nil, nil
}

func (s *Server) handleReadOutputFile(ctx context.Context, req *mcp.CallToolRequest, params ReadOutputFileParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "read_output_file").Info("Tool invoked")

	kind, err := intake.ParseOutputKind(params.Kind)
	if err != nil {
		return s.createErrorResult("Invalid kind", err), nil, nil
	}
	content, err := s.outputs.ReadOutput(kind, params.Name)
	if err != nil {
		return s.createErrorResult("Failed to read output file", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: content}},
	}, nil, nil
}

// jsonResult renders a one-line summary followed by the JSON payload
func (s *Server) jsonResult(summary string, payload interface{}) *mcp.CallToolResult {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(body)},
		},
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
