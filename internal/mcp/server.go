// Package mcp exposes the ingest pipeline and stored annotations as Model
// Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/intake"
	"github.com/clinvar-query/internal/service"
)

// Pipeline is the part of service.Pipeline the tools drive
type Pipeline interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestReport, error)
	Annotate(ctx context.Context, variants []string) []*domain.CombinedRecord
}

// OutputReader lists and reads saved processed and misaligned files
type OutputReader interface {
	ListOutputs() ([]intake.OutputFile, error)
	ReadOutput(kind intake.OutputKind, name string) (string, error)
}

// Server is the clinvar-query MCP server
type Server struct {
	mcpServer *mcp.Server
	pipeline  Pipeline
	outputs   OutputReader
	store     domain.AnnotationStore
	logger    *logrus.Logger
}

// NewServer creates the MCP server and registers its tools
func NewServer(config domain.MCPConfig, pipeline Pipeline, outputs OutputReader, store domain.AnnotationStore, logger *logrus.Logger) *Server {
	serverInfo := &mcp.Implementation{
		Name:    config.ServerName,
		Version: config.ServerVersion,
	}

	s := &Server{
		mcpServer: mcp.NewServer(serverInfo, nil),
		pipeline:  pipeline,
		outputs:   outputs,
		store:     store,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest_file",
		Description: "Parse a patient CSV or VCF file, annotate its variants with transcript and ClinVar data, and store the results",
	}, s.handleIngestFile)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "annotate_variants",
		Description: "Annotate chrom-pos-ref-alt variants without storing them",
	}, s.handleAnnotateVariants)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lookup_variant",
		Description: "Return the stored ClinVar annotation for a chrom-pos-ref-alt variant",
	}, s.handleLookupVariant)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_annotations",
		Description: "Search stored annotations by patient, variant, gene, HGNC id, HGVS, classification or condition",
	}, s.handleSearchAnnotations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_output_files",
		Description: "List saved processed and misaligned output files, newest first",
	}, s.handleListOutputFiles)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "read_output_file",
		Description: "Return the contents of a saved processed or misaligned output file",
	}, s.handleReadOutputFile)

	s.logger.WithField("tool_count", 6).Debug("Registered MCP tools")
}
