package mcp

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/intake"
	"github.com/clinvar-query/internal/service"
)

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestReport, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestReport), args.Error(1)
}

func (m *mockPipeline) Annotate(ctx context.Context, variants []string) []*domain.CombinedRecord {
	args := m.Called(ctx, variants)
	return args.Get(0).([]*domain.CombinedRecord)
}

// stubStore implements only the read side the tools use
type stubStore struct {
	domain.AnnotationStore
	annotations map[string]*domain.StoredAnnotation
	searchTerm  string
	searchLimit int
	searchErr   error
}

func (s *stubStore) GetAnnotation(ctx context.Context, variantID string) (*domain.StoredAnnotation, error) {
	if a, ok := s.annotations[variantID]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) Search(ctx context.Context, term string, limit int) ([]*domain.PatientVariantAnnotation, error) {
	s.searchTerm, s.searchLimit = term, limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []*domain.PatientVariantAnnotation{{
		PatientVariant: domain.PatientVariant{PatientVariantKey: "P1:1-100-A-G", PatientID: "P1", VariantID: "1-100-A-G"},
	}}, nil
}

func newTestServer(p Pipeline, store domain.AnnotationStore) *Server {
	s, _ := newTestServerWithFs(p, store)
	return s
}

func newTestServerWithFs(p Pipeline, store domain.AnnotationStore) (*Server, afero.Fs) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fs := afero.NewMemMapFs()
	outputs := intake.NewProcessor(fs, "/data/processed", "/data/errors", logger)
	return NewServer(domain.MCPConfig{ServerName: "clinvar-query", ServerVersion: "test"}, p, outputs, store, logger), fs
}

func resultText(t *testing.T, res *mcp.CallToolResult) []string {
	t.Helper()
	require.NotNil(t, res)
	var texts []string
	for _, c := range res.Content {
		tc, ok := c.(*mcp.TextContent)
		require.True(t, ok)
		texts = append(texts, tc.Text)
	}
	return texts
}

func TestHandleIngestFile(t *testing.T) {
	p := &mockPipeline{}
	s := newTestServer(p, &stubStore{})

	report := &service.IngestReport{
		FilePath:  "/in/P1_panel.vcf",
		PatientID: "P1",
		Status:    "created",
		Variants:  3,
		Annotated: 2,
		Persist:   service.PersistSummary{Persisted: 2, Skipped: 1},
	}
	p.On("Ingest", mock.Anything, service.IngestRequest{FilePath: "/in/P1_panel.vcf", Overwrite: true}).Return(report, nil)

	res, out, err := s.handleIngestFile(context.Background(), nil, IngestFileParams{FilePath: "/in/P1_panel.vcf", Overwrite: true})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.False(t, res.IsError)

	texts := resultText(t, res)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "patient P1")
	assert.Contains(t, texts[0], "2 persisted")
	assert.Contains(t, texts[1], `"patient_id"`)
	p.AssertExpectations(t)
}

func TestHandleIngestFile_Error(t *testing.T) {
	p := &mockPipeline{}
	s := newTestServer(p, &stubStore{})
	p.On("Ingest", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedFormat)

	res, _, err := s.handleIngestFile(context.Background(), nil, IngestFileParams{FilePath: "notes.txt"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res)[0], "unsupported")
}

func TestHandleAnnotateVariants(t *testing.T) {
	p := &mockPipeline{}
	s := newTestServer(p, &stubStore{})

	records := []*domain.CombinedRecord{
		{Index: 0, InputVariant: "1-100-A-G", Clinical: &domain.ClinicalAnnotation{UID: "1", Classification: "Benign"}},
		{Index: 1, InputVariant: "2-200-C-T", ResolverError: "no transcripts"},
	}
	p.On("Annotate", mock.Anything, []string{"1-100-A-G", "2-200-C-T"}).Return(records)

	res, _, err := s.handleAnnotateVariants(context.Background(), nil, AnnotateVariantsParams{Variants: []string{"1-100-A-G", "2-200-C-T"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	texts := resultText(t, res)
	assert.Equal(t, "Annotated 1 of 2 variants", texts[0])
	assert.Contains(t, texts[1], "no transcripts")
}

func TestHandleAnnotateVariants_Empty(t *testing.T) {
	p := &mockPipeline{}
	s := newTestServer(p, &stubStore{})

	res, _, err := s.handleAnnotateVariants(context.Background(), nil, AnnotateVariantsParams{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	p.AssertNotCalled(t, "Annotate", mock.Anything, mock.Anything)
}

func TestHandleLookupVariant(t *testing.T) {
	store := &stubStore{annotations: map[string]*domain.StoredAnnotation{
		"19-41970248-T-A": {
			VariantID:               "19-41970248-T-A",
			HGVS:                    "NM_X.1:c.10T>A",
			ConsensusClassification: "Pathogenic",
			StarRating:              "★★★☆ (reviewed by expert panel)",
		},
	}}
	s := newTestServer(&mockPipeline{}, store)

	t.Run("chr prefix is normalized", func(t *testing.T) {
		res, _, err := s.handleLookupVariant(context.Background(), nil, LookupVariantParams{VariantID: "chr19-41970248-T-A"})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Contains(t, resultText(t, res)[0], "Pathogenic")
	})

	t.Run("unknown variant", func(t *testing.T) {
		res, _, err := s.handleLookupVariant(context.Background(), nil, LookupVariantParams{VariantID: "1-1-A-G"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res)[0], "No stored annotation")
	})

	t.Run("malformed variant", func(t *testing.T) {
		res, _, err := s.handleLookupVariant(context.Background(), nil, LookupVariantParams{VariantID: "rs123"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res)[0], "Invalid variant")
	})
}

func TestHandleSearchAnnotations(t *testing.T) {
	store := &stubStore{}
	s := newTestServer(&mockPipeline{}, store)

	res, _, err := s.handleSearchAnnotations(context.Background(), nil, SearchAnnotationsParams{Query: "BRCA", Limit: 10})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "BRCA", store.searchTerm)
	assert.Equal(t, 10, store.searchLimit)
	assert.Equal(t, "Found 1 matching variants", resultText(t, res)[0])

	store.searchErr = errors.New("database is locked")
	res, _, err = s.handleSearchAnnotations(context.Background(), nil, SearchAnnotationsParams{Query: "BRCA"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res)[0], "database is locked")
}

func TestHandleOutputFiles(t *testing.T) {
	s, fs := newTestServerWithFs(&mockPipeline{}, &stubStore{})
	require.NoError(t, afero.WriteFile(fs, "/data/processed/P001_panel_processed.txt", []byte("1-100-A-G"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/data/errors/misaligned_P001_panel_processed.txt", []byte("incomplete or misaligned row"), 0644))

	t.Run("list all", func(t *testing.T) {
		res, _, err := s.handleListOutputFiles(context.Background(), nil, ListOutputFilesParams{})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "Found 2 output files", resultText(t, res)[0])
	})

	t.Run("list one kind", func(t *testing.T) {
		res, _, err := s.handleListOutputFiles(context.Background(), nil, ListOutputFilesParams{Kind: "misaligned"})
		require.NoError(t, err)
		texts := resultText(t, res)
		assert.Equal(t, "Found 1 output files", texts[0])
		assert.Contains(t, texts[1], "misaligned_P001_panel_processed.txt")
	})

	t.Run("read", func(t *testing.T) {
		res, _, err := s.handleReadOutputFile(context.Background(), nil, ReadOutputFileParams{Kind: "processed", Name: "P001_panel_processed.txt"})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, []string{"1-100-A-G"}, resultText(t, res))
	})

	t.Run("read outside output dir", func(t *testing.T) {
		res, _, err := s.handleReadOutputFile(context.Background(), nil, ReadOutputFileParams{Kind: "processed", Name: "../errors/misaligned_P001_panel_processed.txt"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("bad kind", func(t *testing.T) {
		res, _, err := s.handleReadOutputFile(context.Background(), nil, ReadOutputFileParams{Kind: "uploads", Name: "x.txt"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}
