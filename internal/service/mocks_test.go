package service

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/clinvar-query/internal/domain"
)

// MockTranscriptResolver is a mock implementation of domain.TranscriptResolver
type MockTranscriptResolver struct {
	mock.Mock
}

func (m *MockTranscriptResolver) Resolve(ctx context.Context, variant domain.CanonicalVariant) (*domain.TranscriptResolution, error) {
	args := m.Called(ctx, variant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TranscriptResolution), args.Error(1)
}

// MockClinicalLookup is a mock implementation of domain.ClinicalLookup
type MockClinicalLookup struct {
	mock.Mock
}

func (m *MockClinicalLookup) Lookup(ctx context.Context, hgvs string) (*domain.ClinicalAnnotation, error) {
	args := m.Called(ctx, hgvs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClinicalAnnotation), args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mustVariant(s string) domain.CanonicalVariant {
	v, err := domain.ParseCanonicalVariant(s)
	if err != nil {
		panic(err)
	}
	return v
}

func maneResolution(variant, hgvs, gene string) *domain.TranscriptResolution {
	transcript, _, _ := strings.Cut(hgvs, ":")
	return &domain.TranscriptResolution{
		Variant:            variant,
		MANEAvailable:      true,
		MANETranscript:     transcript,
		MANEHGVSc:          hgvs,
		FallbackTranscript: transcript,
		FallbackHGVSc:      hgvs,
		GeneSymbol:         gene,
	}
}
