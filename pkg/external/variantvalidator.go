package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/pkg/hgvs"
)

// VariantValidatorClient resolves genomic variants to transcript-level HGVS
// using the VariantValidator REST API.
type VariantValidatorClient struct {
	baseURL           string
	genomeBuild       string
	selectTranscripts string
	req               *requester
	logger            *logrus.Logger
}

// vvTranscript is one entry of the transcripts list
type vvTranscript struct {
	Transcript string `json:"transcript"`
	HGVSc      string `json:"hgvs_c"`
	MANEStatus string `json:"mane_status"`
}

// vvGene is the gene object of the response
type vvGene struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	HGNCID string `json:"hgnc_id"`
}

// vvResponse is the subset of the VariantValidator response we read
type vvResponse struct {
	Transcripts []vvTranscript `json:"transcripts"`
	Gene        vvGene         `json:"gene"`
}

// NewVariantValidatorClient creates a new VariantValidator client
func NewVariantValidatorClient(config domain.VariantValidatorConfig, breaker domain.CircuitBreakerConfig, logger *logrus.Logger) *VariantValidatorClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://rest.variantvalidator.org"
	}
	if config.GenomeBuild == "" {
		config.GenomeBuild = "GRCh38"
	}
	if config.SelectTranscripts == "" {
		config.SelectTranscripts = "all"
	}
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &VariantValidatorClient{
		baseURL:           strings.TrimRight(config.BaseURL, "/"),
		genomeBuild:       config.GenomeBuild,
		selectTranscripts: config.SelectTranscripts,
		req: &requester{
			service:        "VariantValidator",
			httpClient:     &http.Client{Timeout: config.Timeout},
			limiter:        rate.NewLimiter(limit, 1),
			breaker:        newCircuitBreaker("VariantValidator", breaker, logger),
			retries:        config.RetryCount,
			retryBaseDelay: 500 * time.Millisecond,
			logger:         logger,
		},
		logger: logger,
	}
}

// RequestURL builds the lookup URL for a variant
func (c *VariantValidatorClient) RequestURL(variant domain.CanonicalVariant) string {
	return fmt.Sprintf("%s/VariantValidator/variantvalidator/%s/%s/%s?content-type=application/json",
		c.baseURL, url.PathEscape(c.genomeBuild), url.PathEscape(variant.ResolverQuery()), url.PathEscape(c.selectTranscripts))
}

// Resolve looks up the variant's transcripts and picks the MANE Select one,
// falling back to the first usable transcript returned. The returned resolution is
// never nil; on failure its Error field carries the reason.
func (c *VariantValidatorClient) Resolve(ctx context.Context, variant domain.CanonicalVariant) (*domain.TranscriptResolution, error) {
	res := &domain.TranscriptResolution{Variant: variant.String()}

	var body vvResponse
	if err := c.req.getJSON(ctx, c.RequestURL(variant), &body); err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("failed to resolve %s: %w", variant, err)
	}

	// entries without usable c./n. notation (intergenic, warnings) are ignored
	var usable []vvTranscript
	for _, t := range body.Transcripts {
		if hgvs.IsTranscriptHGVS(t.HGVSc) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		res.Error = domain.ErrNoTranscripts.Error()
		return res, fmt.Errorf("failed to resolve %s: %w", variant, domain.ErrNoTranscripts)
	}

	top := usable[0]
	res.FallbackTranscript = top.Transcript
	res.FallbackHGVSc = strings.TrimSpace(top.HGVSc)
	res.GeneSymbol = body.Gene.Symbol
	res.GeneName = body.Gene.Name
	res.HGNCID = body.Gene.HGNCID

	for _, t := range usable {
		if strings.EqualFold(strings.TrimSpace(t.MANEStatus), "mane select") {
			res.MANEAvailable = true
			res.MANETranscript = t.Transcript
			res.MANEHGVSc = strings.TrimSpace(t.HGVSc)
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"variant":        variant.String(),
		"mane_available": res.MANEAvailable,
		"hgvs":           res.PreferredHGVS(),
		"gene":           res.GeneSymbol,
	}).Debug("Resolved transcript")

	return res, nil
}
