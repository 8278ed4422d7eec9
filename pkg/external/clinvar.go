package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clinvar-query/internal/domain"
	hgvsnotation "github.com/clinvar-query/pkg/hgvs"
)

// ClinVarClient handles interactions with the ClinVar database via NCBI E-utilities
type ClinVarClient struct {
	baseURL string
	apiKey  string
	req     *requester
	logger  *logrus.Logger
}

// NewClinVarClient creates a new ClinVar API client. Every request, from any
// goroutine, waits on one shared limiter spaced by RequestDelay.
func NewClinVarClient(config domain.ClinVarConfig, breaker domain.CircuitBreakerConfig, logger *logrus.Logger) *ClinVarClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &ClinVarClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		req: &requester{
			service:        "ClinVar",
			httpClient:     &http.Client{Timeout: config.Timeout},
			limiter:        rate.NewLimiter(rate.Every(config.RequestDelay), 1),
			breaker:        newCircuitBreaker("ClinVar", breaker, logger),
			retries:        config.RetryCount,
			retryBaseDelay: time.Second,
			logger:         logger,
		},
		logger: logger,
	}
}

// esearchResponse is the JSON body of esearch.fcgi
type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryResponse is the JSON body of esummary.fcgi. The result object mixes
// a "uids" list with one document per uid.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// clinVarDocument is the subset of an esummary document we read
type clinVarDocument struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
	Genes []struct {
		Symbol string `json:"symbol"`
	} `json:"genes"`
	GermlineClassification struct {
		Description  string `json:"description"`
		ReviewStatus string `json:"review_status"`
		TraitSet     []struct {
			TraitName string `json:"trait_name"`
		} `json:"trait_set"`
	} `json:"germline_classification"`
	VariationSet []struct {
		VariationLoc []struct {
			Status       string `json:"status"`
			AssemblyName string `json:"assembly_name"`
			Chr          string `json:"chr"`
		} `json:"variation_loc"`
		AlleleFreqSet []struct {
			Source string     `json:"source"`
			Value  flexString `json:"value"`
		} `json:"allele_freq_set"`
	} `json:"variation_set"`
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Lookup searches ClinVar for the HGVS string and summarizes the first match.
// It returns (nil, nil) when ClinVar has no record.
func (c *ClinVarClient) Lookup(ctx context.Context, hgvs string) (*domain.ClinicalAnnotation, error) {
	notation, err := hgvsnotation.Parse(hgvs)
	if err != nil {
		return nil, err
	}
	hgvs = strings.TrimSpace(hgvs)
	if !notation.IsTranscript() {
		return nil, domain.NewValidationError("hgvs", "expected transcript c. or n. notation", hgvs)
	}

	ids, err := c.searchVariant(ctx, hgvs)
	if err != nil {
		return nil, fmt.Errorf("failed to search variant in ClinVar: %w", err)
	}
	if len(ids) == 0 {
		c.logger.WithField("hgvs", hgvs).Debug("No ClinVar record found")
		return nil, nil
	}

	doc, err := c.getSummary(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get ClinVar summary: %w", err)
	}
	if doc == nil {
		c.logger.WithFields(logrus.Fields{"hgvs": hgvs, "uid": ids[0]}).Warn("ClinVar summary missing requested uid")
		return nil, nil
	}

	annotation := summarize(hgvs, doc)
	c.logger.WithFields(logrus.Fields{
		"hgvs":           hgvs,
		"uid":            annotation.UID,
		"classification": annotation.Classification,
		"stars":          annotation.Stars,
	}).Debug("ClinVar annotation retrieved")
	return annotation, nil
}

// searchVariant returns ClinVar ids matching the HGVS term
func (c *ClinVarClient) searchVariant(ctx context.Context, hgvs string) ([]string, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"term":    {hgvs},
		"retmode": {"json"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	var body esearchResponse
	if err := c.req.getJSON(ctx, c.baseURL+"/esearch.fcgi?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	return body.ESearchResult.IDList, nil
}

// getSummary fetches the esummary document for one id
func (c *ClinVarClient) getSummary(ctx context.Context, id string) (*clinVarDocument, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"id":      {id},
		"retmode": {"json"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	var body esummaryResponse
	if err := c.req.getJSON(ctx, c.baseURL+"/esummary.fcgi?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	raw, ok := body.Result[id]
	if !ok {
		var uids []string
		if u, found := body.Result["uids"]; found {
			if err := json.Unmarshal(u, &uids); err != nil {
				return nil, &DecodeError{Service: "ClinVar", Err: err}
			}
		}
		if len(uids) == 0 {
			return nil, nil
		}
		if raw, ok = body.Result[uids[0]]; !ok {
			return nil, nil
		}
	}

	var doc clinVarDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DecodeError{Service: "ClinVar", Err: err}
	}
	if doc.UID == "" {
		doc.UID = id
	}
	return &doc, nil
}

// summarize extracts the clinical fields from a summary document
func summarize(hgvs string, doc *clinVarDocument) *domain.ClinicalAnnotation {
	germline := doc.GermlineClassification
	annotation := &domain.ClinicalAnnotation{
		UID:            doc.UID,
		Title:          doc.Title,
		HGVS:           hgvs,
		Classification: germline.Description,
		ReviewStatus:   germline.ReviewStatus,
		Stars:          domain.StarsFromReviewStatus(germline.ReviewStatus),
	}

	if len(doc.Genes) > 0 {
		annotation.GeneSymbol = doc.Genes[0].Symbol
	}

	for _, trait := range germline.TraitSet {
		if name := strings.TrimSpace(trait.TraitName); name != "" {
			annotation.Conditions = append(annotation.Conditions, name)
		}
	}

	if len(doc.VariationSet) > 0 {
		vs := doc.VariationSet[0]
		for _, loc := range vs.VariationLoc {
			if strings.EqualFold(loc.Status, "current") {
				annotation.Chromosome = loc.Chr
				break
			}
		}
		for _, freq := range vs.AlleleFreqSet {
			if strings.Contains(strings.ToLower(freq.Source), "gnomad") {
				annotation.AlleleFrequency = string(freq.Value)
				annotation.AlleleFrequencySource = freq.Source
				break
			}
		}
	}

	return annotation
}
