package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvar-query/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mustVariant(t *testing.T, s string) domain.CanonicalVariant {
	t.Helper()
	v, err := domain.ParseCanonicalVariant(s)
	require.NoError(t, err)
	return v
}

func newTestVVClient(baseURL string, retries int) *VariantValidatorClient {
	c := NewVariantValidatorClient(domain.VariantValidatorConfig{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		RetryCount: retries,
	}, domain.CircuitBreakerConfig{MinRequests: 100}, testLogger())
	c.req.retryBaseDelay = time.Millisecond
	return c
}

func TestVariantValidatorClient_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectMANE     bool
		expectHGVS     string
		expectGene     string
		expectHGNC     string
		expectFallback string
	}{
		{
			name: "MANE_Select_Preferred",
			body: `{"transcripts":[
				{"transcript":"NM_001.1","hgvs_c":"NM_001.1:c.5T>A","mane_status":"MANE Plus Clinical"},
				{"transcript":"NM_X.1","hgvs_c":"NM_X.1:c.10T>A","mane_status":"MANE Select"}],
				"gene":{"symbol":"ATP1A3","name":"ATPase Na+/K+ transporting subunit alpha 3","hgnc_id":"HGNC:801"}}`,
			expectMANE:     true,
			expectHGVS:     "NM_X.1:c.10T>A",
			expectGene:     "ATP1A3",
			expectHGNC:     "HGNC:801",
			expectFallback: "NM_001.1:c.5T>A",
		},
		{
			name: "Fallback_To_First",
			body: `{"transcripts":[
				{"transcript":"NM_002.3","hgvs_c":"NM_002.3:c.77G>T","mane_status":""},
				{"transcript":"NM_003.1","hgvs_c":"NM_003.1:c.90G>T"}],
				"gene":{"symbol":"KRAS"}}`,
			expectMANE:     false,
			expectHGVS:     "NM_002.3:c.77G>T",
			expectGene:     "KRAS",
			expectFallback: "NM_002.3:c.77G>T",
		},
		{
			name: "Case_Insensitive_Status",
			body: `{"transcripts":[{"transcript":"NM_9.2","hgvs_c":"NM_9.2:c.1A>G","mane_status":" mane select "}],"gene":{}}`,
			expectMANE:     true,
			expectHGVS:     "NM_9.2:c.1A>G",
			expectFallback: "NM_9.2:c.1A>G",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = r.URL.RawQuery
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestVVClient(server.URL, 0)
			res, err := client.Resolve(context.Background(), mustVariant(t, "19-41970248-T-A"))
			require.NoError(t, err)

			assert.Equal(t, "/VariantValidator/variantvalidator/GRCh38/19:41970248T>A/all", gotPath)
			assert.Equal(t, "content-type=application/json", gotQuery)
			assert.Equal(t, "19-41970248-T-A", res.Variant)
			assert.Equal(t, tt.expectMANE, res.MANEAvailable)
			assert.Equal(t, tt.expectHGVS, res.PreferredHGVS())
			assert.Equal(t, tt.expectGene, res.GeneSymbol)
			assert.Equal(t, tt.expectHGNC, res.HGNCID)
			assert.Equal(t, tt.expectFallback, res.FallbackHGVSc)
			assert.Empty(t, res.Error)
		})
	}
}

func TestVariantValidatorClient_Failures(t *testing.T) {
	t.Run("No_Transcripts", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"transcripts":[],"gene":{"symbol":"X"}}`)
		}))
		defer server.Close()

		res, err := newTestVVClient(server.URL, 0).Resolve(context.Background(), mustVariant(t, "1-100-A-G"))
		assert.ErrorIs(t, err, domain.ErrNoTranscripts)
		require.NotNil(t, res)
		assert.Equal(t, "no transcripts returned", res.Error)
		assert.Empty(t, res.PreferredHGVS())
		assert.Empty(t, res.GeneSymbol)
	})

	t.Run("Retries_Transient_Status", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `{"transcripts":[{"transcript":"NM_1.1","hgvs_c":"NM_1.1:c.1A>G"}],"gene":{}}`)
		}))
		defer server.Close()

		res, err := newTestVVClient(server.URL, 2).Resolve(context.Background(), mustVariant(t, "1-100-A-G"))
		require.NoError(t, err)
		assert.Equal(t, "NM_1.1:c.1A>G", res.PreferredHGVS())
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("Client_Error_Not_Retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		res, err := newTestVVClient(server.URL, 3).Resolve(context.Background(), mustVariant(t, "1-100-A-G"))
		require.Error(t, err)
		var statusErr *StatusError
		assert.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
		assert.NotEmpty(t, res.Error)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("Malformed_JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"transcripts": [`)
		}))
		defer server.Close()

		res, err := newTestVVClient(server.URL, 2).Resolve(context.Background(), mustVariant(t, "1-100-A-G"))
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr)
		assert.NotEmpty(t, res.Error)
		assert.Empty(t, res.FallbackHGVSc)
	})
}

const summaryBody = `{
  "header": {"type": "esummary"},
  "result": {
    "uids": ["12345"],
    "12345": {
      "uid": "12345",
      "title": "NM_X.1(ATP1A3):c.10T>A",
      "genes": [{"symbol": "ATP1A3"}, {"symbol": "OTHER"}],
      "germline_classification": {
        "description": "Pathogenic",
        "review_status": "reviewed by expert panel",
        "trait_set": [{"trait_name": "Dystonia 12"}, {"trait_name": ""}, {"trait_name": "Alternating hemiplegia of childhood"}]
      },
      "variation_set": [{
        "variation_loc": [
          {"status": "previous", "assembly_name": "GRCh37", "chr": "19q"},
          {"status": "current", "assembly_name": "GRCh38", "chr": "19"}
        ],
        "allele_freq_set": [
          {"source": "1000 Genomes Project", "value": "0.01"},
          {"source": "The Genome Aggregation Database (gnomAD)", "value": "0.00002"},
          {"source": "gnomAD exomes", "value": 0.5}
        ]
      }]
    }
  }
}`

func newClinVarServer(t *testing.T, idlist string, summary string, searches, summaries *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "clinvar", q.Get("db"))
		assert.Equal(t, "json", q.Get("retmode"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			atomic.AddInt32(searches, 1)
			fmt.Fprintf(w, `{"esearchresult":{"count":"1","idlist":%s}}`, idlist)
		case "/esummary.fcgi":
			atomic.AddInt32(summaries, 1)
			assert.Equal(t, "12345", q.Get("id"))
			fmt.Fprint(w, summary)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClinVarClient(baseURL string, delay time.Duration, retries int) *ClinVarClient {
	c := NewClinVarClient(domain.ClinVarConfig{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		RequestDelay: delay,
		RetryCount:   retries,
	}, domain.CircuitBreakerConfig{MinRequests: 100}, testLogger())
	c.req.retryBaseDelay = time.Millisecond
	return c
}

func TestClinVarClient_Lookup(t *testing.T) {
	var searches, summaries int32
	server := newClinVarServer(t, `["12345"]`, summaryBody, &searches, &summaries)
	defer server.Close()

	client := newTestClinVarClient(server.URL, 0, 0)
	annotation, err := client.Lookup(context.Background(), "NM_X.1:c.10T>A")
	require.NoError(t, err)
	require.NotNil(t, annotation)

	assert.Equal(t, "12345", annotation.UID)
	assert.Equal(t, "NM_X.1:c.10T>A", annotation.HGVS)
	assert.Equal(t, "ATP1A3", annotation.GeneSymbol)
	assert.Equal(t, "Pathogenic", annotation.Classification)
	assert.Equal(t, "reviewed by expert panel", annotation.ReviewStatus)
	assert.Equal(t, 3, annotation.Stars)
	assert.Equal(t, []string{"Dystonia 12", "Alternating hemiplegia of childhood"}, annotation.Conditions)
	assert.Equal(t, "19", annotation.Chromosome)
	assert.Equal(t, "0.00002", annotation.AlleleFrequency)
	assert.Equal(t, "The Genome Aggregation Database (gnomAD)", annotation.AlleleFrequencySource)
	assert.Equal(t, int32(1), searches)
	assert.Equal(t, int32(1), summaries)
}

func TestClinVarClient_NotFound(t *testing.T) {
	var searches, summaries int32
	server := newClinVarServer(t, `[]`, summaryBody, &searches, &summaries)
	defer server.Close()

	annotation, err := newTestClinVarClient(server.URL, 0, 0).Lookup(context.Background(), "NM_404.1:c.1A>G")
	assert.NoError(t, err)
	assert.Nil(t, annotation)
	assert.Equal(t, int32(0), summaries)
}

func TestClinVarClient_SparseDocument(t *testing.T) {
	var searches, summaries int32
	sparse := `{"result":{"uids":["12345"],"12345":{"uid":"12345","germline_classification":{},"variation_set":[]}}}`
	server := newClinVarServer(t, `["12345"]`, sparse, &searches, &summaries)
	defer server.Close()

	annotation, err := newTestClinVarClient(server.URL, 0, 0).Lookup(context.Background(), "NM_5.1:c.2C>T")
	require.NoError(t, err)
	require.NotNil(t, annotation)
	assert.Equal(t, 0, annotation.Stars)
	assert.Empty(t, annotation.Classification)
	assert.Empty(t, annotation.AlleleFrequency)
	assert.Empty(t, annotation.Chromosome)
	assert.Nil(t, annotation.Conditions)
}

func TestClinVarClient_Errors(t *testing.T) {
	t.Run("Empty_HGVS", func(t *testing.T) {
		_, err := newTestClinVarClient("http://127.0.0.1:1", 0, 0).Lookup(context.Background(), "  ")
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("Server_Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		annotation, err := newTestClinVarClient(server.URL, 0, 1).Lookup(context.Background(), "NM_1.1:c.1A>G")
		assert.Error(t, err)
		assert.Nil(t, annotation)
	})

	t.Run("Breaker_Opens", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClinVarClient(domain.ClinVarConfig{BaseURL: server.URL, Timeout: time.Second},
			domain.CircuitBreakerConfig{MinRequests: 1, FailureRatio: 0.5, Timeout: time.Minute}, testLogger())

		_, err := client.Lookup(context.Background(), "NM_1.1:c.1A>G")
		require.Error(t, err)
		_, err = client.Lookup(context.Background(), "NM_1.1:c.1A>G")
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestClinVarClient_RequestDelay(t *testing.T) {
	var searches, summaries int32
	server := newClinVarServer(t, `["12345"]`, summaryBody, &searches, &summaries)
	defer server.Close()

	client := newTestClinVarClient(server.URL, 40*time.Millisecond, 0)
	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := client.Lookup(context.Background(), "NM_X.1:c.10T>A")
		require.NoError(t, err)
	}

	// four calls with the first one free
	assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&StatusError{StatusCode: 503}))
	assert.True(t, isTransient(&StatusError{StatusCode: 429}))
	assert.False(t, isTransient(&StatusError{StatusCode: 404}))
	assert.False(t, isTransient(&DecodeError{Err: io.ErrUnexpectedEOF}))
	assert.False(t, isTransient(context.Canceled))
	assert.True(t, isTransient(io.ErrUnexpectedEOF))
	assert.False(t, isTransient(nil))
}

func TestVariantValidatorClient_SkipsUnusableTranscripts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"transcripts":[
			{"transcript":"","hgvs_c":"intergenic","mane_status":"MANE Select"},
			{"transcript":"NM_7.2","hgvs_c":"NM_7.2:c.33del"}],"gene":{"symbol":"G7"}}`)
	}))
	defer server.Close()

	res, err := newTestVVClient(server.URL, 0).Resolve(context.Background(), mustVariant(t, "3-300-CA-C"))
	require.NoError(t, err)
	assert.False(t, res.MANEAvailable)
	assert.Equal(t, "NM_7.2", res.FallbackTranscript)
	assert.Equal(t, "NM_7.2:c.33del", res.PreferredHGVS())

	t.Run("Nothing_Usable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"transcripts":[{"transcript":"","hgvs_c":"intergenic"}],"gene":{}}`)
		}))
		defer server.Close()

		res, err := newTestVVClient(server.URL, 0).Resolve(context.Background(), mustVariant(t, "3-300-CA-C"))
		assert.ErrorIs(t, err, domain.ErrNoTranscripts)
		assert.Empty(t, res.PreferredHGVS())
	})
}

func TestClinVarClient_RejectsNonTranscriptNotation(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := newTestClinVarClient(server.URL, 0, 0)
	for _, input := range []string{"NC_000017.11:g.43104261G>T", "NM_1.1:c.garbage"} {
		_, err := client.Lookup(context.Background(), input)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr, input)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestVariantValidatorClient_RequestURL(t *testing.T) {
	variant := mustVariant(t, "19-41970248-T-A")

	c := NewVariantValidatorClient(domain.VariantValidatorConfig{BaseURL: "https://vv.example/"}, domain.CircuitBreakerConfig{}, testLogger())
	assert.Equal(t,
		"https://vv.example/VariantValidator/variantvalidator/GRCh38/19:41970248T%3EA/all?content-type=application/json",
		c.RequestURL(variant))

	c = NewVariantValidatorClient(domain.VariantValidatorConfig{
		BaseURL:           "https://vv.example",
		GenomeBuild:       "GRCh37",
		SelectTranscripts: "mane_select",
	}, domain.CircuitBreakerConfig{}, testLogger())
	assert.Equal(t,
		"https://vv.example/VariantValidator/variantvalidator/GRCh37/19:41970248T%3EA/mane_select?content-type=application/json",
		c.RequestURL(variant))
}
