package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/clinvar-query/internal/domain"
)

const userAgent = "clinvar-query/1.0"

// StatusError is returned for non-2xx responses
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// DecodeError wraps a response body that could not be decoded
type DecodeError struct {
	Service string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.Service, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// isTransient separates network faults and throttling from answers that
// will not change on retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	return true
}

// newCircuitBreaker builds a breaker that trips on transient failures only
func newCircuitBreaker(name string, cfg domain.CircuitBreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
	})
}

// requester performs rate limited, breaker guarded JSON GETs with bounded
// exponential backoff on transient failures.
type requester struct {
	service        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	retries        int
	retryBaseDelay time.Duration
	logger         *logrus.Logger
}

func (r *requester) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.retryBaseDelay
	eb.MaxInterval = 10 * r.retryBaseDelay
	eb.MaxElapsedTime = 0
	retries := r.retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// getJSON decodes the body of a GET to rawURL into out
func (r *requester) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	attempt := 0
	operation := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait failed: %w", err))
		}

		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.do(ctx, rawURL, out)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, r.service, err))
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}

		r.logger.WithFields(logrus.Fields{
			"service": r.service,
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Transient request failure")
		return err
	}

	return backoff.Retry(operation, r.newBackOff(ctx))
}

func (r *requester) do(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: r.service, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Service: r.service, Err: err}
	}
	return nil
}
