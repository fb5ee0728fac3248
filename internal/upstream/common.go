package upstream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/noise-dashboard/internal/noise"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Delay returns the wait before retry number attempt (0-based).
func (b BackoffConfig) Delay(attempt int) time.Duration {
	delay := b.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
	if delay <= 0 || (delay > b.MaxInterval && b.MaxInterval > 0) {
		delay = b.MaxInterval
	}
	return delay
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// newCircuitBreaker returns the breaker shared by every call to one backend.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	})
}

// doRequestWithResilience executes a GET with retries, exponential backoff and a
// circuit breaker. Every failure is wrapped in noise.ErrNetworkFailure.
func doRequestWithResilience(
	ctx context.Context,
	client *resty.Client,
	backoff BackoffConfig,
	cb *gobreaker.CircuitBreaker,
	path string,
	query map[string]string,
) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}
	if backoff.MaxRetries < 0 || (backoff.MaxRetries > 0 && backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", noise.ErrNetworkFailure, ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := client.R().
				SetContext(ctx).
				SetQueryParams(query).
				SetHeader("Accept", "application/json").
				Get(path)
			if execErr != nil {
				return nil, execErr
			}

			// Handle rate limiting and server errors explicitly.
			if resp.StatusCode() == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode() >= 500 {
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode())
			}
			if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode())
			}

			return resp.Body(), nil
		})

		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", noise.ErrNetworkFailure, errCircuitOpen, err)
		}

		// Client errors will not get better by retrying.
		if errors.Is(err, errUnexpected) || attempt >= backoff.MaxRetries {
			return nil, fmt.Errorf("%w: %w", noise.ErrNetworkFailure, err)
		}

		timer := time.NewTimer(backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", noise.ErrNetworkFailure, ctx.Err())
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}
