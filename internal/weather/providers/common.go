package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Jitter          time.Duration // upper bound for the random delay added to each backoff
}

// DefaultBackoff matches the job's retry schedule: five attempts, one second
// doubling up to thirty, with up to half a second of jitter.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:     5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Jitter:          500 * time.Millisecond,
	}
}

// SleepFunc waits out a retry delay. The default implementation blocks for
// the duration but returns early if the context is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	Logger  *log.Logger
	Sleep   SleepFunc // nil means sleepContext
}

var (
	// ErrUnauthorized signals a credential configuration error; retrying
	// cannot fix it.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRetriesExhausted is returned when the attempt budget is spent
	// without a success response.
	ErrRetriesExhausted = errors.New("retries exhausted")

	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// retryableStatus holds the HTTP statuses worth retrying (transient errors).
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// statusError carries what the retry loop needs from a non-success response.
type statusError struct {
	status     int
	retryAfter string
	body       string // truncated, for diagnostics
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.status)
}

func (e *statusError) retryable() bool {
	return retryableStatus[e.status]
}

// doRequestWithResilience executes the HTTP request with retries, exponential
// backoff, and a circuit breaker.
//
// Classification:
//   - 401 fails fast: the API key is wrong, no retry will help.
//   - 429 and 5xx are retried; a numeric Retry-After header takes precedence
//     over the computed backoff.
//   - any other non-2xx status fails fast.
//   - network-level errors (timeout, connection refused) are retried on the
//     same schedule as 5xx.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxAttempts <= 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	backoff := cfg.Backoff.InitialInterval
	var lastErr error

	for attempt := 1; attempt <= cfg.Backoff.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			se := &statusError{
				status:     resp.StatusCode,
				retryAfter: resp.Header.Get("Retry-After"),
				body:       truncatedBody(resp.Body),
			}
			resp.Body.Close()
			return nil, se
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		var se *statusError
		if errors.As(err, &se) {
			switch {
			case se.status == http.StatusUnauthorized:
				logger.Printf("ERROR: unauthorized (401), check the API key; response: %s", se.body)
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, se.body)

			case se.retryable():
				delay := retryDelay(se.retryAfter, backoff, cfg.Backoff.Jitter)
				logger.Printf("WARN: HTTP %d, retrying in %.1fs (attempt %d/%d)",
					se.status, delay.Seconds(), attempt, cfg.Backoff.MaxAttempts)
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
				backoff = nextBackoff(backoff, cfg.Backoff.MaxInterval)
				lastErr = se
				continue

			default:
				// Remaining 4xx are client errors; retrying cannot fix them.
				logger.Printf("ERROR: HTTP %d, not retrying; response: %s", se.status, se.body)
				return nil, se
			}
		}

		// Network-level failure: retry on the same schedule as 5xx.
		delay := backoff + randJitter(cfg.Backoff.Jitter)
		logger.Printf("WARN: network error: %v, retrying in %.1fs (attempt %d/%d)",
			err, delay.Seconds(), attempt, cfg.Backoff.MaxAttempts)
		if serr := sleep(ctx, delay); serr != nil {
			return nil, serr
		}
		backoff = nextBackoff(backoff, cfg.Backoff.MaxInterval)
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, cfg.Backoff.MaxAttempts, lastErr)
}

// retryDelay honours a numeric Retry-After header; otherwise backoff plus jitter.
func retryDelay(retryAfter string, backoff, jitter time.Duration) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return backoff + randJitter(jitter)
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		next = max
	}
	return next
}

// randJitter desynchronizes concurrent callers; a non-cryptographic source
// is fine for timing.
func randJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncatedBody reads at most 500 bytes for log output.
func truncatedBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 500))
	if err != nil {
		return ""
	}
	return string(b)
}
