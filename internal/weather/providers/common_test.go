package providers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// testCaller returns a config with zero jitter and a sleep that records the
// requested delays instead of waiting.
func testCaller(backoff BackoffConfig) (HTTPClientConfig, *[]time.Duration) {
	var slept []time.Duration
	backoff.Jitter = 0
	cfg := HTTPClientConfig{
		Client:  &http.Client{Timeout: 5 * time.Second},
		Backoff: backoff,
		Logger:  log.New(testWriter{}, "", 0),
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	return cfg, &slept
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func getRequest(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestRetryAfterZeroThenSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg, slept := testCaller(DefaultBackoff())
	resp, err := doRequestWithResilience(context.Background(), cfg, testBreaker(t.Name()), getRequest(t, srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls, "expected exactly one retry")
	require.Len(t, *slept, 1)
	assert.Equal(t, time.Duration(0), (*slept)[0], "Retry-After: 0 should override backoff")
}

func TestUnauthorizedFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg, slept := testCaller(DefaultBackoff())
	_, err := doRequestWithResilience(context.Background(), cfg, testBreaker(t.Name()), getRequest(t, srv.URL))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls, "401 must not be retried")
	assert.Empty(t, *slept)
}

func TestClientErrorFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "no such location", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg, slept := testCaller(DefaultBackoff())
	_, err := doRequestWithResilience(context.Background(), cfg, testBreaker(t.Name()), getRequest(t, srv.URL))
	require.Error(t, err)

	var se *statusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.status)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetriesExhausted(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg, _ := testCaller(DefaultBackoff())
	_, err := doRequestWithResilience(context.Background(), cfg, testBreaker(t.Name()), getRequest(t, srv.URL))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, cfg.Backoff.MaxAttempts, calls)
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg, slept := testCaller(BackoffConfig{
		MaxAttempts:     5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     40 * time.Millisecond,
	})
	_, err := doRequestWithResilience(context.Background(), cfg, testBreaker(t.Name()), getRequest(t, srv.URL))
	require.ErrorIs(t, err, ErrRetriesExhausted)

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond,
	}
	assert.Equal(t, want, *slept)
}

func TestNetworkErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // every request now fails at the connection level

	cfg, slept := testCaller(BackoffConfig{
		MaxAttempts:     3,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
	})
	_, err := doRequestWithResilience(context.Background(), cfg, testBreaker(t.Name()), getRequest(t, url))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, *slept, 3)
}

func TestRetryDelayPrefersNumericRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, retryDelay("7", time.Second, 0))
	// Non-numeric values fall back to the computed backoff.
	assert.Equal(t, time.Second, retryDelay("Wed, 21 Oct 2015 07:28:00 GMT", time.Second, 0))
	assert.Equal(t, time.Second, retryDelay("", time.Second, 0))
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cfg, _ := testCaller(DefaultBackoff())
	cfg.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := doRequestWithResilience(ctx, cfg, testBreaker(t.Name()), getRequest(t, srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
