package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func breakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func newBreakerClient(cfg CircuitBreakerConfig) *CircuitBreakerClient {
	base := New(Config{Timeout: 5 * time.Second, MaxRetries: 0, MaxConnsPerHost: 10})
	return NewCircuitBreakerClient(base, cfg, quietLogger())
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`upstream error`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func trip(cb *CircuitBreakerClient, url string) {
	for i := 0; i < 3; i++ {
		_, _ = cb.Get(context.Background(), url)
	}
}

func TestCircuitBreaker_SuccessKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	cb := newBreakerClient(breakerConfig("wishlist-api"))

	resp, err := cb.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_ConsecutiveFailuresTrip(t *testing.T) {
	srv := failingServer(t)
	cb := newBreakerClient(breakerConfig("wishlist-api-trip"))

	for i := 0; i < 3; i++ {
		_, err := cb.Get(context.Background(), srv.URL)
		require.Error(t, err, "5xx responses count as breaker failures")
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	cfg := breakerConfig("wishlist-api-recover")
	cfg.Timeout = 100 * time.Millisecond
	cb := newBreakerClient(cfg)

	trip(cb, srv.URL)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Let the open timeout elapse, then heal the upstream; the half-open
	// probe should close the breaker again.
	time.Sleep(150 * time.Millisecond)
	failing.Store(false)

	resp, err := cb.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	t.Cleanup(srv.Close)

	cb := newBreakerClient(breakerConfig("wishlist-api-4xx"))

	for i := 0; i < 5; i++ {
		resp, err := cb.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"wl-1"}`))
	}))
	t.Cleanup(srv.Close)

	cb := newBreakerClient(breakerConfig("wishlist-api-post"))

	resp, err := cb.Post(context.Background(), srv.URL, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCircuitBreaker_DefaultConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("wishlist-api")
	assert.Equal(t, "wishlist-api", cfg.Name)
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0.5, cfg.FailureRatio)
	assert.Equal(t, uint32(5), cfg.MinRequests)
}

func TestCircuitBreaker_OpenShortCircuitsBeforeTransport(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cfg := breakerConfig("wishlist-api-open")
	cfg.Timeout = 5 * time.Second
	cb := newBreakerClient(cfg)

	trip(cb, srv.URL)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	before := hits.Load()
	for i := 0; i < 5; i++ {
		_, err := cb.Get(context.Background(), srv.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the server")
}

func TestCircuitBreaker_FallbackServesWhenOpen(t *testing.T) {
	srv := failingServer(t)

	cfg := breakerConfig("wishlist-api-fb")
	cfg.Timeout = 5 * time.Second
	cb := newBreakerClient(cfg)

	var called atomic.Bool
	withFB := cb.WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
		called.Store(true)
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
	})

	trip(withFB, srv.URL)
	assert.Equal(t, gobreaker.StateOpen, withFB.State())

	resp, err := withFB.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, called.Load())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCircuitBreaker_FallbackIdleWhileClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`ok`))
	}))
	t.Cleanup(srv.Close)

	cb := newBreakerClient(breakerConfig("wishlist-api-fb-closed"))

	var called atomic.Bool
	withFB := cb.WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
		called.Store(true)
		return nil, fmt.Errorf("fallback error")
	})

	resp, err := withFB.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, called.Load())
}

func TestCircuitBreaker_FallbackErrorPropagates(t *testing.T) {
	srv := failingServer(t)

	cfg := breakerConfig("wishlist-api-fb-err")
	cfg.Timeout = 5 * time.Second
	cb := newBreakerClient(cfg)

	withFB := cb.WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
		return nil, fmt.Errorf("fallback failed: %w", err)
	})

	trip(withFB, srv.URL)

	_, err := withFB.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback failed")
}

func TestCircuitBreaker_NoFallbackReturnsSentinel(t *testing.T) {
	srv := failingServer(t)

	cfg := breakerConfig("wishlist-api-no-fb")
	cfg.Timeout = 5 * time.Second
	cb := newBreakerClient(cfg)

	trip(cb, srv.URL)

	_, err := cb.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cb := newBreakerClient(breakerConfig("wishlist-api-ctx"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cb.Get(ctx, srv.URL)
	require.Error(t, err)
}
