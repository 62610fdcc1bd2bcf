package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 60,
		WindowDuration:    time.Minute,
		BurstSize:         3,
	}
	limiter := NewRateLimiter(config)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	allowedCount := 0
	for i := 0; i < 10; i++ {
		if ok, _ := limiter.Allow(context.Background(), "k"); ok {
			allowedCount++
		}
	}
	if allowedCount != config.BurstSize {
		t.Errorf("Allowed %d requests, want %d", allowedCount, config.BurstSize)
	}

	// One token per second at 60/min.
	now = now.Add(time.Second)
	if ok, _ := limiter.Allow(context.Background(), "k"); !ok {
		t.Error("Should allow request after refill")
	}
	if ok, _ := limiter.Allow(context.Background(), "other"); !ok {
		t.Error("Keys should be independent")
	}
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	if limiter.config.RequestsPerWindow != DefaultRateLimitConfig().RequestsPerWindow {
		t.Errorf("nil config should use defaults, got %+v", limiter.config)
	}

	zero := NewRateLimiter(&RateLimitConfig{WindowDuration: time.Minute})
	ok, err := zero.Allow(context.Background(), "k")
	assert.NoError(t, err)
	assert.True(t, ok, "zero burst still admits one request")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 1})
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow(context.Background(), "stale")
	now = now.Add(3 * time.Second)
	limiter.Allow(context.Background(), "fresh")
	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "stale")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_Concurrency(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour, BurstSize: 10})

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(context.Background(), "shared"); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "remote addr without port", remoteAddr: "10.0.0.1", want: "10.0.0.1"},
		{
			name:       "first forwarded hop",
			remoteAddr: "10.0.0.1:5555",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.1:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

type limiterFunc func(ctx context.Context, key string) (bool, error)

func (f limiterFunc) Allow(ctx context.Context, key string) (bool, error) { return f(ctx, key) }

func TestRateLimitMiddleware_Handler(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger, _ := test.NewNullLogger()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour, BurstSize: 2})
	h := NewRateLimitMiddleware(limiter, "auth", time.Minute, metrics, logger).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, call("192.0.2.1").Code)

	w := call("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"SYS_429"`)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("auth")))

	assert.Equal(t, http.StatusOK, call("192.0.2.2").Code, "other clients are unaffected")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var key string
	limiter := limiterFunc(func(_ context.Context, k string) (bool, error) {
		key = k
		return false, errors.New("redis down")
	})
	h := NewRateLimitMiddleware(limiter, "auth", time.Minute, nil, logger).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.9:1"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth:192.0.2.9", key)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "Rate limiter unavailable")
}
