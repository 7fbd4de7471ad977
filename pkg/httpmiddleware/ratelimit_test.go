package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mw := RateLimitWithCleanup(ctx, RateLimitConfig{Max: 3, Window: time.Minute})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.RemoteAddr = "10.0.0.1:55555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		rec := do()
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitPerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mw := RateLimitWithCleanup(ctx, RateLimitConfig{Max: 1, Window: time.Minute})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}

func TestRateLimiterSweep(t *testing.T) {
	rl := &rateLimiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		clients: make(map[string]*window),
	}

	now := time.Now()
	_, _, ok := rl.allow("a", now)
	require.True(t, ok)

	rl.sweep(now.Add(3 * time.Minute))
	assert.Empty(t, rl.clients)
}
