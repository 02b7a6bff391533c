package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/promptar/promptar/internal/ratelimit"
)

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(panicky, Recovery(zaptest.NewLogger(t)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestRateLimitMiddlewareGenerateOnly(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	limiter := ratelimit.NewLocalLimiter(ratelimit.Config{Requests: 1, Window: ratelimit.DefaultConfig().Window})
	handler := Chain(ok, RateLimit(limiter, zaptest.NewLogger(t)))

	send := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("/api/models/generate"))
	assert.Equal(t, http.StatusTooManyRequests, send("/api/models/generate"))
	// Downloads are never throttled.
	assert.Equal(t, http.StatusOK, send("/api/models/download/abc"))
}

func TestRateLimitMiddlewareNilLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Chain(ok, RateLimit(nil, zaptest.NewLogger(t)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/models/generate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})
	handler := Chain(next, CORS())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/models/generate", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:5555"
	assert.Equal(t, "192.168.1.10", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", clientIP(req))
}

func TestMetricsPath(t *testing.T) {
	assert.Equal(t, "/api/models/download/:id", metricsPath("/api/models/download/8f14e45f"))
	assert.Equal(t, "/api/models/:id", metricsPath("/api/models/8f14e45f"))
	assert.Equal(t, "/api/models/generate", metricsPath("/api/models/generate"))
	assert.Equal(t, "/health", metricsPath("/health"))
}
