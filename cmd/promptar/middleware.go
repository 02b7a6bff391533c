package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptar/promptar/api/handlers"
	"github.com/promptar/promptar/internal/audit"
	"github.com/promptar/promptar/internal/metrics"
	"github.com/promptar/promptar/internal/ratelimit"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first listed runs outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Recovery converts handler panics into a 500 response.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
					)
					handlers.WriteJSON(w, http.StatusInternalServerError,
						handlers.ErrorBody{Detail: "An internal error occurred"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.StatusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", clientIP(r)),
			)
		})
	}
}

// Metrics records request counters, latency and response sizes.
func Metrics(collector *metrics.Collector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)
			collector.RecordHTTPRequest(
				r.Method,
				metricsPath(r.URL.Path),
				rw.StatusCode,
				time.Since(start),
				rw.Bytes,
			)
		})
	}
}

// metricsPath collapses per-record URLs so Prometheus label cardinality
// stays bounded.
func metricsPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/models/download/"):
		return "/api/models/download/:id"
	case strings.HasPrefix(path, "/api/models/") &&
		path != "/api/models/generate" &&
		path != "/api/models/generate-from-image":
		return "/api/models/:id"
	default:
		return path
	}
}

// RateLimit applies the limiter to generation endpoints only; reads and
// downloads stay unthrottled. Limiter failures admit the request.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !isGeneratePath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("rate limiter error, admitting request", zap.Error(err))
				allowed = true
			}
			if !allowed {
				logger.Info("rate limited", zap.String("client_ip", ip))
				w.Header().Set("Retry-After", "60")
				handlers.WriteJSON(w, http.StatusTooManyRequests, handlers.ErrorBody{
					Detail:    "Too many generation requests. Please wait a minute and try again.",
					Retryable: true,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isGeneratePath(path string) bool {
	return path == "/api/models/generate" || path == "/api/models/generate-from-image"
}

// Audit persists one row per request to the audit store.
func Audit(store *audit.Store) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)
			// A disconnected client must not lose the audit row, so the
			// insert does not use the request context.
			store.Record(context.Background(), &audit.RequestLog{
				Timestamp: start,
				Method:    r.Method,
				Path:      r.URL.Path,
				ClientIP:  clientIP(r),
				UserAgent: r.UserAgent(),
				Status:    rw.StatusCode,
				Duration:  time.Since(start).Microseconds(),
			})
		})
	}
}

// CORS answers preflight requests and tags every response. The service
// fronts mobile AR clients, so origins are left open.
func CORS() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers proxy-supplied headers, falling back to the socket
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
