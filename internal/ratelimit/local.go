// Package ratelimit provides per-client request rate limiting with a local
// in-process backend and an optional Redis backend for multi-replica
// deployments.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request from the given client key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds the request budget: Requests per Window.
type Config struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// DefaultConfig matches the historical limit of five requests per minute.
func DefaultConfig() Config {
	return Config{Requests: 5, Window: time.Minute}
}

// LocalLimiter is a per-key token bucket limiter for single-process
// deployments. Idle buckets are pruned to bound memory.
type LocalLimiter struct {
	cfg      Config
	mu       sync.Mutex
	buckets  map[string]*localBucket
	lastSeen map[string]time.Time
	now      func() time.Time
}

type localBucket struct {
	limiter *rate.Limiter
}

// NewLocalLimiter creates a local limiter.
func NewLocalLimiter(cfg Config) *LocalLimiter {
	if cfg.Requests <= 0 {
		cfg = DefaultConfig()
	}
	return &LocalLimiter{
		cfg:      cfg,
		buckets:  make(map[string]*localBucket),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the key has budget left in the current window.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		limit := rate.Every(l.cfg.Window / time.Duration(l.cfg.Requests))
		b = &localBucket{limiter: rate.NewLimiter(limit, l.cfg.Requests)}
		l.buckets[key] = b
	}
	l.lastSeen[key] = l.now()

	l.pruneLocked()
	return b.limiter.Allow(), nil
}

// pruneLocked drops buckets idle for more than three windows.
func (l *LocalLimiter) pruneLocked() {
	if len(l.buckets) < 1024 {
		return
	}
	cutoff := l.now().Add(-3 * l.cfg.Window)
	for key, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastSeen, key)
		}
	}
}
