package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter implements a sliding-window limiter on a Redis sorted set,
// so the budget is shared across replicas. Fails open: if Redis is
// unreachable the request is allowed and the error logged.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config, logger *zap.Logger) *RedisLimiter {
	if cfg.Requests <= 0 {
		cfg = DefaultConfig()
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "ratelimit")),
		now:    time.Now,
	}
}

// Allow counts requests in the trailing window for the key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	redisKey := "ratelimit:" + key
	windowStart := now.Add(-l.cfg.Window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey,
		"0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
		return true, nil
	}

	if countCmd.Val() >= int64(l.cfg.Requests) {
		return false, nil
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, l.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit record failed", zap.Error(err))
	}

	return true, nil
}
