// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package rate provides rate limiters that may be used to limit the
// number of operations performed during some time period.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/vabaly/phala-blockchain/config"
)

// ErrLimitExceeded indicates that the requested permit exceeds
// the configured rate limit for the key. After waiting for
// RetryAfter, the same request should succeed
type ErrLimitExceeded struct{ RetryAfter time.Duration }

func (e ErrLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %v", e.RetryAfter)
}

type Limiter interface {
	// Limit checks and enforces the rate limit. Returns nil if the operation
	// may proceed, or ErrLimitExceeded if the operation would exceed the
	// rate limit. If the rate limit cannot be checked, a different error
	// may be returned.
	Limit(ctx context.Context, key string) error
}

// Limiters holds the worker's limiters, which share one redis client
type Limiters struct {
	// Control limits control surface requests per operator
	Control Limiter
	// Submit limits how often each origin's messages go to the chain
	Submit Limiter

	rdb redis.UniversalClient
}

// New creates the limiters configured in cfg. Disabled limits always allow.
func New(cfg *config.Config) *Limiters {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Redis.Addrs,
		Password:    cfg.Redis.Password,
		DialTimeout: cfg.Redis.DialTimeout,
		PoolSize:    cfg.Redis.PoolSize,
	})
	return &Limiters{
		Control: fromConfig(rdb, cfg.Redis.Key("rate", "control"), cfg.Limit),
		Submit:  fromConfig(rdb, cfg.Redis.Key("rate", "submit"), cfg.SubmitLimit),
		rdb:     rdb,
	}
}

// Close releases the redis client
func (l *Limiters) Close() error { return l.rdb.Close() }

func fromConfig(rdb redis.UniversalClient, prefix string, limit config.RateLimitConfig) Limiter {
	if !limit.Enabled() {
		return AlwaysAllow
	}
	return NewRedisLimiter(rdb, prefix, limit)
}

// NewRedisLimiter returns a leaky bucket Limiter backed by redis. Buckets
// are stored under keys beginning with prefix.
func NewRedisLimiter(rdb redis.UniversalClient, prefix string, limit config.RateLimitConfig) Limiter {
	return &redisLimiter{
		prefix: prefix,
		limit: redis_rate.Limit{
			Rate:   limit.LeakRateScalar,
			Burst:  limit.BucketSize,
			Period: limit.LeakRateDuration,
		},
		limiter: redis_rate.NewLimiter(rdb),
	}
}

type redisLimiter struct {
	prefix  string
	limit   redis_rate.Limit
	limiter *redis_rate.Limiter
}

func (r *redisLimiter) Limit(ctx context.Context, key string) error {
	res, err := r.limiter.Allow(ctx, r.prefix+"::"+key, r.limit)
	if err != nil {
		return fmt.Errorf("checking rate limit for %s: %w", key, err)
	}
	if res.Allowed <= 0 {
		return ErrLimitExceeded{res.RetryAfter}
	}
	return nil
}

type alwaysAllow struct{}

func (alwaysAllow) Limit(context.Context, string) error { return nil }

// AlwaysAllow provides a Limiter that will always allow callers through
var AlwaysAllow = Limiter(alwaysAllow{})
