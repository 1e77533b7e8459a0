// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vabaly/phala-blockchain/config"
)

func testLimiters(t *testing.T, control, submit config.RateLimitConfig) (*Limiters, *miniredis.Miniredis) {
	cfg := config.Default()
	s := miniredis.RunT(t)
	cfg.Redis.Addrs = []string{s.Addr()}
	cfg.Limit, cfg.SubmitLimit = control, submit
	l := New(cfg)
	t.Cleanup(func() { l.Close() })
	return l, s
}

func TestBucketRefills(t *testing.T) {
	cfg := config.RateLimitConfig{
		BucketSize:       2,
		LeakRateScalar:   1,
		LeakRateDuration: 100 * time.Millisecond,
	}
	l, _ := testLimiters(t, cfg, cfg)
	ctx := context.Background()

	var exceeded ErrLimitExceeded
	allowed := 0
	for err := l.Control.Limit(ctx, "operator"); !errors.As(err, &exceeded); err = l.Control.Limit(ctx, "operator") {
		if err != nil {
			t.Fatal(err)
		}
		allowed++
	}
	if allowed < cfg.BucketSize {
		t.Errorf("allowed %v before limiting, want at least %v", allowed, cfg.BucketSize)
	}
	if exceeded.RetryAfter <= 0 || exceeded.RetryAfter > cfg.LeakRateDuration {
		t.Errorf("RetryAfter=%v, want in (0, %v]", exceeded.RetryAfter, cfg.LeakRateDuration)
	}

	time.Sleep(exceeded.RetryAfter + 10*time.Millisecond)
	if err := l.Control.Limit(ctx, "operator"); err != nil {
		t.Errorf("Limit after RetryAfter=%v", err)
	}
}

func TestExhaust(t *testing.T) {
	cfg := config.RateLimitConfig{BucketSize: 10, LeakRateScalar: 1, LeakRateDuration: time.Hour}
	l, _ := testLimiters(t, cfg, cfg)
	ctx := context.Background()
	for i := 0; i < cfg.BucketSize; i++ {
		if err := l.Submit.Limit(ctx, "pallet:70"); err != nil {
			t.Fatalf("iter %v : %v", i, err)
		}
	}

	var exceeded ErrLimitExceeded
	if err := l.Submit.Limit(ctx, "pallet:70"); !errors.As(err, &exceeded) {
		t.Fatalf("Limit(%v)=%v, want ErrLimitExceeded", cfg.BucketSize+1, err)
	}
	if exceeded.RetryAfter < time.Hour-5*time.Second || exceeded.RetryAfter > time.Hour {
		t.Errorf("RetryAfter=%v, want about %v", exceeded.RetryAfter, time.Hour)
	}

	// other origins have their own bucket
	if err := l.Submit.Limit(ctx, "pallet:71"); err != nil {
		t.Error(err)
	}
}

func TestSubmitAndControlBucketsAreSeparate(t *testing.T) {
	one := config.RateLimitConfig{BucketSize: 1, LeakRateScalar: 1, LeakRateDuration: time.Hour}
	l, s := testLimiters(t, one, one)

	ctx := context.Background()
	if err := l.Control.Limit(ctx, "pallet:70"); err != nil {
		t.Fatal(err)
	}
	if err := l.Submit.Limit(ctx, "pallet:70"); err != nil {
		t.Errorf("submit bucket shared with control bucket: %v", err)
	}
	var exceeded ErrLimitExceeded
	if err := l.Submit.Limit(ctx, "pallet:70"); !errors.As(err, &exceeded) {
		t.Errorf("second submit=%v, want ErrLimitExceeded", err)
	}
	// redis_rate adds its own "rate:" prefix
	for _, key := range []string{"rate:test::rate::control::pallet:70", "rate:test::rate::submit::pallet:70"} {
		if !s.Exists(key) {
			t.Errorf("missing bucket %q, have %v", key, s.Keys())
		}
	}
}

func TestDisabledLimitAllows(t *testing.T) {
	l, s := testLimiters(t, config.RateLimitConfig{BucketSize: 1, LeakRateScalar: 1, LeakRateDuration: time.Hour}, config.RateLimitConfig{})
	if l.Submit != AlwaysAllow {
		t.Fatalf("Submit=%T, want AlwaysAllow", l.Submit)
	}
	for i := 0; i < 5; i++ {
		if err := l.Submit.Limit(context.Background(), "pallet:70"); err != nil {
			t.Fatal(err)
		}
	}
	if len(s.Keys()) != 0 {
		t.Errorf("disabled limit touched redis: %v", s.Keys())
	}
}

func TestRedisErrorIsNotLimitExceeded(t *testing.T) {
	cfg := config.RateLimitConfig{BucketSize: 1, LeakRateScalar: 1, LeakRateDuration: time.Hour}
	l, s := testLimiters(t, cfg, cfg)
	s.SetError("ERR injected failure")
	err := l.Control.Limit(context.Background(), "operator")
	var exceeded ErrLimitExceeded
	if err == nil || errors.As(err, &exceeded) {
		t.Errorf("Limit()=%v, want a non-limit error", err)
	}
}
