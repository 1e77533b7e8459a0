// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package util contains general purpose utilities
package util

import (
	"context"
	"time"

	"golang.org/x/exp/constraints"
)

// Clamp restricts the value to the range [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}

// Backoff yields sleep durations that start at zero and then double from
// Min up to Max.
type Backoff struct {
	Min, Max time.Duration
	next     time.Duration
}

// Next returns the duration to sleep before the next attempt
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next = Clamp(b.next*2, b.Min, b.Max)
	return d
}

// Reset starts the sequence over, the next attempt runs immediately
func (b *Backoff) Reset() { b.next = 0 }

// Wait sleeps for the next duration, returning early with ctx's error if
// ctx is done.
func (b *Backoff) Wait(ctx context.Context) error {
	d := b.Next()
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryWithBackoff repeatedly attempts to call `fun`, increasing the wait between each call
func RetryWithBackoff(ctx context.Context, fun func() error, minSleep time.Duration, maxSleep time.Duration) error {
	_, err := RetrySupplierWithBackoff(ctx, func() (struct{}, error) { return struct{}{}, fun() }, minSleep, maxSleep)
	return err
}

// RetrySupplierWithBackoff repeatedly attempts to call `fun` to produce a
// value until it succeeds or ctx is done.
func RetrySupplierWithBackoff[T any](ctx context.Context, fun func() (T, error), minSleep time.Duration, maxSleep time.Duration) (T, error) {
	b := Backoff{Min: minSleep, Max: maxSleep}
	for {
		if err := b.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		if res, err := fun(); err == nil {
			return res, nil
		}
	}
}
