// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"time"
)

// RateLimitConfig configures a leaky bucket. A zero BucketSize disables
// the limit.
type RateLimitConfig struct {
	// The maximum size of the leaky bucket. This is the maximum "burst" of operations that will be allowed
	BucketSize int `yaml:"bucketSize"`
	// The amount of operations that will be added (up to BucketSize) per LeakRateDuration
	LeakRateScalar int `yaml:"leakRateScalar"`
	// The period at which LeakRateScalar additional operations will be allowed
	LeakRateDuration time.Duration `yaml:"leakRateDuration"`
}

func (r *RateLimitConfig) Enabled() bool { return r.BucketSize > 0 }

func (r *RateLimitConfig) validate() []string {
	if r.BucketSize < 0 {
		return []string{fmt.Sprintf("invalid BucketSize: %v", r.BucketSize)}
	}
	if !r.Enabled() {
		return nil
	}
	var errs []string
	if r.LeakRateScalar <= 0 {
		errs = append(errs, fmt.Sprintf("invalid LeakRateScalar: %v", r.LeakRateScalar))
	}
	if r.LeakRateDuration <= 0 {
		errs = append(errs, fmt.Sprintf("invalid LeakRateDuration: %v", r.LeakRateDuration))
	}
	return errs
}
