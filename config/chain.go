// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"time"
)

type ChainConfig struct {
	// "tcp" or "vsock"
	Network string `yaml:"network"`
	// Host to dial when Network is tcp
	Host string `yaml:"host"`
	// Context id to dial when Network is vsock
	VsockCID uint32 `yaml:"vsockCid"`
	Port     uint32 `yaml:"port"`
	// minimum time to sleep for exponential backoff retries to reconnect to the chain
	MinSleepDuration time.Duration `yaml:"minSleepDuration"`
	// maximum time to sleep for exponential backoff retries to reconnect to the chain
	MaxSleepDuration time.Duration `yaml:"maxSleepDuration"`
}

func (c *ChainConfig) validate() []string {
	var errs []string
	switch c.Network {
	case "tcp":
		if c.Host == "" {
			errs = append(errs, "chain host must be set for tcp")
		}
	case "vsock":
		if c.VsockCID == 0 {
			errs = append(errs, "chain vsockCid must be set for vsock")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid chain network %q", c.Network))
	}
	if c.Port == 0 {
		errs = append(errs, "chain port must be set")
	}
	if c.MinSleepDuration > c.MaxSleepDuration {
		errs = append(errs, fmt.Sprintf("MinSleep (%v) must be less than MaxSleep (%v)", c.MinSleepDuration, c.MaxSleepDuration))
	}
	return errs
}
