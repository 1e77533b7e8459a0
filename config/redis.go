// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// RedisConfig is shared by the ack store and the rate limiters
type RedisConfig struct {
	// A seed list of host:port addresses. A single address connects to a
	// standalone server, more than one to a cluster.
	Addrs []string `yaml:"addrs"`
	// password for instance (may be blank if protected mode is disabled)
	Password string `yaml:"password"`
	// a unique name for the worker deployment, every key starts with it
	Name string `yaml:"name"`
	// Timeout for establishing a connection, 0 for the client default
	DialTimeout time.Duration `yaml:"dialTimeout"`
	// Connections per node, 0 for the client default
	PoolSize int `yaml:"poolSize"`
	// minimum time to sleep for exponential backoff retries to redis
	MinSleepDuration time.Duration `yaml:"minSleepDuration"`
	// maximum time to sleep for exponential backoff retries to redis
	MaxSleepDuration time.Duration `yaml:"maxSleepDuration"`
}

// Key returns the redis key for parts under this deployment's name,
// ex "worker1::acks"
func (r *RedisConfig) Key(parts ...string) string {
	return strings.Join(append([]string{r.Name}, parts...), "::")
}

func (r *RedisConfig) validate() []string {
	var errs []string
	if len(r.Addrs) == 0 {
		errs = append(errs, "must provide redis Addrs")
	}
	for _, addr := range r.Addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Sprintf("invalid redis Addr %v", addr))
		}
	}
	if r.Name == "" {
		errs = append(errs, "must provide redis Name")
	}
	if r.PoolSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid redis PoolSize: %v", r.PoolSize))
	}
	if r.MinSleepDuration > r.MaxSleepDuration {
		errs = append(errs, fmt.Sprintf("redis MinSleepDuration %v exceeds MaxSleepDuration %v", r.MinSleepDuration, r.MaxSleepDuration))
	}
	return errs
}
