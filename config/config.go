// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

type Config struct {
	// See zap.Config
	Log *zap.Config `yaml:"log"`
	// Address for http control server to listen on
	ControlListenAddr string `yaml:"controlListenAddr"`
	// Connection to the chain integration endpoint
	Chain ChainConfig `yaml:"chain"`
	// Configuration for redis
	Redis RedisConfig `yaml:"redis"`
	// Control endpoint rate limits
	Limit RateLimitConfig `yaml:"limit"`
	// Per-origin limit on how often buffered messages are submitted to the chain
	SubmitLimit RateLimitConfig `yaml:"submitLimit"`
	// Identity and handlers of this worker
	Worker WorkerConfig `yaml:"worker"`
	// Metrics export
	Metrics MetricsConfig `yaml:"metrics"`
	// Configuration for the submission feed websocket
	Feed FeedConfig `yaml:"feed"`
	// Hex encoded secret for operator credentials on the control endpoints.
	// If empty, control endpoints are unauthenticated.
	ControlAuthSecret string `yaml:"controlAuthSecret"`
	// Periodicity/timeout for local liveness checks
	LocalLivenessCheckPeriod  time.Duration `yaml:"localLivenessCheckPeriod"`
	LocalLivenessCheckTimeout time.Duration `yaml:"localLivenessCheckTimeout"`
}

// validate returns a list of validation errors, or empty if there are no errors.
type validator interface{ validate() []string }

func (c *Config) validate() error {
	validators := []validator{&c.Chain, &c.Redis, &c.Limit, &c.SubmitLimit, &c.Worker, &c.Feed}
	var errs []string
	for _, validator := range validators {
		errs = append(errs, validator.validate()...)
	}
	if c.LocalLivenessCheckPeriod <= 0 {
		errs = append(errs, fmt.Sprintf("invalid LocalLivenessCheckPeriod: %v", c.LocalLivenessCheckPeriod))
	}
	if len(errs) != 0 {
		return fmt.Errorf("invalid config: %v", strings.Join(errs, ","))
	}
	return nil
}

// Read parses the yaml file at the provided path into a Config
func Read(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	withenv := []byte(os.ExpandEnv(string(bs)))
	c, err := unmarshal(withenv)
	if err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func unmarshal(bs []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default provides reasonable default parameters that may be overridden by a config file
func Default() *Config {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:       true,
		Encoding:          "console",
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	return &Config{
		Log:               &config,
		ControlListenAddr: "localhost:8081",
		Chain: ChainConfig{
			Network:          "tcp",
			Host:             "localhost",
			Port:             9944,
			MinSleepDuration: time.Millisecond * 100,
			MaxSleepDuration: time.Second * 30,
		},
		Redis: RedisConfig{
			Name:             "test",
			MinSleepDuration: time.Second,
			MaxSleepDuration: time.Second * 30,
			Addrs:            []string{"localhost:6379"},
		},
		Limit: RateLimitConfig{
			BucketSize:       10,
			LeakRateScalar:   10,
			LeakRateDuration: time.Minute,
		},
		SubmitLimit: RateLimitConfig{
			BucketSize:       100,
			LeakRateScalar:   100,
			LeakRateDuration: time.Second,
		},
		Worker: WorkerConfig{
			HeartbeatChallengePath: "phala/mining/heartbeat/challenge",
			HeartbeatResponsePath:  "phala/mining/heartbeat/response",
		},
		Feed: FeedConfig{
			WebsocketHandshakeTimeout: time.Second * 30,
			SocketTimeout:             time.Second * 30,
			BufferSize:                64,
		},
		Metrics: MetricsConfig{
			OTLPInterval: time.Minute,
		},
		LocalLivenessCheckPeriod:  time.Minute,
		LocalLivenessCheckTimeout: time.Minute,
	}
}
