// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/vabaly/phala-blockchain/auth"
	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/metrics"
	"github.com/vabaly/phala-blockchain/service"

	stdlog "log"
)

var (
	configPath = flag.String("config", "", "Path to configuration yaml file, defaults are used if empty")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Read(*configPath); err != nil {
			stdlog.Fatalf("could not read configuration: %v", err)
		}
	}
	if err := logger.Init(cfg); err != nil {
		stdlog.Fatalf("could not initialize logging: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer func() {
		signal.Stop(interrupts)
		cancel()
	}()

	sinks, err := metrics.Setup(ctx, cfg.Metrics, "phala-mq")
	if err != nil {
		logger.Fatalf("error initializing metrics : %v", err)
	}
	defer sinks.Shutdown()

	// the environment takes precedence so the secret can stay out of config files
	secret := cfg.ControlAuthSecret
	if s, ok := os.LookupEnv("CONTROL_AUTH_SECRET"); ok {
		secret = s
	}
	authenticator, err := auth.FromHexSecret(secret)
	if err != nil {
		logger.Fatalf("invalid control auth secret: %v", err)
	}
	if authenticator == auth.AlwaysAllow {
		logger.Warnf("no control auth secret configured, control endpoints are unauthenticated")
	}

	go func() {
		select {
		case <-interrupts:
			logger.Infof("received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	err = service.Start(ctx, cfg, authenticator, sinks.Handler)
	logger.Fatalw("Shutting down", "error", err)
}
