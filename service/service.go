// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package service creates and initializes all components required to run a
// worker's message queue against the chain
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vabaly/phala-blockchain/ackdb"
	"github.com/vabaly/phala-blockchain/auth"
	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/handler"
	"github.com/vabaly/phala-blockchain/health"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/rate"
	"github.com/vabaly/phala-blockchain/sendqueue"
	"github.com/vabaly/phala-blockchain/signer"
	"github.com/vabaly/phala-blockchain/util"
	"github.com/vabaly/phala-blockchain/web/handlers"
	"github.com/vabaly/phala-blockchain/web/middleware"
)

var errChainDisconnected = errors.New("chain disconnected")

// Start starts all components and only returns when a component has encountered an
// unrecoverable error or the provided context has been cancelled. metricsHandler,
// if not nil, is served at /metrics on the control address.
func Start(ctx context.Context, cfg *config.Config, authenticator auth.Auth, metricsHandler http.Handler) error {
	workerSigner, err := signerFromConfig(cfg.Worker)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// Start up the control server immediately, for debugging and liveness checking.
	controlMux := http.NewServeMux()
	controlMux.HandleFunc("/debug/pprof/", pprof.Index)
	controlMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	controlMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	controlMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	controlMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	live, ready := health.New("live", errors.New("starting")), health.New("ready", errChainDisconnected)
	controlMux.Handle("/health/live", middleware.Instrument("live", live))
	controlMux.Handle("/health/ready", middleware.Instrument("ready", ready))
	if metricsHandler != nil {
		controlMux.Handle("/metrics", metricsHandler)
	}

	ln, err := net.Listen("tcp", cfg.ControlListenAddr)
	if err != nil {
		return fmt.Errorf("listening on control address: %w", err)
	}
	controlServer := &http.Server{Handler: controlMux}
	g.Go(func() error {
		logger.Infof("Starting control http server on %v", ln.Addr())
		if err := controlServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return controlServer.Shutdown(shutdownCtx)
	})

	worker := origin.Worker(workerSigner.PublicKey())
	logger.WithGlobal(zap.Stringer("worker", worker))
	logger.Infow("loaded worker key", "pubkey", hex.EncodeToString(workerSigner.PublicKey()))

	queue := sendqueue.New()
	dispatcher := dispatch.New()

	logger.Infof("Connecting to redis at %v", cfg.Redis.Addrs)
	acks := ackdb.New(cfg.Redis)
	defer acks.Close()

	// purging depends on stored acks, so wait for redis before taking blocks.
	// The worker's sequence continues where the chain last acknowledged it.
	var resumeAt uint64
	pingCtx, pingCancel := context.WithTimeout(ctx, time.Minute)
	if err := util.RetryWithBackoff(pingCtx, func() (err error) {
		resumeAt, err = acks.Get(pingCtx, worker)
		return err
	}, cfg.Redis.MinSleepDuration, cfg.Redis.MaxSleepDuration); err != nil {
		logger.Fatalf("failed to reach ackdb : %v", err)
	}
	pingCancel()
	if resumeAt > 0 && queue.Resume(worker, resumeAt) {
		logger.Infow("resuming worker sequence", "next", resumeAt)
	}

	limiters := rate.New(cfg)
	defer limiters.Close()

	feed := chain.NewFeed()
	processor := chain.NewProcessor(queue, dispatcher, acks, limiters.Submit, feed,
		&handler.Heartbeat{
			ChallengePath: message.Path(cfg.Worker.HeartbeatChallengePath),
			ResponsePath:  message.Path(cfg.Worker.HeartbeatResponsePath),
			Worker:        worker,
			Signer:        workerSigner,
		})
	chainClient := chain.NewClient(cfg.Chain, processor)
	g.Go(func() error { return chainClient.Run(ctx) })

	// control endpoints
	control := func(name string, h http.Handler) {
		controlMux.Handle("/control/"+name, middleware.Instrument(name, middleware.AuthCheck(authenticator, middleware.RateLimit(limiters.Control, h))))
	}
	control("loglevel", handlers.NewSetLogLevel(cfg))
	control("queue", handlers.NewQueue(queue, acks))
	control("feed", handlers.NewFeed(&cfg.Feed, feed))

	// Everything's wired up, start checking liveness and readiness.
	g.Go(func() error { return healthChecks(ctx, acks, chainClient, live, ready, cfg) })

	sigtermC := make(chan os.Signal, 1)
	signal.Notify(sigtermC, os.Signal(syscall.SIGTERM))
	g.Go(func() error {
		defer signal.Stop(sigtermC)
		select {
		case <-sigtermC:
			logger.Errorf("Received SIGTERM, gracefully shutting down")
			ready.Set(errors.New("shutting down"))
			if n := queue.Len(); n > 0 {
				logger.Warnw("exiting with unacknowledged messages", "buffered", n)
			}
			return errors.New("SIGTERM")
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	return g.Wait()
}

func signerFromConfig(cfg config.WorkerConfig) (*signer.Signer, error) {
	if cfg.SigningSeed == "" {
		logger.Warnf("no worker signing seed configured, generating an ephemeral key")
		return signer.Generate(nil)
	}
	seed, err := hex.DecodeString(cfg.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("decoding signing seed: %w", err)
	}
	return signer.FromSeed(seed)
}

func wrapErr(in string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", in, err)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type connection interface {
	Connected() bool
}

func healthChecks(ctx context.Context, acks pinger, chainClient connection, live, ready *health.Health, cfg *config.Config) error {
	ticker := time.NewTicker(cfg.LocalLivenessCheckPeriod)
	defer ticker.Stop()
	logger.Infof("Starting initial liveness check")
	err := livenessCheck(ctx, acks, cfg)
	live.Set(err)
	ready.Set(readinessCheck(chainClient))
	logger.Infof("Starting liveness check loop, initial liveness check: %v", err)
	for {
		select {
		case <-ctx.Done():
			live.Set(wrapErr("livenessChecks context", ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			live.Set(livenessCheck(ctx, acks, cfg))
			ready.Set(readinessCheck(chainClient))
		}
	}
}

func livenessCheck(ctx context.Context, acks pinger, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.LocalLivenessCheckTimeout)
	defer cancel()
	return wrapErr("ackdb ping", acks.Ping(ctx))
}

func readinessCheck(chainClient connection) error {
	if !chainClient.Connected() {
		return errChainDisconnected
	}
	return nil
}
