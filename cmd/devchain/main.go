// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Binary devchain is a local stand-in for the chain. It produces blocks
// carrying heartbeat challenges, verifies worker submissions and
// acknowledges them. With --redis_addr it also runs an in-memory redis for
// the worker's ack store and rate limits.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zapcore"

	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
)

var (
	network        = flag.String("network", "tcp", "One of 'tcp' or 'vsock'")
	host           = flag.String("host", "localhost", "Host to listen on for tcp")
	port           = flag.Uint("port", 9944, "Port to listen on")
	redisAddr      = flag.String("redis_addr", "localhost:6379", "MiniRedis bind address, empty to disable")
	interval       = flag.Duration("interval", 6*time.Second, "Time between blocks")
	challengeEvery = flag.Uint("challenge_every", 1, "Send a heartbeat challenge every N blocks")
	verbose        = flag.Bool("verbose", false, "Log every block and submission")
	pallet         = flag.String("pallet", "phala/mining", "Pallet name heartbeat challenges are sent from")
	challengePath  = flag.String("challenge_path", config.Default().Worker.HeartbeatChallengePath, "Path heartbeat challenges are sent to")
)

func main() {
	flag.Parse()
	cfg := config.Default()
	if !*verbose {
		cfg.Log.Level.SetLevel(zapcore.InfoLevel)
	}
	if err := logger.Init(cfg); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *redisAddr != "" {
		r := miniredis.NewMiniRedis()
		if err := r.StartAddr(*redisAddr); err != nil {
			logger.Fatalf("starting miniredis: %v", err)
		}
		defer r.Close()
		logger.Infow("started miniredis", "addr", r.Addr())
	}

	ln, err := chain.Listen(config.ChainConfig{Network: *network, Host: *host, Port: uint32(*port)})
	if err != nil {
		logger.Fatalf("listening: %v", err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	logger.Infow("devchain listening", "addr", ln.Addr())

	sim := newSimulator(origin.Pallet([]byte(*pallet)), message.Path(*challengePath), *interval, uint32(*challengeEvery))
	for {
		sock, err := ln.Accept()
		if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			return
		} else if err != nil {
			logger.Fatalf("accept: %v", err)
		}
		// one worker at a time, a new worker picks up at the next block
		logger.Infow("worker connected", "addr", sock.RemoteAddr())
		err = sim.serve(ctx, chain.NewConn(sock))
		accepted, rejected := sim.counts()
		logger.Infow("worker disconnected", "err", err, "accepted", accepted, "rejected", rejected)
	}
}
