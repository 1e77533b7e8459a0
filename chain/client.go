// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/util"
)

// Client keeps a connection to the chain and feeds it to a Processor,
// reconnecting with backoff whenever the connection fails.
type Client struct {
	cfg       config.ChainConfig
	processor *Processor
	connected atomic.Bool
	log       *logger.Logger
}

func NewClient(cfg config.ChainConfig, processor *Processor) *Client {
	return &Client{cfg: cfg, processor: processor, log: logger.Named("chain")}
}

// Connected reports whether a chain connection is currently established
func (c *Client) Connected() bool { return c.connected.Load() }

// Run processes frames until ctx is cancelled or processing fails with an
// error that reconnecting cannot fix.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := util.RetrySupplierWithBackoff(ctx, func() (*Conn, error) {
			conn, err := Dial(ctx, c.cfg)
			if err != nil {
				c.log.Infow("failed to connect to chain", "network", c.cfg.Network, "err", err)
			}
			return conn, err
		}, c.cfg.MinSleepDuration, c.cfg.MaxSleepDuration)
		if err != nil {
			return err
		}
		c.log.Infow("connected to chain", "addr", conn.RemoteAddr())
		c.connected.Store(true)
		err = c.processor.Serve(ctx, conn)
		c.connected.Store(false)
		conn.Close()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case isConnErr(err):
			c.log.Warnw("chain connection lost, reconnecting", "err", err)
		default:
			return err
		}
	}
}

// Serve processes frames from a single connection until it fails
func (p *Processor) Serve(ctx context.Context, conn *Conn) error {
	p.Attach(conn)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	for {
		f, err := conn.Recv()
		if err != nil {
			return connErr{err}
		}
		switch f := f.(type) {
		case *BlockFrame:
			err = p.ProcessBlock(ctx, f)
		case *AckFrame:
			err = p.HandleAck(ctx, f)
		default:
			err = fmt.Errorf("unexpected %T from chain", f)
		}
		if err != nil {
			return err
		}
	}
}

// connErr marks failures of the connection itself, after which it is safe
// to reconnect.
type connErr struct{ err error }

func (e connErr) Error() string { return fmt.Sprintf("chain connection: %v", e.err) }
func (e connErr) Unwrap() error { return e.err }

func isConnErr(err error) bool {
	var ce connErr
	var ne net.Error
	return errors.As(err, &ce) || errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
