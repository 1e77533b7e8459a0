// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package chain

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/mdlayher/vsock"

	"github.com/vabaly/phala-blockchain/config"
)

func dial(ctx context.Context, cfg config.ChainConfig) (net.Conn, error) {
	switch cfg.Network {
	case "tcp":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10)))
	case "vsock":
		return vsock.Dial(cfg.VsockCID, cfg.Port, nil)
	default:
		return nil, fmt.Errorf("invalid chain network %q", cfg.Network)
	}
}

// Listen listens for chain connections on the endpoint described by cfg.
// For vsock, only the port is used.
func Listen(cfg config.ChainConfig) (net.Listener, error) {
	switch cfg.Network {
	case "tcp":
		return net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10)))
	case "vsock":
		return vsock.Listen(cfg.Port, nil)
	default:
		return nil, fmt.Errorf("invalid chain network %q", cfg.Network)
	}
}

// Conn is a framed connection to the chain. Sends may be called
// concurrently, Recv may not.
type Conn struct {
	wMu  sync.Mutex
	sock net.Conn
	r    *bufio.Reader
}

// Dial connects to the chain endpoint described by cfg
func Dial(ctx context.Context, cfg config.ChainConfig) (*Conn, error) {
	sock, err := dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dialing chain: %w", err)
	}
	return NewConn(sock), nil
}

// NewConn wraps an established connection
func NewConn(sock net.Conn) *Conn {
	return &Conn{sock: sock, r: bufio.NewReader(sock)}
}

func (c *Conn) Send(f Frame) error {
	c.wMu.Lock()
	defer c.wMu.Unlock()
	if err := writeFramed(c.sock, f); err != nil {
		return fmt.Errorf("writing %T: %w", f, err)
	}
	return nil
}

// Submit sends f; it satisfies Submitter
func (c *Conn) Submit(_ context.Context, f *SubmitFrame) error {
	return c.Send(f)
}

// Recv blocks until the next frame arrives
func (c *Conn) Recv() (Frame, error) {
	return readFramed(c.r)
}

func (c *Conn) RemoteAddr() net.Addr { return c.sock.RemoteAddr() }

func (c *Conn) Close() error {
	return c.sock.Close()
}
