// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package servicetest provides helpers for tests that run a full service
package servicetest

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/config"
)

func RetryFun[T any](timeout time.Duration, fun func() (T, error)) (T, error) {
	timech := time.After(timeout)
	var err error
	var res T
	for {
		select {
		case <-timech:
			return res, fmt.Errorf("timeout: %w", err)
		default:
			if res, err = fun(); err == nil {
				return res, nil
			}
			time.Sleep(min(time.Second, timeout/10))
		}
	}
}

func WaitFor200(timeout time.Duration, url string) error {
	_, err := RetryFun(timeout, func() (interface{}, error) {
		resp, err := http.Get(url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("status=%v : %s", resp.Status, body)
		}
		return nil, nil
	})
	return err
}

// Chain is a chain endpoint for tests. It accepts worker connections and
// lets the test drive them frame by frame.
type Chain struct {
	t     *testing.T
	ln    net.Listener
	conns chan *chain.Conn
}

// NewChain listens on a random local port until the test ends
func NewChain(t *testing.T) *Chain {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	c := &Chain{t: t, ln: ln, conns: make(chan *chain.Conn, 4)}
	go func() {
		for {
			sock, err := ln.Accept()
			if err != nil {
				close(c.conns)
				return
			}
			c.conns <- chain.NewConn(sock)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return c
}

// Config returns a ChainConfig that dials this endpoint
func (c *Chain) Config() config.ChainConfig {
	addr := c.ln.Addr().(*net.TCPAddr)
	return config.ChainConfig{
		Network:          "tcp",
		Host:             addr.IP.String(),
		Port:             uint32(addr.Port),
		MinSleepDuration: 10 * time.Millisecond,
		MaxSleepDuration: 100 * time.Millisecond,
	}
}

// Accept waits for the next worker connection
func (c *Chain) Accept(timeout time.Duration) *chain.Conn {
	c.t.Helper()
	select {
	case conn, ok := <-c.conns:
		if !ok {
			c.t.Fatal("chain listener closed")
		}
		c.t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(timeout):
		c.t.Fatalf("no worker connected within %v", timeout)
		return nil
	}
}

// RecvSubmit waits for the next frame on conn and requires it to be a
// submission
func RecvSubmit(t *testing.T, conn *chain.Conn, timeout time.Duration) *chain.SubmitFrame {
	t.Helper()
	type result struct {
		f   chain.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := conn.Recv()
		ch <- result{f, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("Recv: %v", r.err)
		}
		s, ok := r.f.(*chain.SubmitFrame)
		if !ok {
			t.Fatalf("Recv got %T, want *chain.SubmitFrame", r.f)
		}
		return s
	case <-time.After(timeout):
		t.Fatalf("no submission within %v", timeout)
		return nil
	}
}
