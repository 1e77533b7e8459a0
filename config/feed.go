// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"time"
)

type FeedConfig struct {
	// Timeout to perform websocket handshake over http connection
	WebsocketHandshakeTimeout time.Duration `yaml:"websocketHandshakeTimeout"`

	// Timeout for websocket write operations
	SocketTimeout time.Duration `yaml:"socketTimeout"`

	// Number of submissions buffered per subscriber before it is disconnected
	BufferSize int `yaml:"bufferSize"`
}

func (r *FeedConfig) validate() []string {
	var errs []string
	if r.WebsocketHandshakeTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("Handshake timeout %v must be >0", r.WebsocketHandshakeTimeout))
	}
	if r.SocketTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("Socket timeout %v must be >0", r.SocketTimeout))
	}
	if r.BufferSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid BufferSize: %v", r.BufferSize))
	}
	return errs
}
