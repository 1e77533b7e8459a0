// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package handler contains the in-process consumers of inbound messages.
package handler

import (
	"github.com/vabaly/phala-blockchain/block"
	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/sendqueue"
)

// Handler processes each block's inbound messages. Init is called once,
// before the first block, to subscribe and open send channels. Process is
// called for every block in order; an error is fatal because the worker can
// no longer reproduce the state of its peers.
type Handler interface {
	Init(queue *sendqueue.Queue, dispatcher *dispatch.Dispatcher)
	Process(info *block.Info) error
}
