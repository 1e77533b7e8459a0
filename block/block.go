// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package block provides Info, the context handed to everything that
// processes a single block.
package block

import (
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/sendqueue"
)

// ErrClosed is the panic value when a closed Info is used
var ErrClosed = errors.New("block info used after block processing finished")

// Snapshot is an immutable key/value view of chain storage after the block
// executed.
type Snapshot interface {
	Get(key []byte) ([]byte, bool)
	Len() int
	WalkPrefix(prefix []byte) iter.Seq2[[]byte, []byte]
}

// Info binds the state of one block: its number and timestamp, a storage
// snapshot, the process wide send queue and the dispatcher. An Info is only
// valid while its block is being processed. Once Close is called every
// accessor panics, so handlers must not retain it.
type Info struct {
	number     uint32
	nowMs      uint64
	storage    Snapshot
	queue      *sendqueue.Queue
	dispatcher *dispatch.Dispatcher
	closed     atomic.Bool
}

// New creates the Info for block number.
func New(number uint32, nowMs uint64, storage Snapshot, queue *sendqueue.Queue, dispatcher *dispatch.Dispatcher) *Info {
	return &Info{
		number:     number,
		nowMs:      nowMs,
		storage:    storage,
		queue:      queue,
		dispatcher: dispatcher,
	}
}

func (b *Info) check() {
	if b.closed.Load() {
		panic(fmt.Errorf("%w (block %d)", ErrClosed, b.number))
	}
}

func (b *Info) Number() uint32 { b.check(); return b.number }

// NowMs is the block timestamp in unix milliseconds
func (b *Info) NowMs() uint64 { b.check(); return b.nowMs }

func (b *Info) Storage() Snapshot { b.check(); return b.storage }

func (b *Info) SendQueue() *sendqueue.Queue { b.check(); return b.queue }

func (b *Info) Dispatcher() *dispatch.Dispatcher { b.check(); return b.dispatcher }

// Close ends the block. It is safe to call more than once.
func (b *Info) Close() { b.closed.Store(true) }

func (b *Info) Closed() bool { return b.closed.Load() }
