// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package block

import (
	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/sendqueue"
	"github.com/vabaly/phala-blockchain/storage"
)

// Builder assembles an Info with its own queue, dispatcher and storage, for
// driving handlers outside of a chain connection.
type Builder struct {
	BlockNumber uint32
	NowMs       uint64
	Storage     *storage.Snapshot
	SendQueue   *sendqueue.Queue
	Dispatcher  *dispatch.Dispatcher
}

func NewBuilder() *Builder {
	return &Builder{
		Storage:    storage.Empty(),
		SendQueue:  sendqueue.New(),
		Dispatcher: dispatch.New(),
	}
}

func (b *Builder) WithNumber(n uint32) *Builder {
	b.BlockNumber = n
	return b
}

func (b *Builder) WithNowMs(ms uint64) *Builder {
	b.NowMs = ms
	return b
}

// WithStorage sets key to value in the builder's storage
func (b *Builder) WithStorage(key, value []byte) *Builder {
	b.Storage = b.Storage.Apply([]storage.Change{{Key: key, Value: value}})
	return b
}

func (b *Builder) Build() *Info {
	return New(b.BlockNumber, b.NowMs, b.Storage, b.SendQueue, b.Dispatcher)
}
