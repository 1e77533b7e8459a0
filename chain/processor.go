// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package chain connects the message queues to the chain: it receives
// blocks and acknowledgements, dispatches inbound messages, runs handlers,
// and submits outbound messages.
package chain

import (
	"context"
	"errors"
	"fmt"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/block"
	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/handler"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/rate"
	"github.com/vabaly/phala-blockchain/sendqueue"
	"github.com/vabaly/phala-blockchain/storage"
)

var (
	ErrNonConsecutiveBlock = errors.New("non-consecutive block")

	blockCounterName       = []string{"chain", "block"}
	blockNumberGaugeName   = []string{"chain", "block_number"}
	decodeErrorCounterName = []string{"chain", "decode_error"}
	submittedCounterName   = []string{"chain", "submitted"}
	deferredCounterName    = []string{"chain", "submit_deferred"}
	ackCounterName         = []string{"chain", "ack"}
)

type metricsWriter interface {
	IncrCounter(key []string, val float32)
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
	SetGauge(key []string, val float32)
}

// Submitter delivers signed messages to the chain
type Submitter interface {
	Submit(ctx context.Context, f *SubmitFrame) error
}

// AckStore persists chain acknowledgements
type AckStore interface {
	Ack(ctx context.Context, o origin.Origin, nextSequence uint64) (uint64, error)
	Thresholds(ctx context.Context, origins []origin.Origin) (map[origin.Origin]uint64, error)
}

// Processor runs the per block cycle. Blocks must be processed one at a
// time, in order.
type Processor struct {
	queue      *sendqueue.Queue
	dispatcher *dispatch.Dispatcher
	handlers   []handler.Handler
	acks       AckStore
	limiter    rate.Limiter
	feed       *Feed
	writer     metricsWriter

	storage   *storage.Snapshot
	started   bool
	lastBlock uint32
	// next sequence to submit per origin
	submitted map[origin.Origin]uint64
	out       Submitter
}

// NewProcessor creates a Processor and initializes handlers in order
func NewProcessor(queue *sendqueue.Queue, dispatcher *dispatch.Dispatcher, acks AckStore, limiter rate.Limiter, feed *Feed, handlers ...handler.Handler) *Processor {
	for _, h := range handlers {
		h.Init(queue, dispatcher)
	}
	return &Processor{
		queue:      queue,
		dispatcher: dispatcher,
		handlers:   handlers,
		acks:       acks,
		limiter:    limiter,
		feed:       feed,
		writer:     metrics.Default(),
		storage:    storage.Empty(),
		submitted:  make(map[origin.Origin]uint64),
	}
}

// Attach directs submissions to out. Everything still buffered will be
// resubmitted, since a new connection may not have seen earlier
// submissions.
func (p *Processor) Attach(out Submitter) {
	p.out = out
	clear(p.submitted)
}

// LastBlock returns the number of the last processed block, and false if no
// block has been processed
func (p *Processor) LastBlock() (uint32, bool) {
	return p.lastBlock, p.started
}

// ProcessBlock runs one block: apply storage changes, dispatch inbound
// messages, run handlers, submit new outbound messages and purge
// acknowledged ones. A returned error other than a submission failure means
// local state can no longer be trusted.
func (p *Processor) ProcessBlock(ctx context.Context, f *BlockFrame) error {
	if p.started && f.Number != p.lastBlock+1 {
		return fmt.Errorf("%w: got %d after %d", ErrNonConsecutiveBlock, f.Number, p.lastBlock)
	}
	p.storage = p.storage.Apply(f.Changes)

	delivered := 0
	for i, raw := range f.Messages {
		m, err := message.Decode(raw)
		if err != nil {
			logger.Warnw("dropping undecodable message", "block", f.Number, "index", i, "err", err)
			p.writer.IncrCounter(decodeErrorCounterName, 1)
			continue
		}
		delivered += p.dispatcher.Dispatch(m)
	}

	info := block.New(f.Number, f.NowMs, p.storage, p.queue, p.dispatcher)
	err := p.runHandlers(info)
	info.Close()
	if err != nil {
		// the block is abandoned, its undrained deliveries with it
		p.dispatcher.Reset()
		return err
	}
	p.lastBlock, p.started = f.Number, true
	p.writer.IncrCounter(blockCounterName, 1)
	p.writer.SetGauge(blockNumberGaugeName, float32(f.Number))
	logger.Debugw("processed block", "block", f.Number, "messages", len(f.Messages), "deliveries", delivered)

	if err := p.submit(ctx, f.Number); err != nil {
		return err
	}
	p.purge(ctx)
	return nil
}

func (p *Processor) runHandlers(info *block.Info) error {
	for _, h := range p.handlers {
		if err := h.Process(info); err != nil {
			return fmt.Errorf("handler %T failed on block %d: %w", h, info.Number(), err)
		}
	}
	return nil
}

// submit sends every message not yet submitted. Origins over their rate
// limit keep their messages for a later block.
func (p *Processor) submit(ctx context.Context, blockNumber uint32) error {
	var (
		msgs     []message.SignedMessage
		next     = make(map[origin.Origin]uint64)
		deferred []origin.Origin
	)
	for _, o := range p.queue.Origins() {
		pending := p.queue.MessagesSince(o, p.submitted[o])
		if len(pending) == 0 {
			continue
		}
		if err := p.limiter.Limit(ctx, o.Key()); err != nil {
			var exceeded rate.ErrLimitExceeded
			if !errors.As(err, &exceeded) {
				logger.Warnw("failed to check submit limit", "origin", o, "err", err)
			}
			p.writer.IncrCounterWithLabels(deferredCounterName, 1, []metrics.Label{{Name: "kind", Value: o.Kind().String()}})
			deferred = append(deferred, o)
			continue
		}
		msgs = append(msgs, pending...)
		next[o] = pending[len(pending)-1].Sequence + 1
	}
	if len(msgs) == 0 {
		if len(deferred) > 0 {
			p.feed.publish(summarize(blockNumber, nil, deferred))
		}
		return nil
	}
	if p.out == nil {
		return errors.New("no chain connection attached")
	}
	if err := p.out.Submit(ctx, &SubmitFrame{BlockNumber: blockNumber, Messages: msgs}); err != nil {
		return fmt.Errorf("submitting block %d: %w", blockNumber, err)
	}
	for o, n := range next {
		p.submitted[o] = n
	}
	p.writer.IncrCounter(submittedCounterName, float32(len(msgs)))
	p.feed.publish(summarize(blockNumber, msgs, deferred))
	return nil
}

// purge drops acknowledged messages. Failures leave the queue as is; the
// next block retries.
func (p *Processor) purge(ctx context.Context) {
	origins := p.queue.Origins()
	thresholds, err := p.acks.Thresholds(ctx, origins)
	if err != nil {
		logger.Warnw("failed to fetch ack thresholds, not purging", "err", err)
		return
	}
	// an ack only covers what this connection submitted; a stored ack can
	// be ahead of anything sent since a restart
	p.queue.Purge(func(o origin.Origin) uint64 { return min(thresholds[o], p.submitted[o]) })
}

// HandleAck persists an acknowledgement from the chain
func (p *Processor) HandleAck(ctx context.Context, f *AckFrame) error {
	stored, err := p.acks.Ack(ctx, f.Origin, f.NextSequence)
	if err != nil {
		return fmt.Errorf("storing ack for %v: %w", f.Origin, err)
	}
	p.writer.IncrCounterWithLabels(ackCounterName, 1, []metrics.Label{{Name: "kind", Value: f.Origin.Kind().String()}})
	if stored > f.NextSequence {
		logger.Debugw("stale ack", "origin", f.Origin, "ack", f.NextSequence, "stored", stored)
	}
	return nil
}
