// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package sendqueue buffers outbound signed messages, assigning each sender
// a gap-free sequence of message numbers.
package sendqueue

import (
	"sync"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
)

var (
	sendCounter   = []string{"sendqueue", "send"}
	purgedCounter = []string{"sendqueue", "purged"}
	bufferedGauge = []string{"sendqueue", "buffered"}
)

type metricsWriter interface {
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
	SetGauge(key []string, val float32)
}

// entry is the sequence counter and buffer of one origin. It is only
// accessed with Queue.mu held.
type entry struct {
	next     uint64
	buffered []message.SignedMessage
}

// Queue holds the outbound messages of every origin in the process until
// they are purged. A Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries map[origin.Origin]*entry
	// origins in the order they were first seen
	order []origin.Origin
	total int

	writer metricsWriter
}

func New() *Queue {
	return &Queue{
		entries: make(map[origin.Origin]*entry),
		writer:  metrics.Default(),
	}
}

// Channel returns a handle for sending messages from o, signed by signer.
// All channels for the same origin share one sequence counter.
func (q *Queue) Channel(o origin.Origin, signer message.Signer) *Channel {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entryLocked(o)
	return &Channel{queue: q, origin: o, signer: signer}
}

func (q *Queue) entryLocked(o origin.Origin) *entry {
	e, ok := q.entries[o]
	if !ok {
		e = &entry{}
		q.entries[o] = e
		q.order = append(q.order, o)
	}
	return e
}

// enqueue assigns the next sequence for o, signs, and appends in one
// critical section so concurrent channels can't reorder or duplicate
// sequence numbers.
func (q *Queue) enqueue(o origin.Origin, signer message.Signer, m message.Message) message.SignedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.entryLocked(o)
	seq := e.next
	e.next++
	signed := message.SignedMessage{
		Message:   m,
		Sequence:  seq,
		Signature: signer.Sign(message.SigningBytes(m, seq)),
	}
	e.buffered = append(e.buffered, signed)
	q.total++
	q.writer.IncrCounterWithLabels(sendCounter, 1, []metrics.Label{{Name: "kind", Value: o.Kind().String()}})
	q.writer.SetGauge(bufferedGauge, float32(q.total))
	return signed
}

// Messages returns a copy of the buffered messages for o in ascending
// sequence order.
func (q *Queue) Messages(o origin.Origin) []message.SignedMessage {
	return q.MessagesSince(o, 0)
}

// MessagesSince returns a copy of the buffered messages for o with sequence
// at least seq.
func (q *Queue) MessagesSince(o origin.Origin, seq uint64) []message.SignedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[o]
	if !ok {
		return nil
	}
	return append([]message.SignedMessage(nil), e.buffered[firstAtLeast(e.buffered, seq):]...)
}

// AllMessages returns a copy of every buffered message, grouped by origin in
// the order origins were first seen.
func (q *Queue) AllMessages() []message.SignedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]message.SignedMessage, 0, q.total)
	for _, o := range q.order {
		out = append(out, q.entries[o].buffered...)
	}
	return out
}

// Purge drops every buffered message whose sequence is below threshold(o)
// for its origin o. threshold is called once for each origin that has
// buffered messages, without the queue locked, so it may read the queue.
// Sequence counters are not affected.
func (q *Queue) Purge(threshold func(origin.Origin) uint64) {
	thresholds := make(map[origin.Origin]uint64)
	for _, o := range q.bufferedOrigins() {
		thresholds[o] = threshold(o)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	purged := 0
	for _, o := range q.order {
		th, ok := thresholds[o]
		if !ok {
			continue
		}
		e := q.entries[o]
		n := firstAtLeast(e.buffered, th)
		if n == 0 {
			continue
		}
		// copy survivors so the dropped prefix can be collected
		e.buffered = append([]message.SignedMessage(nil), e.buffered[n:]...)
		purged += n
	}
	if purged > 0 {
		q.total -= purged
		q.writer.IncrCounterWithLabels(purgedCounter, float32(purged), nil)
		q.writer.SetGauge(bufferedGauge, float32(q.total))
	}
}

func (q *Queue) bufferedOrigins() []origin.Origin {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []origin.Origin
	for _, o := range q.order {
		if len(q.entries[o].buffered) > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Resume starts o's sequence counter at next, continuing a sequence an
// earlier run of this worker left off at. It only applies while o has
// sent nothing, and reports whether the counter was set.
func (q *Queue) Resume(o origin.Origin, next uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.entryLocked(o)
	if e.next != 0 {
		return false
	}
	e.next = next
	return true
}

// NextSequence returns the sequence number the next message from o will be
// assigned.
func (q *Queue) NextSequence(o origin.Origin) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[o]; ok {
		return e.next
	}
	return 0
}

// Origins returns every origin the queue has seen, in first-seen order
func (q *Queue) Origins() []origin.Origin {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]origin.Origin(nil), q.order...)
}

// Len returns the number of buffered messages across all origins
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// firstAtLeast returns the index of the first message in buffered with
// sequence >= seq. Buffers are contiguous runs of sequence numbers.
func firstAtLeast(buffered []message.SignedMessage, seq uint64) int {
	if len(buffered) == 0 {
		return 0
	}
	first := buffered[0].Sequence
	switch {
	case seq <= first:
		return 0
	case seq-first >= uint64(len(buffered)):
		return len(buffered)
	default:
		return int(seq - first)
	}
}
