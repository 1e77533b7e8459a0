// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package dispatch

import (
	"iter"
	"sync"

	"github.com/vabaly/phala-blockchain/message"
)

// Receiver buffers the messages dispatched to one subscription
type Receiver struct {
	dispatcher *Dispatcher
	path       message.Path

	mu      sync.Mutex
	pending []message.Message
}

func (r *Receiver) Path() message.Path { return r.path }

// Pending returns the number of buffered messages
func (r *Receiver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close unsubscribes r from its dispatcher
func (r *Receiver) Close() {
	r.dispatcher.Unsubscribe(r)
}

// Drain returns a sequence that removes and yields, oldest first, the
// messages buffered at the time Drain was called. Messages dispatched after
// the call are left for the next Drain. If iteration stops early the
// unyielded messages stay buffered.
func (r *Receiver) Drain() iter.Seq[message.Message] {
	remaining := r.Pending()
	return func(yield func(message.Message) bool) {
		for remaining > 0 {
			msg, ok := r.pop()
			if !ok {
				return
			}
			remaining--
			if !yield(msg) {
				return
			}
		}
	}
}

func (r *Receiver) push(msg message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, msg)
}

func (r *Receiver) pop() (message.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return message.Message{}, false
	}
	msg := r.pending[0]
	r.pending[0] = message.Message{}
	r.pending = r.pending[1:]
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return msg, true
}

func (r *Receiver) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}
