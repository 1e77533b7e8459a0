// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package chain

import (
	"sync"

	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
)

// Submission summarizes the messages submitted after one block
type Submission struct {
	BlockNumber uint32            `json:"blockNumber"`
	Origins     []SubmittedOrigin `json:"origins"`
	Deferred    []string          `json:"deferred,omitempty"`
}

// SubmittedOrigin is the range of sequences submitted for one origin
type SubmittedOrigin struct {
	Origin string `json:"origin"`
	First  uint64 `json:"first"`
	Last   uint64 `json:"last"`
}

func summarize(blockNumber uint32, msgs []message.SignedMessage, deferred []origin.Origin) Submission {
	s := Submission{BlockNumber: blockNumber}
	for _, m := range msgs {
		name := m.Message.Sender.String()
		if n := len(s.Origins); n > 0 && s.Origins[n-1].Origin == name {
			s.Origins[n-1].Last = m.Sequence
			continue
		}
		s.Origins = append(s.Origins, SubmittedOrigin{Origin: name, First: m.Sequence, Last: m.Sequence})
	}
	for _, o := range deferred {
		s.Deferred = append(s.Deferred, o.String())
	}
	return s
}

// Feed fans submissions out to listeners. Listeners that fall behind are
// dropped rather than slowing block processing.
type Feed struct {
	mu        sync.Mutex
	listeners map[chan Submission]struct{}
}

func NewFeed() *Feed {
	return &Feed{listeners: make(map[chan Submission]struct{})}
}

// Listen returns a channel of submissions buffering up to size entries, and
// a function to stop listening. The channel is closed when the listener
// stops or is dropped.
func (f *Feed) Listen(size int) (<-chan Submission, func()) {
	ch := make(chan Submission, size)
	f.mu.Lock()
	f.listeners[ch] = struct{}{}
	f.mu.Unlock()
	return ch, func() { f.remove(ch) }
}

func (f *Feed) remove(ch chan Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listeners[ch]; ok {
		delete(f.listeners, ch)
		close(ch)
	}
}

func (f *Feed) publish(s Submission) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.listeners {
		select {
		case ch <- s:
		default:
			delete(f.listeners, ch)
			close(ch)
		}
	}
}
