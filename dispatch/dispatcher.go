// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package dispatch fans inbound messages out to the receivers subscribed to
// their destination path.
package dispatch

import (
	"sync"

	"github.com/vabaly/phala-blockchain/message"
)

// Dispatcher routes messages to receivers by exact destination path.
// Receivers subscribed to the same path receive messages in subscription
// order, so replaying the same input yields the same deliveries.
type Dispatcher struct {
	// guards subscribers; held for the whole of a Dispatch so deliveries
	// never interleave with a Subscribe or Unsubscribe
	mu          sync.RWMutex
	subscribers map[message.Path][]*Receiver

	metrics *dispatchMetrics
}

func New() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[message.Path][]*Receiver),
		metrics:     newDispatchMetrics(),
	}
}

// Subscribe registers a new receiver for messages sent to path. Every call
// creates an independent receiver.
func (d *Dispatcher) Subscribe(path message.Path) *Receiver {
	r := &Receiver{dispatcher: d, path: path}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[path] = append(d.subscribers[path], r)
	return r
}

// Unsubscribe removes r. Messages already buffered on r remain drainable.
func (d *Dispatcher) Unsubscribe(r *Receiver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.subscribers[r.path]
	for i, s := range subs {
		if s != r {
			continue
		}
		// preserve registration order of the rest
		remaining := append(subs[:i:i], subs[i+1:]...)
		if len(remaining) == 0 {
			delete(d.subscribers, r.path)
		} else {
			d.subscribers[r.path] = remaining
		}
		return
	}
}

// Dispatch delivers msg to every receiver subscribed to msg.Destination and
// returns the number of receivers it was delivered to. Messages nobody is
// subscribed to are dropped.
func (d *Dispatcher) Dispatch(msg message.Message) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.subscribers[msg.Destination]
	for _, r := range subs {
		r.push(msg)
	}
	d.metrics.dispatched(len(subs))
	return len(subs)
}

// Subscribers returns the number of receivers currently subscribed to path
func (d *Dispatcher) Subscribers(path message.Path) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[path])
}

// Reset drops every buffered message on every subscribed receiver.
// Subscriptions are kept.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, subs := range d.subscribers {
		for _, r := range subs {
			r.clear()
		}
	}
}
