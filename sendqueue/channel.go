// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package sendqueue

import (
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
)

// Channel sends messages from a single origin with a single signer
type Channel struct {
	queue  *Queue
	origin origin.Origin
	signer message.Signer
}

func (c *Channel) Origin() origin.Origin { return c.origin }

// Send signs payload for destination and appends it to the queue
func (c *Channel) Send(payload []byte, destination message.Path) {
	c.SendMessage(payload, destination)
}

// SendMessage is Send, returning the buffered message
func (c *Channel) SendMessage(payload []byte, destination message.Path) message.SignedMessage {
	return c.queue.enqueue(c.origin, c.signer, message.New(c.origin, destination, payload))
}
