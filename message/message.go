// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package message defines the values carried by the message bus: topic
// paths, messages, and signed messages, along with their canonical
// encodings.
package message

import (
	"strconv"

	"github.com/vabaly/phala-blockchain/origin"
)

// Path names a message destination. Paths are opaque byte strings of any
// length and are matched by exact equality.
type Path string

// PathOf copies b into a Path
func PathOf(b []byte) Path { return Path(b) }

func (p Path) Bytes() []byte { return []byte(p) }

func (p Path) String() string { return strconv.Quote(string(p)) }

// Message is an unsigned message from Sender to Destination. Messages are
// immutable once constructed; Payload must not be modified by holders.
type Message struct {
	Sender      origin.Origin
	Destination Path
	Payload     []byte
}

// New builds a Message, copying payload
func New(sender origin.Origin, destination Path, payload []byte) Message {
	return Message{
		Sender:      sender,
		Destination: destination,
		Payload:     append([]byte(nil), payload...),
	}
}

// SignedMessage is a Message with the sequence number assigned by its
// sender's send queue and a signature over SigningBytes.
type SignedMessage struct {
	Message   Message
	Sequence  uint64
	Signature []byte
}

// Signer produces a signature over a byte string. Signers are assumed to be
// total: a signer that cannot sign must not be handed to a send queue.
type Signer interface {
	Sign(data []byte) []byte
}

// SignerFunc adapts a function to a Signer
type SignerFunc func(data []byte) []byte

func (f SignerFunc) Sign(data []byte) []byte { return f(data) }
