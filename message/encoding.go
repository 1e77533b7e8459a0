// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package message

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vabaly/phala-blockchain/origin"
)

/*
 * Messages are encoded as protobuf wire format with a fixed field order so
 * the encoding is canonical:
 *
 *   Message       { 1: sender (bytes), 2: destination (bytes), 3: payload (bytes) }
 *   SignedMessage { 1: sender, 2: destination, 3: payload, 4: sequence (varint), 5: signature (bytes) }
 *
 * Empty destination and payload fields are still written.
 */

const (
	senderField      protowire.Number = 1
	destinationField protowire.Number = 2
	payloadField     protowire.Number = 3
	sequenceField    protowire.Number = 4
	signatureField   protowire.Number = 5
)

var ErrMalformed = errors.New("malformed message")

// AppendBinary appends the canonical encoding of m to b
func (m Message) AppendBinary(b []byte) []byte {
	b = protowire.AppendTag(b, senderField, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Sender.AppendBinary(nil))
	b = protowire.AppendTag(b, destinationField, protowire.BytesType)
	b = protowire.AppendString(b, string(m.Destination))
	b = protowire.AppendTag(b, payloadField, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Payload)
	return b
}

// Encode returns the canonical encoding of m
func (m Message) Encode() []byte { return m.AppendBinary(nil) }

// SigningBytes returns the bytes a signer signs for message m sent at
// sequence seq.
func SigningBytes(m Message, seq uint64) []byte {
	b := m.AppendBinary(nil)
	b = protowire.AppendTag(b, sequenceField, protowire.VarintType)
	return protowire.AppendVarint(b, seq)
}

// AppendBinary appends the encoding of s to b. The output is the message
// encoding followed by the sequence and signature fields.
func (s SignedMessage) AppendBinary(b []byte) []byte {
	b = s.Message.AppendBinary(b)
	b = protowire.AppendTag(b, sequenceField, protowire.VarintType)
	b = protowire.AppendVarint(b, s.Sequence)
	b = protowire.AppendTag(b, signatureField, protowire.BytesType)
	return protowire.AppendBytes(b, s.Signature)
}

func (s SignedMessage) Encode() []byte { return s.AppendBinary(nil) }

// SigningBytes returns the bytes s.Signature was computed over
func (s SignedMessage) SigningBytes() []byte { return SigningBytes(s.Message, s.Sequence) }

type fields struct {
	sender, destination, payload, signature []byte
	sequence                                uint64
	seen                                    map[protowire.Number]bool
}

func parse(b []byte) (*fields, error) {
	f := &fields{seen: make(map[protowire.Number]bool, 5)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if f.seen[num] {
			return nil, fmt.Errorf("%w: duplicate field %d", ErrMalformed, num)
		}
		f.seen[num] = true
		switch {
		case num == senderField && typ == protowire.BytesType:
			f.sender, n = protowire.ConsumeBytes(b)
		case num == destinationField && typ == protowire.BytesType:
			f.destination, n = protowire.ConsumeBytes(b)
		case num == payloadField && typ == protowire.BytesType:
			f.payload, n = protowire.ConsumeBytes(b)
		case num == sequenceField && typ == protowire.VarintType:
			f.sequence, n = protowire.ConsumeVarint(b)
		case num == signatureField && typ == protowire.BytesType:
			f.signature, n = protowire.ConsumeBytes(b)
		default:
			return nil, fmt.Errorf("%w: unexpected field %d (type %d)", ErrMalformed, num, typ)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return f, nil
}

func (f *fields) message() (Message, error) {
	if !f.seen[senderField] || !f.seen[destinationField] {
		return Message{}, fmt.Errorf("%w: missing sender or destination", ErrMalformed)
	}
	sender, err := origin.Parse(f.sender)
	if err != nil {
		return Message{}, fmt.Errorf("%w: sender: %v", ErrMalformed, err)
	}
	return New(sender, PathOf(f.destination), f.payload), nil
}

// Decode parses a Message. Inputs carrying SignedMessage-only fields are
// rejected.
func Decode(b []byte) (Message, error) {
	f, err := parse(b)
	if err != nil {
		return Message{}, err
	}
	if f.seen[sequenceField] || f.seen[signatureField] {
		return Message{}, fmt.Errorf("%w: unexpected signed message fields", ErrMalformed)
	}
	return f.message()
}

// DecodeSigned parses a SignedMessage
func DecodeSigned(b []byte) (SignedMessage, error) {
	f, err := parse(b)
	if err != nil {
		return SignedMessage{}, err
	}
	if !f.seen[sequenceField] {
		return SignedMessage{}, fmt.Errorf("%w: missing sequence", ErrMalformed)
	}
	m, err := f.message()
	if err != nil {
		return SignedMessage{}, err
	}
	return SignedMessage{
		Message:   m,
		Sequence:  f.sequence,
		Signature: append([]byte(nil), f.signature...),
	}, nil
}
