// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package chain

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/storage"
)

/*
 * Frames exchanged with the chain are protobuf wire encoded and wrapped in an
 * envelope with exactly one populated field:
 *
 *   Envelope    { 1: BlockFrame, 2: AckFrame, 3: SubmitFrame }
 *   BlockFrame  { 1: number, 2: now_ms, 3: repeated Change, 4: repeated message }
 *   Change      { 1: key, 2: value, 3: deleted }
 *   AckFrame    { 1: origin, 2: next_sequence }
 *   SubmitFrame { 1: block_number, 2: repeated signed message }
 *
 * Messages are carried in their canonical encodings (see package message).
 * Unknown fields are skipped.
 */

var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one of *BlockFrame, *AckFrame or *SubmitFrame
type Frame interface {
	appendEnvelope(b []byte) []byte
}

// BlockFrame carries the result of executing one block: storage changes and
// the inbound messages to dispatch, still encoded.
type BlockFrame struct {
	Number   uint32
	NowMs    uint64
	Changes  []storage.Change
	Messages [][]byte
}

// AckFrame reports that the chain has accepted every message from Origin
// with sequence below NextSequence.
type AckFrame struct {
	Origin       origin.Origin
	NextSequence uint64
}

// SubmitFrame carries signed messages to the chain
type SubmitFrame struct {
	BlockNumber uint32
	Messages    []message.SignedMessage
}

const (
	envelopeBlock  protowire.Number = 1
	envelopeAck    protowire.Number = 2
	envelopeSubmit protowire.Number = 3
)

// EncodeFrame returns the envelope encoding of f
func EncodeFrame(f Frame) []byte {
	return f.appendEnvelope(nil)
}

func appendSub(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (f *BlockFrame) appendEnvelope(b []byte) []byte {
	var body []byte
	body = appendVarint(body, 1, uint64(f.Number))
	body = appendVarint(body, 2, f.NowMs)
	for _, c := range f.Changes {
		var cb []byte
		cb = appendSub(cb, 1, c.Key)
		if c.Deleted {
			cb = appendVarint(cb, 3, 1)
		} else {
			cb = appendSub(cb, 2, c.Value)
		}
		body = appendSub(body, 3, cb)
	}
	for _, m := range f.Messages {
		body = appendSub(body, 4, m)
	}
	return appendSub(b, envelopeBlock, body)
}

func (f *AckFrame) appendEnvelope(b []byte) []byte {
	var body []byte
	body = appendSub(body, 1, f.Origin.AppendBinary(nil))
	body = appendVarint(body, 2, f.NextSequence)
	return appendSub(b, envelopeAck, body)
}

func (f *SubmitFrame) appendEnvelope(b []byte) []byte {
	var body []byte
	body = appendVarint(body, 1, uint64(f.BlockNumber))
	for _, m := range f.Messages {
		body = appendSub(body, 2, m.AppendBinary(nil))
	}
	return appendSub(b, envelopeSubmit, body)
}

// fieldFunc consumes the value of one field from b, returning the number of
// bytes consumed, or -1 to skip the field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeBytes(b []byte, dst *[]byte) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
	}
	*dst = append([]byte(nil), v...)
	return n, nil
}

func consumeVarint(b []byte, dst *uint64) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

// DecodeFrame parses an envelope
func DecodeFrame(b []byte) (Frame, error) {
	var (
		f    Frame
		body []byte
	)
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || num < envelopeBlock || num > envelopeSubmit {
			return -1, nil
		}
		if f != nil {
			return 0, fmt.Errorf("%w: multiple frames in envelope", ErrMalformedFrame)
		}
		n, err := consumeBytes(b, &body)
		if err != nil {
			return 0, err
		}
		switch num {
		case envelopeBlock:
			f, err = decodeBlock(body)
		case envelopeAck:
			f, err = decodeAck(body)
		case envelopeSubmit:
			f, err = decodeSubmit(body)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrMalformedFrame)
	}
	return f, nil
}

func decodeBlock(b []byte) (*BlockFrame, error) {
	f := &BlockFrame{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			v   uint64
			bs  []byte
			n   int
			err error
		)
		switch {
		case num == 1 && typ == protowire.VarintType:
			n, err = consumeVarint(b, &v)
			if v > 0xffffffff {
				return 0, fmt.Errorf("%w: block number %d out of range", ErrMalformedFrame, v)
			}
			f.Number = uint32(v)
		case num == 2 && typ == protowire.VarintType:
			n, err = consumeVarint(b, &f.NowMs)
		case num == 3 && typ == protowire.BytesType:
			if n, err = consumeBytes(b, &bs); err == nil {
				var c storage.Change
				c, err = decodeChange(bs)
				f.Changes = append(f.Changes, c)
			}
		case num == 4 && typ == protowire.BytesType:
			if n, err = consumeBytes(b, &bs); err == nil {
				f.Messages = append(f.Messages, bs)
			}
		default:
			return -1, nil
		}
		return n, err
	})
	return f, err
}

func decodeChange(b []byte) (storage.Change, error) {
	var c storage.Change
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeBytes(b, &c.Key)
		case num == 2 && typ == protowire.BytesType:
			return consumeBytes(b, &c.Value)
		case num == 3 && typ == protowire.VarintType:
			var v uint64
			n, err := consumeVarint(b, &v)
			c.Deleted = v != 0
			return n, err
		}
		return -1, nil
	})
	return c, err
}

func decodeAck(b []byte) (*AckFrame, error) {
	f := &AckFrame{}
	var sawOrigin bool
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			var bs []byte
			n, err := consumeBytes(b, &bs)
			if err != nil {
				return 0, err
			}
			if f.Origin, err = origin.Parse(bs); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			sawOrigin = true
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			return consumeVarint(b, &f.NextSequence)
		}
		return -1, nil
	})
	if err == nil && !sawOrigin {
		err = fmt.Errorf("%w: ack without origin", ErrMalformedFrame)
	}
	return f, err
}

func decodeSubmit(b []byte) (*SubmitFrame, error) {
	f := &SubmitFrame{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			var v uint64
			n, err := consumeVarint(b, &v)
			if v > 0xffffffff {
				return 0, fmt.Errorf("%w: block number %d out of range", ErrMalformedFrame, v)
			}
			f.BlockNumber = uint32(v)
			return n, err
		case num == 2 && typ == protowire.BytesType:
			var bs []byte
			n, err := consumeBytes(b, &bs)
			if err != nil {
				return 0, err
			}
			m, err := message.DecodeSigned(bs)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			f.Messages = append(f.Messages, m)
			return n, nil
		}
		return -1, nil
	})
	return f, err
}
