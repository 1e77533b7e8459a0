// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package handler

import (
	"errors"
	"fmt"

	metrics "github.com/hashicorp/go-metrics"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vabaly/phala-blockchain/block"
	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/sendqueue"
)

var heartbeatCounterName = []string{"handler", "heartbeat"}

// Heartbeat answers liveness challenges. Every challenge dispatched to the
// challenge path by a pallet is answered with a message from the worker
// origin to the response path.
type Heartbeat struct {
	ChallengePath message.Path
	ResponsePath  message.Path
	Worker        origin.Origin
	Signer        message.Signer

	challenges *dispatch.Receiver
	responses  *sendqueue.Channel
}

var _ Handler = (*Heartbeat)(nil)

func (h *Heartbeat) Init(queue *sendqueue.Queue, dispatcher *dispatch.Dispatcher) {
	h.challenges = dispatcher.Subscribe(h.ChallengePath)
	h.responses = queue.Channel(h.Worker, h.Signer)
}

func (h *Heartbeat) Process(info *block.Info) error {
	if h.challenges == nil {
		return errors.New("heartbeat handler used before Init")
	}
	var index uint64
	for challenge := range h.challenges.Drain() {
		if challenge.Sender.Kind() != origin.KindPallet {
			logger.Warnw("ignoring heartbeat challenge", "sender", challenge.Sender, "block", info.Number())
			metrics.IncrCounterWithLabels(heartbeatCounterName, 1, []metrics.Label{{Name: "result", Value: "ignored"}})
			continue
		}
		h.responses.Send(EncodeHeartbeatResponse(info.Number(), index, challenge.Payload), h.ResponsePath)
		metrics.IncrCounterWithLabels(heartbeatCounterName, 1, []metrics.Label{{Name: "result", Value: "answered"}})
		index++
	}
	return nil
}

// HeartbeatResponse is the payload of a heartbeat response:
// { 1: block number, 2: index of the challenge within the block, 3: challenge payload }
type HeartbeatResponse struct {
	BlockNumber uint32
	Index       uint64
	Challenge   []byte
}

func EncodeHeartbeatResponse(blockNumber uint32, index uint64, challenge []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(blockNumber))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, index)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	return protowire.AppendBytes(b, challenge)
}

func DecodeHeartbeatResponse(b []byte) (HeartbeatResponse, error) {
	var r HeartbeatResponse
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, fmt.Errorf("heartbeat response: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.BlockNumber = uint32(v)
		case num == 2 && typ == protowire.VarintType:
			r.Index, n = protowire.ConsumeVarint(b)
		case num == 3 && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			r.Challenge = append([]byte(nil), v...)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return r, fmt.Errorf("heartbeat response field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return r, nil
}
