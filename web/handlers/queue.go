// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package handlers

import (
	"net/http"

	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/sendqueue"
)

// QueueStatus is the body of a GET /control/queue response
type QueueStatus struct {
	Buffered int            `json:"buffered"`
	Origins  []OriginStatus `json:"origins"`
	AckError string         `json:"ackError,omitempty"`
}

// OriginStatus describes one origin's channel in the send queue
type OriginStatus struct {
	Origin       string  `json:"origin"`
	Key          string  `json:"key"`
	NextSequence uint64  `json:"nextSequence"`
	Buffered     int     `json:"buffered"`
	First        *uint64 `json:"first,omitempty"`
	Last         *uint64 `json:"last,omitempty"`
	Acked        *uint64 `json:"acked,omitempty"`
}

// NewQueue returns a handler that reports the buffered state of every
// origin in queue, along with the sequence the chain has acknowledged.
func NewQueue(queue *sendqueue.Queue, acks AckLookup) http.Handler {
	return &queueHandler{queue: queue, acks: acks}
}

type queueHandler struct {
	queue *sendqueue.Queue
	acks  AckLookup
}

func (q *queueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	origins := q.queue.Origins()
	status := QueueStatus{Origins: make([]OriginStatus, 0, len(origins))}

	acked, err := q.acks.Thresholds(r.Context(), origins)
	if err != nil {
		logger.Warnw("failed to read acks for queue status", "err", err)
		status.AckError = err.Error()
	}

	for _, o := range origins {
		msgs := q.queue.Messages(o)
		s := OriginStatus{
			Origin:       o.String(),
			Key:          o.Key(),
			NextSequence: q.queue.NextSequence(o),
			Buffered:     len(msgs),
		}
		if len(msgs) > 0 {
			first, last := msgs[0].Sequence, msgs[len(msgs)-1].Sequence
			s.First, s.Last = &first, &last
		}
		if a, ok := acked[o]; ok {
			s.Acked = &a
		}
		status.Buffered += len(msgs)
		status.Origins = append(status.Origins, s)
	}
	writeJSON(w, status)
}
