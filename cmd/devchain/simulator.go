// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/signer"
	"github.com/vabaly/phala-blockchain/storage"
	"github.com/vabaly/phala-blockchain/util"
)

var timestampKey = []byte("devchain/timestamp")

// simulator produces blocks carrying heartbeat challenges and acknowledges
// the submissions it can verify. Block numbers and accepted sequences carry
// over between connections.
type simulator struct {
	pallet         origin.Origin
	challengePath  message.Path
	interval       time.Duration
	challengeEvery uint32
	clock          util.Clock
	log            *logger.Logger

	mu       sync.Mutex
	number   uint32
	expected map[origin.Origin]uint64
	accepted int
	rejected int
}

func newSimulator(pallet origin.Origin, challengePath message.Path, interval time.Duration, challengeEvery uint32) *simulator {
	return &simulator{
		pallet:         pallet,
		challengePath:  challengePath,
		interval:       interval,
		challengeEvery: max(challengeEvery, 1),
		clock:          util.RealClock,
		log:            logger.Named("devchain"),
		expected:       make(map[origin.Origin]uint64),
	}
}

func (s *simulator) nextBlock() *chain.BlockFrame {
	s.mu.Lock()
	s.number++
	n := s.number
	s.mu.Unlock()

	nowMs := util.UnixMillis(s.clock)
	f := &chain.BlockFrame{
		Number:  n,
		NowMs:   nowMs,
		Changes: []storage.Change{{Key: timestampKey, Value: []byte(strconv.FormatUint(nowMs, 10))}},
	}
	if n%s.challengeEvery == 0 {
		challenge := message.New(s.pallet, s.challengePath, fmt.Appendf(nil, "challenge-%d", n))
		f.Messages = append(f.Messages, challenge.Encode())
	}
	return f
}

var (
	errBadSignature = errors.New("bad signature")
	errSequenceGap  = errors.New("sequence gap")
)

func (s *simulator) verify(m message.SignedMessage) error {
	if m.Message.Sender.Kind() != origin.KindWorker {
		// only workers sign with their origin id as the public key
		return nil
	}
	if !signer.Verify(m.Message.Sender.ID(), m.SigningBytes(), m.Signature) {
		return errBadSignature
	}
	return nil
}

// accept checks a submission and returns the acknowledgements to send
// back. Messages already accepted are skipped; the first invalid message of
// an origin stops acceptance for that origin.
func (s *simulator) accept(sub *chain.SubmitFrame) []*chain.AckFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []origin.Origin
	failed := make(map[origin.Origin]bool)
	for _, m := range sub.Messages {
		o := m.Message.Sender
		if failed[o] {
			continue
		}
		next := s.expected[o]
		if m.Sequence < next {
			s.log.Debugw("skipping resubmitted message", "origin", o, "seq", m.Sequence)
			continue
		}
		err := s.verify(m)
		if err == nil && m.Sequence > next {
			err = fmt.Errorf("%w: got %d, want %d", errSequenceGap, m.Sequence, next)
		}
		if err != nil {
			s.log.Warnw("rejecting submitted message", "origin", o, "seq", m.Sequence, "block", sub.BlockNumber, "err", err)
			failed[o] = true
			s.rejected++
			continue
		}
		if !containsOrigin(touched, o) {
			touched = append(touched, o)
		}
		s.expected[o] = m.Sequence + 1
		s.accepted++
	}

	acks := make([]*chain.AckFrame, 0, len(touched))
	for _, o := range touched {
		acks = append(acks, &chain.AckFrame{Origin: o, NextSequence: s.expected[o]})
	}
	return acks
}

func containsOrigin(origins []origin.Origin, o origin.Origin) bool {
	for _, v := range origins {
		if v == o {
			return true
		}
	}
	return false
}

func (s *simulator) counts() (accepted, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted, s.rejected
}

// serve drives one worker connection until ctx is done or the connection
// fails
func (s *simulator) serve(ctx context.Context, conn *chain.Conn) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				f := s.nextBlock()
				if err := conn.Send(f); err != nil {
					return err
				}
				s.log.Debugw("sent block", "number", f.Number, "messages", len(f.Messages))
			}
		}
	})
	g.Go(func() error {
		for {
			f, err := conn.Recv()
			if err != nil {
				return err
			}
			sub, ok := f.(*chain.SubmitFrame)
			if !ok {
				return fmt.Errorf("unexpected %T from worker", f)
			}
			for _, ack := range s.accept(sub) {
				if err := conn.Send(ack); err != nil {
					return err
				}
				s.log.Infow("acknowledged", "origin", ack.Origin, "next", ack.NextSequence)
			}
		}
	})
	return g.Wait()
}
