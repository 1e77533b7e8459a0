// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/vabaly/phala-blockchain/ackdb"
	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/dispatch"
	"github.com/vabaly/phala-blockchain/handler"
	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/rate"
	"github.com/vabaly/phala-blockchain/sendqueue"
	"github.com/vabaly/phala-blockchain/servicetest"
	"github.com/vabaly/phala-blockchain/signer"
	"github.com/vabaly/phala-blockchain/util"
)

const challengePath = message.Path("challenge")

var ackCmp = cmp.AllowUnexported(origin.Origin{})

func signed(t *testing.T, s *signer.Signer, seq uint64) message.SignedMessage {
	t.Helper()
	m := message.New(origin.Worker(s.PublicKey()), "response", []byte("r"))
	return message.SignedMessage{Message: m, Sequence: seq, Signature: s.Sign(message.SigningBytes(m, seq))}
}

func TestNextBlock(t *testing.T) {
	sim := newSimulator(origin.Pallet([]byte("p")), challengePath, time.Second, 2)
	clock := util.NewManualClock(time.UnixMilli(1234))
	sim.clock = clock

	first := sim.nextBlock()
	clock.Advance(6 * time.Second)
	second := sim.nextBlock()
	if first.Number != 1 || second.Number != 2 {
		t.Fatalf("numbers %d, %d", first.Number, second.Number)
	}
	if first.NowMs != 1234 || string(first.Changes[0].Value) != "1234" {
		t.Errorf("unexpected timestamp in %+v", first)
	}
	if second.NowMs != 7234 {
		t.Errorf("second block at %d, want 7234", second.NowMs)
	}
	if len(first.Messages) != 0 || len(second.Messages) != 1 {
		t.Fatalf("challenges in blocks: %d, %d", len(first.Messages), len(second.Messages))
	}
	challenge, err := message.Decode(second.Messages[0])
	if err != nil {
		t.Fatal(err)
	}
	if challenge.Destination != challengePath || string(challenge.Payload) != "challenge-2" {
		t.Errorf("unexpected challenge %+v", challenge)
	}
}

func TestAccept(t *testing.T) {
	good, err := signer.Generate(nil)
	if err != nil {
		t.Fatal(err)
	}
	other, err := signer.Generate(nil)
	if err != nil {
		t.Fatal(err)
	}
	worker := origin.Worker(good.PublicKey())
	sim := newSimulator(origin.Pallet([]byte("p")), challengePath, time.Second, 1)

	acks := sim.accept(&chain.SubmitFrame{BlockNumber: 1, Messages: []message.SignedMessage{
		signed(t, good, 0), signed(t, good, 1),
	}})
	want := []*chain.AckFrame{{Origin: worker, NextSequence: 2}}
	if diff := cmp.Diff(want, acks, ackCmp); diff != "" {
		t.Errorf("acks mismatch (-want +got):\n%s", diff)
	}

	// resubmissions are skipped but still acknowledged
	bad := signed(t, good, 3)
	bad.Signature = other.Sign(bad.SigningBytes())
	acks = sim.accept(&chain.SubmitFrame{BlockNumber: 2, Messages: []message.SignedMessage{
		signed(t, good, 0), signed(t, good, 1), signed(t, good, 2), bad, signed(t, good, 4),
	}})
	want = []*chain.AckFrame{{Origin: worker, NextSequence: 3}}
	if diff := cmp.Diff(want, acks, ackCmp); diff != "" {
		t.Errorf("acks mismatch (-want +got):\n%s", diff)
	}
	if accepted, rejected := sim.counts(); accepted != 3 || rejected != 1 {
		t.Errorf("accepted=%d rejected=%d, want 3, 1", accepted, rejected)
	}

	// gaps are rejected
	sim.accept(&chain.SubmitFrame{Messages: []message.SignedMessage{signed(t, good, 5)}})
	if _, rejected := sim.counts(); rejected != 2 {
		t.Errorf("rejected=%d, want 2", rejected)
	}
}

func TestVerify(t *testing.T) {
	s, err := signer.Generate(nil)
	if err != nil {
		t.Fatal(err)
	}
	sim := newSimulator(origin.Pallet([]byte("p")), challengePath, time.Second, 1)
	m := signed(t, s, 0)
	if err := sim.verify(m); err != nil {
		t.Errorf("verify(valid) = %v", err)
	}
	m.Sequence = 1
	if err := sim.verify(m); !errors.Is(err, errBadSignature) {
		t.Errorf("verify(wrong sequence) = %v, want errBadSignature", err)
	}
	unsigned := message.SignedMessage{Message: message.New(origin.Pallet([]byte("x")), "d", nil)}
	if err := sim.verify(unsigned); err != nil {
		t.Errorf("verify(pallet) = %v", err)
	}
}

// A worker running the heartbeat handler against the simulator gets its
// responses verified and acknowledged, and purges them from its queue.
func TestWorkerAgainstSimulator(t *testing.T) {
	redisCfg := config.Default().Redis
	redisCfg.Addrs = []string{miniredis.RunT(t).Addr()}
	acks := ackdb.New(redisCfg)
	defer acks.Close()

	workerSigner, err := signer.Generate(nil)
	if err != nil {
		t.Fatal(err)
	}
	worker := origin.Worker(workerSigner.PublicKey())
	queue := sendqueue.New()
	processor := chain.NewProcessor(queue, dispatch.New(), acks, rate.AlwaysAllow, chain.NewFeed(),
		&handler.Heartbeat{ChallengePath: challengePath, ResponsePath: "response", Worker: worker, Signer: workerSigner})
	sim := newSimulator(origin.Pallet([]byte("phala/mining")), challengePath, 5*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		sock, err := ln.Accept()
		if err != nil {
			return
		}
		sim.serve(ctx, chain.NewConn(sock))
	}()
	sock, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	go processor.Serve(ctx, chain.NewConn(sock))

	_, err = servicetest.RetryFun(10*time.Second, func() (uint64, error) {
		acked, err := acks.Get(ctx, worker)
		if err != nil {
			return 0, err
		}
		if acked < 3 {
			return 0, fmt.Errorf("acked=%d", acked)
		}
		return acked, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, rejected := sim.counts(); rejected != 0 {
		t.Errorf("simulator rejected %d messages", rejected)
	}
}
