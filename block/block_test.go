// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package block

import (
	"errors"
	"testing"

	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder().WithNumber(7).WithNowMs(1000).WithStorage([]byte("k"), []byte("v"))
	info := b.Build()
	if info.Number() != 7 || info.NowMs() != 1000 {
		t.Errorf("Number()=%d NowMs()=%d, want 7 1000", info.Number(), info.NowMs())
	}
	if v, ok := info.Storage().Get([]byte("k")); !ok || string(v) != "v" {
		t.Errorf("Storage().Get(k)=(%q, %v)", v, ok)
	}
	if info.SendQueue() != b.SendQueue || info.Dispatcher() != b.Dispatcher {
		t.Error("Info should borrow the builder's queue and dispatcher")
	}
}

func TestBlockFlow(t *testing.T) {
	b := NewBuilder().WithNumber(1)
	r := b.Dispatcher.Subscribe("in")
	ch := b.SendQueue.Channel(origin.Worker([]byte("w")), message.SignerFunc(func([]byte) []byte { return nil }))
	b.Dispatcher.Dispatch(message.New(origin.Pallet([]byte("p")), "in", []byte("ping")))

	info := b.Build()
	for m := range r.Drain() {
		ch.Send(append([]byte("re:"), m.Payload...), "out")
	}
	info.Close()

	msgs := b.SendQueue.Messages(ch.Origin())
	if len(msgs) != 1 || string(msgs[0].Message.Payload) != "re:ping" {
		t.Errorf("queued=%v, want one reply", msgs)
	}
}

func TestClosedInfoPanics(t *testing.T) {
	info := NewBuilder().Build()
	info.Close()
	info.Close()
	if !info.Closed() {
		t.Error("Closed()=false after Close")
	}

	accessors := map[string]func(){
		"Number":     func() { info.Number() },
		"NowMs":      func() { info.NowMs() },
		"Storage":    func() { info.Storage() },
		"SendQueue":  func() { info.SendQueue() },
		"Dispatcher": func() { info.Dispatcher() },
	}
	for name, f := range accessors {
		t.Run(name, func(t *testing.T) {
			defer func() {
				err, ok := recover().(error)
				if !ok || !errors.Is(err, ErrClosed) {
					t.Errorf("%s panicked with %v, want ErrClosed", name, err)
				}
			}()
			f()
		})
	}
}
