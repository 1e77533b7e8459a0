// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package origin

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestEquality(t *testing.T) {
	if Pallet([]byte("p0")) != Pallet([]byte("p0")) {
		t.Error("pallets with the same name should be equal")
	}
	if Pallet([]byte("p0")) == Worker([]byte("p0")) {
		t.Error("origins of different kinds should not be equal")
	}
	if Worker([]byte{1}) == Worker([]byte{2}) {
		t.Error("workers with different keys should not be equal")
	}

	m := map[Origin]int{Pallet([]byte("a")): 1}
	if m[Pallet([]byte("a"))] != 1 {
		t.Error("origin should be usable as a map key")
	}
}

func TestIDIsCopied(t *testing.T) {
	key := []byte{1, 2, 3}
	w := Worker(key)
	key[0] = 9
	if got := w.ID(); got[0] != 1 {
		t.Errorf("Worker retained caller slice: ID()=%v", got)
	}
	id := w.ID()
	id[1] = 9
	if w != Worker([]byte{1, 2, 3}) {
		t.Errorf("ID() exposed internal state")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		o    Origin
		want string
	}{
		{Pallet([]byte("phala/mining")), "pallet:phala/mining"},
		{Worker([]byte{0x0a, 0x1b, 0x2c, 0x3d, 0x4e}), "worker:0a1b2c3d"},
		{Contract([32]byte{0xff}), "contract:ff000000"},
		{Gatekeeper(), "gatekeeper"},
		{Origin{}, "none"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("String()=%q, want %q", got, tt.want)
		}
	}
}

func TestEncoding(t *testing.T) {
	for _, o := range []Origin{
		Pallet([]byte("p0")),
		Pallet(nil),
		Worker([]byte("worker0")),
		Contract([32]byte{1, 2, 3}),
		AccountID([32]byte{4}),
		Gatekeeper(),
	} {
		got, err := Parse(o.AppendBinary(nil))
		if err != nil {
			t.Fatalf("Parse(%v): %v", o, err)
		}
		if got != o {
			t.Errorf("Parse(AppendBinary(%v)) = %v", o, got)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"truncated", Worker([]byte("worker0")).AppendBinary(nil)[:4]},
		{"unknown kind", Origin{kind: 42}.AppendBinary(nil)},
		{"short contract", Origin{kind: KindContract, id: "abc"}.AppendBinary(nil)},
		{"gatekeeper with id", Origin{kind: KindGatekeeper, id: "x"}.AppendBinary(nil)},
		{"duplicate kind", append(Gatekeeper().AppendBinary(nil), Gatekeeper().AppendBinary(nil)...)},
		{"duplicate id", protowire.AppendString(protowire.AppendTag(Worker([]byte("w0")).AppendBinary(nil), idField, protowire.BytesType), "w1")},
		{"unknown field", protowire.AppendVarint(protowire.AppendTag(Gatekeeper().AppendBinary(nil), 3, protowire.VarintType), 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.in); !errors.Is(err, ErrInvalidOrigin) {
				t.Errorf("Parse(%x) = %v, want ErrInvalidOrigin", tt.in, err)
			}
		})
	}
}

func TestKeyIsUnique(t *testing.T) {
	a := Worker([]byte{1, 2, 3, 4, 5})
	b := Worker([]byte{1, 2, 3, 4, 6})
	if a.String() != b.String() {
		t.Fatalf("expected truncated String() to collide")
	}
	if a.Key() == b.Key() {
		t.Errorf("Key()=%q for distinct origins", a.Key())
	}
	if got := Pallet([]byte("p")).Key(); got != "pallet:70" {
		t.Errorf("Key()=%q, want pallet:70", got)
	}
}
