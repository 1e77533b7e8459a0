// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package signer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vabaly/phala-blockchain/message"
)

var _ message.Signer = (*Signer)(nil)

func testSigner(t *testing.T, b byte) *Signer {
	t.Helper()
	s, err := FromSeed(bytes.Repeat([]byte{b}, SeedSize))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSignVerify(t *testing.T) {
	s := testSigner(t, 1)
	data := []byte("hello")
	sig := s.Sign(data)
	if len(sig) != SignatureSize {
		t.Fatalf("len(sig)=%d, want %d", len(sig), SignatureSize)
	}
	if !Verify(s.PublicKey(), data, sig) {
		t.Error("Verify()=false for valid signature")
	}
	if !bytes.Equal(sig, s.Sign(data)) {
		t.Error("Sign should be deterministic")
	}
}

func TestVerifyRejects(t *testing.T) {
	s := testSigner(t, 1)
	other := testSigner(t, 2)
	data := []byte("hello")
	sig := s.Sign(data)

	flipped := append([]byte(nil), sig...)
	flipped[40] ^= 1

	tests := []struct {
		name           string
		pub, data, sig []byte
	}{
		{"wrong data", s.PublicKey(), []byte("hellO"), sig},
		{"wrong key", other.PublicKey(), data, sig},
		{"modified signature", s.PublicKey(), data, flipped},
		{"short signature", s.PublicKey(), data, sig[:63]},
		{"short key", s.PublicKey()[:31], data, sig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify(tt.pub, tt.data, tt.sig) {
				t.Error("Verify()=true, want false")
			}
		})
	}
}

func TestFromSeedLength(t *testing.T) {
	if _, err := FromSeed(make([]byte, 31)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("FromSeed(31 bytes)=%v, want ErrInvalidKey", err)
	}
}

func TestGenerate(t *testing.T) {
	a, err := Generate(nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(bytes.NewReader(bytes.Repeat([]byte{1}, SeedSize)))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Error("random key should not match fixed seed key")
	}
	if !bytes.Equal(b.PublicKey(), testSigner(t, 1).PublicKey()) {
		t.Error("Generate from reader should match FromSeed")
	}
	if _, err := Generate(bytes.NewReader(nil)); err == nil {
		t.Error("Generate from empty reader should fail")
	}
}
