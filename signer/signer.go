// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package signer implements Schnorr signatures over the ristretto255 group.
//
// A signature is the 32 byte encoding of the commitment R followed by the 32
// byte encoding of the response s, where for secret x, public P = xB and a
// nonce k derived from the key seed and the message:
//
//	R = kB
//	c = H("sig" || R || P || m)
//	s = k + cx
//
// Verification checks sB == R + cP.
package signer

import (
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

const (
	SeedSize      = 32
	PublicKeySize = 32
	SignatureSize = 64
)

var ErrInvalidKey = errors.New("invalid key")

// Signer signs with a fixed ristretto255 secret key. It satisfies
// message.Signer.
type Signer struct {
	seed   [SeedSize]byte
	secret *ristretto255.Scalar
	public *ristretto255.Element
}

// FromSeed derives a signing key from a 32 byte seed
func FromSeed(seed []byte) (*Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKey, SeedSize, len(seed))
	}
	s := &Signer{}
	copy(s.seed[:], seed)
	s.secret = hashToScalar("key", seed)
	s.public = ristretto255.NewElement().ScalarBaseMult(s.secret)
	return s, nil
}

// Generate creates a signer from a random seed read from r, or from
// crypto/rand if r is nil.
func Generate(r io.Reader) (*Signer, error) {
	if r == nil {
		r = rand.Reader
	}
	var seed [SeedSize]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	return FromSeed(seed[:])
}

// PublicKey returns the encoded public key
func (s *Signer) PublicKey() []byte {
	return s.public.Encode(nil)
}

// Sign returns a signature over data. Signing is deterministic.
func (s *Signer) Sign(data []byte) []byte {
	k := hashToScalar("nonce", s.seed[:], data)
	r := ristretto255.NewElement().ScalarBaseMult(k)
	rBytes := r.Encode(nil)
	c := challenge(rBytes, s.public.Encode(nil), data)
	resp := ristretto255.NewScalar().Multiply(c, s.secret)
	resp.Add(resp, k)
	return resp.Encode(rBytes)
}

// Verify reports whether sig is a valid signature over data by the holder of
// the secret key for publicKey.
func Verify(publicKey, data, sig []byte) bool {
	if len(publicKey) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	p := ristretto255.NewElement()
	if err := p.Decode(publicKey); err != nil {
		return false
	}
	r := ristretto255.NewElement()
	if err := r.Decode(sig[:32]); err != nil {
		return false
	}
	resp := ristretto255.NewScalar()
	if err := resp.Decode(sig[32:]); err != nil {
		return false
	}
	c := challenge(sig[:32], publicKey, data)

	lhs := ristretto255.NewElement().ScalarBaseMult(resp)
	rhs := ristretto255.NewElement().ScalarMult(c, p)
	rhs.Add(rhs, r)
	return lhs.Equal(rhs) == 1
}

func challenge(r, p, data []byte) *ristretto255.Scalar {
	return hashToScalar("sig", r, p, data)
}

func hashToScalar(domain string, parts ...[]byte) *ristretto255.Scalar {
	h := sha512.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	return ristretto255.NewScalar().FromUniformBytes(h.Sum(nil))
}
