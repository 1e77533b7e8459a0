// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package origin provides the Origin type. An Origin identifies the sender of
// a message (and the trust domain of a subscriber). Origins are comparable
// values and can be used directly as map keys.
package origin

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Kind is the variant of an Origin.
type Kind uint8

const (
	KindPallet Kind = iota + 1
	KindContract
	KindWorker
	KindAccountID
	KindGatekeeper
)

func (k Kind) String() string {
	switch k {
	case KindPallet:
		return "pallet"
	case KindContract:
		return "contract"
	case KindWorker:
		return "worker"
	case KindAccountID:
		return "account"
	case KindGatekeeper:
		return "gatekeeper"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// idLen returns the required identity length for the kind, or -1 if the
// identity may have any length.
func (k Kind) idLen() int {
	switch k {
	case KindContract, KindAccountID:
		return 32
	case KindGatekeeper:
		return 0
	case KindPallet, KindWorker:
		return -1
	}
	return -2
}

type Origin struct {
	kind Kind
	id   string
}

var ErrInvalidOrigin = errors.New("invalid origin")

// Pallet returns the Origin of a named ledger-side actor
func Pallet(name []byte) Origin { return Origin{KindPallet, string(name)} }

// Worker returns the Origin of an off-chain worker identified by its public key
func Worker(pubkey []byte) Origin { return Origin{KindWorker, string(pubkey)} }

// Contract returns the Origin of a contract identified by its 32 byte id
func Contract(id [32]byte) Origin { return Origin{KindContract, string(id[:])} }

// AccountID returns the Origin of an on-chain account
func AccountID(id [32]byte) Origin { return Origin{KindAccountID, string(id[:])} }

// Gatekeeper returns the Origin shared by all gatekeepers
func Gatekeeper() Origin { return Origin{kind: KindGatekeeper} }

// Make builds an Origin from its kind and identifying bytes, validating the
// identity length for fixed size kinds.
func Make(kind Kind, id []byte) (Origin, error) {
	switch want := kind.idLen(); {
	case want == -2:
		return Origin{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidOrigin, uint8(kind))
	case want >= 0 && len(id) != want:
		return Origin{}, fmt.Errorf("%w: %v id must be %d bytes, got %d", ErrInvalidOrigin, kind, want, len(id))
	}
	return Origin{kind, string(id)}, nil
}

func (o Origin) Kind() Kind { return o.kind }

// ID returns a copy of the identifying bytes
func (o Origin) ID() []byte { return []byte(o.id) }

// IsZero reports whether o is the zero Origin, which identifies nobody
func (o Origin) IsZero() bool { return o.kind == 0 }

// String returns a short human readable form, ex "pallet:phala/mining" or
// "worker:0a1b2c3d"
func (o Origin) String() string {
	switch o.kind {
	case KindPallet:
		return "pallet:" + o.id
	case KindGatekeeper:
		return "gatekeeper"
	case 0:
		return "none"
	}
	id := []byte(o.id)
	if len(id) > 4 {
		id = id[:4]
	}
	return o.kind.String() + ":" + hex.EncodeToString(id)
}

// Key returns a string that uniquely identifies o, ex "worker:0a1b2c3d4e".
// Unlike String it never truncates the identity.
func (o Origin) Key() string {
	return o.kind.String() + ":" + hex.EncodeToString([]byte(o.id))
}
