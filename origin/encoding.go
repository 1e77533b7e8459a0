// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package origin

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	kindField protowire.Number = 1
	idField   protowire.Number = 2
)

// AppendBinary appends the canonical encoding of o to b. Fields are always
// written in field order, and the id is omitted when empty.
func (o Origin) AppendBinary(b []byte) []byte {
	b = protowire.AppendTag(b, kindField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.kind))
	if len(o.id) > 0 {
		b = protowire.AppendTag(b, idField, protowire.BytesType)
		b = protowire.AppendString(b, o.id)
	}
	return b
}

// Parse decodes an Origin produced by AppendBinary. Unknown and repeated
// fields are rejected, so every Origin has exactly one encoding.
func Parse(b []byte) (Origin, error) {
	var (
		kind           uint64
		id             []byte
		sawKind, sawID bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Origin{}, fmt.Errorf("%w: %v", ErrInvalidOrigin, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == kindField && typ == protowire.VarintType && !sawKind:
			kind, n = protowire.ConsumeVarint(b)
			sawKind = true
		case num == idField && typ == protowire.BytesType && !sawID:
			id, n = protowire.ConsumeBytes(b)
			sawID = true
		default:
			return Origin{}, fmt.Errorf("%w: unexpected or duplicate field %d (type %d)", ErrInvalidOrigin, num, typ)
		}
		if n < 0 {
			return Origin{}, fmt.Errorf("%w: %v", ErrInvalidOrigin, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if !sawKind || kind > 0xff {
		return Origin{}, fmt.Errorf("%w: missing or malformed kind", ErrInvalidOrigin)
	}
	return Make(Kind(kind), id)
}
