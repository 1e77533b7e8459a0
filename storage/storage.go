// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package storage provides immutable snapshots of chain key/value storage.
// Applying a block's changes to a snapshot produces a new snapshot and
// leaves the original untouched, so handlers of one block can never observe
// the next block's state.
package storage

import (
	"iter"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Change is a single storage write. Deleted changes remove Key and ignore
// Value.
type Change struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// Snapshot is an immutable view of chain storage as of one block
type Snapshot struct {
	tree *iradix.Tree
}

// Empty returns a snapshot with no keys
func Empty() *Snapshot {
	return &Snapshot{tree: iradix.New()}
}

// Apply returns a new snapshot with changes applied in order
func (s *Snapshot) Apply(changes []Change) *Snapshot {
	if len(changes) == 0 {
		return s
	}
	txn := s.tree.Txn()
	for _, c := range changes {
		if c.Deleted {
			txn.Delete(c.Key)
		} else {
			txn.Insert(c.Key, append([]byte(nil), c.Value...))
		}
	}
	return &Snapshot{tree: txn.Commit()}
}

// Get returns a copy of the value stored at key
func (s *Snapshot) Get(key []byte) ([]byte, bool) {
	v, ok := s.tree.Get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v.([]byte)...), true
}

func (s *Snapshot) Len() int { return s.tree.Len() }

// WalkPrefix iterates over the keys beginning with prefix in lexicographic
// order
func (s *Snapshot) WalkPrefix(prefix []byte) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		s.tree.Root().WalkPrefix(prefix, func(k []byte, v interface{}) bool {
			return !yield(append([]byte(nil), k...), append([]byte(nil), v.([]byte)...))
		})
	}
}
