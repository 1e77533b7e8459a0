// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApplyIsImmutable(t *testing.T) {
	s0 := Empty()
	s1 := s0.Apply([]Change{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})
	s2 := s1.Apply([]Change{
		{Key: []byte("a"), Deleted: true},
		{Key: []byte("b"), Value: []byte("3")},
	})

	tests := []struct {
		name  string
		s     *Snapshot
		key   string
		want  string
		found bool
	}{
		{"s0", s0, "a", "", false},
		{"s1", s1, "a", "1", true},
		{"s1", s1, "b", "2", true},
		{"s2", s2, "a", "", false},
		{"s2", s2, "b", "3", true},
	}
	for _, tt := range tests {
		v, ok := tt.s.Get([]byte(tt.key))
		if ok != tt.found || string(v) != tt.want {
			t.Errorf("%s.Get(%q)=(%q, %v), want (%q, %v)", tt.name, tt.key, v, ok, tt.want, tt.found)
		}
	}
	if s0.Len() != 0 || s1.Len() != 2 || s2.Len() != 1 {
		t.Errorf("Len()=%d,%d,%d want 0,2,1", s0.Len(), s1.Len(), s2.Len())
	}
}

func TestValuesAreCopied(t *testing.T) {
	v := []byte("value")
	s := Empty().Apply([]Change{{Key: []byte("k"), Value: v}})
	v[0] = 'X'
	got, _ := s.Get([]byte("k"))
	if string(got) != "value" {
		t.Errorf("Apply retained caller slice, got %q", got)
	}
	got[0] = 'Y'
	if again, _ := s.Get([]byte("k")); string(again) != "value" {
		t.Errorf("Get exposed internal value, got %q", again)
	}
}

func TestWalkPrefix(t *testing.T) {
	s := Empty().Apply([]Change{
		{Key: []byte("acct/2"), Value: []byte("b")},
		{Key: []byte("acct/1"), Value: []byte("a")},
		{Key: []byte("other"), Value: []byte("c")},
		{Key: []byte("acct/3"), Value: []byte("d")},
	})
	var keys []string
	for k, v := range s.WalkPrefix([]byte("acct/")) {
		keys = append(keys, string(k)+"="+string(v))
	}
	if diff := cmp.Diff([]string{"acct/1=a", "acct/2=b", "acct/3=d"}, keys); diff != "" {
		t.Errorf("WalkPrefix (-want +got):\n%s", diff)
	}

	n := 0
	for range s.WalkPrefix(nil) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("early break visited %d", n)
	}
}
