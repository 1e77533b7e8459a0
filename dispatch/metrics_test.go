// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package dispatch

import (
	"fmt"
	"strings"
	"testing"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/message"
	"github.com/vabaly/phala-blockchain/origin"
)

type mockMetricsWriter struct {
	data    map[string]float32
	samples map[string][]float32
}

func newMockMetricsWriter() *mockMetricsWriter {
	return &mockMetricsWriter{data: make(map[string]float32), samples: make(map[string][]float32)}
}

func flatkey(key []string, labels []metrics.Label) string {
	s := strings.Join(key, ".")
	for _, label := range labels {
		s += fmt.Sprintf("%v:%v", label.Name, label.Value)
	}
	return s
}

func (m *mockMetricsWriter) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	k := flatkey(key, labels)
	if v, exists := m.data[k]; !exists {
		m.data[k] = val
	} else {
		m.data[k] = v + val
	}
}

func (m *mockMetricsWriter) AddSample(key []string, val float32) {
	k := flatkey(key, nil)
	m.samples[k] = append(m.samples[k], val)
}

func TestDispatchMetrics(t *testing.T) {
	w := newMockMetricsWriter()
	d := New()
	d.metrics.writer = w

	d.Subscribe("a")
	d.Subscribe("a")
	sender := origin.Pallet([]byte("p"))
	d.Dispatch(message.New(sender, "a", nil))
	d.Dispatch(message.New(sender, "b", nil))
	d.Dispatch(message.New(sender, "c", nil))

	tests := []struct {
		key  string
		want float32
	}{
		{"dispatch.messagematched:true", 1},
		{"dispatch.messagematched:false", 2},
	}
	for _, tt := range tests {
		if got := w.data[tt.key]; got != tt.want {
			t.Errorf("%s=%v, want %v", tt.key, got, tt.want)
		}
	}
	got := w.samples["dispatch.fanout"]
	want := []float32{2, 0, 0}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("fanout samples=%v, want %v", got, want)
	}
}
