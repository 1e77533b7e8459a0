// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package dispatch

import (
	"strconv"

	metrics "github.com/hashicorp/go-metrics"
)

type metricsWriter interface {
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
	AddSample(key []string, val float32)
}

var (
	messageCounterName = []string{"dispatch", "message"}
	fanoutSampleName   = []string{"dispatch", "fanout"}
)

// dispatchMetrics records the outcome of each dispatched message
type dispatchMetrics struct {
	writer metricsWriter
}

func newDispatchMetrics() *dispatchMetrics {
	return &dispatchMetrics{writer: metrics.Default()}
}

func (m *dispatchMetrics) dispatched(receivers int) {
	m.writer.IncrCounterWithLabels(messageCounterName, 1, []metrics.Label{{Name: "matched", Value: strconv.FormatBool(receivers > 0)}})
	m.writer.AddSample(fanoutSampleName, float32(receivers))
}
