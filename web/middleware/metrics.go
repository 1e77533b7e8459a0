// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-metrics"
)

type metricsWriter interface {
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
	MeasureSinceWithLabels(key []string, start time.Time, labels []metrics.Label)
}

var (
	responseCounterName = []string{"http", "response"}
	durationName        = []string{"http", "duration"}
)

// Instrument wraps an http.Handler and records a response counter and a
// latency sample under the given endpoint name. Named endpoints keep label
// cardinality bounded for prefix routes like /debug/pprof/.
func Instrument(endpoint string, inner http.Handler) http.Handler {
	return &handler{endpoint: endpoint, inner: inner, writer: metrics.Default()}
}

type handler struct {
	endpoint string
	inner    http.Handler
	writer   metricsWriter
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := &writerWrapper{w: w}
	h.inner.ServeHTTP(ww, r)
	if !ww.recorded {
		return
	}
	labels := []metrics.Label{
		{Name: "endpoint", Value: h.endpoint},
		{Name: "method", Value: r.Method},
	}
	// websocket streams last as long as the subscriber, their duration is not latency
	if ww.statusCode != http.StatusSwitchingProtocols {
		h.writer.MeasureSinceWithLabels(durationName, start, labels)
	}
	h.writer.IncrCounterWithLabels(responseCounterName, 1, append(labels, metrics.Label{Name: "status", Value: strconv.Itoa(ww.statusCode)}))
}

// When a response is written, record the status code so it can be instrumented later
type writerWrapper struct {
	w          http.ResponseWriter
	statusCode int
	recorded   bool
}

var _ http.ResponseWriter = (*writerWrapper)(nil)
var _ http.Hijacker = (*writerWrapper)(nil)

func (ww *writerWrapper) Header() http.Header {
	return ww.w.Header()
}

func (ww *writerWrapper) Write(b []byte) (int, error) {
	if !ww.recorded {
		ww.recorded = true
		ww.statusCode = http.StatusOK
	}
	return ww.w.Write(b)
}

func (ww *writerWrapper) WriteHeader(statusCode int) {
	ww.recorded = true
	ww.statusCode = statusCode
	ww.w.WriteHeader(statusCode)
}

func (ww *writerWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := ww.w.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	if !ww.recorded {
		// If the response handler is switching protocols, (e.x. upgrading
		// to a websocket) report StatusSwitchingProtocols
		ww.recorded = true
		ww.statusCode = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}
