// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	metricSDK "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/vabaly/phala-blockchain/logger"
)

// OTLPSink forwards go-metrics measurements to an OpenTelemetry meter.
// go-metrics gauges, counters and samples map to otel gauges, counters
// and histograms. Instruments are created on first use.
type OTLPSink struct {
	meter    metric.Meter
	shutdown func(context.Context) error

	gauges     instruments[metric.Float64Gauge]
	counters   instruments[metric.Float64Counter]
	histograms instruments[metric.Float64Histogram]
}

var _ metrics.ShutdownSink = (*OTLPSink)(nil)

// NewOTLPSink initializes the Open Telemetry metrics SDK, exporting over
// http every interval, and returns a new sink. The exporter endpoint comes
// from the standard OTEL_EXPORTER_OTLP_* environment variables.
func NewOTLPSink(ctx context.Context, serviceName string, interval time.Duration) (*OTLPSink, error) {
	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating new otlp meter exporter: %w", err)
	}
	provider := metricSDK.NewMeterProvider(
		metricSDK.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		metricSDK.WithReader(metricSDK.NewPeriodicReader(exporter, metricSDK.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return newOTLPSink(provider.Meter(serviceName), provider.Shutdown), nil
}

func newOTLPSink(meter metric.Meter, shutdown func(context.Context) error) *OTLPSink {
	return &OTLPSink{
		meter:      meter,
		shutdown:   shutdown,
		gauges:     instruments[metric.Float64Gauge]{create: func(n string) (metric.Float64Gauge, error) { return meter.Float64Gauge(n) }},
		counters:   instruments[metric.Float64Counter]{create: func(n string) (metric.Float64Counter, error) { return meter.Float64Counter(n) }},
		histograms: instruments[metric.Float64Histogram]{create: func(n string) (metric.Float64Histogram, error) { return meter.Float64Histogram(n) }},
	}
}

// Shutdown flushes pending measurements
func (s *OTLPSink) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		logger.Warnw("failed to flush otlp metrics", "err", err)
	}
}

func (s *OTLPSink) SetGauge(key []string, val float32) {
	s.SetGaugeWithLabels(key, val, nil)
}

func (s *OTLPSink) SetGaugeWithLabels(key []string, val float32, labels []metrics.Label) {
	if g, ok := s.gauges.get(key); ok {
		g.Record(context.Background(), float64(val), withLabels(labels))
	}
}

// EmitKey records the value as a sample
func (s *OTLPSink) EmitKey(key []string, val float32) {
	s.AddSample(key, val)
}

func (s *OTLPSink) IncrCounter(key []string, val float32) {
	s.IncrCounterWithLabels(key, val, nil)
}

func (s *OTLPSink) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	if c, ok := s.counters.get(key); ok {
		c.Add(context.Background(), float64(val), withLabels(labels))
	}
}

func (s *OTLPSink) AddSample(key []string, val float32) {
	s.AddSampleWithLabels(key, val, nil)
}

func (s *OTLPSink) AddSampleWithLabels(key []string, val float32, labels []metrics.Label) {
	if h, ok := s.histograms.get(key); ok {
		h.Record(context.Background(), float64(val), withLabels(labels))
	}
}

func withLabels(labels []metrics.Label) metric.MeasurementOption {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, label := range labels {
		attrs = append(attrs, attribute.String(label.Name, label.Value))
	}
	return metric.WithAttributes(attrs...)
}

func name(key []string) string {
	return strings.Join(key, ".")
}

// instruments caches one kind of instrument by metric name
type instruments[T any] struct {
	cache  sync.Map
	create func(name string) (T, error)
}

func (c *instruments[T]) get(key []string) (T, bool) {
	n := name(key)
	if v, ok := c.cache.Load(n); ok {
		return v.(T), true
	}
	inst, err := c.create(n)
	if err != nil {
		logger.Errorf("failed to create instrument %s: %v", n, err)
		return inst, false
	}
	v, _ := c.cache.LoadOrStore(n, inst)
	return v.(T), true
}

func (c *instruments[T]) len() int {
	n := 0
	c.cache.Range(func(_, _ any) bool { n++; return true })
	return n
}
