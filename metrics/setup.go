// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-metrics/datadog"
	"github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/logger"
)

// Sinks holds the metrics sinks installed by Setup
type Sinks struct {
	fanout metrics.FanoutSink
	// Handler serves prometheus metrics, nil unless prometheus is enabled
	Handler http.Handler
}

// Setup builds the sinks named in cfg and installs them as the global
// go-metrics sink. With nothing configured, metrics are discarded.
func Setup(ctx context.Context, cfg config.MetricsConfig, serviceName string) (*Sinks, error) {
	s := &Sinks{}

	if cfg.DatadogAgentHost != "" {
		sink, err := datadog.NewDogStatsdSink(cfg.DatadogAgentHost, "")
		if err != nil {
			return nil, fmt.Errorf("creating datadog sink: %w", err)
		}
		s.fanout = append(s.fanout, sink)
		logger.Infow("sending metrics to datadog", "addr", cfg.DatadogAgentHost)
	}
	if cfg.OTLP {
		sink, err := NewOTLPSink(ctx, serviceName, cfg.OTLPInterval)
		if err != nil {
			s.Shutdown()
			return nil, err
		}
		s.fanout = append(s.fanout, sink)
		logger.Infow("exporting metrics with otlp")
	}
	if cfg.Prometheus {
		sink, err := prometheus.NewPrometheusSink()
		if err != nil {
			s.Shutdown()
			return nil, fmt.Errorf("creating prometheus sink: %w", err)
		}
		s.fanout = append(s.fanout, sink)
		s.Handler = promhttp.Handler()
	}

	var sink metrics.MetricSink = &metrics.BlackholeSink{}
	if len(s.fanout) > 0 {
		sink = s.fanout
	}

	mc := metrics.DefaultConfig(serviceName)
	mc.EnableHostname = false
	mc.EnableHostnameLabel = false
	if _, err := metrics.NewGlobal(mc, sink); err != nil {
		s.Shutdown()
		return nil, fmt.Errorf("installing global metrics: %w", err)
	}
	return s, nil
}

// Shutdown flushes and stops sinks that support it
func (s *Sinks) Shutdown() {
	for _, sink := range s.fanout {
		if sd, ok := sink.(metrics.ShutdownSink); ok {
			sd.Shutdown()
		}
	}
}
