// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "time"

type MetricsConfig struct {
	// Address to reach a datadog compatible statsd
	DatadogAgentHost string `yaml:"datadogAgentHost"`
	// Export metrics with OTLP, configured through the standard
	// OTEL_EXPORTER_OTLP_* environment variables
	OTLP bool `yaml:"otlp"`
	// How often OTLP metrics are exported
	OTLPInterval time.Duration `yaml:"otlpInterval"`
	// Serve prometheus metrics at /metrics on the control address
	Prometheus bool `yaml:"prometheus"`
}
