// Package observability wires OpenTelemetry tracing spans around LLM calls
// and node execution, plus Prometheus-backed counters/histograms for call
// duration, token usage, and concurrency wait time, grounded on hector's
// pkg/observability/{manager,metrics}.go.
package observability

// Config controls what observability is stood up. The zero value disables
// tracing (the Manager hands out a no-op tracer); metric instruments and the
// Prometheus exporter are always created. A nil *Manager is also safe to use:
// its methods are no-ops, matching hector's nil-receiver guard pattern in
// pkg/observability/metrics.go.
type Config struct {
	ServiceName      string
	TracingEnabled   bool
	PrometheusListen string
}

// SetDefaults fills in a service name when Config came from an untouched
// gbconfig.ObservabilitySpec.
func (c *Config) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "graphbit"
	}
}
