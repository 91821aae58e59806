package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns this runtime's tracer and metrics providers, mirroring the
// lifecycle shape of hector's observability.Manager (NewManager/Shutdown)
// while swapping the OTLP-gRPC trace exporter for stdouttrace and the raw
// client_golang vectors for otel/metric instruments, per SPEC_FULL.md §A/§B.
type Manager struct {
	cfg Config

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	metrics        *Metrics
}

// New stands up tracing (if enabled) and metrics for the given config. The
// zero Config still returns a usable Manager: its Tracer is a no-op and its
// Metrics record through the Prometheus-backed meter provider.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	cfg.SetDefaults()
	m := &Manager{cfg: cfg, tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}

	if cfg.TracingEnabled {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("observability: create stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		m.tracerProvider = tp
		m.tracer = tp.Tracer(cfg.ServiceName)
		otel.SetTracerProvider(tp)
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("observability: create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	m.meterProvider = mp
	otel.SetMeterProvider(mp)

	metrics, err := newMetrics(mp.Meter(cfg.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("observability: create instruments: %w", err)
	}
	m.metrics = metrics

	return m, nil
}

// Tracer returns the tracer spans should be started from.
func (m *Manager) Tracer() trace.Tracer {
	if m == nil {
		return noop.NewTracerProvider().Tracer("graphbit")
	}
	return m.tracer
}

// Metrics returns the recorder for LLM/concurrency/node instruments.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// Handler serves the process's Prometheus metrics, via the exporter's
// registration onto the default registerer (§B: PrometheusListen).
func (m *Manager) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and releases the tracer and meter providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if m.tracerProvider != nil {
		if err := m.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: shutdown tracer: %w", err)
		}
	}
	if m.meterProvider != nil {
		if err := m.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: shutdown meter provider: %w", err)
		}
	}
	return nil
}
