package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func attrProvider(provider string) attribute.KeyValue { return attribute.String("provider", provider) }
func attrModel(model string) attribute.KeyValue       { return attribute.String("model", model) }
func attrNodeType(nodeType string) attribute.KeyValue { return attribute.String("node_type", nodeType) }
func attrFailed(failed bool) attribute.KeyValue       { return attribute.Bool("failed", failed) }

// Metrics wraps the otel instruments this runtime records against (§A:
// "LLM call duration, token usage, concurrency wait time"), grounded on
// hector's Metrics struct in pkg/observability/metrics.go but built on
// go.opentelemetry.io/otel/metric rather than raw client_golang vectors,
// per SPEC_FULL.md's Domain Stack table.
type Metrics struct {
	llmCallDuration metric.Float64Histogram
	llmTokensInput  metric.Int64Counter
	llmTokensOutput metric.Int64Counter
	concurrencyWait metric.Float64Histogram
	nodeExecutions  metric.Int64Counter
	nodeDuration    metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	llmCallDuration, err := meter.Float64Histogram("graphbit.llm.call_duration_seconds",
		metric.WithDescription("LLM API call duration in seconds"))
	if err != nil {
		return nil, err
	}
	llmTokensInput, err := meter.Int64Counter("graphbit.llm.tokens_input_total",
		metric.WithDescription("Total input tokens consumed"))
	if err != nil {
		return nil, err
	}
	llmTokensOutput, err := meter.Int64Counter("graphbit.llm.tokens_output_total",
		metric.WithDescription("Total output tokens generated"))
	if err != nil {
		return nil, err
	}
	concurrencyWait, err := meter.Float64Histogram("graphbit.concurrency.wait_seconds",
		metric.WithDescription("Time spent waiting for a concurrency permit"))
	if err != nil {
		return nil, err
	}
	nodeExecutions, err := meter.Int64Counter("graphbit.workflow.node_executions_total",
		metric.WithDescription("Total workflow node executions"))
	if err != nil {
		return nil, err
	}
	nodeDuration, err := meter.Float64Histogram("graphbit.workflow.node_duration_seconds",
		metric.WithDescription("Workflow node execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		llmCallDuration: llmCallDuration,
		llmTokensInput:  llmTokensInput,
		llmTokensOutput: llmTokensOutput,
		concurrencyWait: concurrencyWait,
		nodeExecutions:  nodeExecutions,
		nodeDuration:    nodeDuration,
	}, nil
}

// RecordLLMCall records one completion's duration and token usage.
func (m *Metrics) RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attrProvider(provider), attrModel(model))
	m.llmCallDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmTokensInput.Add(ctx, int64(inputTokens), attrs)
	m.llmTokensOutput.Add(ctx, int64(outputTokens), attrs)
}

// RecordConcurrencyWait records time spent parked on a concurrency permit.
func (m *Metrics) RecordConcurrencyWait(ctx context.Context, nodeType string, wait time.Duration) {
	if m == nil {
		return
	}
	m.concurrencyWait.Record(ctx, wait.Seconds(), metric.WithAttributes(attrNodeType(nodeType)))
}

// RecordNodeExecution records one workflow node's dispatch.
func (m *Metrics) RecordNodeExecution(ctx context.Context, nodeKind string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attrNodeType(nodeKind), attrFailed(failed))
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeDuration.Record(ctx, duration.Seconds(), attrs)
}
