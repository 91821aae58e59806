package llm

import "context"

// Provider is the uniform contract every vendor adapter implements (§4.1).
type Provider interface {
	// Complete runs one non-streaming completion.
	Complete(ctx context.Context, req LlmRequest) (*LlmResponse, error)

	// Stream runs a streaming completion. Providers without streaming
	// support return an error immediately rather than a channel.
	Stream(ctx context.Context, req LlmRequest) (<-chan StreamChunk, error)

	ProviderName() string
	ModelName() string
	SupportsFunctionCalling() bool
	SupportsStreaming() bool
	MaxContextLength() int

	// CostPerToken returns (input_per_token, output_per_token).
	CostPerToken() (float64, float64)
}
