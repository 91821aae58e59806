package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// BridgeChatFunc is the signature a foreign-runtime binding registers for a
// bridge provider: chat(model, messages, **kwargs) in the source language,
// modeled here as a plain Go function so the binding layer (out of scope,
// §1) can wrap whatever foreign callable it holds.
type BridgeChatFunc func(model string, messages []LlmMessage, kwargs map[string]any) (any, error)

// bridgeRuntimeLock models the foreign runtime's single cooperative global
// lock (§4.1, §9): every call into the registered object acquires it, and
// never holds it across an await — a bridge call here is synchronous from
// Go's perspective, so there is nothing to suspend across.
var bridgeRuntimeLock sync.Mutex

var bridgeRegistry = struct {
	mu   sync.RWMutex
	objs map[string]BridgeChatFunc
}{objs: make(map[string]BridgeChatFunc)}

// RegisterBridgeObject registers a callable under name for later lookup by a
// Bridge-provider LlmConfig.BridgeObjectName. Foreign-language bindings call
// this once per registered object at startup.
func RegisterBridgeObject(name string, fn BridgeChatFunc) {
	bridgeRegistry.mu.Lock()
	defer bridgeRegistry.mu.Unlock()
	bridgeRegistry.objs[name] = fn
}

// bridgeProvider forwards calls to a registered foreign-runtime object
// (§4.1's foreign-runtime bridge, §9's foreign-runtime cooperation note).
type bridgeProvider struct {
	cfg LlmConfig
	cap capability
}

func newBridgeProvider(cfg LlmConfig) *bridgeProvider {
	return &bridgeProvider{cfg: cfg, cap: lookupCapability(cfg.Provider, cfg.Model)}
}

func (p *bridgeProvider) ProviderName() string          { return "bridge:" + p.cfg.BridgeObjectName }
func (p *bridgeProvider) ModelName() string              { return p.cfg.Model }
func (p *bridgeProvider) SupportsFunctionCalling() bool   { return p.cap.functionCalling }
func (p *bridgeProvider) SupportsStreaming() bool         { return p.cap.streaming }
func (p *bridgeProvider) MaxContextLength() int           { return p.cap.maxContext }
func (p *bridgeProvider) CostPerToken() (float64, float64) {
	return p.cap.inputPerToken, p.cap.outputPerToken
}

func (p *bridgeProvider) lookup() (BridgeChatFunc, error) {
	bridgeRegistry.mu.RLock()
	defer bridgeRegistry.mu.RUnlock()
	fn, ok := bridgeRegistry.objs[p.cfg.BridgeObjectName]
	if !ok {
		return nil, ids.LlmProviderError(p.ProviderName(), "no bridge object registered under name "+p.cfg.BridgeObjectName)
	}
	return fn, nil
}

func (p *bridgeProvider) Complete(ctx context.Context, req LlmRequest) (*LlmResponse, error) {
	fn, err := p.lookup()
	if err != nil {
		return nil, err
	}

	kwargs := map[string]any{}
	if req.MaxTokens != nil {
		kwargs["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		kwargs["temperature"] = *req.Temperature
	}

	bridgeRuntimeLock.Lock()
	raw, err := fn(p.cfg.Model, req.Messages, kwargs)
	bridgeRuntimeLock.Unlock()
	if err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), err.Error())
	}

	return parseBridgeResult(raw), nil
}

// parseBridgeResult normalizes the foreign return value through the
// fallback chain in §4.1: an OpenAI-compatible dict, a transformers-style
// list of {generated_text}, or a plain string/dict — never failing solely
// because optional metadata is missing.
func parseBridgeResult(raw any) *LlmResponse {
	switch v := raw.(type) {
	case string:
		return &LlmResponse{Content: v, FinishReason: FinishStop}
	case map[string]any:
		if choices, ok := v["choices"].([]any); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]any); ok {
				if msg, ok := choice["message"].(map[string]any); ok {
					if content, ok := msg["content"].(string); ok {
						return &LlmResponse{Content: content, FinishReason: FinishStop}
					}
				}
			}
		}
		for _, key := range []string{"text", "generated_text", "content"} {
			if s, ok := v[key].(string); ok {
				return &LlmResponse{Content: s, FinishReason: FinishStop}
			}
		}
		return &LlmResponse{Content: fmt.Sprintf("%v", v), FinishReason: FinishStop}
	case []any:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				if s, ok := first["generated_text"].(string); ok {
					return &LlmResponse{Content: s, FinishReason: FinishStop}
				}
			}
		}
		return &LlmResponse{Content: fmt.Sprintf("%v", v), FinishReason: FinishStop}
	default:
		return &LlmResponse{Content: fmt.Sprintf("%v", v), FinishReason: FinishStop}
	}
}

func (p *bridgeProvider) Stream(ctx context.Context, req LlmRequest) (<-chan StreamChunk, error) {
	return nil, ids.LlmProviderError(p.ProviderName(), "bridge provider does not support streaming")
}
