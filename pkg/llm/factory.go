package llm

import "github.com/graphbit-dev/graphbit/pkg/ids"

// NewProvider is the construction contract's factory (§4.1): it builds a
// single shared HTTP client per provider instance and dispatches to the
// adapter for cfg.Provider.
func NewProvider(cfg LlmConfig) (Provider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		return newAnthropicProvider(cfg), nil
	case ProviderGemini:
		return newGeminiProvider(cfg), nil
	case ProviderReplicate:
		return newReplicateProvider(cfg), nil
	case ProviderBridge:
		return newBridgeProvider(cfg), nil
	case ProviderOllama:
		return newOpenAICompatibleProvider(cfg), nil
	default:
		if openAICompatible[cfg.Provider] {
			return newOpenAICompatibleProvider(cfg), nil
		}
		return nil, ids.NewErrorf(ids.KindConfig, "unknown llm provider %q", cfg.Provider)
	}
}
