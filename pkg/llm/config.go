package llm

import (
	"os"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// Vendor tags which vendor adapter an LlmConfig constructs, the closed sum
// from §4.1's construction contract.
type Vendor string

const (
	ProviderOpenAI     Vendor = "openai"
	ProviderAnthropic  Vendor = "anthropic"
	ProviderGemini     Vendor = "gemini"
	ProviderDeepSeek   Vendor = "deepseek"
	ProviderOllama     Vendor = "ollama"
	ProviderPerplexity Vendor = "perplexity"
	ProviderFireworks  Vendor = "fireworks"
	ProviderOpenRouter Vendor = "openrouter"
	ProviderTogetherAI Vendor = "togetherai"
	ProviderXAI        Vendor = "xai"
	ProviderMistral    Vendor = "mistral"
	ProviderAI21       Vendor = "ai21"
	ProviderReplicate  Vendor = "replicate"
	ProviderAzure      Vendor = "azure"
	ProviderByteDance  Vendor = "bytedance"
	ProviderBridge     Vendor = "bridge"
)

// openAICompatible lists the providers that speak the OpenAI chat-completions
// wire shape, per §4.1.
var openAICompatible = map[Vendor]bool{
	ProviderOpenAI:     true,
	ProviderXAI:        true,
	ProviderDeepSeek:   true,
	ProviderFireworks:  true,
	ProviderPerplexity: true,
	ProviderOpenRouter: true,
	ProviderTogetherAI: true,
	ProviderMistral:    true,
	ProviderAI21:       true,
	ProviderByteDance:  true,
	ProviderAzure:      true,
}

// LlmConfig is the tagged record a provider is built from. Only the fields
// relevant to Provider are meaningful; SetDefaults fills in the rest.
type LlmConfig struct {
	Provider Vendor `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Replicate-only polling knobs.
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	MaxWaitTime  time.Duration `json:"max_wait_time,omitempty" yaml:"max_wait_time,omitempty"`

	// Azure-only deployment routing.
	AzureDeployment string `json:"azure_deployment,omitempty" yaml:"azure_deployment,omitempty"`
	AzureAPIVersion string `json:"azure_api_version,omitempty" yaml:"azure_api_version,omitempty"`

	// Bridge-only: the name under which the foreign runtime registered its
	// callable object.
	BridgeObjectName string `json:"bridge_object_name,omitempty" yaml:"bridge_object_name,omitempty"`
}

const (
	defaultTimeout      = 120 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultMaxWaitTime  = 5 * time.Minute
)

// SetDefaults fills zero-valued fields with provider-appropriate defaults,
// including detecting an API key from the provider's conventional
// environment variable when none was supplied.
func (c *LlmConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Provider == ProviderReplicate {
		if c.PollInterval == 0 {
			c.PollInterval = defaultPollInterval
		}
		if c.MaxWaitTime == 0 {
			c.MaxWaitTime = defaultMaxWaitTime
		}
	}
	if c.APIKey == "" && c.Provider != ProviderOllama && c.Provider != ProviderBridge {
		c.APIKey = apiKeyFromEnv(c.Provider)
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL(c.Provider)
	}
}

// Validate enforces the construction contract's minimal requirements.
func (c *LlmConfig) Validate() error {
	if c.Provider == "" {
		return ids.ValidationError("provider", "provider must be set")
	}
	if c.Model == "" && c.Provider != ProviderBridge {
		return ids.ValidationError("model", "model must be set")
	}
	if c.Provider != ProviderOllama && c.Provider != ProviderBridge && c.APIKey == "" {
		return ids.ValidationError("api_key", "no API key configured or found in environment")
	}
	if c.Provider == ProviderBridge && c.BridgeObjectName == "" {
		return ids.ValidationError("bridge_object_name", "bridge provider requires bridge_object_name")
	}
	return nil
}

func apiKeyFromEnv(p Vendor) string {
	var envVar string
	switch p {
	case ProviderOpenAI:
		envVar = "OPENAI_API_KEY"
	case ProviderAnthropic:
		envVar = "ANTHROPIC_API_KEY"
	case ProviderGemini:
		envVar = "GEMINI_API_KEY"
	case ProviderDeepSeek:
		envVar = "DEEPSEEK_API_KEY"
	case ProviderPerplexity:
		envVar = "PERPLEXITY_API_KEY"
	case ProviderFireworks:
		envVar = "FIREWORKS_API_KEY"
	case ProviderOpenRouter:
		envVar = "OPENROUTER_API_KEY"
	case ProviderTogetherAI:
		envVar = "TOGETHER_API_KEY"
	case ProviderXAI:
		envVar = "XAI_API_KEY"
	case ProviderMistral:
		envVar = "MISTRAL_API_KEY"
	case ProviderAI21:
		envVar = "AI21_API_KEY"
	case ProviderReplicate:
		envVar = "REPLICATE_API_TOKEN"
	case ProviderAzure:
		envVar = "AZURE_OPENAI_API_KEY"
	case ProviderByteDance:
		envVar = "BYTEDANCE_API_KEY"
	default:
		return ""
	}
	return os.Getenv(envVar)
}

func defaultBaseURL(p Vendor) string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1"
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	case ProviderDeepSeek:
		return "https://api.deepseek.com/v1"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	case ProviderPerplexity:
		return "https://api.perplexity.ai"
	case ProviderFireworks:
		return "https://api.fireworks.ai/inference/v1"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderTogetherAI:
		return "https://api.together.xyz/v1"
	case ProviderXAI:
		return "https://api.x.ai/v1"
	case ProviderMistral:
		return "https://api.mistral.ai/v1"
	case ProviderAI21:
		return "https://api.ai21.com/studio/v1"
	case ProviderReplicate:
		return "https://api.replicate.com/v1"
	case ProviderByteDance:
		return "https://ark.cn-beijing.volces.com/api/v3"
	default:
		return ""
	}
}

// IsOpenAIReasoningModel reports whether model is one of OpenAI's reasoning
// models — an o-series name ("o" followed by a digit) or a "gpt" name with a
// -reasoning/-thinking suffix — which remap max_tokens to
// max_completion_tokens (§4.1).
func IsOpenAIReasoningModel(model string) bool {
	switch {
	case len(model) >= 2 && model[0] == 'o' && model[1] >= '0' && model[1] <= '9':
		return true
	case len(model) >= 3 && model[:3] == "gpt" && containsReasoningSuffix(model):
		return true
	default:
		return false
	}
}

func containsReasoningSuffix(model string) bool {
	suffixes := []string{"-reasoning", "-thinking"}
	for _, s := range suffixes {
		if len(model) >= len(s) && model[len(model)-len(s):] == s {
			return true
		}
	}
	return false
}
