package llm

import "strings"

// capability is a static row in the capability table supplementing §4.1's
// provider capability contract (Testable Properties, §8).
type capability struct {
	functionCalling bool
	streaming       bool
	maxContext      int
	inputPerToken   float64
	outputPerToken  float64
}

// capabilityTable maps "provider" or "provider:model-prefix" to a capability
// row; more specific model-prefix entries are checked before the bare
// provider fallback.
var capabilityTable = map[string]capability{
	"openai":                      {true, true, 128_000, 0.0000025, 0.00001},
	"openai:gpt-4o":               {true, true, 128_000, 0.0000025, 0.00001},
	"openai:o1":                   {false, false, 200_000, 0.000015, 0.00006},
	"openai:o3":                   {false, false, 200_000, 0.000015, 0.00006},
	"anthropic":                   {true, true, 200_000, 0.000003, 0.000015},
	"gemini":                      {true, true, 1_000_000, 0.00000125, 0.000005},
	"deepseek":                    {true, true, 64_000, 0.00000027, 0.0000011},
	"ollama":                      {true, true, 32_000, 0, 0},
	"perplexity":                  {false, true, 128_000, 0.000001, 0.000001},
	"fireworks":                   {true, true, 128_000, 0.0000009, 0.0000009},
	"openrouter":                  {true, true, 128_000, 0.000001, 0.000002},
	"togetherai":                  {true, false, 32_000, 0.0000009, 0.0000009},
	"xai":                         {true, true, 128_000, 0.000002, 0.00001},
	"mistral":                     {true, true, 128_000, 0.000002, 0.000006},
	"ai21":                        {false, false, 16_000, 0.000002, 0.000002},
	"replicate":                   {false, false, 4_000, 0, 0},
	"azure":                       {true, true, 128_000, 0.0000025, 0.00001},
	"bytedance":                   {true, false, 32_000, 0, 0},
	"bridge":                      {false, false, 8_000, 0, 0},
}

// lookupCapability resolves the most specific capability row for a
// provider+model pair, falling back to the bare-provider row and finally to
// a conservative zero-capability default.
func lookupCapability(provider Vendor, model string) capability {
	key := string(provider) + ":" + model
	for prefixKey, cap := range capabilityTable {
		if strings.HasPrefix(prefixKey, string(provider)+":") && strings.HasPrefix(key, prefixKey) {
			return cap
		}
	}
	if cap, ok := capabilityTable[string(provider)]; ok {
		return cap
	}
	return capability{}
}
