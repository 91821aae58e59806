package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCapabilityTableMatchesSpecTable verifies §8's "Provider capability
// contract": supports_function_calling is false exactly for the
// provider/model pairs §4.1 lists as non-tool-capable.
func TestCapabilityTableMatchesSpecTable(t *testing.T) {
	cases := []struct {
		provider            Vendor
		model               string
		wantFunctionCalling bool
		wantStreaming       bool
	}{
		{ProviderOpenAI, "gpt-4o", true, true},
		{ProviderOpenAI, "o1", false, false},
		{ProviderOpenAI, "o3", false, false},
		{ProviderAnthropic, "claude-3-5-sonnet", true, true},
		{ProviderGemini, "gemini-1.5-pro", true, true},
		{ProviderPerplexity, "sonar", false, true},
		{ProviderTogetherAI, "llama-3", true, false},
		{ProviderAI21, "jamba", false, false},
		{ProviderReplicate, "any-model", false, false},
		{ProviderBridge, "any-model", false, false},
	}

	for _, c := range cases {
		cap := lookupCapability(c.provider, c.model)
		assert.Equalf(t, c.wantFunctionCalling, cap.functionCalling, "provider=%s model=%s function-calling", c.provider, c.model)
		assert.Equalf(t, c.wantStreaming, cap.streaming, "provider=%s model=%s streaming", c.provider, c.model)
	}
}

// TestLookupCapabilityUnknownProviderIsConservative ensures an unrecognized
// provider never crashes and reports zero capability rather than panicking.
func TestLookupCapabilityUnknownProviderIsConservative(t *testing.T) {
	cap := lookupCapability(Vendor("unknown-vendor"), "some-model")
	assert.False(t, cap.functionCalling)
	assert.False(t, cap.streaming)
	assert.Equal(t, 0, cap.maxContext)
}
