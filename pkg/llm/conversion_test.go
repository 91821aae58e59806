package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnthropicBuildRequestHoistsSystemAndWrapsTool covers §4.1's Anthropic
// message conversion rules: System messages concatenate into one top-level
// field, and Tool-role messages become synthetic user messages.
func TestAnthropicBuildRequestHoistsSystemAndWrapsTool(t *testing.T) {
	p := newAnthropicProvider(LlmConfig{Provider: ProviderAnthropic, Model: "claude-3-5-sonnet", APIKey: "k"})

	req := LlmRequest{
		Messages: []LlmMessage{
			{Role: RoleSystem, Content: "be concise"},
			{Role: RoleSystem, Content: "never lie"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleTool, Content: `{"temp": 72}`},
		},
	}

	out := p.buildRequest(req, false)
	assert.Equal(t, "be concise\nnever lie", out.System)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "user", out.Messages[0].Role)
	assert.Equal(t, "hi", out.Messages[0].Content)
	assert.Equal(t, "user", out.Messages[1].Role)
	assert.Equal(t, `Tool result: {"temp": 72}`, out.Messages[1].Content)
}

// TestGeminiBuildRequestMapsRolesAndSystem covers §4.1's Gemini conversion:
// system hoisted to systemInstruction, assistant -> "model", tool calls ->
// functionCall parts, and tools wrapped as tools[0].functionDeclarations.
func TestGeminiBuildRequestMapsRolesAndSystem(t *testing.T) {
	p := newGeminiProvider(LlmConfig{Provider: ProviderGemini, Model: "gemini-1.5-pro", APIKey: "k"})

	req := LlmRequest{
		Messages: []LlmMessage{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "what's the weather?"},
			{Role: RoleAssistant, ToolCalls: []LlmToolCall{{Id: "1", Name: "get_weather", Parameters: map[string]any{"city": "Berlin"}}}},
		},
		Tools: []LlmTool{{Name: "get_weather", Description: "looks up weather", Parameters: map[string]any{"type": "object"}}},
	}

	out := p.buildRequest(req)
	require.NotNil(t, out.SystemInstruction)
	assert.Equal(t, "be terse", out.SystemInstruction.Parts[0].Text)

	require.Len(t, out.Contents, 2)
	assert.Equal(t, "user", out.Contents[0].Role)
	assert.Equal(t, "model", out.Contents[1].Role)
	require.Len(t, out.Contents[1].Parts, 1)
	require.NotNil(t, out.Contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "get_weather", out.Contents[1].Parts[0].FunctionCall.Name)

	require.Len(t, out.Tools, 1)
	require.Len(t, out.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "get_weather", out.Tools[0].FunctionDeclarations[0].Name)
}
