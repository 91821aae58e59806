package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/graphbit-dev/graphbit/internal/httpclient"
	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// openAIProvider implements the OpenAI chat-completions wire shape shared by
// every OpenAI-compatible vendor named in §4.1 (OpenAI, xAI, DeepSeek,
// Fireworks, Perplexity, OpenRouter, TogetherAI, Mistral, AI21, ByteDance,
// Azure) and also Ollama's local-compatible endpoint. Grounded on the
// teacher's OpenAI adapter: a single pooled *http.Client, a bufio-based SSE
// read loop, and tolerant tool-call argument parsing.
type openAIProvider struct {
	cfg        LlmConfig
	httpClient *http.Client
	retry      *httpclient.Client
	cap        capability
}

func newOpenAICompatibleProvider(cfg LlmConfig) *openAIProvider {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Timeout}
	return &openAIProvider{
		cfg:        cfg,
		httpClient: httpClient,
		retry:      httpclient.New(httpclient.WithHTTPClient(httpClient), httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders)),
		cap:        lookupCapability(cfg.Provider, cfg.Model),
	}
}

func (p *openAIProvider) ProviderName() string { return string(p.cfg.Provider) }
func (p *openAIProvider) ModelName() string    { return p.cfg.Model }
func (p *openAIProvider) SupportsFunctionCalling() bool { return p.cap.functionCalling }
func (p *openAIProvider) SupportsStreaming() bool       { return p.cap.streaming }
func (p *openAIProvider) MaxContextLength() int         { return p.cap.maxContext }
func (p *openAIProvider) CostPerToken() (float64, float64) {
	return p.cap.inputPerToken, p.cap.outputPerToken
}

type openAIChatMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []openAIToolCall  `json:"tool_calls,omitempty"`
	ToolCallId string            `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	Id       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type openAIChatRequest struct {
	Model             string               `json:"model"`
	Messages          []openAIChatMessage  `json:"messages"`
	Tools             []openAITool         `json:"tools,omitempty"`
	MaxTokens         *int                 `json:"max_tokens,omitempty"`
	MaxCompletion     *int                 `json:"max_completion_tokens,omitempty"`
	Temperature       *float64             `json:"temperature,omitempty"`
	TopP              *float64             `json:"top_p,omitempty"`
	Stream            bool                 `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
		Delta        openAIChatMessage `json:"delta"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Id string `json:"id"`
}

func (p *openAIProvider) buildRequest(req LlmRequest, stream bool) openAIChatRequest {
	messages := make([]openAIChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		om := openAIChatMessage{Role: string(m.Role), Content: m.Content, ToolCallId: m.ToolCallId}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Parameters)
			call := openAIToolCall{Id: tc.Id, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, call)
		}
		messages = append(messages, om)
	}

	tools := make([]openAITool, 0, len(req.Tools))
	for _, t := range req.Tools {
		ot := openAITool{Type: "function"}
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.Parameters
		tools = append(tools, ot)
	}

	out := openAIChatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}

	if req.MaxTokens != nil {
		if p.cfg.Provider == ProviderOpenAI && IsOpenAIReasoningModel(p.cfg.Model) {
			out.MaxCompletion = req.MaxTokens
		} else {
			out.MaxTokens = req.MaxTokens
		}
	}

	return out
}

func (p *openAIProvider) endpoint() string {
	if p.cfg.Provider == ProviderAzure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			p.cfg.BaseURL, p.cfg.AzureDeployment, p.cfg.AzureAPIVersion)
	}
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
}

func (p *openAIProvider) newHTTPRequest(ctx context.Context, body openAIChatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, ids.Wrap(ids.KindSerde, "encode chat request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "build http request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Provider == ProviderAzure {
		req.Header.Set("api-key", p.cfg.APIKey)
	} else if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	return req, nil
}

func (p *openAIProvider) Complete(ctx context.Context, req LlmRequest) (*LlmResponse, error) {
	httpReq, err := p.newHTTPRequest(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := p.retry.Do(httpReq)
	if err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readErrorBody(resp)
		return nil, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body))
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), "invalid JSON response: "+err.Error())
	}

	if len(parsed.Choices) == 0 {
		return nil, ids.LlmProviderError(p.ProviderName(), "empty candidates in response")
	}

	choice := parsed.Choices[0]
	out := &LlmResponse{
		Content:      choice.Message.Content,
		Model:        parsed.Model,
		ProviderId:   parsed.Id,
		FinishReason: FinishReasonFromVendor(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	out.ToolCalls = parseOpenAIToolCalls(choice.Message.ToolCalls)
	if len(out.ToolCalls) > 0 && out.FinishReason.String() == finishStop {
		out.FinishReason = FinishToolCalls
	}
	if out.Usage.TotalTokens == 0 {
		promptText := flattenMessages(req.Messages)
		out.Usage = EstimateUsage(p.cfg.Model, promptText, out.Content)
	}
	return out, nil
}

// parseOpenAIToolCalls tolerates malformed argument JSON by falling back to
// {"raw_arguments": "<string>"} rather than failing the call (§4.1).
func parseOpenAIToolCalls(calls []openAIToolCall) []LlmToolCall {
	out := make([]LlmToolCall, 0, len(calls))
	for _, c := range calls {
		var params map[string]any
		if err := json.Unmarshal([]byte(c.Function.Arguments), &params); err != nil {
			params = map[string]any{"raw_arguments": c.Function.Arguments}
		}
		out = append(out, LlmToolCall{Id: c.Id, Name: c.Function.Name, Parameters: params})
	}
	return out
}

func flattenMessages(messages []LlmMessage) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (p *openAIProvider) Stream(ctx context.Context, req LlmRequest) (<-chan StreamChunk, error) {
	if !p.SupportsStreaming() {
		return nil, ids.LlmProviderError(p.ProviderName(), "provider does not support streaming")
	}

	httpReq, err := p.newHTTPRequest(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, initialConnectTimeout)
	resp, err := p.httpClient.Do(httpReq.WithContext(connectCtx))
	if err != nil {
		cancel()
		return nil, ids.LlmProviderError(p.ProviderName(), err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		body := readErrorBody(resp)
		return nil, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body))
	}

	out := make(chan StreamChunk)
	go func() {
		defer cancel()
		defer resp.Body.Close()
		defer close(out)

		err := scanSSE(ctx, resp.Body, func(ev sseEvent) error {
			if ev.done {
				out <- StreamChunk{Done: true}
				return nil
			}
			var chunk openAIChatResponse
			if err := json.Unmarshal([]byte(ev.data), &chunk); err != nil {
				return err
			}
			if len(chunk.Choices) == 0 {
				return nil
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				return nil
			}
			select {
			case out <- StreamChunk{Id: chunk.Id, Content: delta}:
			case <-ctx.Done():
			}
			return nil
		})
		if err != nil {
			select {
			case out <- StreamChunk{Err: ids.LlmProviderError(p.ProviderName(), "stream corrupted: "+err.Error()), Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
