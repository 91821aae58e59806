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

// anthropicProvider implements Anthropic's Messages API: System messages are
// concatenated into a single top-level `system` field, Tool-role messages
// become synthetic user messages, per §4.1.
type anthropicProvider struct {
	cfg        LlmConfig
	httpClient *http.Client
	retry      *httpclient.Client
	cap        capability
}

func newAnthropicProvider(cfg LlmConfig) *anthropicProvider {
	transport := &http.Transport{MaxIdleConnsPerHost: 10, IdleConnTimeout: 90 * time.Second}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Timeout}
	return &anthropicProvider{
		cfg:        cfg,
		httpClient: httpClient,
		retry:      httpclient.New(httpclient.WithHTTPClient(httpClient), httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders)),
		cap:        lookupCapability(cfg.Provider, cfg.Model),
	}
}

func (p *anthropicProvider) ProviderName() string { return "anthropic" }
func (p *anthropicProvider) ModelName() string    { return p.cfg.Model }
func (p *anthropicProvider) SupportsFunctionCalling() bool { return p.cap.functionCalling }
func (p *anthropicProvider) SupportsStreaming() bool       { return p.cap.streaming }
func (p *anthropicProvider) MaxContextLength() int         { return p.cap.maxContext }
func (p *anthropicProvider) CostPerToken() (float64, float64) {
	return p.cap.inputPerToken, p.cap.outputPerToken
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	Id    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Id         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropicProvider) buildRequest(req LlmRequest, stream bool) anthropicRequest {
	var system strings.Builder
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
		case RoleTool:
			messages = append(messages, anthropicMessage{Role: "user", Content: "Tool result: " + m.Content})
		default:
			role := string(m.Role)
			if m.Role != RoleUser {
				role = "assistant"
			}
			messages = append(messages, anthropicMessage{Role: role, Content: m.Content})
		}
	}

	tools := make([]anthropicTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	maxTokens := 4096
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return anthropicRequest{
		Model:       p.cfg.Model,
		System:      system.String(),
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}
}

func (p *anthropicProvider) newHTTPRequest(ctx context.Context, body anthropicRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, ids.Wrap(ids.KindSerde, "encode anthropic request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "build http request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return req, nil
}

func (p *anthropicProvider) Complete(ctx context.Context, req LlmRequest) (*LlmResponse, error) {
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
		return nil, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, readErrorBody(resp)))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), "invalid JSON response: "+err.Error())
	}
	if len(parsed.Content) == 0 {
		return nil, ids.LlmProviderError(p.ProviderName(), "empty candidates in response")
	}

	var text strings.Builder
	var toolCalls []LlmToolCall
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, LlmToolCall{Id: block.Id, Name: block.Name, Parameters: block.Input})
		}
	}

	out := &LlmResponse{
		Content:      text.String(),
		Model:        parsed.Model,
		ProviderId:   parsed.Id,
		ToolCalls:    toolCalls,
		FinishReason: FinishReasonFromVendor(parsed.StopReason),
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}

func (p *anthropicProvider) Stream(ctx context.Context, req LlmRequest) (<-chan StreamChunk, error) {
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
		return nil, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, readErrorBody(resp)))
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
			var evt struct {
				Type  string `json:"type"`
				Delta struct {
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(ev.data), &evt); err != nil {
				return err
			}
			if evt.Type != "content_block_delta" || evt.Delta.Text == "" {
				return nil
			}
			select {
			case out <- StreamChunk{Content: evt.Delta.Text}:
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
