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

// geminiProvider implements Google's Generative Language API. The system
// message is moved to `systemInstruction`, roles become "user"/"model",
// assistant tool calls become `functionCall` parts, and tool definitions are
// wrapped as a single `tools[0].functionDeclarations` array (§4.1).
type geminiProvider struct {
	cfg        LlmConfig
	httpClient *http.Client
	retry      *httpclient.Client
	cap        capability
}

func newGeminiProvider(cfg LlmConfig) *geminiProvider {
	transport := &http.Transport{MaxIdleConnsPerHost: 10, IdleConnTimeout: 90 * time.Second}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Timeout}
	return &geminiProvider{
		cfg:        cfg,
		httpClient: httpClient,
		retry:      httpclient.New(httpclient.WithHTTPClient(httpClient), httpclient.WithHeaderParser(httpclient.ParseGeminiHeaders)),
		cap:        lookupCapability(cfg.Provider, cfg.Model),
	}
}

func (p *geminiProvider) ProviderName() string { return "gemini" }
func (p *geminiProvider) ModelName() string    { return p.cfg.Model }
func (p *geminiProvider) SupportsFunctionCalling() bool { return p.cap.functionCalling }
func (p *geminiProvider) SupportsStreaming() bool       { return p.cap.streaming }
func (p *geminiProvider) MaxContextLength() int         { return p.cap.maxContext }
func (p *geminiProvider) CostPerToken() (float64, float64) {
	return p.cap.inputPerToken, p.cap.outputPerToken
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []struct {
		FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
	} `json:"tools,omitempty"`
	GenerationConfig struct {
		MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
		Temperature     *float64 `json:"temperature,omitempty"`
		TopP            *float64 `json:"topP,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (p *geminiProvider) buildRequest(req LlmRequest) geminiRequest {
	var out geminiRequest
	var system strings.Builder

	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(m.Content)
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		content := geminiContent{Role: role}
		if len(m.ToolCalls) > 0 {
			for _, tc := range m.ToolCalls {
				content.Parts = append(content.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Parameters},
				})
			}
		} else {
			content.Parts = []geminiPart{{Text: m.Content}}
		}
		out.Contents = append(out.Contents, content)
	}

	if system.Len() > 0 {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system.String()}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		out.Tools = []struct {
			FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
		}{{FunctionDeclarations: decls}}
	}

	if req.MaxTokens != nil {
		out.GenerationConfig.MaxOutputTokens = *req.MaxTokens
	}
	out.GenerationConfig.Temperature = req.Temperature
	out.GenerationConfig.TopP = req.TopP

	return out
}

func (p *geminiProvider) url(stream bool) string {
	method := "generateContent"
	suffix := ""
	if stream {
		method = "streamGenerateContent"
		suffix = "&alt=sse"
	}
	return fmt.Sprintf("%s/models/%s:%s?key=%s%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model, method, p.cfg.APIKey, suffix)
}

func (p *geminiProvider) Complete(ctx context.Context, req LlmRequest) (*LlmResponse, error) {
	payload, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, ids.Wrap(ids.KindSerde, "encode gemini request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(false), bytes.NewReader(payload))
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "build http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.retry.Do(httpReq)
	if err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, readErrorBody(resp)))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), "invalid JSON response: "+err.Error())
	}
	if len(parsed.Candidates) == 0 {
		return nil, ids.LlmProviderError(p.ProviderName(), "empty candidates in response")
	}

	candidate := parsed.Candidates[0]
	var text strings.Builder
	var toolCalls []LlmToolCall
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			toolCalls = append(toolCalls, LlmToolCall{
				Id:         part.FunctionCall.Name,
				Name:       part.FunctionCall.Name,
				Parameters: part.FunctionCall.Args,
			})
		}
	}

	out := &LlmResponse{
		Content:      text.String(),
		Model:        p.cfg.Model,
		ToolCalls:    toolCalls,
		FinishReason: FinishReasonFromVendor(candidate.FinishReason),
		Usage: Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}

func (p *geminiProvider) Stream(ctx context.Context, req LlmRequest) (<-chan StreamChunk, error) {
	if !p.SupportsStreaming() {
		return nil, ids.LlmProviderError(p.ProviderName(), "provider does not support streaming")
	}
	payload, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, ids.Wrap(ids.KindSerde, "encode gemini request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(true), bytes.NewReader(payload))
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "build http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
			var chunk geminiResponse
			if err := json.Unmarshal([]byte(ev.data), &chunk); err != nil {
				return err
			}
			if len(chunk.Candidates) == 0 {
				return nil
			}
			var text strings.Builder
			for _, part := range chunk.Candidates[0].Content.Parts {
				text.WriteString(part.Text)
			}
			if text.Len() == 0 {
				return nil
			}
			select {
			case out <- StreamChunk{Content: text.String()}:
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
