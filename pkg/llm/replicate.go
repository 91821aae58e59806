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

// replicateProvider flattens the message list into a single prompt string,
// posts a prediction, then polls for completion (§4.1). Replicate has no
// streaming and no function calling.
type replicateProvider struct {
	cfg        LlmConfig
	httpClient *http.Client
	retry      *httpclient.Client
	cap        capability
}

func newReplicateProvider(cfg LlmConfig) *replicateProvider {
	transport := &http.Transport{MaxIdleConnsPerHost: 10, IdleConnTimeout: 90 * time.Second}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Timeout}
	return &replicateProvider{
		cfg:        cfg,
		httpClient: httpClient,
		retry:      httpclient.New(httpclient.WithHTTPClient(httpClient)),
		cap:        lookupCapability(cfg.Provider, cfg.Model),
	}
}

func (p *replicateProvider) ProviderName() string          { return "replicate" }
func (p *replicateProvider) ModelName() string              { return p.cfg.Model }
func (p *replicateProvider) SupportsFunctionCalling() bool   { return false }
func (p *replicateProvider) SupportsStreaming() bool         { return false }
func (p *replicateProvider) MaxContextLength() int           { return p.cap.maxContext }
func (p *replicateProvider) CostPerToken() (float64, float64) {
	return p.cap.inputPerToken, p.cap.outputPerToken
}

// flattenToPrompt renders "<Role>: <content>\n\n..." per message, per §4.1.
func flattenToPrompt(messages []LlmMessage) string {
	var sb strings.Builder
	for i, m := range messages {
		role := strings.ToUpper(string(m.Role)[:1]) + string(m.Role)[1:]
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		if i < len(messages)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

type replicatePredictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type replicatePrediction struct {
	Id     string `json:"id"`
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  any    `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (p *replicateProvider) Complete(ctx context.Context, req LlmRequest) (*LlmResponse, error) {
	prompt := flattenToPrompt(req.Messages)
	input := map[string]any{"prompt": prompt}
	if req.MaxTokens != nil {
		input["max_new_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		input["temperature"] = *req.Temperature
	}

	payload, err := json.Marshal(replicatePredictionRequest{Version: p.cfg.Model, Input: input})
	if err != nil {
		return nil, ids.Wrap(ids.KindSerde, "encode replicate prediction request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/predictions", bytes.NewReader(payload))
	if err != nil {
		return nil, ids.Wrap(ids.KindIo, "build http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	httpReq.Header.Set("Prefer", "wait=1")

	resp, err := p.retry.Do(httpReq)
	if err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readErrorBody(resp)
		return nil, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body))
	}

	var pred replicatePrediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, ids.LlmProviderError(p.ProviderName(), "invalid JSON response: "+err.Error())
	}

	pred, err = p.pollUntilDone(ctx, pred)
	if err != nil {
		return nil, err
	}

	content := joinReplicateOutput(pred.Output)
	usage := EstimateUsage(p.cfg.Model, prompt, content)
	return &LlmResponse{
		Content:      content,
		Model:        p.cfg.Model,
		ProviderId:   pred.Id,
		FinishReason: FinishStop,
		Usage:        usage,
	}, nil
}

// pollUntilDone polls the prediction's get URL every PollInterval until it
// reaches a terminal status or MaxWaitTime elapses (§4.1, §5).
func (p *replicateProvider) pollUntilDone(ctx context.Context, pred replicatePrediction) (replicatePrediction, error) {
	deadline := time.Now().Add(p.cfg.MaxWaitTime)
	for pred.Status != "succeeded" && pred.Status != "failed" && pred.Status != "canceled" {
		if time.Now().After(deadline) {
			return pred, ids.LlmProviderError(p.ProviderName(), "prediction poll exceeded max_wait_time")
		}
		select {
		case <-ctx.Done():
			return pred, ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return pred, ids.Wrap(ids.KindIo, "build poll request", err)
		}
		req.Header.Set("Authorization", "Token "+p.cfg.APIKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return pred, ids.LlmProviderError(p.ProviderName(), err.Error())
		}
		err = json.NewDecoder(resp.Body).Decode(&pred)
		resp.Body.Close()
		if err != nil {
			return pred, ids.LlmProviderError(p.ProviderName(), "invalid JSON poll response: "+err.Error())
		}
	}
	if pred.Status != "succeeded" {
		return pred, ids.LlmProviderError(p.ProviderName(), fmt.Sprintf("prediction %s: %v", pred.Status, pred.Error))
	}
	return pred, nil
}

// joinReplicateOutput normalizes Replicate's output, which is either a
// string or a list of string tokens to be concatenated.
func joinReplicateOutput(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, tok := range v {
			if s, ok := tok.(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

func (p *replicateProvider) Stream(ctx context.Context, req LlmRequest) (<-chan StreamChunk, error) {
	return nil, ids.LlmProviderError(p.ProviderName(), "provider does not support streaming")
}
