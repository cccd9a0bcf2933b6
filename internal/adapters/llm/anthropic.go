package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/modelops/cardflow/internal/core"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// The messages API requires max_tokens; used when the card omits it.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAnthropicProvider creates an Anthropic messages adapter.
func NewAnthropicProvider(cfg Config) Provider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicProvider{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  cfg.httpClient(),
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send implements Provider.
func (p *AnthropicProvider) Send(ctx context.Context, req core.LLMRequest) (*core.LLMResponse, error) {
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicDefaultMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if v, ok := intParam(req.Parameters, "max_tokens"); ok && v > 0 {
		body.MaxTokens = v
	}
	if v, ok := floatParam(req.Parameters, "temperature"); ok {
		body.Temperature = &v
	}
	if v, ok := floatParam(req.Parameters, "top_p"); ok {
		body.TopP = &v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "encode anthropic request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "build anthropic request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if p.apiKey != "" {
		httpReq.Header.Set("x-api-key", p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "anthropic request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "read anthropic response").WithCause(err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return nil, core.ErrExecution(core.CodeProviderFailed, "decode anthropic response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("anthropic returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, core.ErrExecution(core.CodeProviderFailed, msg).
			WithDetail("status", resp.StatusCode).
			WithDetail("provider", p.Name())
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := core.TokenUsage{
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
		TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}
	return &core.LLMResponse{Content: text.String(), Usage: usage}, nil
}
