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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider speaks the OpenAI chat-completions API. It also covers
// every OpenAI-compatible endpoint (local inference servers, gateways)
// when pointed at a different base URL.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAI chat-completions adapter.
func NewOpenAIProvider(cfg Config) Provider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  cfg.httpClient(),
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Send implements Provider.
func (p *OpenAIProvider) Send(ctx context.Context, req core.LLMRequest) (*core.LLMResponse, error) {
	body := openAIChatRequest{
		Model:    req.Model,
		Messages: []openAIMessage{{Role: "user", Content: req.Prompt}},
	}
	if v, ok := floatParam(req.Parameters, "temperature"); ok {
		body.Temperature = &v
	}
	if v, ok := floatParam(req.Parameters, "top_p"); ok {
		body.TopP = &v
	}
	if v, ok := intParam(req.Parameters, "max_tokens"); ok {
		body.MaxTokens = &v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "encode openai request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "build openai request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "openai request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, core.ErrExecution(core.CodeProviderFailed, "read openai response").WithCause(err)
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return nil, core.ErrExecution(core.CodeProviderFailed, "decode openai response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("openai returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, core.ErrExecution(core.CodeProviderFailed, msg).
			WithDetail("status", resp.StatusCode).
			WithDetail("provider", p.Name())
	}

	if len(parsed.Choices) == 0 {
		return nil, core.ErrExecution(core.CodeProviderFailed, "openai response has no choices").
			WithDetail("provider", p.Name())
	}

	return &core.LLMResponse{
		Content: parsed.Choices[0].Message.Content,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
