package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelops/cardflow/internal/core"
)

func TestOpenAIProviderSend(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello back"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "test-key"})
	resp, err := p.Send(context.Background(), core.LLMRequest{
		Provider: "openai",
		Model:    "gpt-4o",
		Prompt:   "hello",
		Parameters: map[string]any{
			"temperature": 0.4,
			"max_tokens":  float64(256),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, 0.4, gotBody["temperature"])
	assert.Equal(t, float64(256), gotBody["max_tokens"])

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{BaseURL: srv.URL})
	_, err := p.Send(context.Background(), core.LLMRequest{Model: "gpt-4o", Prompt: "hi"})
	require.Error(t, err)

	var domErr *core.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, core.CodeProviderFailed, domErr.Code)
	assert.Contains(t, domErr.Message, "rate limited")
	assert.Equal(t, http.StatusTooManyRequests, domErr.Details["status"])
}

func TestAnthropicProviderSend(t *testing.T) {
	var gotPath string
	var gotKey string
	var gotVersion string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "part one"}, {"type": "text", "text": " part two"}],
			"usage": {"input_tokens": 30, "output_tokens": 11}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "secret"})
	resp, err := p.Send(context.Background(), core.LLMRequest{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
		Prompt:   "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, anthropicVersion, gotVersion)
	assert.Equal(t, float64(anthropicDefaultMaxTokens), gotBody["max_tokens"])

	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, 30, resp.Usage.PromptTokens)
	assert.Equal(t, 11, resp.Usage.CompletionTokens)
	assert.Equal(t, 41, resp.Usage.TotalTokens)
}

func TestAnthropicProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid api key"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "bad"})
	_, err := p.Send(context.Background(), core.LLMRequest{Model: "claude-sonnet-4-5", Prompt: "hi"})
	require.Error(t, err)

	var domErr *core.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, core.ErrCatExecution, domErr.Category)
	assert.Contains(t, domErr.Message, "invalid api key")
}

type stubProvider struct {
	name  string
	reply string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Send(_ context.Context, req core.LLMRequest) (*core.LLMResponse, error) {
	return &core.LLMResponse{Content: s.reply + ":" + req.Prompt}, nil
}

func TestRouterDispatchesByProvider(t *testing.T) {
	reg := NewRegistry()
	reg.Register("openai", &stubProvider{name: "openai", reply: "oai"})
	reg.Register("anthropic", &stubProvider{name: "anthropic", reply: "ant"})

	router := NewRouter(reg, "openai")

	resp, err := router.SendRequest(context.Background(), core.LLMRequest{Provider: "anthropic", Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ant:x", resp.Content)

	// Empty provider falls back to the default.
	resp, err = router.SendRequest(context.Background(), core.LLMRequest{Prompt: "y"})
	require.NoError(t, err)
	assert.Equal(t, "oai:y", resp.Content)
}

func TestRouterUnknownProvider(t *testing.T) {
	router := NewRouter(NewRegistry(), "openai")
	_, err := router.SendRequest(context.Background(), core.LLMRequest{Provider: "nope", Prompt: "x"})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestRegistryConfigureDropsCachedInstance(t *testing.T) {
	reg := NewRegistry()

	first, err := reg.Get("openai")
	require.NoError(t, err)

	reg.Configure("openai", Config{BaseURL: "http://localhost:9999"})

	second, err := reg.Get("openai")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register("custom", &stubProvider{name: "custom"})

	names := reg.List()
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "anthropic")
	assert.Contains(t, names, "custom")
}
