package core

import (
	"context"
	"time"
)

// =============================================================================
// LLM Port
// =============================================================================

// LLMRequest is the provider-agnostic request built from a model card and the
// running chain input.
type LLMRequest struct {
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// TokenUsage carries per-request token accounting from a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolResult is one tool invocation's outcome returned alongside a response.
type ToolResult struct {
	ToolID string `json:"tool_id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// LLMResponse is a provider's answer to a single request.
type LLMResponse struct {
	Content     string       `json:"content"`
	Usage       TokenUsage   `json:"usage"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// LLMClient defines the contract for sending one chat-completion request.
// Implementations must not swallow provider or network errors; the engine
// propagates them to the caller unchanged.
type LLMClient interface {
	SendRequest(ctx context.Context, req LLMRequest) (*LLMResponse, error)
}

// LLMClientFunc adapts a function to the LLMClient interface.
type LLMClientFunc func(ctx context.Context, req LLMRequest) (*LLMResponse, error)

// SendRequest implements LLMClient.
func (f LLMClientFunc) SendRequest(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	return f(ctx, req)
}

// =============================================================================
// Store Port
// =============================================================================

// Fixed storage keys for the engine's collections.
const (
	StoreKeyWorkflows = "workflows"
	StoreKeyHistory   = "workflow_execution_history"
)

// Store defines the key-value persistence contract. Values are
// JSON-serializable; whole collections are rewritten on every change.
type Store interface {
	// GetItem unmarshals the value stored under key into dest. Returns
	// (false, nil) if the key has never been written.
	GetItem(ctx context.Context, key string, dest any) (bool, error)

	// SetItem marshals value and stores it under key, replacing any
	// previous value atomically.
	SetItem(ctx context.Context, key string, value any) error
}

// =============================================================================
// Tool Server Port
// =============================================================================

// ToolServerConfig identifies a pluggable MCP tool server.
type ToolServerConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ToolServerStatus is the last observed state of a tool server.
type ToolServerStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Online    bool      `json:"online"`
	ToolCount int       `json:"tool_count"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// ToolServerMonitor reports the availability of configured tool servers.
type ToolServerMonitor interface {
	// Statuses returns the most recently observed status per server.
	Statuses() []ToolServerStatus

	// Poll refreshes all statuses now.
	Poll(ctx context.Context) []ToolServerStatus
}
