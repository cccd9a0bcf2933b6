// Package llm provides HTTP chat-completion adapters behind the
// core.LLMClient port, keyed by provider name.
package llm

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/modelops/cardflow/internal/core"
)

// Provider sends chat-completion requests for one vendor API.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Send issues a single request and returns the response with usage.
	Send(ctx context.Context, req core.LLMRequest) (*core.LLMResponse, error)
}

// Config configures a single provider adapter.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; built from Timeout when nil
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// ProviderFactory creates a provider from configuration.
type ProviderFactory func(cfg Config) Provider

// Registry manages available providers.
type Registry struct {
	factories map[string]ProviderFactory
	providers map[string]Provider
	configs   map[string]Config
	mu        sync.RWMutex
}

// NewRegistry creates a registry with the built-in provider factories.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]ProviderFactory),
		providers: make(map[string]Provider),
		configs:   make(map[string]Config),
	}
	r.RegisterFactory("openai", NewOpenAIProvider)
	r.RegisterFactory("anthropic", NewAnthropicProvider)
	return r
}

// RegisterFactory registers a factory for a provider type.
func (r *Registry) RegisterFactory(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Register adds a provider instance directly (used by tests and plugins).
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Configure sets configuration for a provider and drops any cached instance.
func (r *Registry) Configure(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	delete(r.providers, name)
}

// Get returns a provider by name, creating it from its factory if necessary.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, core.ErrNotFound("provider", name)
	}
	p := factory(r.configs[name])
	r.providers[name] = p
	return p, nil
}

// List returns all known provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	names := make([]string, 0, len(r.factories)+len(r.providers))
	for name := range r.factories {
		seen[name] = true
		names = append(names, name)
	}
	for name := range r.providers {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}

// Router dispatches requests to the provider named in each request. It is
// the core.LLMClient implementation handed to the workflow engine.
type Router struct {
	registry        *Registry
	defaultProvider string
}

// NewRouter creates a router over the registry.
func NewRouter(registry *Registry, defaultProvider string) *Router {
	return &Router{registry: registry, defaultProvider: defaultProvider}
}

// SendRequest implements core.LLMClient.
func (rt *Router) SendRequest(ctx context.Context, req core.LLMRequest) (*core.LLMResponse, error) {
	name := req.Provider
	if name == "" {
		name = rt.defaultProvider
	}
	provider, err := rt.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return provider.Send(ctx, req)
}

// Verify that Router implements core.LLMClient.
var _ core.LLMClient = (*Router)(nil)
