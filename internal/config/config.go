package config

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	State     StateConfig     `mapstructure:"state"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	History   HistoryConfig   `mapstructure:"history"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	NoCORS bool   `mapstructure:"no_cors"`
}

// StateConfig configures the persistence backend.
type StateConfig struct {
	Backend string `mapstructure:"backend"` // json or sqlite
	Path    string `mapstructure:"path"`
}

// ProvidersConfig configures available LLM providers.
type ProvidersConfig struct {
	Default   string         `mapstructure:"default"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// ToolsConfig configures MCP tool server monitoring.
type ToolsConfig struct {
	PollInterval string             `mapstructure:"poll_interval"`
	Servers      []ToolServerConfig `mapstructure:"servers"`
}

// ToolServerConfig identifies one MCP tool server.
type ToolServerConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// HistoryConfig configures execution history retention.
type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}
