package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CARDFLOW",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "CARDFLOW",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
//  1. CLI flags (set via viper.BindPFlag)
//  2. Environment variables (CARDFLOW_*)
//  3. Project config (.cardflow/config.yaml in current directory)
//  4. User config (~/.config/cardflow/config.yaml)
//  5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".cardflow")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "cardflow"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Watch reloads the config whenever the file changes and invokes onChange
// with the freshly unmarshaled result. Unmarshal failures keep the previous
// configuration and are reported through onError (which may be nil).
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := l.v.Unmarshal(&cfg); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(&cfg)
	})
	l.v.WatchConfig()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.no_cors", false)

	l.v.SetDefault("state.backend", "json")
	l.v.SetDefault("state.path", ".cardflow/state")

	l.v.SetDefault("providers.default", "openai")
	l.v.SetDefault("providers.openai.enabled", true)
	l.v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	l.v.SetDefault("providers.openai.timeout", "2m")
	l.v.SetDefault("providers.anthropic.enabled", false)
	l.v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	l.v.SetDefault("providers.anthropic.timeout", "2m")

	l.v.SetDefault("tools.poll_interval", "30s")

	l.v.SetDefault("history.limit", 10)
}
