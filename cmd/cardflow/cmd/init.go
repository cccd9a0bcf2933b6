package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a cardflow project",
	Long: `Initialize cardflow in the current directory. Creates the .cardflow
directory with a default configuration file and the state directory.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

// defaultConfigFile mirrors config.Config with yaml tags so the generated
// file keeps a stable key order.
type defaultConfigFile struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	State struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"state"`
	Providers struct {
		Default string `yaml:"default"`
		OpenAI  struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
			Timeout string `yaml:"timeout"`
		} `yaml:"openai"`
		Anthropic struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
			Timeout string `yaml:"timeout"`
		} `yaml:"anthropic"`
	} `yaml:"providers"`
	Tools struct {
		PollInterval string `yaml:"poll_interval"`
		Servers      []any  `yaml:"servers"`
	} `yaml:"tools"`
	History struct {
		Limit int `yaml:"limit"`
	} `yaml:"history"`
}

func runInit(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, ".cardflow")
	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s, use --force to overwrite", configPath)
	}

	if err := os.MkdirAll(filepath.Join(dir, "state"), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	var cfg defaultConfigFile
	cfg.Log.Level = "info"
	cfg.Log.Format = "auto"
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.State.Backend = "json"
	cfg.State.Path = ".cardflow/state"
	cfg.Providers.Default = "openai"
	cfg.Providers.OpenAI.Enabled = true
	cfg.Providers.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.Providers.OpenAI.Timeout = "2m"
	cfg.Providers.Anthropic.Enabled = false
	cfg.Providers.Anthropic.BaseURL = "https://api.anthropic.com"
	cfg.Providers.Anthropic.Timeout = "2m"
	cfg.Tools.PollInterval = "30s"
	cfg.Tools.Servers = []any{}
	cfg.History.Limit = 10

	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}

	header := "# cardflow configuration\n# API keys can also be set via CARDFLOW_PROVIDERS_OPENAI_API_KEY etc.\n\n"
	if err := os.WriteFile(configPath, append([]byte(header), raw...), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Initialized cardflow project")
	fmt.Println("Configuration file:", configPath)
	fmt.Println("State directory:   ", filepath.Join(dir, "state"))
	return nil
}
