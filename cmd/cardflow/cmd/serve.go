package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/modelops/cardflow/internal/adapters/llm"
	"github.com/modelops/cardflow/internal/adapters/state"
	"github.com/modelops/cardflow/internal/adapters/tools"
	"github.com/modelops/cardflow/internal/api"
	"github.com/modelops/cardflow/internal/config"
	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/events"
	"github.com/modelops/cardflow/internal/logging"
	"github.com/modelops/cardflow/internal/service/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow engine API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "bind address (default from config)")
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := state.NewStore(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer func() {
		if err := state.CloseStore(store); err != nil {
			logger.Error("failed to close state store", "error", err)
		}
	}()

	registry := llm.NewRegistry()
	configureProviders(registry, cfg)
	router := llm.NewRouter(registry, cfg.Providers.Default)

	bus := events.NewBus(256)
	defer bus.Close()

	svc := workflow.NewService(store, router, bus, logger,
		workflow.WithHistoryLimit(cfg.History.Limit))
	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	monitor := newToolMonitor(cfg, bus, logger)

	serverOpts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithToolMonitor(monitor),
	}
	serverOpts = append(serverOpts, corsOption(cfg)...)
	server := api.NewServer(svc, bus, serverOpts...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Live-reload provider credentials when the config file changes.
	loader.Watch(func(next *config.Config) {
		configureProviders(registry, next)
		logger.Info("configuration reloaded")
	}, func(err error) {
		logger.Error("config reload failed", "error", err)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		monitor.Run(gctx, pollInterval(cfg))
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func corsOption(cfg *config.Config) []api.ServerOption {
	if cfg.Server.NoCORS {
		return []api.ServerOption{api.WithoutCORS()}
	}
	return nil
}

func configureProviders(registry *llm.Registry, cfg *config.Config) {
	if cfg.Providers.OpenAI.Enabled {
		registry.Configure("openai", providerConfig(cfg.Providers.OpenAI))
	}
	if cfg.Providers.Anthropic.Enabled {
		registry.Configure("anthropic", providerConfig(cfg.Providers.Anthropic))
	}
}

func providerConfig(pc config.ProviderConfig) llm.Config {
	timeout, err := time.ParseDuration(pc.Timeout)
	if err != nil {
		timeout = 0 // adapter default applies
	}
	return llm.Config{
		BaseURL: pc.BaseURL,
		APIKey:  pc.APIKey,
		Timeout: timeout,
	}
}

func newToolMonitor(cfg *config.Config, bus *events.Bus, logger *logging.Logger) *tools.Monitor {
	servers := make([]core.ToolServerConfig, len(cfg.Tools.Servers))
	for i, srv := range cfg.Tools.Servers {
		servers[i] = core.ToolServerConfig{ID: srv.ID, Name: srv.Name, URL: srv.URL}
	}
	return tools.NewMonitor(servers, bus, logger)
}

func pollInterval(cfg *config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Tools.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
