package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/efficore/agentcore/internal/buffer"
	"github.com/efficore/agentcore/internal/channel"
	"github.com/efficore/agentcore/internal/config"
	"github.com/efficore/agentcore/internal/coreapi"
	"github.com/efficore/agentcore/internal/delivery"
	"github.com/efficore/agentcore/internal/engine"
	"github.com/efficore/agentcore/internal/engine/providers"
	"github.com/efficore/agentcore/internal/observability"
	"github.com/efficore/agentcore/internal/service"
	"github.com/efficore/agentcore/internal/storage"
)

// buildServeCmd creates the "serve" command that starts the service.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentcore service",
		Long: `Start the agentcore service.

The server will:
1. Load configuration from the specified file
2. Apply the database schema and connect
3. Build the LLM providers and tool collaborators
4. Start the buffer sweep and the HTTP API
5. Expose Prometheus metrics on the metrics port

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

// buildMigrateCmd creates the "migrate" command that applies the schema.
func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			stores, err := storage.NewPostgresStores(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer stores.Close()

			ctx := cmd.Context()
			if err := stores.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			if err := buffer.NewPostgresStore(stores.DB()).EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to apply buffer schema: %w", err)
			}
			fmt.Println("schema up to date")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml",
		"Path to YAML configuration file")
	return cmd
}

// runServe implements the serve command logic.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("starting agentcore",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	stores, err := storage.NewPostgresStores(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer stores.Close()
	stores.DB().SetMaxOpenConns(cfg.Database.MaxConnections)
	stores.DB().SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := stores.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	bufStore := buffer.NewPostgresStore(stores.DB())
	if err := bufStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply buffer schema: %w", err)
	}

	core, err := buildCore(cfg, stores, bufStore, logger, metrics)
	if err != nil {
		return err
	}
	if err := core.Start(); err != nil {
		return fmt.Errorf("failed to start buffer sweep: %w", err)
	}
	defer core.Stop()

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		logger.Info("metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	api := newAPIServer(core, cfg.Server.InternalSecret, logger)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler: api.routes(),
	}
	go func() {
		logger.Info("api listening", "addr", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown failed", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown failed", "error", err)
	}
	return nil
}

// buildCore assembles the service core from loaded configuration.
func buildCore(cfg *config.Config, stores *storage.PostgresStores, bufStore buffer.Store, logger *slog.Logger, metrics *observability.Metrics) (*service.Core, error) {
	coreAPI, err := coreapi.NewClient(coreapi.Config{
		BaseURL:        cfg.CoreAPI.BaseURL,
		InternalSecret: cfg.CoreAPI.InternalSecret,
		Timeout:        cfg.CoreAPI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build core API client: %w", err)
	}

	adapter, err := channel.NewHTTPAdapter(channel.HTTPConfig{
		BaseURL:        cfg.Gateway.BaseURL,
		InternalSecret: cfg.Gateway.InternalSecret,
		Timeout:        cfg.Gateway.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway adapter: %w", err)
	}

	primary, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:  cfg.LLM.OpenAI.APIKey,
		BaseURL: cfg.LLM.OpenAI.BaseURL,
		Model:   cfg.LLM.OpenAI.Model,
	}, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build LLM provider: %w", err)
	}

	var advanced engine.Provider
	if cfg.LLM.Advanced.BaseURL != "" {
		advanced = providers.NewAdvancedProvider(providers.AdvancedConfig{
			BaseURL:        cfg.LLM.Advanced.BaseURL,
			InternalSecret: cfg.LLM.Advanced.InternalSecret,
			Timeout:        cfg.LLM.Advanced.Timeout,
		})
	}

	eng := engine.New(primary, advanced, engine.Collaborators{
		Search:    coreAPI,
		Knowledge: coreAPI,
		Payments:  coreAPI,
		Calendar:  coreAPI,
		Followups: coreAPI,
		CRM:       coreAPI,
	}, engine.Config{
		Model:         cfg.Engine.Model,
		MaxIterations: cfg.Engine.MaxIterations,
		HistoryWindow: cfg.Engine.HistoryWindow,
		MaxTokens:     cfg.Engine.MaxTokens,
	}, stores.Stores(), logger, metrics)

	pipeline := delivery.NewPipeline(adapter, stores, delivery.Config{
		SplitEnabled: *cfg.Delivery.SplitEnabled,
		ChunkSize:    cfg.Delivery.ChunkSize,
		MediaBaseURL: cfg.Delivery.MediaBaseURL,
		Delays: delivery.DelayConfig{
			PerChar: cfg.Delivery.DelayPerChar,
			Min:     cfg.Delivery.DelayMin,
			Max:     cfg.Delivery.DelayMax,
			Jitter:  *cfg.Delivery.DelayJitter,
			Media:   cfg.Delivery.MediaDelay,
		},
	}, logger, metrics)

	svcCfg := service.Config{
		QuietPeriod: cfg.Buffer.QuietPeriod,
		Buffer: buffer.ManagerConfig{
			Lease:         cfg.Buffer.Lease,
			SweepInterval: cfg.Buffer.SweepInterval,
		},
	}
	return service.NewCore(svcCfg, bufStore, coreAPI, eng, pipeline, stores, logger, metrics), nil
}
