package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/madlen/chat-backend/internal/config"
	"github.com/madlen/chat-backend/internal/logger"
	"github.com/madlen/chat-backend/internal/observability"
	"github.com/madlen/chat-backend/internal/tracing"
	"github.com/madlen/chat-backend/pkg/catalog"
	"github.com/madlen/chat-backend/pkg/chat"
	"github.com/madlen/chat-backend/pkg/history"
	"github.com/madlen/chat-backend/pkg/httpapi"
	"github.com/madlen/chat-backend/pkg/openrouter"
	"github.com/madlen/chat-backend/pkg/uploads"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	Long: `Run the chat API server in the foreground until interrupted.
The server exposes the history, sessions, models, chat and upload endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return err
	}
	defer appLogger.Close()
	zl := appLogger.GetZerolog()

	observability.EnsureRegistered()

	if err := tracing.InitOpenTelemetry(tracing.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	}); err != nil {
		// Telemetry is not worth refusing to serve over.
		zl.Warn().Err(err).Msg("Unable to initialize tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			zl.Warn().Err(err).Msg("Tracing shutdown failed")
		}
	}()

	store := history.NewStore(cfg.History.File, zl)

	gateway := openrouter.NewClient(openrouter.Options{
		APIKey:  cfg.OpenRouter.APIKey,
		BaseURL: cfg.OpenRouter.BaseURL,
		Referer: cfg.OpenRouter.SiteURL,
		Title:   cfg.OpenRouter.AppName,
	}, zl)

	cache := catalog.New(gateway, cfg.ModelCache.TTL, zl)

	var refresher *catalog.Refresher
	if cfg.ModelCache.BackgroundRefresh {
		refresher = catalog.NewRefresher(cache, cfg.ModelCache.TTL, zl)
		if err := refresher.Start(); err != nil {
			return err
		}
		defer refresher.Stop()
	}

	uploadStore, err := uploads.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, zl)
	if err != nil {
		return err
	}

	orchestrator := chat.New(store, gateway, zl)

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Env:  cfg.Env,
	}, store, cache, orchestrator, uploadStore, zl)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zl.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	}

	return server.Stop()
}
