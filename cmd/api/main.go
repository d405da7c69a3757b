package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/quickread/internal/app"
	"github.com/markdave123-py/quickread/internal/config"
	"github.com/markdave123-py/quickread/internal/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg, err := config.LoadConfig()
	logger := observability.NewLogger(observability.LogConfig{
		Level:       levelOr(cfg),
		Format:      formatOr(cfg),
		ServiceName: "quickread",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- application.Server.Start() }()

	logger.Info().
		Str("policy", cfg.ExtractionPolicy).
		Str("response_mode", cfg.ResponseMode).
		Str("persistence", cfg.PersistenceMode).
		Msg("quickread is running")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	logger.Info().Msg("shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	application.Close(shutdownCtx)
}

func levelOr(cfg *config.Config) string {
	if cfg == nil {
		return "info"
	}
	return cfg.LogLevel
}

func formatOr(cfg *config.Config) string {
	if cfg == nil {
		return "json"
	}
	return cfg.LogFormat
}
