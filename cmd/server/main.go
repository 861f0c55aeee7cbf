package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"narrative-server/internal/config"
	"narrative-server/pkg/database"
	"narrative-server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "narrative-server",
	Short:         "Narrative capture backend: narrations, suggestions and the story world",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to an optional .env file")
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap загружает конфигурацию и создает логгер.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger, maxRetries int) (*pgxpool.Pool, error) {
	log.Info("Connecting to PostgreSQL", zap.String("dsn", cfg.MaskedDSN()))
	return database.Connect(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
		MaxRetries:  maxRetries,
		RetryDelay:  3 * time.Second,
	}, log.Named("Postgres"))
}
