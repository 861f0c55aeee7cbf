package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig - параметры пула соединений PostgreSQL.
type PoolConfig struct {
	DSN         string
	MaxConns    int32
	IdleTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// Connect создает пул соединений, повторяя попытки, пока база не поднимется.
func Connect(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = cfg.IdleTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}

	logger.Info("Attempting to connect to PostgreSQL", zap.Int("max_retries", maxRetries), zap.Duration("retry_delay", retryDelay))

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pool, err := tryConnect(ctx, poolConfig)
		if err == nil {
			logger.Info("Successfully connected and pinged PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}
		lastErr = err
		logger.Warn("PostgreSQL connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("postgres connect cancelled: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

func tryConnect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}
