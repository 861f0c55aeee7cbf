package database

import (
	"embed"

	"narrative-server/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator возвращает мигратор со встроенными миграциями схемы.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) *migration.Migrator {
	return migration.NewMigrator(migration.Config{
		MigrationsFS:   migrationsFS,
		MigrationsPath: "migrations",
	}, pool, logger)
}
