package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Config содержит настройки для миграций.
type Config struct {
	MigrationsFS   fs.FS
	MigrationsPath string
}

// Migrator выполняет миграции схемы поверх пула pgx.
type Migrator struct {
	config Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator создает новый экземпляр Migrator.
func NewMigrator(config Config, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{
		config: config,
		pool:   pool,
		logger: logger.Named("Migrator"),
	}
}

// Up применяет все доступные миграции.
func (m *Migrator) Up() error {
	return m.apply("up", func(mg *migrate.Migrate) error { return mg.Up() })
}

// Down откатывает все миграции.
func (m *Migrator) Down() error {
	return m.apply("down", func(mg *migrate.Migrate) error { return mg.Down() })
}

// ForceVersion принудительно устанавливает версию (снимает флаг dirty).
func (m *Migrator) ForceVersion(version int) error {
	return m.apply("force", func(mg *migrate.Migrate) error { return mg.Force(version) })
}

// Version возвращает текущую версию схемы.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.newMigrate()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) apply(op string, fn func(*migrate.Migrate) error) error {
	mg, err := m.newMigrate()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := fn(mg); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}
	m.logger.Info("Database migration finished", zap.String("op", op))
	return nil
}

func (m *Migrator) newMigrate() (*migrate.Migrate, error) {
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(m.config.MigrationsFS, m.config.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	mg.LockTimeout = 30 * time.Second
	return mg, nil
}
