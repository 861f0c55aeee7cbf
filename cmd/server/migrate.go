package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"narrative-server/internal/database"
	"narrative-server/pkg/migration"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Down() })
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Force the schema version and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("версия миграции должна быть числом: %w", err)
				}
				return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.ForceVersion(version) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *migration.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
					return nil
				})
			},
		},
	)
}

func withMigrator(ctx context.Context, fn func(*migration.Migrator) error) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := connectPostgres(connectCtx, cfg, log, 3)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := fn(database.NewMigrator(pool, log)); err != nil {
		log.Error("Migration command failed", zap.Error(err))
		return err
	}
	return nil
}
