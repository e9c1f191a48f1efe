package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/config"
	"github.com/conclave-hq/conclave/pkg/db"
	"github.com/conclave-hq/conclave/pkg/logging"
)

func newDBCommand() *cobra.Command {
	var migrationsDir string

	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database schema management",
		Long: `Apply and inspect database migrations.

The base schema is applied automatically whenever a command connects. The
db commands manage additional SQL migrations on top of it: .sql files in
the migrations directory, named with numeric prefixes (001_add_indexes.sql,
002_backfill.sql), applied in alphabetical order and tracked in the
schema_migrations table.

Examples:
  conclave db status
  conclave db migrate
  conclave db migrate --migrations ./db/migrations`,
		Aliases: []string{"database"},
	}

	dbCmd.PersistentFlags().StringVarP(&migrationsDir, "migrations", "m", "migrations", "path to migrations directory")

	dbCmd.AddCommand(newDBMigrateCommand(&migrationsDir))
	dbCmd.AddCommand(newDBStatusCommand(&migrationsDir))
	return dbCmd
}

func newDBMigrateCommand(migrationsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long: `Apply pending SQL migrations in alphabetical order.

Each migration runs in a transaction and is recorded in schema_migrations.
A failing migration rolls back and stops the run; later migrations are not
attempted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := connectForMigrations(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(pool)

			result, err := db.RunMigrations(cmd.Context(), pool, *migrationsDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, v := range result.Applied {
				fmt.Fprintf(out, "applied  %s\n", v)
			}
			for _, v := range result.Skipped {
				fmt.Fprintf(out, "skipped  %s\n", v)
			}
			if len(result.Applied) == 0 {
				fmt.Fprintln(out, "No pending migrations.")
			}
			return nil
		},
	}
}

func newDBStatusCommand(migrationsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := connectForMigrations(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(pool)

			pending, err := db.GetPendingMigrations(cmd.Context(), pool, *migrationsDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending migrations.")
				return nil
			}
			for _, m := range pending {
				fmt.Fprintf(out, "pending  %s\n", m.Name)
			}
			return nil
		},
	}
}

// connectForMigrations opens a bare pool. Unlike newRuntime it skips redis
// and the base schema so migrations can run against an empty database.
func connectForMigrations(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logging.SetGlobal(newLogger(cfg))

	pool, err := db.ConnectWithRetry(ctx, cfg.Database, dbConnectAttempts, dbConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}
