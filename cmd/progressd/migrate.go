package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pixelcoders/roadmap-progress/config"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/postgres"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/sqlite"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the progress store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *postgres.Migrator) error {
					n, err := m.Migrate(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
					return nil
				}, migrateSQLite)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last applied migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *postgres.Migrator) error {
					v, err := m.Rollback(ctx)
					if err != nil {
						return err
					}
					if v == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", v)
					return nil
				}, nil)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *postgres.Migrator) error {
					migrations, err := m.Status(ctx)
					if err != nil {
						return err
					}
					return printMigrations(cmd.OutOrStdout(), migrations)
				}, nil)
			},
		},
	)

	return cmd
}

// withMigrator runs fn against the configured postgres database. For the
// sqlite driver it runs onSQLite, which may be nil when the operation has
// no sqlite counterpart.
func withMigrator(
	cmd *cobra.Command,
	fn func(context.Context, *postgres.Migrator) error,
	onSQLite func(*cobra.Command, *config.Config) error,
) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
	case config.DriverSQLite:
		if onSQLite == nil {
			return fmt.Errorf("%s is only supported for STORE_DRIVER=postgres", cmd.CommandPath())
		}
		return onSQLite(cmd, cfg)
	default:
		return fmt.Errorf("STORE_DRIVER=%s has no schema to migrate", cfg.Database.Driver)
	}

	ctx := cmd.Context()
	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn))
}

// migrateSQLite opens the database file, which applies pending migrations.
func migrateSQLite(cmd *cobra.Command, cfg *config.Config) error {
	st, err := sqlite.Open(cmd.Context(), cfg.Database.SQLitePath)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "sqlite schema at %s is up to date\n", cfg.Database.SQLitePath)
	return nil
}

func printMigrations(out io.Writer, migrations []postgres.Migration) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, m := range migrations {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return w.Flush()
}
