package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/connectr/internal/database"
	"github.com/jmylchreest/connectr/internal/database/migrations"
	"github.com/jmylchreest/connectr/internal/observability"
)

var dbStatusJSON bool

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the credential store schema",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List schema migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *database.DB) error {
			statuses, err := db.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			if dbStatusJSON {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}
			return writeMigrationTable(cmd, db.Driver(), statuses)
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *database.DB) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the newest schema migration",
	Long: "Revert the newest schema migration. Rolling back the user data " +
		"migration drops stored credentials and tokens.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *database.DB) error {
			step, err := db.Rollback(ctx)
			if errors.Is(err, migrations.ErrNothingToRollback) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s: %s\n", step.Version, step.Description)
			return nil
		})
	},
}

func init() {
	dbStatusCmd.Flags().BoolVar(&dbStatusJSON, "json", false, "output migration status as JSON")
	dbCmd.AddCommand(dbStatusCmd, dbMigrateCmd, dbRollbackCmd)
	rootCmd.AddCommand(dbCmd)
}

// withDatabase opens the store without applying migrations, so status and
// rollback see the schema as it is on disk.
func withDatabase(ctx context.Context, fn func(context.Context, *database.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.WithComponent(slog.Default(), "database")
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", slog.Any("error", err))
		}
	}()
	return fn(ctx, db)
}

func writeMigrationTable(cmd *cobra.Command, driver string, statuses []migrations.MigrationStatus) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Driver: %s\n\n", driver)
	fmt.Fprintln(tw, "VERSION\tDESCRIPTION\tAPPLIED")
	for _, st := range statuses {
		applied := "pending"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Version, st.Description, applied)
	}
	return tw.Flush()
}
