// ABOUTME: Migrate command applies the relational store schema
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/sekha/internal/config"
	"github.com/harper/sekha/internal/storage/sqlite"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the relational store schema",
		Long: `Open (creating if needed) the sqlite database at database.url and
apply the schema. sqlite.Open is idempotent: running migrate against
an already-current database is a no-op.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	defer db.Close()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "schema applied at %s\n", cfg.Database.URL)
	}
	return nil
}
