package handlers

import (
	"fmt"

	"civicbriefs/internal/persistence"
	"civicbriefs/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations for the configured driver.

Migrations are tracked in the schema_migrations table and applied in order.
Every other command applies pending migrations automatically.

Examples:
  civicbriefs migrate up
  civicbriefs migrate status`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := pipeline.OpenDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("✅ All migrations applied successfully")
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := pipeline.OpenDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := persistence.NewMigrationManager(db).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			if len(status) == 0 {
				fmt.Println("No migrations found")
				return nil
			}

			fmt.Printf("📊 Migration Status (%s)\n", db.Driver())
			fmt.Println(rule)
			fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")
			fmt.Println(rule)

			applied, pending := 0, 0
			for _, m := range status {
				statusStr, icon := "pending", "⏳"
				if m.Applied {
					statusStr, icon = "applied", "✅"
					applied++
				} else {
					pending++
				}
				fmt.Printf("%-10d %s %-8s %s\n", m.Version, icon, statusStr, m.Description)
			}

			fmt.Println()
			fmt.Printf("Applied: %d | Pending: %d | Total: %d\n", applied, pending, len(status))
			if pending > 0 {
				fmt.Println("\nRun 'civicbriefs migrate up' to apply pending migrations")
			}
			return nil
		},
	}
}
