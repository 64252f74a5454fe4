package handlers

import (
	"fmt"

	"civicbriefs/internal/pipeline"
	"civicbriefs/internal/seed"

	"github.com/spf13/cobra"
)

// NewSeedCmd creates the seed command
func NewSeedCmd() *cobra.Command {
	var syllabusPath, pyqPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load syllabus topics and previous-year questions into empty tables",
		Long: `Seed files may be YAML or JSON. Each table is only seeded while empty, so
running this twice is harmless.

Examples:
  civicbriefs seed
  civicbriefs seed --syllabus data/seed/syllabus.yaml --pyqs data/seed/pyq.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if syllabusPath == "" {
				syllabusPath = cfg.Seed.SyllabusPath
			}
			if pyqPath == "" {
				pyqPath = cfg.Seed.PyqPath
			}

			db, err := pipeline.OpenDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			report, err := seed.Load(ctx, db, syllabusPath, pyqPath)
			if err != nil {
				return err
			}
			fmt.Printf("🌱 Seeded %d topics and %d questions\n", report.Topics, report.Pyqs)
			if report.Topics == 0 && report.Pyqs == 0 {
				fmt.Println("   Tables were already populated or seed files are missing")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&syllabusPath, "syllabus", "", "Syllabus seed file (default from config)")
	cmd.Flags().StringVar(&pyqPath, "pyqs", "", "Question archive seed file (default from config)")
	return cmd
}
