package handlers

import (
	"context"
	"fmt"

	"civicbriefs/internal/config"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/pipeline"
	"civicbriefs/internal/seed"

	"github.com/spf13/cobra"
)

var (
	cfgFile string

	// loaded by the root command before any subcommand runs
	cfg *config.Config
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "civicbriefs",
		Short: "Daily current-affairs capsules and adaptive study plans for UPSC preparation",
		Long: `civicbriefs ingests news feeds, maps each item to the UPSC syllabus,
links it to previous-year questions and assembles a daily capsule.
Study plans adapt to recorded test scores and trending topics.

Examples:
  # Run the whole daily pipeline
  civicbriefs pipeline

  # Show today's capsule
  civicbriefs capsule show

  # Generate and adapt a study plan
  civicbriefs plan generate asha
  civicbriefs plan feedback asha --test "Polity mock" --score 42

  # Serve the JSON API
  civicbriefs serve --port 8000`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
			logger.Configure(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.civicbriefs.yaml or $HOME/.civicbriefs.yaml)")

	rootCmd.AddCommand(NewPipelineCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewMapCmd())
	rootCmd.AddCommand(NewCapsuleCmd())
	rootCmd.AddCommand(NewPyqsCmd())
	rootCmd.AddCommand(NewPlanCmd())
	rootCmd.AddCommand(NewQuizCmd())
	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewReportCmd())
	rootCmd.AddCommand(NewSeedCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// openServices builds every service from the loaded config and seeds an
// empty syllabus so commands work on a fresh database.
func openServices(ctx context.Context) (*pipeline.Services, error) {
	services, err := pipeline.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return nil, err
	}
	report, err := seed.Load(ctx, services.DB, cfg.Seed.SyllabusPath, cfg.Seed.PyqPath)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to seed syllabus: %w", err)
	}
	if report.Topics > 0 || report.Pyqs > 0 {
		logger.Info("Seeded empty tables", "topics", report.Topics, "pyqs", report.Pyqs)
	}
	return services, nil
}
