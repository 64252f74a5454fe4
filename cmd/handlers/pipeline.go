package handlers

import (
	"fmt"
	"os"
	"time"

	"civicbriefs/internal/pipeline"
	"civicbriefs/internal/render"

	"github.com/spf13/cobra"
)

// NewPipelineCmd creates the pipeline command
func NewPipelineCmd() *cobra.Command {
	var (
		opts      pipeline.RunOptions
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Ingest, map, build today's capsule and email subscribers",
		Long: `Run the full daily pipeline:

  1. Fetch configured feeds and store new items
  2. Map stored news to syllabus topics
  3. Build (or load) today's capsule
  4. Email the capsule to configured subscribers

Ingestion and mapping failures are reported and the run continues.

Examples:
  civicbriefs pipeline
  civicbriefs pipeline --skip-email --output capsules`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			res, err := services.Pipeline(os.Stdout).Run(ctx, opts)
			if err != nil {
				return err
			}

			fmt.Println("📊 Pipeline Summary")
			fmt.Println(rule)
			fmt.Printf("Duration:        %s\n", res.Stats.ProcessingTime.Round(time.Millisecond))
			fmt.Printf("News fetched:    %d\n", res.Stats.Fetched)
			fmt.Printf("News saved:      %d\n", res.Stats.Saved)
			fmt.Printf("Mappings:        %d\n", res.Stats.Mapped)
			fmt.Printf("Capsule items:   %d\n", res.Stats.CapsuleItems)
			fmt.Printf("Emails sent:     %d (failed %d)\n", res.Stats.EmailsSent, res.Stats.EmailsFailed)

			if outputDir != "" {
				path, err := render.WriteToFile(render.CapsuleMarkdown(res.Capsule), outputDir, render.CapsuleFilename(res.Capsule.Date))
				if err != nil {
					return err
				}
				fmt.Printf("\n✅ Capsule written to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.SkipIngest, "skip-ingest", false, "Skip fetching feeds")
	cmd.Flags().BoolVar(&opts.SkipEmail, "skip-email", false, "Skip emailing subscribers")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Also write the capsule as markdown into this directory")

	return cmd
}
