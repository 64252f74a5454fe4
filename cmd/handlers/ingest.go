package handlers

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch configured feeds and store new news items",
		Long: `Fetch every configured feed concurrently, extract and summarize new items,
and store them. Items whose URL is already stored are skipped.

Examples:
  civicbriefs ingest
  civicbriefs ingest resummarize --limit 50 --force-extract`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			if len(cfg.Feeds.Sources) == 0 {
				fmt.Println("⚠️  No feed sources configured")
				fmt.Println("   Set feeds.sources in .civicbriefs.yaml or NEWS_FEEDS (comma separated)")
				return nil
			}

			report, err := services.Ingest.Run(ctx)
			if report != nil {
				fmt.Printf("📥 Fetched %d items, saved %d new\n", report.Fetched, len(report.Saved))
			}
			if err != nil {
				fmt.Printf("⚠️  Some sources failed: %v\n", err)
			}
			return nil
		},
	}

	cmd.AddCommand(newResummarizeCmd())
	return cmd
}

func newResummarizeCmd() *cobra.Command {
	var (
		limit        int
		forceExtract bool
	)

	cmd := &cobra.Command{
		Use:   "resummarize",
		Short: "Regenerate summaries for the newest stored items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			report, err := services.Ingest.Resummarize(ctx, limit, forceExtract)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Updated %d summaries (%d failures)\n", report.Updated, report.Failures)
			for _, s := range report.Samples {
				fmt.Printf("\n%s\n%s\n", headingStyle.Render(s.Title), s.Summary)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of newest items to resummarize")
	cmd.Flags().BoolVar(&forceExtract, "force-extract", false, "Re-extract page text even when stored content looks complete")
	return cmd
}
