package handlers

import (
	"fmt"

	"civicbriefs/internal/render"

	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the last seven days of capsules and tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			report, err := services.Trends.WeeklyReport(ctx, services.Now().In(cfg.App.Location()))
			if err != nil {
				return err
			}
			md := render.WeeklyReportMarkdown(report)
			if outputDir == "" {
				fmt.Print(md)
				return nil
			}
			path, err := render.WriteToFile(md, outputDir, fmt.Sprintf("weekly_%s.md", report.WeekEnd))
			if err != nil {
				return err
			}
			fmt.Printf("✅ Weekly report written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Write the report as markdown into this directory")
	return cmd
}
