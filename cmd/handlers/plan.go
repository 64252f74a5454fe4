package handlers

import (
	"context"
	"fmt"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/pipeline"
	"civicbriefs/internal/render"

	"github.com/spf13/cobra"
)

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate, show and adapt study plans",
		Long: `Study plans cover eight weeks. Trending capsule topics are scheduled first;
recorded test results rescale weekly hours and add revision tasks for weak topics.

Examples:
  civicbriefs plan generate asha
  civicbriefs plan show asha --markdown
  civicbriefs plan feedback asha --test "Economy sectional" --score 58
  civicbriefs plan progress asha`,
	}

	cmd.AddCommand(newPlanGenerateCmd())
	cmd.AddCommand(newPlanShowCmd())
	cmd.AddCommand(newPlanAdaptCmd())
	cmd.AddCommand(newPlanFeedbackCmd())
	cmd.AddCommand(newPlanProgressCmd())
	return cmd
}

var planMarkdown bool

// planAction opens services, runs fn for the user and prints the resulting plan.
func planAction(fn func(ctx context.Context, s *pipeline.Services, userID string) (*core.StudyPlan, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		services, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer services.Close()

		plan, err := fn(ctx, services, args[0])
		if err != nil {
			return err
		}
		if plan == nil {
			fmt.Printf("ℹ️  No plan for %s yet. Run 'civicbriefs plan generate %s'.\n", args[0], args[0])
			return nil
		}
		if planMarkdown {
			fmt.Print(render.PlanMarkdown(plan))
		} else {
			fmt.Print(styledPlan(plan))
		}
		return nil
	}
}

func newPlanGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <user>",
		Short: "Write a fresh plan, replacing any existing one",
		Args:  cobra.ExactArgs(1),
		RunE: planAction(func(ctx context.Context, s *pipeline.Services, userID string) (*core.StudyPlan, error) {
			return s.Planner.GeneratePlan(ctx, userID)
		}),
	}
	cmd.Flags().BoolVar(&planMarkdown, "markdown", false, "Print markdown instead of styled text")
	return cmd
}

func newPlanShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user>",
		Short: "Show the stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: planAction(func(ctx context.Context, s *pipeline.Services, userID string) (*core.StudyPlan, error) {
			return s.DB.Plans().Get(ctx, userID)
		}),
	}
	cmd.Flags().BoolVar(&planMarkdown, "markdown", false, "Print markdown instead of styled text")
	return cmd
}

func newPlanAdaptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapt <user>",
		Short: "Recompute the plan from recorded test results",
		Args:  cobra.ExactArgs(1),
		RunE: planAction(func(ctx context.Context, s *pipeline.Services, userID string) (*core.StudyPlan, error) {
			return s.Planner.AdaptPlan(ctx, userID)
		}),
	}
	cmd.Flags().BoolVar(&planMarkdown, "markdown", false, "Print markdown instead of styled text")
	return cmd
}

func newPlanFeedbackCmd() *cobra.Command {
	var (
		testName string
		score    float64
		date     string
	)
	cmd := &cobra.Command{
		Use:   "feedback <user>",
		Short: "Record a test result and adapt the plan",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if score < 0 || score > 100 {
				return fmt.Errorf("score must be between 0 and 100, got %v", score)
			}
			return nil
		},
		RunE: planAction(func(ctx context.Context, s *pipeline.Services, userID string) (*core.StudyPlan, error) {
			return s.Planner.RecordTestResult(ctx, &core.TestResult{
				UserID:   userID,
				TestName: testName,
				Score:    score,
				Date:     date,
			})
		}),
	}
	cmd.Flags().StringVar(&testName, "test", "", "Test name; topic names in it mark weak topics")
	cmd.Flags().Float64Var(&score, "score", 0, "Score between 0 and 100")
	cmd.Flags().StringVar(&date, "date", "", "Test date as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&planMarkdown, "markdown", false, "Print markdown instead of styled text")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func newPlanProgressCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "progress <user>",
		Short: "Show test history and weak topics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			progress, err := services.Planner.Progress(ctx, args[0])
			if err != nil {
				return err
			}
			history, err := services.Planner.History(ctx, args[0], limit)
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render("📈 Progress for " + progress.UserID))
			fmt.Println(rule)
			fmt.Printf("Tests recorded:  %d\n", progress.Tests)
			fmt.Printf("Average score:   %.2f\n", progress.AverageScore)
			if len(progress.WeakTopics) > 0 {
				fmt.Printf("Weak topics:     %s\n", strings.Join(progress.WeakTopics, ", "))
			}
			if len(history) > 0 {
				fmt.Println("\nRecent tests:")
				for _, r := range history {
					fmt.Printf("  • %s  %-30s %6.2f\n", r.Date, r.TestName, r.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Number of recent tests to list")
	return cmd
}
