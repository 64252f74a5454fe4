package handlers

import (
	"errors"
	"fmt"

	"civicbriefs/internal/quiz"

	"github.com/spf13/cobra"
)

// NewQuizCmd creates the quiz command
func NewQuizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Show and grade the daily quiz built from today's capsule",
		Long: `The daily quiz asks which syllabus topic each capsule item belongs to.
Submitting answers records a test result and adapts the user's plan.

Examples:
  civicbriefs quiz show
  civicbriefs quiz submit asha --answers 0,2,1,3`,
	}
	cmd.AddCommand(newQuizShowCmd())
	cmd.AddCommand(newQuizSubmitCmd())
	return cmd
}

func newQuizShowCmd() *cobra.Command {
	var (
		force       bool
		showAnswers bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show today's quiz, generating it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			q, err := services.Quiz.GenerateDaily(ctx, force)
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("📝 " + q.Name))
			if len(q.Questions) == 0 {
				fmt.Println(mutedStyle.Render("Today's capsule is empty; build it first with 'civicbriefs capsule show'."))
				return nil
			}
			for i, question := range q.Questions {
				fmt.Printf("\n%s\n", headingStyle.Render(fmt.Sprintf("%d. %s", i+1, question.Prompt)))
				if question.Context != "" {
					fmt.Println(mutedStyle.Render(question.Context))
				}
				for j, opt := range question.Options {
					marker := " "
					if showAnswers && j == question.AnswerIndex {
						marker = "✓"
					}
					fmt.Printf("  %s %d) %s\n", marker, j, opt)
				}
				if showAnswers && question.Explanation != "" {
					fmt.Println(mutedStyle.Render("  " + question.Explanation))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate today's quiz")
	cmd.Flags().BoolVar(&showAnswers, "answers", false, "Mark the correct options")
	return cmd
}

func newQuizSubmitCmd() *cobra.Command {
	var (
		name    string
		answers []int
	)
	cmd := &cobra.Command{
		Use:   "submit <user>",
		Short: "Grade answers (zero-based option indexes) against today's quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			if name == "" {
				name = quiz.DailyName(services.Capsules.Today())
			}
			res, err := services.Quiz.Submit(ctx, args[0], name, answers)
			if errors.Is(err, quiz.ErrNotFound) {
				return fmt.Errorf("no quiz named %q today; run 'civicbriefs quiz show' first", name)
			}
			if err != nil {
				return err
			}

			fmt.Printf("🎯 Score %.2f (%d/%d)\n", res.Score, res.Correct, res.Total)
			for _, r := range res.Review {
				icon := "✅"
				if !r.OK {
					icon = "❌"
				}
				fmt.Printf("%s %d. %s\n", icon, r.Index+1, r.Question)
				if !r.OK && r.Correct >= 0 && r.Correct < len(r.Options) {
					fmt.Println(mutedStyle.Render("   Answer: " + r.Options[r.Correct]))
				}
			}
			if res.Plan != nil {
				fmt.Println()
				fmt.Print(styledPlan(res.Plan))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Quiz name (default today's daily quiz)")
	cmd.Flags().IntSliceVar(&answers, "answers", nil, "Comma separated option indexes, one per question")
	return cmd
}
