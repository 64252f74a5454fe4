// Package render turns capsules, plans and reports into markdown.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/trends"
)

// MaxPyqsShown caps the related questions listed per capsule item.
const MaxPyqsShown = 3

// CapsuleFilename is the file name used when a capsule is written to disk.
func CapsuleFilename(date string) string {
	return fmt.Sprintf("capsule_%s.md", date)
}

// CapsuleMarkdown renders a daily capsule. Items keep their stored order.
func CapsuleMarkdown(c *core.Capsule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Capsule - %s\n\n", c.Date)

	if len(c.Items) == 0 {
		b.WriteString("No news mapped for this day yet.\n")
		return b.String()
	}

	for i, item := range c.Items {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, item.Title)
		if item.Summary != "" {
			b.WriteString(item.Summary + "\n\n")
		}

		if len(item.Topics) > 0 {
			labels := make([]string, 0, len(item.Topics))
			for _, t := range item.Topics {
				labels = append(labels, fmt.Sprintf("%s (%.2f)", trends.Label(t), t.Score))
			}
			fmt.Fprintf(&b, "**Syllabus:** %s\n\n", strings.Join(labels, ", "))
		}

		pyqs := item.Pyqs
		if len(pyqs) > MaxPyqsShown {
			pyqs = pyqs[:MaxPyqsShown]
		}
		if len(pyqs) > 0 {
			b.WriteString("**Related PYQs:**\n\n")
			for _, q := range pyqs {
				fmt.Fprintf(&b, "- %s (%s %d)\n", q.Question, q.Paper, q.Year)
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "[Source](%s)\n\n---\n\n", item.URL)
	}
	return b.String()
}

// PlanMarkdown renders a study plan week by week.
func PlanMarkdown(plan *core.StudyPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Study Plan for %s (target %d)\n\n", plan.UserID, plan.TargetYear)
	fmt.Fprintf(&b, "Generated on %s.\n\n", plan.GeneratedOn)

	if fb := plan.Feedback; fb != nil {
		fmt.Fprintf(&b, "Average score %.2f over %d tests.", fb.AverageScore, fb.TestsConsidered)
		if len(fb.WeakTopics) > 0 {
			fmt.Fprintf(&b, " Weak topics: %s.", strings.Join(fb.WeakTopics, ", "))
		}
		b.WriteString("\n\n")
	}

	for _, w := range plan.Weeks {
		fmt.Fprintf(&b, "## Week %d (%dh)\n\n", w.Index, w.Hours)
		if len(w.Tasks) == 0 {
			b.WriteString("- Buffer week\n")
		}
		for _, task := range w.Tasks {
			fmt.Fprintf(&b, "- %s\n", task)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WeeklyReportMarkdown renders the weekly highlights and test activity.
func WeeklyReportMarkdown(r *trends.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Weekly Report %s to %s\n\n", r.WeekStart, r.WeekEnd)
	fmt.Fprintf(&b, "Tests recorded: %d, average score %.2f.\n\n", r.Progress.TestsRecorded, r.Progress.AverageScore)

	if len(r.Highlights) == 0 {
		b.WriteString("No capsules this week.\n")
		return b.String()
	}

	date := ""
	for _, h := range r.Highlights {
		if h.Date != date {
			date = h.Date
			fmt.Fprintf(&b, "## %s\n\n", date)
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", h.Title, h.URL)
	}
	return b.String()
}

// WriteToFile writes content to outputDir/filename, creating the directory.
func WriteToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "capsules"
	}

	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)

	err = os.WriteFile(filePath, []byte(content), 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	return filePath, nil
}
