package handlers

import (
	"fmt"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/trends"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	topicStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func styledCapsule(c *core.Capsule) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📰 Daily Capsule - "+c.Date) + "\n")
	if len(c.Items) == 0 {
		b.WriteString(mutedStyle.Render("No news mapped for this day yet.") + "\n")
		return b.String()
	}
	for i, item := range c.Items {
		b.WriteString("\n" + headingStyle.Render(fmt.Sprintf("%d. %s", i+1, item.Title)) + "\n")
		if len(item.Topics) > 0 {
			labels := make([]string, len(item.Topics))
			for j, t := range item.Topics {
				labels[j] = fmt.Sprintf("%s (%.2f)", trends.Label(t), t.Score)
			}
			b.WriteString(topicStyle.Render(strings.Join(labels, " · ")) + "\n")
		}
		if item.Summary != "" {
			b.WriteString(item.Summary + "\n")
		}
		for _, q := range item.Pyqs {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  • [%s %d] %s", q.Paper, q.Year, q.Question)) + "\n")
		}
		b.WriteString(mutedStyle.Render(item.URL) + "\n")
	}
	return b.String()
}

func styledPlan(plan *core.StudyPlan) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("📚 Study Plan for %s (target %d)", plan.UserID, plan.TargetYear)) + "\n")
	b.WriteString(mutedStyle.Render("Generated "+plan.GeneratedOn) + "\n")

	var weeks []string
	for _, w := range plan.Weeks {
		tasks := w.Tasks
		if len(tasks) == 0 {
			tasks = []string{"Buffer week"}
		}
		body := headingStyle.Render(fmt.Sprintf("Week %d · %dh", w.Index, w.Hours)) + "\n• " + strings.Join(tasks, "\n• ")
		weeks = append(weeks, boxStyle.Render(body))
	}
	for i := 0; i < len(weeks); i += 2 {
		row := weeks[i:min(i+2, len(weeks))]
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...) + "\n")
	}

	if fb := plan.Feedback; fb != nil {
		b.WriteString(fmt.Sprintf("\nBased on %d tests, average %.2f\n", fb.TestsConsidered, fb.AverageScore))
		if len(fb.WeakTopics) > 0 {
			b.WriteString("Weak topics: " + topicStyle.Render(strings.Join(fb.WeakTopics, ", ")) + "\n")
		}
	}
	return b.String()
}
