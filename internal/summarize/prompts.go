package summarize

import (
	"fmt"
	"strings"
)

// maxPromptChars bounds the article text embedded in a generative prompt.
const maxPromptChars = 6000

// BuildNewsPrompt creates the prompt for a bulleted exam-oriented news summary.
func BuildNewsPrompt(title, text, url string) string {
	var prompt strings.Builder

	prompt.WriteString("Summarize this news article for a civil services aspirant.\n\n")

	if title != "" {
		prompt.WriteString(fmt.Sprintf("**Title:** %s\n", title))
	}
	if url != "" {
		prompt.WriteString(fmt.Sprintf("**Source:** %s\n", url))
	}
	prompt.WriteString(fmt.Sprintf("\n**Article:**\n%s\n\n", truncateContent(text, maxPromptChars)))

	prompt.WriteString("**Instructions:**\n")
	prompt.WriteString("1. Start with one short title line (no more than 12 words)\n")
	prompt.WriteString("2. Then write 5 to 8 bullet points, each a complete sentence ending with a period\n")
	prompt.WriteString("3. Use concrete facts from the article: names, numbers, dates, institutions\n")
	prompt.WriteString("4. Do not repeat the same fact in two bullets\n")
	prompt.WriteString("5. Do not add opinions or information that is not in the article\n\n")

	prompt.WriteString("**Output Format:**\n")
	prompt.WriteString("[Title line]\n")
	prompt.WriteString("- [Fact 1.]\n")
	prompt.WriteString("- [Fact 2.]\n")
	prompt.WriteString("...\n")

	return prompt.String()
}

// truncateContent truncates content to maxChars, preferring a sentence or word boundary
func truncateContent(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}

	truncated := content[:maxChars]

	lastPeriod := strings.LastIndex(truncated, ". ")
	if lastPeriod > maxChars/2 {
		truncated = truncated[:lastPeriod+1]
	} else if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}
