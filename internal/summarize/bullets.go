package summarize

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxBulletLen is the longest bullet emitted before truncation.
const DefaultMaxBulletLen = 240

// BulletOptions controls Bulletize.
type BulletOptions struct {
	Title      string
	MinBullets int
	MaxBullets int
	MaxLen     int
}

var bulletMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// Bulletize normalises summary text into "- sentence" lines.
func Bulletize(text string, opts BulletOptions) string {
	if opts.MinBullets <= 0 {
		opts.MinBullets = 4
	}
	if opts.MaxBullets < opts.MinBullets {
		opts.MaxBullets = 8
	}
	if opts.MaxLen <= 3 {
		opts.MaxLen = DefaultMaxBulletLen
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletMarker.ReplaceAllString(line, ""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 && isTitleLine(lines[0], opts.Title) {
		lines = lines[1:]
	}
	if len(lines) < opts.MinBullets {
		lines = splitSentences(strings.Join(lines, " "))
	}

	seen := make(map[string]bool)
	var bullets []string
	for _, line := range lines {
		if runes := []rune(line); len(runes) > opts.MaxLen {
			line = strings.TrimSpace(string(runes[:opts.MaxLen-3])) + "..."
		}
		if !endsWithPunct(line) {
			line += "."
		}

		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		bullets = append(bullets, "- "+line)
		if len(bullets) == opts.MaxBullets {
			break
		}
	}
	return strings.Join(bullets, "\n")
}

func isTitleLine(line, title string) bool {
	if strings.HasPrefix(strings.ToLower(line), "title:") {
		return true
	}
	norm := normalizeTitle(title)
	return norm != "" && normalizeTitle(line) == norm
}

func normalizeTitle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitSentences cuts after ., ! or ? when followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func endsWithPunct(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
