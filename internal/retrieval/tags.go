package retrieval

import "strings"

// Tag is a coarse exam-domain category detected in free text.
type Tag string

const (
	TagGovernance    Tag = "governance"
	TagEconomy       Tag = "economy"
	TagInternational Tag = "international"
	TagSecurity      Tag = "security"
	TagEnvironment   Tag = "environment"
	TagSocial        Tag = "social"
	TagTechnology    Tag = "technology"
	TagConstitution  Tag = "constitution"
)

// AllTags lists the tags in detection order.
var AllTags = []Tag{
	TagGovernance,
	TagEconomy,
	TagInternational,
	TagSecurity,
	TagEnvironment,
	TagSocial,
	TagTechnology,
	TagConstitution,
}

// tagKeywords maps each tag to the lowercase phrases that indicate it.
var tagKeywords = map[Tag][]string{
	TagGovernance:    {"government", "policy", "administration", "bureaucracy", "civil service"},
	TagEconomy:       {"economic", "gdp", "inflation", "fiscal", "monetary", "trade", "investment"},
	TagInternational: {"foreign", "diplomatic", "bilateral", "multilateral", "treaty", "agreement"},
	TagSecurity:      {"defense", "military", "border", "terrorism", "cyber", "national security"},
	TagEnvironment:   {"climate", "environment", "pollution", "renewable", "biodiversity", "conservation"},
	TagSocial:        {"education", "health", "poverty", "inequality", "welfare", "rights"},
	TagTechnology:    {"digital", "artificial intelligence", "technology", "innovation", "startup"},
	TagConstitution:  {"constitutional", "fundamental rights", "duties", "amendment", "judiciary"},
}

// ExtractTags returns the tags whose keywords occur in text, in AllTags order.
// Matching is case-insensitive substring containment.
func ExtractTags(text string) []Tag {
	lower := strings.ToLower(text)
	var found []Tag
	for _, tag := range AllTags {
		for _, kw := range tagKeywords[tag] {
			if strings.Contains(lower, kw) {
				found = append(found, tag)
				break
			}
		}
	}
	return found
}

// sharedTags returns the tags present in both sets, in a's order.
func sharedTags(a, b []Tag) []string {
	in := make(map[Tag]bool, len(b))
	for _, t := range b {
		in[t] = true
	}
	var out []string
	for _, t := range a {
		if in[t] {
			out = append(out, string(t))
		}
	}
	return out
}
