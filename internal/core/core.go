package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Paper is one of the fixed General Studies exam papers.
type Paper string

const (
	PaperGS1 Paper = "GS1"
	PaperGS2 Paper = "GS2"
	PaperGS3 Paper = "GS3"
	PaperGS4 Paper = "GS4"
)

// Papers lists every valid paper code in order.
var Papers = []Paper{PaperGS1, PaperGS2, PaperGS3, PaperGS4}

// ParsePaper validates a paper code, accepting any letter case.
func ParsePaper(s string) (Paper, error) {
	p := Paper(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Papers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown paper %q", s)
}

// NewsItem is a single ingested news article. URL is the unique key.
type NewsItem struct {
	ID          string    `json:"id"`           // Deterministic UUIDv5 of the URL
	Seq         int64     `json:"seq"`          // Storage insertion order
	Source      string    `json:"source"`       // Feed the item came from
	Title       string    `json:"title"`        // Headline
	URL         string    `json:"url"`          // Canonical link, unique
	PublishedAt string    `json:"published_at"` // Publication date as reported by the feed
	RawContent  string    `json:"raw_content"`  // Feed description or extracted full text
	Summary     string    `json:"summary"`      // Optional synopsis
	CreatedAt   time.Time `json:"created_at"`
}

// NewsID derives the stable identifier for a news URL.
func NewsID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Candidate is a news item fetched from a source but not yet persisted.
type Candidate struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Content     string `json:"content"`
}

// SyllabusTopic is a curriculum unit under one paper. Seeded externally.
type SyllabusTopic struct {
	ID       int64  `json:"id" yaml:"id"`
	Paper    Paper  `json:"paper" yaml:"paper"`
	Topic    string `json:"topic" yaml:"topic"`
	Keywords string `json:"keywords" yaml:"keywords"`
}

// Label renders the topic as "GS2: Polity".
func (t SyllabusTopic) Label() string {
	return fmt.Sprintf("%s: %s", t.Paper, t.Topic)
}

// PyqQuestion is an archived exam question.
type PyqQuestion struct {
	ID       int64  `json:"id" yaml:"id"`
	Year     int    `json:"year" yaml:"year"`
	Paper    Paper  `json:"paper" yaml:"paper"`
	Question string `json:"question" yaml:"question"`
	Keywords string `json:"keywords" yaml:"keywords"`
}

// Mapping links a news item to a syllabus topic with a similarity score.
type Mapping struct {
	NewsID  string  `json:"news_id"`
	TopicID int64   `json:"topic_id"`
	Score   float64 `json:"score"`
}

// TopicMatch is a mapping joined with its topic.
type TopicMatch struct {
	Topic SyllabusTopic
	Score float64
}

// RelatedPyq is a ranked archived question attached to a news item.
// LowConfidence marks results carrying the 0.01 sentinel score rather than a similarity.
type RelatedPyq struct {
	ID            int64    `json:"id"`
	Year          int      `json:"year"`
	Paper         Paper    `json:"paper"`
	Question      string   `json:"question"`
	Score         float64  `json:"score"`
	TopicsMatched []string `json:"topics_matched,omitempty"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
}

// CapsuleTopic is a syllabus topic attached to a capsule item.
type CapsuleTopic struct {
	Paper Paper   `json:"paper"`
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// CapsuleItem is one summarized, syllabus-mapped news entry in a daily capsule.
type CapsuleItem struct {
	Title          string         `json:"title"`
	URL            string         `json:"url"`
	Summary        string         `json:"summary"`
	Topics         []CapsuleTopic `json:"topics"`
	Pyqs           []RelatedPyq   `json:"pyqs"`
	PyqCount       int            `json:"pyq_count"`
	RelevanceScore float64        `json:"relevance_score"`
}

// Capsule is the cached digest for one calendar day.
type Capsule struct {
	Date      string        `json:"date"`
	Items     []CapsuleItem `json:"items"`
	CreatedAt time.Time     `json:"-"`
	UpdatedAt time.Time     `json:"-"`
}

// PlanWeek is one week of a study plan. Index is 1-based.
type PlanWeek struct {
	Index int      `json:"week"`
	Hours int      `json:"hours"`
	Tasks []string `json:"tasks"`
}

// FeedbackSummary records what the last adaptation was based on.
type FeedbackSummary struct {
	TestsConsidered int      `json:"tests_considered"`
	AverageScore    float64  `json:"average_score"`
	WeakTopics      []string `json:"weak_topics"`
}

// StudyPlan is the per-user multi-week plan. UserID is the unique key.
type StudyPlan struct {
	UserID       string           `json:"user_id"`
	TargetYear   int              `json:"target_year"`
	HoursPerWeek int              `json:"hours_per_week"`
	GeneratedOn  string           `json:"generated_on"`
	Weeks        []PlanWeek       `json:"weeks"`
	Feedback     *FeedbackSummary `json:"feedback_summary,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TestResult is an append-only graded attempt.
type TestResult struct {
	ID       int64   `json:"id"`
	UserID   string  `json:"user_id"`
	TestName string  `json:"test_name"`
	Score    float64 `json:"score"`
	Date     string  `json:"date"`
}

// QuizQuestion is a four-option multiple choice question.
type QuizQuestion struct {
	Prompt      string   `json:"q"`
	Context     string   `json:"context"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation"`
	Source      string   `json:"source"`
}

// Quiz is a generated test for one day, unique by (Date, Name).
type Quiz struct {
	Date      string         `json:"date"`
	Name      string         `json:"name"`
	Questions []QuizQuestion `json:"questions"`
}

// ChatMessage is one turn of a chat session.
type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DateKey formats a time as the calendar-day key used by capsules and quizzes.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
