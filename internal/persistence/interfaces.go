// Package persistence provides storage interfaces for news, syllabus, capsules and study plans
package persistence

import (
	"context"
	"errors"

	"civicbriefs/internal/core"
)

// ErrNotFound is returned by update operations whose target row does not exist.
// Lookups report absence as a nil result with a nil error.
var ErrNotFound = errors.New("not found")

// NewsRepository handles news item persistence
type NewsRepository interface {
	// Insert stores a new item unless its URL already exists. It reports whether a row was
	// created and fills item.ID and item.Seq on success.
	Insert(ctx context.Context, item *core.NewsItem) (bool, error)

	// GetByURL retrieves an item by URL
	GetByURL(ctx context.Context, url string) (*core.NewsItem, error)

	// Get retrieves an item by ID
	Get(ctx context.Context, id string) (*core.NewsItem, error)

	// Recent returns the newest limit items in insertion order (oldest first)
	Recent(ctx context.Context, limit int) ([]core.NewsItem, error)

	// All returns every item in insertion order
	All(ctx context.Context) ([]core.NewsItem, error)

	// UpdateContent replaces raw content and summary
	UpdateContent(ctx context.Context, id, rawContent, summary string) error

	// UpdateSummary replaces the summary only
	UpdateSummary(ctx context.Context, id, summary string) error

	// Count returns the number of stored items
	Count(ctx context.Context) (int, error)
}

// TopicRepository handles syllabus topics. Topics are seeded, not edited by the pipeline.
type TopicRepository interface {
	Insert(ctx context.Context, topic *core.SyllabusTopic) error
	List(ctx context.Context) ([]core.SyllabusTopic, error)
	Count(ctx context.Context) (int, error)
}

// PyqRepository handles the archived question bank
type PyqRepository interface {
	Insert(ctx context.Context, q *core.PyqQuestion) error
	List(ctx context.Context) ([]core.PyqQuestion, error)
	Count(ctx context.Context) (int, error)
}

// MappingRepository links news items to syllabus topics
type MappingRepository interface {
	// Insert stores a mapping unless (news_id, topic_id) already exists; reports whether a row was created
	Insert(ctx context.Context, m core.Mapping) (bool, error)

	// TopicsForNews returns mappings for a news item joined with their topics, highest score first
	TopicsForNews(ctx context.Context, newsID string) ([]core.TopicMatch, error)
}

// CapsuleRepository handles daily capsules
type CapsuleRepository interface {
	// Claim ensures a row exists for date and returns it
	Claim(ctx context.Context, date string) (*core.Capsule, error)

	// Get retrieves the capsule for a date
	Get(ctx context.Context, date string) (*core.Capsule, error)

	// SaveItems replaces the items of a date's capsule
	SaveItems(ctx context.Context, date string, items []core.CapsuleItem) error

	// Since returns capsules with date >= since, oldest first
	Since(ctx context.Context, since string) ([]core.Capsule, error)
}

// PlanRepository handles per-user study plans
type PlanRepository interface {
	Get(ctx context.Context, userID string) (*core.StudyPlan, error)
	Upsert(ctx context.Context, plan *core.StudyPlan) error
}

// TestResultRepository handles the append-only test log
type TestResultRepository interface {
	Append(ctx context.Context, r *core.TestResult) error

	// ListByUser returns all results for a user, oldest first
	ListByUser(ctx context.Context, userID string) ([]core.TestResult, error)

	// Recent returns a user's newest limit results, newest first
	Recent(ctx context.Context, userID string, limit int) ([]core.TestResult, error)

	// Since returns all results dated on or after date
	Since(ctx context.Context, date string) ([]core.TestResult, error)
}

// QuizRepository handles generated quizzes
type QuizRepository interface {
	Get(ctx context.Context, date, name string) (*core.Quiz, error)

	// Save stores a quiz; with replace=false an existing (date, name) row is kept
	Save(ctx context.Context, quiz *core.Quiz, replace bool) error
}

// ChatRepository handles chat history
type ChatRepository interface {
	Append(ctx context.Context, msg *core.ChatMessage) error

	// Recent returns the newest limit messages of a conversation, oldest first
	Recent(ctx context.Context, userID, sessionID string, limit int) ([]core.ChatMessage, error)
}

// Database provides access to all repositories
type Database interface {
	News() NewsRepository
	Topics() TopicRepository
	Pyqs() PyqRepository
	Mappings() MappingRepository
	Capsules() CapsuleRepository
	Plans() PlanRepository
	TestResults() TestResultRepository
	Quizzes() QuizRepository
	Chats() ChatRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error
}
