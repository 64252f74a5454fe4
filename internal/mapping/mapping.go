// Package mapping links stored news items to syllabus topics.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/similarity"
)

const (
	topicsPerItem        = 3
	fillSummarySentences = 3
)

// TextSummarizer condenses text extractively.
type TextSummarizer interface {
	SummarizeText(ctx context.Context, text string, maxSentences int) string
}

// Mapper scores news against the syllabus.
type Mapper struct {
	db         persistence.Database
	engine     *similarity.Engine
	summarizer TextSummarizer
	log        *slog.Logger
}

// NewMapper creates a mapper.
func NewMapper(db persistence.Database, engine *similarity.Engine, summarizer TextSummarizer) *Mapper {
	return &Mapper{
		db:         db,
		engine:     engine,
		summarizer: summarizer,
		log:        logger.Get(),
	}
}

// MapNewsToSyllabus scores every stored item against every topic and records
// the best three topics per item. It returns the number of mappings created;
// pairs that already exist are not counted again.
func (m *Mapper) MapNewsToSyllabus(ctx context.Context) (int, error) {
	news, err := m.db.News().All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load news: %w", err)
	}
	topics, err := m.db.Topics().List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load topics: %w", err)
	}
	if len(news) == 0 || len(topics) == 0 {
		return 0, nil
	}

	corpus := make([]string, len(topics))
	for i, t := range topics {
		corpus[i] = fmt.Sprintf("%s %s %s", t.Paper, t.Topic, t.Keywords)
	}

	created := 0
	var errs []error
	for _, item := range news {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		summary := m.ensureSummary(ctx, &item)
		query := strings.TrimSpace(item.Title + " " + summary)

		ranked := m.engine.Score(query, corpus)
		if len(ranked) > topicsPerItem {
			ranked = ranked[:topicsPerItem]
		}
		for _, r := range ranked {
			ok, err := m.db.Mappings().Insert(ctx, core.Mapping{
				NewsID:  item.ID,
				TopicID: topics[r.Index].ID,
				Score:   r.Score,
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				created++
			}
		}
	}

	m.log.Info("Mapped news to syllabus", "news", len(news), "topics", len(topics), "created", created)
	return created, errors.Join(errs...)
}

// ensureSummary fills a missing summary from the item's content and stores it.
func (m *Mapper) ensureSummary(ctx context.Context, item *core.NewsItem) string {
	if item.Summary != "" {
		return item.Summary
	}
	summary := m.summarizer.SummarizeText(ctx, item.RawContent, fillSummarySentences)
	if summary == "" {
		return ""
	}
	if err := m.db.News().UpdateSummary(ctx, item.ID, summary); err != nil {
		m.log.Warn("Failed to store summary", "news_id", item.ID, "error", err)
	}
	item.Summary = summary
	return summary
}
