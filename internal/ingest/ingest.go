// Package ingest pulls news from configured feeds into storage.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/feeds"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/metrics"
	"civicbriefs/internal/persistence"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxItems    = 20
	defaultConcurrency = 4

	// Content shorter than this is considered a teaser and re-extracted from the page.
	minFullTextLen = 500

	ingestSummarySentences = 7
	maxSampleLen           = 260
)

// FeedFetcher retrieves and parses one feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]feeds.Item, error)
}

// ArticleExtractor fetches the readable text of a page.
type ArticleExtractor interface {
	ExtractArticleText(ctx context.Context, url string) (string, bool)
}

// Summarizer is the part of summarize.Service ingestion needs.
type Summarizer interface {
	SummarizeText(ctx context.Context, text string, maxSentences int) string
	SummarizeNewsArticle(ctx context.Context, title, text, url string) string
	Generative() bool
}

// Options configures the service.
type Options struct {
	Sources         []string
	MaxItemsPerFeed int
	Concurrency     int
}

// Service fetches candidates and stores them.
type Service struct {
	db         persistence.Database
	fetcher    FeedFetcher
	extractor  ArticleExtractor
	summarizer Summarizer
	opts       Options
	log        *slog.Logger
}

// Report describes one ingestion run.
type Report struct {
	Fetched int             `json:"fetched"`
	Saved   []core.NewsItem `json:"saved"`
}

// Sample is a title with its regenerated summary.
type Sample struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ResummaryReport describes a resummarize run.
type ResummaryReport struct {
	Updated  int      `json:"updated"`
	Failures int      `json:"failures"`
	Samples  []Sample `json:"samples"`
}

// NewService creates an ingestion service.
func NewService(db persistence.Database, fetcher FeedFetcher, extractor ArticleExtractor, summarizer Summarizer, opts Options) *Service {
	if opts.MaxItemsPerFeed <= 0 {
		opts.MaxItemsPerFeed = defaultMaxItems
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Service{
		db:         db,
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		opts:       opts,
		log:        logger.Get(),
	}
}

// FetchItems fetches every configured source concurrently and returns the
// candidates in source order. Failing sources are logged and skipped.
func (s *Service) FetchItems(ctx context.Context) []core.Candidate {
	perSource := make([][]core.Candidate, len(s.opts.Sources))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, source := range s.opts.Sources {
		g.Go(func() error {
			items, err := s.fetcher.Fetch(ctx, source)
			if err != nil {
				metrics.FeedErrors.WithLabelValues(source).Inc()
				s.log.Warn("Feed fetch failed", "source", source, "error", err)
				return nil
			}
			perSource[i] = toCandidates(source, items, s.opts.MaxItemsPerFeed)
			return nil
		})
	}
	_ = g.Wait()

	var out []core.Candidate
	for _, cs := range perSource {
		out = append(out, cs...)
	}
	s.log.Info("Fetched feed items", "sources", len(s.opts.Sources), "candidates", len(out))
	return out
}

func toCandidates(source string, items []feeds.Item, limit int) []core.Candidate {
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]core.Candidate, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		title := it.Title
		if title == "" {
			title = "Untitled"
		}
		out = append(out, core.Candidate{
			Source:      source,
			Title:       title,
			URL:         it.Link,
			PublishedAt: it.Published,
			Content:     it.Description,
		})
	}
	return out
}

// SaveItems stores candidates whose URL is not yet known and enriches them with
// full text and a summary. Insert failures are collected and returned with the
// items that were saved; enrichment failures are only logged.
func (s *Service) SaveItems(ctx context.Context, candidates []core.Candidate) ([]core.NewsItem, error) {
	saved := []core.NewsItem{}
	var errs []error

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		existing, err := s.db.News().GetByURL(ctx, c.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if existing != nil {
			continue
		}

		item := core.NewsItem{
			Source:      c.Source,
			Title:       c.Title,
			URL:         c.URL,
			PublishedAt: c.PublishedAt,
			RawContent:  c.Content,
		}
		created, err := s.db.News().Insert(ctx, &item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !created {
			continue
		}
		metrics.NewsIngested.Inc()

		s.enrich(ctx, &item, false)
		saved = append(saved, item)
	}

	s.log.Info("Saved news items", "candidates", len(candidates), "saved", len(saved))
	return saved, errors.Join(errs...)
}

// enrich replaces teaser content with extracted full text and writes a summary.
// It reports whether the item was updated.
func (s *Service) enrich(ctx context.Context, item *core.NewsItem, forceExtract bool) (bool, error) {
	content := item.RawContent
	if forceExtract || len(content) < minFullTextLen {
		if text, ok := s.extractor.ExtractArticleText(ctx, item.URL); ok && len(text) > minFullTextLen {
			content = text
		}
	}
	if strings.TrimSpace(content) == "" {
		return false, nil
	}

	var summary string
	if s.summarizer.Generative() {
		summary = s.summarizer.SummarizeNewsArticle(ctx, item.Title, content, item.URL)
	} else {
		summary = s.summarizer.SummarizeText(ctx, content, ingestSummarySentences)
	}

	if err := s.db.News().UpdateContent(ctx, item.ID, content, summary); err != nil {
		s.log.Warn("Failed to store enrichment", "url", item.URL, "error", err)
		return false, err
	}
	item.RawContent = content
	item.Summary = summary
	return true, nil
}

// Run fetches all sources and saves the new items.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	candidates := s.FetchItems(ctx)
	saved, err := s.SaveItems(ctx, candidates)
	report := &Report{Fetched: len(candidates), Saved: saved}
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	return report, nil
}

// Resummarize regenerates summaries for the newest limit items, re-extracting
// page text when forced or when the stored content is a teaser.
func (s *Service) Resummarize(ctx context.Context, limit int, forceExtract bool) (*ResummaryReport, error) {
	if limit <= 0 {
		limit = 1
	}
	items, err := s.db.News().Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load news: %w", err)
	}

	report := &ResummaryReport{Samples: []Sample{}}
	// newest first
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if err := ctx.Err(); err != nil {
			return report, err
		}
		updated, err := s.enrich(ctx, &item, forceExtract)
		if err != nil {
			report.Failures++
			continue
		}
		if !updated {
			continue
		}
		report.Updated++
		if len(report.Samples) < 3 {
			summary := item.Summary
			if r := []rune(summary); len(r) > maxSampleLen {
				summary = string(r[:maxSampleLen])
			}
			report.Samples = append(report.Samples, Sample{Title: item.Title, Summary: summary})
		}
	}

	s.log.Info("Resummarized news", "updated", report.Updated, "failures", report.Failures)
	return report, nil
}
