// Package capsule assembles the daily digest of syllabus-mapped news.
package capsule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/metrics"
	"civicbriefs/internal/persistence"

	"golang.org/x/sync/singleflight"
)

const (
	defaultNewsLimit = 15
	topicsPerItem    = 3
	pyqsPerItem      = 3

	// Base text shorter than this triggers an extraction attempt.
	minBaseLen = 120

	fallbackSentences = 5

	// NoSummary is shown when nothing could be summarized.
	NoSummary = "No summary available"
)

// Cache is an optional read-through store for built capsules.
type Cache interface {
	Get(ctx context.Context, date string) (*core.Capsule, bool, error)
	Set(ctx context.Context, c *core.Capsule) error
	Delete(ctx context.Context, date string) error
}

// Summarizer is the part of summarize.Service capsules need.
type Summarizer interface {
	SummarizeText(ctx context.Context, text string, maxSentences int) string
	SummarizeNewsArticle(ctx context.Context, title, text, url string) string
}

// ArticleExtractor fetches readable page text.
type ArticleExtractor interface {
	ExtractArticleText(ctx context.Context, url string) (string, bool)
}

// Retriever finds related archived questions.
type Retriever interface {
	FindRelated(ctx context.Context, text string, topK int) ([]core.RelatedPyq, error)
}

// Options configures a Builder.
type Options struct {
	Location  *time.Location
	Now       func() time.Time
	NewsLimit int
}

// Builder builds and caches one capsule per calendar day.
type Builder struct {
	db         persistence.Database
	retriever  Retriever
	summarizer Summarizer
	extractor  ArticleExtractor
	cache      Cache
	opts       Options
	group      singleflight.Group
	log        *slog.Logger
}

// NewBuilder creates a builder. cache may be nil.
func NewBuilder(db persistence.Database, retriever Retriever, summarizer Summarizer, extractor ArticleExtractor, cache Cache, opts Options) *Builder {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = defaultNewsLimit
	}
	return &Builder{
		db:         db,
		retriever:  retriever,
		summarizer: summarizer,
		extractor:  extractor,
		cache:      cache,
		opts:       opts,
		log:        logger.Get(),
	}
}

// Today returns the date key of the current day in the configured location.
func (b *Builder) Today() string {
	return core.DateKey(b.opts.Now().In(b.opts.Location))
}

// BuildDaily returns today's capsule, building it on first request.
// A capsule with items is never rebuilt by this call.
func (b *Builder) BuildDaily(ctx context.Context) (*core.Capsule, error) {
	date := b.Today()
	v, err, _ := b.group.Do(date, func() (any, error) {
		return b.load(ctx, date)
	})
	if err != nil {
		metrics.CapsuleBuilds.WithLabelValues("error").Inc()
		return nil, err
	}
	return v.(*core.Capsule), nil
}

// Rebuild discards today's items and cache entry, then builds again.
func (b *Builder) Rebuild(ctx context.Context) (*core.Capsule, error) {
	date := b.Today()
	b.group.Forget(date)

	if b.cache != nil {
		if err := b.cache.Delete(ctx, date); err != nil {
			b.log.Warn("Failed to drop cached capsule", "date", date, "error", err)
		}
	}
	if _, err := b.db.Capsules().Claim(ctx, date); err != nil {
		return nil, fmt.Errorf("failed to claim capsule %s: %w", date, err)
	}
	if err := b.db.Capsules().SaveItems(ctx, date, []core.CapsuleItem{}); err != nil {
		return nil, fmt.Errorf("failed to clear capsule %s: %w", date, err)
	}
	return b.BuildDaily(ctx)
}

func (b *Builder) load(ctx context.Context, date string) (*core.Capsule, error) {
	if b.cache != nil {
		cached, ok, err := b.cache.Get(ctx, date)
		if err != nil {
			b.log.Warn("Capsule cache read failed", "date", date, "error", err)
		}
		if ok && len(cached.Items) > 0 {
			metrics.CapsuleBuilds.WithLabelValues("cache_hit").Inc()
			return cached, nil
		}
	}

	stored, err := b.db.Capsules().Claim(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to claim capsule %s: %w", date, err)
	}
	if len(stored.Items) > 0 {
		metrics.CapsuleBuilds.WithLabelValues("stored").Inc()
		b.remember(ctx, stored)
		return stored, nil
	}

	start := time.Now()
	items, err := b.assemble(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.db.Capsules().SaveItems(ctx, date, items); err != nil {
		return nil, fmt.Errorf("failed to save capsule %s: %w", date, err)
	}
	metrics.CapsuleBuildDuration.Observe(time.Since(start).Seconds())
	metrics.CapsuleBuilds.WithLabelValues("built").Inc()
	b.log.Info("Built daily capsule", "date", date, "items", len(items), "duration", time.Since(start))

	c := &core.Capsule{Date: date, Items: items}
	b.remember(ctx, c)
	return c, nil
}

func (b *Builder) remember(ctx context.Context, c *core.Capsule) {
	if b.cache == nil || len(c.Items) == 0 {
		return
	}
	if err := b.cache.Set(ctx, c); err != nil {
		b.log.Warn("Capsule cache write failed", "date", c.Date, "error", err)
	}
}

func (b *Builder) assemble(ctx context.Context) ([]core.CapsuleItem, error) {
	news, err := b.db.News().Recent(ctx, b.opts.NewsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent news: %w", err)
	}

	items := make([]core.CapsuleItem, 0, len(news))
	for _, n := range news {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, b.buildItem(ctx, n))
	}
	return items, nil
}

func (b *Builder) buildItem(ctx context.Context, n core.NewsItem) core.CapsuleItem {
	topics := b.topics(ctx, n.ID)

	labels := make([]string, len(topics))
	for i, t := range topics {
		labels[i] = fmt.Sprintf("%s: %s", t.Paper, t.Topic)
	}
	text := n.Summary
	if text == "" {
		text = n.RawContent
	}
	query := strings.TrimSpace(strings.Join(append([]string{n.Title, text}, labels...), " "))

	pyqs, err := b.retriever.FindRelated(ctx, query, pyqsPerItem)
	if err != nil {
		b.log.Warn("Question lookup failed", "news_id", n.ID, "error", err)
		pyqs = nil
	}
	if pyqs == nil {
		pyqs = []core.RelatedPyq{}
	}

	relevance := 0.0
	for _, p := range pyqs {
		if p.Score > relevance {
			relevance = p.Score
		}
	}

	return core.CapsuleItem{
		Title:          n.Title,
		URL:            n.URL,
		Summary:        b.summary(ctx, n),
		Topics:         topics,
		Pyqs:           pyqs,
		PyqCount:       len(pyqs),
		RelevanceScore: relevance,
	}
}

// topics returns the item's best distinct topics, highest score first.
func (b *Builder) topics(ctx context.Context, newsID string) []core.CapsuleTopic {
	matches, err := b.db.Mappings().TopicsForNews(ctx, newsID)
	if err != nil {
		b.log.Warn("Topic lookup failed", "news_id", newsID, "error", err)
		return []core.CapsuleTopic{}
	}

	type key struct {
		paper core.Paper
		topic string
	}
	best := map[key]int{}
	out := []core.CapsuleTopic{}
	for _, m := range matches {
		k := key{m.Topic.Paper, m.Topic.Topic}
		if i, ok := best[k]; ok {
			if m.Score > out[i].Score {
				out[i].Score = m.Score
			}
			continue
		}
		best[k] = len(out)
		out = append(out, core.CapsuleTopic{Paper: m.Topic.Paper, Topic: m.Topic.Topic, Score: m.Score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topicsPerItem {
		out = out[:topicsPerItem]
	}
	return out
}

func (b *Builder) summary(ctx context.Context, n core.NewsItem) string {
	base := n.RawContent
	if base == "" {
		base = n.Summary
	}
	if len(base) < minBaseLen && b.extractor != nil {
		if text, ok := b.extractor.ExtractArticleText(ctx, n.URL); ok && len(text) > len(base) {
			base = text
		}
	}

	if s := b.summarizer.SummarizeNewsArticle(ctx, n.Title, base, n.URL); s != "" {
		return s
	}
	if s := b.summarizer.SummarizeText(ctx, base, fallbackSentences); s != "" {
		return s
	}
	return NoSummary
}
