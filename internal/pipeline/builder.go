package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"civicbriefs/internal/cache"
	"civicbriefs/internal/capsule"
	"civicbriefs/internal/chat"
	"civicbriefs/internal/config"
	"civicbriefs/internal/email"
	"civicbriefs/internal/extract"
	"civicbriefs/internal/feeds"
	"civicbriefs/internal/ingest"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/mapping"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/planner"
	"civicbriefs/internal/quiz"
	"civicbriefs/internal/retrieval"
	"civicbriefs/internal/similarity"
	"civicbriefs/internal/summarize"
	"civicbriefs/internal/trends"
)

// CapsuleCache is the cache surface the capsule builder needs plus Close.
type CapsuleCache interface {
	capsule.Cache
	Close() error
}

// Services holds every constructed component. Close releases the database and cache.
type Services struct {
	Config     *config.Config
	DB         persistence.Database
	Generator  llm.Generator
	Engine     *similarity.Engine
	Summarizer *summarize.Service
	Extractor  *extract.Extractor
	Ingest     *ingest.Service
	Mapper     *mapping.Mapper
	Retriever  *retrieval.Retriever
	Capsules   *capsule.Builder
	Trends     *trends.Analyzer
	Planner    *planner.Planner
	Quiz       *quiz.Service
	Chat       *chat.Service
	Notifier   *email.Notifier

	// Now is the clock shared by every service
	Now func() time.Time

	closers []func() error
}

// Pipeline returns the daily pipeline over these services.
func (s *Services) Pipeline(progress io.Writer) *Pipeline {
	return NewPipeline(s.Ingest, s.Mapper, s.Capsules, s.Notifier, s.Config.Email.Subscribers, progress)
}

// Close releases resources in reverse construction order.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Builder helps construct fully configured Services
type Builder struct {
	cfg       *config.Config
	db        persistence.Database
	generator llm.Generator
	cache     CapsuleCache
	fetcher   ingest.FeedFetcher
	now       func() time.Time
}

// NewBuilder creates a builder from configuration
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithDatabase uses an already open, migrated database. The caller keeps ownership.
func (b *Builder) WithDatabase(db persistence.Database) *Builder {
	b.db = db
	return b
}

// WithGenerator overrides the configured inference provider
func (b *Builder) WithGenerator(gen llm.Generator) *Builder {
	b.generator = gen
	return b
}

// WithCache overrides the configured capsule cache
func (b *Builder) WithCache(c CapsuleCache) *Builder {
	b.cache = c
	return b
}

// WithFeedFetcher overrides the HTTP feed fetcher
func (b *Builder) WithFeedFetcher(f ingest.FeedFetcher) *Builder {
	b.fetcher = f
	return b
}

// WithClock fixes the clock used for day keys
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build opens what is missing and wires every service.
func (b *Builder) Build(ctx context.Context) (*Services, error) {
	cfg := b.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	s := &Services{Config: cfg, Now: now}

	db := b.db
	if db == nil {
		opened, err := OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := opened.Migrate(ctx); err != nil {
			opened.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		s.closers = append(s.closers, opened.Close)
		db = opened
	}
	s.DB = db

	gen := b.generator
	if gen == nil {
		var err error
		if gen, err = llm.New(ctx, cfg.AI); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize inference provider: %w", err)
		}
	}
	s.Generator = gen

	capsuleCache := b.cache
	if capsuleCache == nil {
		capsuleCache = openCache(ctx, cfg.Redis)
	}
	s.closers = append(s.closers, capsuleCache.Close)

	loc := cfg.App.Location()
	s.Engine = similarity.NewEngine()
	s.Summarizer = summarize.NewService(gen, s.Engine, summarize.OptionsFromConfig(cfg.Summarizer))
	s.Extractor = extract.NewExtractor(cfg.Extract.Timeout, cfg.Extract.UserAgent)

	fetcher := b.fetcher
	if fetcher == nil {
		fetcher = feeds.NewManager(cfg.Feeds.Timeout, cfg.Feeds.UserAgent)
	}
	s.Ingest = ingest.NewService(db, fetcher, s.Extractor, s.Summarizer, ingest.Options{
		Sources:         cfg.Feeds.Sources,
		MaxItemsPerFeed: cfg.Feeds.MaxItemsPerFeed,
	})
	s.Mapper = mapping.NewMapper(db, s.Engine, s.Summarizer)
	s.Retriever = retrieval.NewRetriever(db.Pyqs(), s.Engine)
	s.Capsules = capsule.NewBuilder(db, s.Retriever, s.Summarizer, s.Extractor, capsuleCache, capsule.Options{
		Location: loc,
		Now:      now,
	})
	s.Trends = trends.NewAnalyzer(db)
	s.Planner = planner.NewPlanner(db, s.Trends, planner.Options{
		TargetYear: cfg.Planner.TargetYear,
		Location:   loc,
		Now:        now,
	})
	s.Quiz = quiz.NewService(db, gen, s.Planner, quiz.Options{Location: loc, Now: now})
	s.Chat = chat.NewService(db, s.Engine, gen, chat.Options{})
	s.Notifier = email.NewNotifier(cfg.Email)
	return s, nil
}

// OpenDatabase connects to the configured store, creating the SQLite data
// directory when needed. Migrations are left to the caller.
func OpenDatabase(ctx context.Context, cfg config.Database) (*persistence.SQLDB, error) {
	if cfg.Driver == persistence.DriverSQLite {
		if dir := filepath.Dir(cfg.DSN); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
			}
		}
	}
	return persistence.Open(ctx, cfg.Driver, cfg.DSN)
}

// openCache returns redis when configured and reachable, otherwise an in-process cache.
func openCache(ctx context.Context, cfg config.Redis) CapsuleCache {
	if cfg.Addr == "" {
		return cache.NewMemory()
	}
	r, err := cache.NewRedis(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.TTL)
	if err != nil {
		// Non-fatal: continue without the shared cache
		logger.Warn("Redis unavailable, using in-process capsule cache", "addr", cfg.Addr, "error", err)
		return cache.NewMemory()
	}
	return r
}
