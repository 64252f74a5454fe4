// Package summarize condenses article text through an ordered chain of strategies.
//
// Strategies are tried in order and the first success wins. Failures are
// logged at debug level and counted, never returned to the caller.
package summarize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"civicbriefs/internal/config"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/metrics"
	"civicbriefs/internal/similarity"
)

// ErrUnavailable means a strategy cannot produce a summary for the input.
var ErrUnavailable = errors.New("summary unavailable")

// Request is the input to a single strategy.
type Request struct {
	Title        string
	Text         string
	URL          string
	MaxSentences int
}

// Strategy produces a summary or an error.
type Strategy interface {
	Name() string
	Summarize(ctx context.Context, req Request) (string, error)
}

// Options configures the service.
type Options struct {
	Backend    string
	MinBullets int
	MaxBullets int
	Timeout    time.Duration
}

// OptionsFromConfig maps summarizer configuration onto Options.
func OptionsFromConfig(cfg config.Summarizer) Options {
	return Options{
		Backend:    cfg.Backend,
		MinBullets: cfg.MinBullets,
		MaxBullets: cfg.MaxBullets,
		Timeout:    cfg.Timeout,
	}
}

// Service runs the strategy chains.
type Service struct {
	opts       Options
	extractive []Strategy
	configured []Strategy
	log        *slog.Logger
}

// NewService builds the extractive chain and the chain selected by opts.Backend.
func NewService(gen llm.Generator, engine *similarity.Engine, opts Options) *Service {
	if opts.MinBullets <= 0 {
		opts.MinBullets = 4
	}
	if opts.MaxBullets < opts.MinBullets {
		opts.MaxBullets = 8
	}

	textRank := NewTextRank(engine)
	extractive := []Strategy{textRank, Lead{}}

	configured := extractive
	if opts.Backend == config.BackendGenerative {
		configured = []Strategy{NewGenerative(gen, opts.Timeout), textRank, Lead{}}
	}

	return &Service{
		opts:       opts,
		extractive: extractive,
		configured: configured,
		log:        logger.Get(),
	}
}

// Generative reports whether the configured chain starts with the generator.
func (s *Service) Generative() bool {
	return s.opts.Backend == config.BackendGenerative
}

// SummarizeText condenses text to at most maxSentences sentences with the extractive chain.
// It returns "" when no strategy succeeds.
func (s *Service) SummarizeText(ctx context.Context, text string, maxSentences int) string {
	return s.run(ctx, s.extractive, Request{Text: text, MaxSentences: maxSentences})
}

// SummarizeNewsArticle produces a bulleted summary with the configured chain.
func (s *Service) SummarizeNewsArticle(ctx context.Context, title, text, url string) string {
	out := s.run(ctx, s.configured, Request{
		Title:        title,
		Text:         text,
		URL:          url,
		MaxSentences: s.opts.MaxBullets,
	})
	if out == "" {
		return ""
	}
	return Bulletize(out, BulletOptions{
		Title:      title,
		MinBullets: s.opts.MinBullets,
		MaxBullets: s.opts.MaxBullets,
		MaxLen:     DefaultMaxBulletLen,
	})
}

func (s *Service) run(ctx context.Context, chain []Strategy, req Request) string {
	if strings.TrimSpace(req.Text) == "" {
		return ""
	}
	for _, strategy := range chain {
		out, err := strategy.Summarize(ctx, req)
		if err == nil && strings.TrimSpace(out) != "" {
			return out
		}
		metrics.SummarizerFallbacks.WithLabelValues(strategy.Name()).Inc()
		s.log.Debug("summarizer strategy failed", "strategy", strategy.Name(), "error", err)
	}
	return ""
}
