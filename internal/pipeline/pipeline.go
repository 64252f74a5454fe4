// Package pipeline wires the services together and runs the daily
// ingest, map, capsule and notify sequence.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"
)

// Pipeline orchestrates the daily run
type Pipeline struct {
	ingester    Ingester
	mapper      SyllabusMapper
	capsules    CapsuleBuilder
	notifier    CapsuleNotifier
	subscribers []string

	// progress receives human readable step lines; io.Discard when nil
	progress io.Writer
}

// RunOptions configures one run
type RunOptions struct {
	SkipIngest bool
	SkipEmail  bool
}

// Result is the outcome of a run
type Result struct {
	Capsule *core.Capsule `json:"capsule"`
	Stats   Stats         `json:"stats"`
}

// Stats tracks what each step did
type Stats struct {
	Fetched        int           `json:"fetched"`
	Saved          int           `json:"saved"`
	Mapped         int           `json:"mapped"`
	CapsuleItems   int           `json:"capsule_items"`
	EmailsSent     int           `json:"emails_sent"`
	EmailsFailed   int           `json:"emails_failed"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// NewPipeline creates a pipeline over the given stages. notifier may be nil.
func NewPipeline(ingester Ingester, mapper SyllabusMapper, capsules CapsuleBuilder, notifier CapsuleNotifier, subscribers []string, progress io.Writer) *Pipeline {
	if progress == nil {
		progress = io.Discard
	}
	return &Pipeline{
		ingester:    ingester,
		mapper:      mapper,
		capsules:    capsules,
		notifier:    notifier,
		subscribers: subscribers,
		progress:    progress,
	}
}

// Run executes ingest, mapping, capsule build and email delivery in order.
// Ingestion and mapping failures are logged and the run continues with what
// is already stored; a capsule failure ends the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()
	var stats Stats

	if opts.SkipIngest {
		fmt.Fprintf(p.progress, "⏭️  Step 1/4: Skipping ingestion\n\n")
	} else {
		fmt.Fprintf(p.progress, "📥 Step 1/4: Ingesting news sources...\n")
		report, err := p.ingester.Run(ctx)
		if err != nil {
			logger.Warn("Ingestion finished with errors", "error", err)
			fmt.Fprintf(p.progress, "   ⚠️  Ingestion errors: %v\n", err)
		}
		if report != nil {
			stats.Fetched, stats.Saved = report.Fetched, len(report.Saved)
		}
		fmt.Fprintf(p.progress, "   ✓ Fetched %d, saved %d new\n\n", stats.Fetched, stats.Saved)
	}

	fmt.Fprintf(p.progress, "🔗 Step 2/4: Mapping news to the syllabus...\n")
	mapped, err := p.mapper.MapNewsToSyllabus(ctx)
	if err != nil {
		logger.Warn("Mapping finished with errors", "error", err)
		fmt.Fprintf(p.progress, "   ⚠️  Mapping errors: %v\n", err)
	}
	stats.Mapped = mapped
	fmt.Fprintf(p.progress, "   ✓ Created %d mappings\n\n", mapped)

	fmt.Fprintf(p.progress, "🔨 Step 3/4: Building today's capsule...\n")
	capsule, err := p.capsules.BuildDaily(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build capsule: %w", err)
	}
	stats.CapsuleItems = len(capsule.Items)
	fmt.Fprintf(p.progress, "   ✓ Capsule %s has %d items\n\n", capsule.Date, stats.CapsuleItems)

	switch {
	case opts.SkipEmail || p.notifier == nil:
		fmt.Fprintf(p.progress, "⏭️  Step 4/4: Skipping email\n\n")
	case len(p.subscribers) == 0:
		fmt.Fprintf(p.progress, "⏭️  Step 4/4: No subscribers configured\n\n")
	default:
		fmt.Fprintf(p.progress, "📧 Step 4/4: Emailing %d subscribers...\n", len(p.subscribers))
		stats.EmailsSent, stats.EmailsFailed = p.notifier.SendCapsule(ctx, capsule, p.subscribers)
		fmt.Fprintf(p.progress, "   ✓ Sent %d, failed %d\n\n", stats.EmailsSent, stats.EmailsFailed)
	}

	stats.ProcessingTime = time.Since(start)
	logger.Info("Pipeline run complete",
		"saved", stats.Saved, "mapped", stats.Mapped, "capsule_items", stats.CapsuleItems,
		"emails_sent", stats.EmailsSent, "duration", stats.ProcessingTime)
	return &Result{Capsule: capsule, Stats: stats}, nil
}
