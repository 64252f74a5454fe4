// Package trends measures which syllabus topics recent capsules keep returning to.
package trends

import (
	"context"
	"fmt"
	"math"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/persistence"
)

const (
	// TrendWindowDays is how far back topic counts reach, today included.
	TrendWindowDays = 14

	reportDays       = 7
	highlightsPerDay = 3
	maxHighlights    = 30
)

// Highlight is one capsule entry surfaced in the weekly report.
type Highlight struct {
	Date    string              `json:"date"`
	Title   string              `json:"title"`
	URL     string              `json:"url"`
	Summary string              `json:"summary"`
	Topics  []core.CapsuleTopic `json:"topics"`
	Pyqs    []core.RelatedPyq   `json:"pyqs"`
}

// Progress aggregates test results across users.
type Progress struct {
	TestsRecorded int     `json:"tests_recorded"`
	AverageScore  float64 `json:"average_score"`
}

// WeeklyReport summarizes the last seven days.
type WeeklyReport struct {
	WeekStart  string      `json:"week_start"`
	WeekEnd    string      `json:"week_end"`
	Highlights []Highlight `json:"highlights"`
	Progress   Progress    `json:"progress"`
}

// Analyzer reads capsules and test results.
type Analyzer struct {
	db persistence.Database
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(db persistence.Database) *Analyzer {
	return &Analyzer{db: db}
}

// TopicWeights maps topic labels ("GS2: Polity") seen in the last 14 days of
// capsules to 1 + count/maxCount, so weights fall in (1, 2]. Topics that did
// not appear are absent; use Weight to read them as 1.
func (a *Analyzer) TopicWeights(ctx context.Context, now time.Time) (map[string]float64, error) {
	since := core.DateKey(now.AddDate(0, 0, -(TrendWindowDays - 1)))
	capsules, err := a.db.Capsules().Since(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load capsules: %w", err)
	}

	counts := map[string]int{}
	maxCount := 0
	for _, c := range capsules {
		for _, item := range c.Items {
			for _, t := range item.Topics {
				label := Label(t)
				counts[label]++
				if counts[label] > maxCount {
					maxCount = counts[label]
				}
			}
		}
	}

	weights := make(map[string]float64, len(counts))
	for label, n := range counts {
		weights[label] = 1 + float64(n)/float64(maxCount)
	}
	return weights, nil
}

// Weight returns a label's trend weight, 1 when it is not trending.
func Weight(weights map[string]float64, label string) float64 {
	if w, ok := weights[label]; ok {
		return w
	}
	return 1
}

// Label renders a capsule topic the same way SyllabusTopic.Label does.
func Label(t core.CapsuleTopic) string {
	return fmt.Sprintf("%s: %s", t.Paper, t.Topic)
}

// WeeklyReport collects the top items of each capsule in the last seven days
// and the test activity over the same window.
func (a *Analyzer) WeeklyReport(ctx context.Context, now time.Time) (*WeeklyReport, error) {
	start := core.DateKey(now.AddDate(0, 0, -(reportDays - 1)))
	end := core.DateKey(now)

	capsules, err := a.db.Capsules().Since(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load capsules: %w", err)
	}

	highlights := []Highlight{}
	for _, c := range capsules {
		if c.Date > end {
			continue
		}
		items := c.Items
		if len(items) > highlightsPerDay {
			items = items[:highlightsPerDay]
		}
		for _, it := range items {
			highlights = append(highlights, Highlight{
				Date:    c.Date,
				Title:   it.Title,
				URL:     it.URL,
				Summary: it.Summary,
				Topics:  it.Topics,
				Pyqs:    it.Pyqs,
			})
		}
	}
	if len(highlights) > maxHighlights {
		highlights = highlights[:maxHighlights]
	}

	results, err := a.db.TestResults().Since(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load test results: %w", err)
	}
	progress := Progress{TestsRecorded: len(results)}
	if len(results) > 0 {
		sum := 0.0
		for _, r := range results {
			sum += r.Score
		}
		progress.AverageScore = math.Round(sum/float64(len(results))*100) / 100
	}

	return &WeeklyReport{
		WeekStart:  start,
		WeekEnd:    end,
		Highlights: highlights,
		Progress:   progress,
	}, nil
}
