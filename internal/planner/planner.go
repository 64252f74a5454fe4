// Package planner builds per-user study plans and adapts them to test results.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/metrics"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/trends"
)

const (
	PlanWeeks    = 8
	DefaultHours = 10
	MinHours     = 6
	MaxHours     = 18

	RevisionTask         = "Weekly revision"
	RevisePrefix         = "Revise: "
	CurrentAffairsPrefix = "Current Affairs: "

	weakWindow     = 8
	maxWeakTopics  = 8
	injectPerKind  = 2
	weakPriority   = 2.0
	historyDefault = 20
	minKeywordLen  = 3
)

// TrendSource supplies recent topic weights.
type TrendSource interface {
	TopicWeights(ctx context.Context, now time.Time) (map[string]float64, error)
}

// Options configures a Planner.
type Options struct {
	// TargetYear is the exam year written into new plans; 0 means next year.
	TargetYear int
	Location   *time.Location
	Now        func() time.Time
}

// Planner generates and adapts study plans.
type Planner struct {
	db     persistence.Database
	trends TrendSource
	opts   Options
	log    *slog.Logger
}

// Progress summarizes a user's test record.
type Progress struct {
	UserID       string   `json:"user_id"`
	Tests        int      `json:"tests"`
	AverageScore float64  `json:"average"`
	WeakTopics   []string `json:"weak_topics"`
}

// NewPlanner creates a planner.
func NewPlanner(db persistence.Database, trendSource TrendSource, opts Options) *Planner {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Planner{db: db, trends: trendSource, opts: opts, log: logger.Get()}
}

func (p *Planner) now() time.Time {
	return p.opts.Now().In(p.opts.Location)
}

// weights returns trend weights, or none when they cannot be computed.
func (p *Planner) weights(ctx context.Context) map[string]float64 {
	w, err := p.trends.TopicWeights(ctx, p.now())
	if err != nil {
		p.log.Warn("Trend weights unavailable", "error", err)
		return map[string]float64{}
	}
	return w
}

// GeneratePlan writes a fresh eight-week plan for userID, replacing any existing one.
// Trending topics are scheduled first.
func (p *Planner) GeneratePlan(ctx context.Context, userID string) (*core.StudyPlan, error) {
	topics, err := p.db.Topics().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}

	seen := map[string]bool{}
	var labels []string
	for _, t := range topics {
		label := t.Label()
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}

	weights := p.weights(ctx)
	sort.SliceStable(labels, func(i, j int) bool {
		return trends.Weight(weights, labels[i]) > trends.Weight(weights, labels[j])
	})

	weeks := make([]core.PlanWeek, PlanWeeks)
	for i := range weeks {
		weeks[i] = core.PlanWeek{Index: i + 1, Hours: DefaultHours, Tasks: []string{}}
	}
	for i, label := range labels {
		w := &weeks[i%PlanWeeks]
		w.Tasks = append(w.Tasks, label)
	}
	for i := range weeks {
		if weeks[i].Index%2 == 0 {
			weeks[i].Tasks = append(weeks[i].Tasks, RevisionTask)
		}
	}

	now := p.now()
	target := p.opts.TargetYear
	if target == 0 {
		target = now.Year() + 1
	}
	plan := &core.StudyPlan{
		UserID:       userID,
		TargetYear:   target,
		HoursPerWeek: DefaultHours,
		GeneratedOn:  core.DateKey(now),
		Weeks:        weeks,
	}
	if err := p.db.Plans().Upsert(ctx, plan); err != nil {
		return nil, err
	}
	p.log.Info("Generated study plan", "user_id", userID, "topics", len(labels))
	return plan, nil
}

// AdaptPlan rescales hours from the user's average score and injects revision
// and current-affairs tasks. Without test results the plan is returned as is.
func (p *Planner) AdaptPlan(ctx context.Context, userID string) (*core.StudyPlan, error) {
	plan, err := p.db.Plans().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		if plan, err = p.GeneratePlan(ctx, userID); err != nil {
			return nil, err
		}
	}

	results, err := p.db.TestResults().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test results: %w", err)
	}
	if len(results) == 0 {
		return plan, nil
	}

	avg := average(results)
	for i := range plan.Weeks {
		plan.Weeks[i].Hours = ScaleHours(plan.Weeks[i].Hours, avg)
	}

	topics, err := p.db.Topics().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}
	recent := results
	if len(recent) > weakWindow {
		recent = recent[len(recent)-weakWindow:]
	}
	weak := WeakTopics(recent, topics)

	weights := p.weights(ctx)
	trending := trendingLabels(weights)
	weakSet := make(map[string]bool, len(weak))
	for _, w := range weak {
		weakSet[w] = true
	}

	for i := range plan.Weeks {
		week := &plan.Weeks[i]
		week.Tasks = inject(week.Tasks, RevisePrefix, weak, i)
		week.Tasks = inject(week.Tasks, CurrentAffairsPrefix, trending, i)
		sort.SliceStable(week.Tasks, func(a, b int) bool {
			return priority(week.Tasks[a], weakSet, weights) < priority(week.Tasks[b], weakSet, weights)
		})
	}

	plan.Feedback = &core.FeedbackSummary{
		TestsConsidered: len(results),
		AverageScore:    math.Round(avg*100) / 100,
		WeakTopics:      weak,
	}
	if weak == nil {
		plan.Feedback.WeakTopics = []string{}
	}
	if err := p.db.Plans().Upsert(ctx, plan); err != nil {
		return nil, err
	}
	metrics.PlanAdaptations.Inc()
	p.log.Info("Adapted study plan", "user_id", userID, "average", plan.Feedback.AverageScore, "weak_topics", len(weak))
	return plan, nil
}

// RecordTestResult appends a result and adapts the user's plan.
func (p *Planner) RecordTestResult(ctx context.Context, result *core.TestResult) (*core.StudyPlan, error) {
	if result.Date == "" {
		result.Date = core.DateKey(p.now())
	}
	if strings.TrimSpace(result.TestName) == "" {
		result.TestName = "Mock Test"
	}
	if err := p.db.TestResults().Append(ctx, result); err != nil {
		return nil, err
	}
	return p.AdaptPlan(ctx, result.UserID)
}

// Progress summarizes all of a user's results.
func (p *Planner) Progress(ctx context.Context, userID string) (*Progress, error) {
	results, err := p.db.TestResults().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test results: %w", err)
	}
	out := &Progress{UserID: userID, Tests: len(results), WeakTopics: []string{}}
	if len(results) > 0 {
		out.AverageScore = math.Round(average(results)*100) / 100
	}
	plan, err := p.db.Plans().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan != nil && plan.Feedback != nil && plan.Feedback.WeakTopics != nil {
		out.WeakTopics = plan.Feedback.WeakTopics
	}
	return out, nil
}

// History returns the user's newest results, newest first. limit <= 0 means 20.
func (p *Planner) History(ctx context.Context, userID string, limit int) ([]core.TestResult, error) {
	if limit <= 0 {
		limit = historyDefault
	}
	return p.db.TestResults().Recent(ctx, userID, limit)
}

// ScaleHours applies the score-driven adjustment and keeps hours within [6, 18].
func ScaleHours(hours int, avg float64) int {
	switch {
	case avg >= 75:
		hours = int(math.Round(float64(hours) * 0.9))
	case avg <= 60:
		hours = int(math.Round(float64(hours) * 1.2))
	}
	return min(MaxHours, max(MinHours, hours))
}

// WeakTopics weighs topics named by poorly scored tests and returns up to
// eight topic labels, heaviest first.
func WeakTopics(results []core.TestResult, topics []core.SyllabusTopic) []string {
	type weighted struct {
		label  string
		weight float64
	}
	var order []*weighted
	byLabel := map[string]*weighted{}

	for _, r := range results {
		name := strings.ToLower(r.TestName)
		w := 0.5
		switch {
		case r.Score < 50:
			w = 1.5
		case r.Score < 70:
			w = 1.0
		}
		for _, t := range topics {
			if !matchesTopic(name, t) {
				continue
			}
			label := t.Label()
			entry, ok := byLabel[label]
			if !ok {
				entry = &weighted{label: label}
				byLabel[label] = entry
				order = append(order, entry)
			}
			entry.weight += w
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].weight > order[j].weight })
	if len(order) > maxWeakTopics {
		order = order[:maxWeakTopics]
	}
	var out []string
	for _, e := range order {
		out = append(out, e.label)
	}
	return out
}

// matchesTopic reports whether a lowercased test name mentions the topic's
// name, label or any of its keywords.
func matchesTopic(name string, t core.SyllabusTopic) bool {
	if topic := strings.ToLower(strings.TrimSpace(t.Topic)); topic != "" && strings.Contains(name, topic) {
		return true
	}
	if strings.Contains(name, strings.ToLower(t.Label())) {
		return true
	}
	for _, kw := range strings.FieldsFunc(strings.ToLower(t.Keywords), isKeywordSep) {
		if len(kw) >= minKeywordLen && strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func isKeywordSep(r rune) bool {
	return r == ',' || r == ';' || unicode.IsSpace(r)
}

func trendingLabels(weights map[string]float64) []string {
	labels := make([]string, 0, len(weights))
	for l := range weights {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if weights[labels[i]] != weights[labels[j]] {
			return weights[labels[i]] > weights[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// inject adds up to two prefixed tasks to a week, rotating through candidates
// so consecutive weeks surface different topics.
func inject(tasks []string, prefix string, candidates []string, week int) []string {
	if len(candidates) == 0 {
		return tasks
	}
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t] = true
	}
	n := min(injectPerKind, len(candidates))
	for k := 0; k < n; k++ {
		task := prefix + candidates[(week*injectPerKind+k)%len(candidates)]
		if !present[task] {
			present[task] = true
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// priority orders tasks: weak topics first, then by trend weight.
func priority(task string, weak map[string]bool, weights map[string]float64) float64 {
	label := strings.TrimPrefix(strings.TrimPrefix(task, RevisePrefix), CurrentAffairsPrefix)
	key := -trends.Weight(weights, label)
	if weak[label] {
		key -= weakPriority
	}
	return key
}

func average(results []core.TestResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}
