// Package quiz generates the daily multiple choice test from the capsule and grades submissions.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/persistence"
)

// ErrNotFound is returned when a submission names a quiz that does not exist.
var ErrNotFound = errors.New("quiz not found")

const (
	optionCount      = 4
	maxQuestions     = 10
	promptItems      = 8
	maxContextChars  = 800
	defaultTimeout   = 30 * time.Second
	defaultCorrect   = "GS2: Polity & Governance"
	deterministicWhy = "Correct mapping is derived from the highest-confidence syllabus link for this news item."
	dailyPrefix      = "Daily Quiz - "
	maxMissedLabels  = 3
)

// padOptions fill questions that came back with fewer than four options.
var padOptions = []string{"GS2: Governance", "GS3: Economy", "GS1: Society", "GS4: Ethics"}

// ResultRecorder stores a graded attempt and returns the adapted plan.
type ResultRecorder interface {
	RecordTestResult(ctx context.Context, result *core.TestResult) (*core.StudyPlan, error)
}

// Options configures the service.
type Options struct {
	Location *time.Location
	Now      func() time.Time
	Timeout  time.Duration
}

// Service builds and grades quizzes.
type Service struct {
	db       persistence.Database
	gen      llm.Generator
	recorder ResultRecorder
	opts     Options
	log      *slog.Logger
}

// Review is the graded view of one question.
type Review struct {
	Index       int      `json:"index"`
	Chosen      int      `json:"chosen"`
	Correct     int      `json:"correct"`
	OK          bool     `json:"ok"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Explanation string   `json:"explanation"`
	Source      string   `json:"source"`
}

// Result is a graded submission.
type Result struct {
	Score   float64         `json:"score"`
	Total   int             `json:"total"`
	Correct int             `json:"correct"`
	Review  []Review        `json:"review"`
	Plan    *core.StudyPlan `json:"plan,omitempty"`
}

// NewService creates a quiz service.
func NewService(db persistence.Database, gen llm.Generator, recorder ResultRecorder, opts Options) *Service {
	if gen == nil {
		gen = llm.Disabled{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Service{db: db, gen: gen, recorder: recorder, opts: opts, log: logger.Get()}
}

// DailyName is the quiz name for a date key.
func DailyName(date string) string {
	return dailyPrefix + date
}

// DailyDate returns the date key encoded in a DailyName.
func DailyDate(name string) (string, bool) {
	date, ok := strings.CutPrefix(name, dailyPrefix)
	if !ok {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", false
	}
	return date, true
}

func (s *Service) today() string {
	return core.DateKey(s.opts.Now().In(s.opts.Location))
}

// GenerateDaily returns today's quiz, generating it from today's capsule when
// missing or when force is set.
func (s *Service) GenerateDaily(ctx context.Context, force bool) (*core.Quiz, error) {
	date := s.today()
	name := DailyName(date)

	if !force {
		existing, err := s.db.Quizzes().Get(ctx, date, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	capsule, err := s.db.Capsules().Get(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load capsule %s: %w", date, err)
	}
	if capsule == nil {
		capsule = &core.Capsule{Date: date, Items: []core.CapsuleItem{}}
	}

	questions := s.generateWithLLM(ctx, capsule)
	if len(questions) == 0 {
		topics, err := s.db.Topics().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load topics: %w", err)
		}
		questions = BuildQuestions(capsule, topics)
	}

	quiz := &core.Quiz{Date: date, Name: name, Questions: questions}
	if err := s.db.Quizzes().Save(ctx, quiz, force); err != nil {
		return nil, err
	}
	if force {
		return quiz, nil
	}
	// a concurrent generator may have stored first
	stored, err := s.db.Quizzes().Get(ctx, date, name)
	if err != nil || stored == nil {
		return quiz, err
	}
	return stored, nil
}

// Submit grades answers against the quiz named name, records the result
// and adapts the user's plan. Daily quizzes are looked up under the date in
// their name, so a quiz fetched before midnight can still be submitted after.
func (s *Service) Submit(ctx context.Context, userID, name string, answers []int) (*Result, error) {
	date, ok := DailyDate(name)
	if !ok {
		date = s.today()
	}
	quiz, err := s.db.Quizzes().Get(ctx, date, name)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, ErrNotFound
	}

	res := &Result{Total: len(quiz.Questions), Review: make([]Review, 0, len(quiz.Questions))}
	var missed []string
	for i, q := range quiz.Questions {
		chosen := -1
		if i < len(answers) {
			chosen = answers[i]
		}
		ok := chosen == q.AnswerIndex
		if ok {
			res.Correct++
		} else if q.AnswerIndex >= 0 && q.AnswerIndex < len(q.Options) {
			missed = append(missed, q.Options[q.AnswerIndex])
		}
		res.Review = append(res.Review, Review{
			Index:       i,
			Chosen:      chosen,
			Correct:     q.AnswerIndex,
			OK:          ok,
			Question:    q.Prompt,
			Options:     q.Options,
			Explanation: q.Explanation,
			Source:      q.Source,
		})
	}
	res.Score = math.Round(float64(res.Correct)/float64(max(1, res.Total))*100*100) / 100

	if s.recorder != nil {
		plan, err := s.recorder.RecordTestResult(ctx, &core.TestResult{
			UserID:   userID,
			TestName: resultName(name, missed),
			Score:    res.Score,
			Date:     date,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record result: %w", err)
		}
		res.Plan = plan
	}
	return res, nil
}

// resultName appends the most frequently missed topic labels to the quiz
// name, so the planner can infer weak topics from the recorded result.
func resultName(name string, missed []string) string {
	if len(missed) == 0 {
		return name
	}
	counts := map[string]int{}
	var labels []string
	for _, l := range missed {
		if counts[l] == 0 {
			labels = append(labels, l)
		}
		counts[l]++
	}
	sort.SliceStable(labels, func(i, j int) bool { return counts[labels[i]] > counts[labels[j]] })
	if len(labels) > maxMissedLabels {
		labels = labels[:maxMissedLabels]
	}
	return fmt.Sprintf("%s (missed: %s)", name, strings.Join(labels, "; "))
}

// BuildQuestions makes one question per capsule item (at most ten) asking which
// syllabus topic the item maps to. The correct option is the item's best topic;
// its position is derived from the title so rebuilding gives the same quiz.
func BuildQuestions(capsule *core.Capsule, topics []core.SyllabusTopic) []core.QuizQuestion {
	seen := map[string]bool{}
	var pool []string
	for _, t := range topics {
		label := t.Label()
		if !seen[label] {
			seen[label] = true
			pool = append(pool, label)
		}
	}

	candidates := append(pool, padOptions...)

	items := capsule.Items
	if len(items) > maxQuestions {
		items = items[:maxQuestions]
	}
	questions := []core.QuizQuestion{}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "Current Affairs"
		}

		correct := defaultCorrect
		if len(item.Topics) > 0 {
			best := item.Topics[0]
			for _, t := range item.Topics[1:] {
				if t.Score > best.Score {
					best = t
				}
			}
			correct = fmt.Sprintf("%s: %s", best.Paper, best.Topic)
		}

		var distractors []string
		for _, cand := range candidates {
			if len(distractors) == optionCount-1 {
				break
			}
			if cand != correct && !contains(distractors, cand) {
				distractors = append(distractors, cand)
			}
		}

		options, answer := place(correct, distractors, title)
		questions = append(questions, core.QuizQuestion{
			Prompt:      fmt.Sprintf("Which syllabus mapping best fits: %s?", title),
			Context:     item.Summary,
			Options:     options,
			AnswerIndex: answer,
			Explanation: deterministicWhy,
			Source:      item.URL,
		})
	}
	return questions
}

// place inserts correct among others at a position derived from seed.
func place(correct string, others []string, seed string) ([]string, int) {
	n := len(others) + 1
	h := fnv.New32a()
	h.Write([]byte(seed))
	pos := int(h.Sum32() % uint32(n))

	options := make([]string, 0, n)
	options = append(options, others[:pos]...)
	options = append(options, correct)
	options = append(options, others[pos:]...)
	return options, pos
}

type generatedQuestion struct {
	Q           string `json:"q"`
	Context     string `json:"context"`
	Options     []any  `json:"options"`
	AnswerIndex int    `json:"answer_index"`
	Explanation string `json:"explanation"`
	Source      string `json:"source"`
}

func (s *Service) generateWithLLM(ctx context.Context, capsule *core.Capsule) []core.QuizQuestion {
	if len(capsule.Items) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.gen.Generate(ctx, BuildPrompt(capsule))
	if err != nil {
		s.log.Debug("Generated quiz unavailable", "error", err)
		return nil
	}
	questions, err := ParseGenerated(out)
	if err != nil {
		s.log.Warn("Generated quiz rejected", "error", err)
		return nil
	}
	return questions
}

// ParseGenerated validates model output and normalises every question to four
// options with the answer index pointing at the original correct option.
func ParseGenerated(raw string) ([]core.QuizQuestion, error) {
	var payload struct {
		Questions []generatedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("invalid quiz json: %w", err)
	}

	questions := []core.QuizQuestion{}
	for _, g := range payload.Questions {
		if len(questions) == maxQuestions {
			break
		}
		var opts []string
		for _, o := range g.Options {
			text := strings.TrimSpace(fmt.Sprint(o))
			if text != "" && !contains(opts, text) {
				opts = append(opts, text)
			}
		}
		if len(opts) < 2 {
			continue
		}
		answer := g.AnswerIndex
		if answer < 0 || answer >= len(opts) {
			answer = 0
		}
		correct := opts[answer]

		var others []string
		for i, o := range opts {
			if i != answer && len(others) < optionCount-1 {
				others = append(others, o)
			}
		}
		for _, p := range padOptions {
			if len(others) == optionCount-1 {
				break
			}
			if p != correct && !contains(others, p) {
				others = append(others, p)
			}
		}

		prompt := strings.TrimSpace(g.Q)
		if prompt == "" {
			prompt = "Current Affairs"
		}
		options, idx := place(correct, others, prompt)
		questions = append(questions, core.QuizQuestion{
			Prompt:      prompt,
			Context:     g.Context,
			Options:     options,
			AnswerIndex: idx,
			Explanation: g.Explanation,
			Source:      g.Source,
		})
	}
	if len(questions) == 0 {
		return nil, errors.New("no usable questions")
	}
	return questions, nil
}

// BuildPrompt asks for strict JSON multiple choice questions about the capsule.
func BuildPrompt(capsule *core.Capsule) string {
	var b strings.Builder
	b.WriteString("You are a mentor for the civil services examination. Generate 8-10 multiple choice questions based on the items below.\n")
	b.WriteString("Rules: (1) Each option MUST be a syllabus mapping formatted 'GSx: Topic' (e.g. 'GS2: Federalism'). ")
	b.WriteString("(2) Provide 4 unique options per question; exactly one correct. (3) Provide answer_index (0-3). ")
	b.WriteString("(4) Include a short explanation tied to the syllabus and the news. (5) Include the source URL.\n")
	b.WriteString(`Output STRICT JSON only: {"questions":[{"q":str,"options":[str,str,str,str],"answer_index":int,"explanation":str,"source":str}]}`)
	b.WriteString("\nItems:\n")

	items := capsule.Items
	if len(items) > promptItems {
		items = items[:promptItems]
	}
	for i, it := range items {
		labels := make([]string, 0, len(it.Topics))
		for _, t := range it.Topics {
			labels = append(labels, fmt.Sprintf("%s:%s", t.Paper, t.Topic))
		}
		sort.Strings(labels)
		if len(labels) > 4 {
			labels = labels[:4]
		}
		fmt.Fprintf(&b, "%d. Title: %s. Summary: %s. Topics: %s. URL: %s\n",
			i+1, it.Title, truncate(it.Summary, maxContextChars), strings.Join(labels, ", "), it.URL)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
