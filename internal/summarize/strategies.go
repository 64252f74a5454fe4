package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"civicbriefs/internal/llm"
	"civicbriefs/internal/similarity"

	"github.com/jdkato/prose/v2"
	"gonum.org/v1/gonum/floats"
)

// TextRank parameters.
const (
	damping       = 0.85
	maxIterations = 50
	tolerance     = 1e-6
)

// Lead returns the first sentences of the text.
type Lead struct{}

// Name implements Strategy.
func (Lead) Name() string { return "lead" }

// Summarize implements Strategy.
func (Lead) Summarize(_ context.Context, req Request) (string, error) {
	parts := periodSentences(req.Text)
	if len(parts) == 0 {
		return "", fmt.Errorf("lead: %w", ErrUnavailable)
	}

	n := req.MaxSentences
	if n > len(parts) {
		n = len(parts)
	}
	if n < 3 {
		n = 3
	}
	if n > len(parts) {
		n = len(parts)
	}
	return strings.Join(parts[:n], ". ") + ".", nil
}

// TextRank ranks sentences by weighted PageRank over their TF-IDF cosine graph.
type TextRank struct {
	engine *similarity.Engine
}

// NewTextRank creates a TextRank strategy using engine for sentence vectors.
func NewTextRank(engine *similarity.Engine) *TextRank {
	if engine == nil {
		engine = similarity.NewEngine()
	}
	return &TextRank{engine: engine}
}

// Name implements Strategy.
func (*TextRank) Name() string { return "textrank" }

// Summarize implements Strategy.
func (t *TextRank) Summarize(_ context.Context, req Request) (string, error) {
	sentences := segment(req.Text)
	if len(sentences) < 2 {
		return "", fmt.Errorf("textrank: %d sentences: %w", len(sentences), ErrUnavailable)
	}

	vectors, err := t.engine.Vectors(sentences)
	if err != nil {
		return "", fmt.Errorf("textrank: %w", ErrUnavailable)
	}

	scores := pageRank(vectors)

	k := req.MaxSentences
	if k <= 0 || k > len(sentences) {
		k = len(sentences)
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	chosen := order[:k]
	sort.Ints(chosen)

	picked := make([]string, 0, k)
	for _, idx := range chosen {
		picked = append(picked, sentences[idx])
	}
	return strings.Join(picked, " "), nil
}

// pageRank runs weighted PageRank over the cosine similarity graph of unit vectors.
func pageRank(vectors [][]float64) []float64 {
	n := len(vectors)
	weights := make([][]float64, n)
	outSum := make([]float64, n)
	for i := range vectors {
		weights[i] = make([]float64, n)
		for j := range vectors {
			if i == j {
				continue
			}
			weights[i][j] = floats.Dot(vectors[i], vectors[j])
		}
		outSum[i] = floats.Sum(weights[i])
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iter := 0; iter < maxIterations; iter++ {
		dangling := 0.0
		for j := range scores {
			if outSum[j] == 0 {
				dangling += scores[j]
			}
		}
		for i := range next {
			rank := (1-damping)/float64(n) + damping*dangling/float64(n)
			for j := range scores {
				if outSum[j] > 0 && weights[j][i] > 0 {
					rank += damping * weights[j][i] / outSum[j] * scores[j]
				}
			}
			next[i] = rank
		}
		delta := floats.Distance(next, scores, 1)
		copy(scores, next)
		if delta < tolerance {
			break
		}
	}
	return scores
}

// Generative delegates to the configured text generator.
type Generative struct {
	gen     llm.Generator
	timeout time.Duration
}

// NewGenerative creates a generative strategy. timeout <= 0 uses 30s.
func NewGenerative(gen llm.Generator, timeout time.Duration) *Generative {
	if gen == nil {
		gen = llm.Disabled{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generative{gen: gen, timeout: timeout}
}

// Name implements Strategy.
func (*Generative) Name() string { return "generative" }

// Summarize implements Strategy.
func (g *Generative) Summarize(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("generative: %w", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.gen.Generate(ctx, BuildNewsPrompt(req.Title, req.Text, req.URL))
	if err != nil {
		return "", fmt.Errorf("generative: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("generative: empty output: %w", ErrUnavailable)
	}
	return strings.TrimSpace(out), nil
}

// periodSentences splits on periods after flattening newlines.
func periodSentences(text string) []string {
	var parts []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\n", " "), ".") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// segment splits text into sentences with prose, falling back to period splitting.
func segment(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err == nil {
		for _, s := range doc.Sentences() {
			if t := strings.TrimSpace(s.Text); t != "" {
				sentences = append(sentences, t)
			}
		}
	}
	if len(sentences) >= 2 {
		return sentences
	}

	sentences = sentences[:0]
	for _, p := range periodSentences(text) {
		sentences = append(sentences, p+".")
	}
	return sentences
}
