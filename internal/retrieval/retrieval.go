// Package retrieval ranks archived exam questions against free text.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"civicbriefs/internal/core"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/similarity"
)

const (
	// DefaultTopK is used when a caller asks for zero or fewer results.
	DefaultTopK = 3

	tagBonus = 0.2

	// Results at or below this score are not considered relevant.
	minConfidence = 0.05

	// LowConfidenceScore replaces the computed score when nothing clears minConfidence.
	LowConfidenceScore = 0.01
)

// Retriever finds related questions.
type Retriever struct {
	pyqs   persistence.PyqRepository
	engine *similarity.Engine
}

// NewRetriever creates a retriever over the question archive.
func NewRetriever(pyqs persistence.PyqRepository, engine *similarity.Engine) *Retriever {
	return &Retriever{pyqs: pyqs, engine: engine}
}

// FindRelated returns up to topK questions ranked by similarity plus a bonus per
// shared domain tag. If no question clears the confidence floor the top topK are
// still returned, flagged LowConfidence with a sentinel score.
func (r *Retriever) FindRelated(ctx context.Context, text string, topK int) ([]core.RelatedPyq, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	questions, err := r.pyqs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if len(questions) == 0 {
		return []core.RelatedPyq{}, nil
	}
	return Rank(r.engine, text, questions, topK), nil
}

// Rank scores questions against text. It is the pure part of FindRelated.
func Rank(engine *similarity.Engine, text string, questions []core.PyqQuestion, topK int) []core.RelatedPyq {
	corpus := make([]string, len(questions))
	for i, q := range questions {
		corpus[i] = q.Question + " " + q.Keywords
	}

	base := make([]float64, len(questions))
	for _, r := range engine.Score(text, corpus) {
		base[r.Index] = r.Score
	}

	textTags := ExtractTags(text)
	scored := make([]core.RelatedPyq, len(questions))
	for i, q := range questions {
		matched := sharedTags(textTags, ExtractTags(corpus[i]))
		scored[i] = core.RelatedPyq{
			ID:            q.ID,
			Year:          q.Year,
			Paper:         q.Paper,
			Question:      q.Question,
			Score:         base[i] + tagBonus*float64(len(matched)),
			TopicsMatched: matched,
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	relevant := make([]core.RelatedPyq, 0, topK)
	for _, p := range scored {
		if len(relevant) == topK {
			break
		}
		if p.Score > minConfidence {
			relevant = append(relevant, p)
		}
	}
	if len(relevant) > 0 {
		return relevant
	}

	if len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Score = LowConfidenceScore
		scored[i].LowConfidence = true
	}
	return scored
}
