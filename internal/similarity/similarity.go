// Package similarity ranks a corpus of documents against a query.
//
// The primary path is TF-IDF cosine similarity with English stop-word removal.
// When no usable vocabulary exists the engine falls back to token-set Jaccard
// overlap, so every call returns exactly one score per corpus document.
package similarity

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrEmptyVocabulary is returned when no non-stop-word token exists across the input.
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// Ranked is one corpus document with its score. Index refers to the original corpus position.
type Ranked struct {
	Index int
	Score float64
}

var tokenPattern = regexp.MustCompile(`\w\w+`)

// Engine scores text relevance. The zero value is not usable; call NewEngine.
type Engine struct {
	stopWords map[string]bool
}

// NewEngine creates an engine with the English stop-word set.
func NewEngine() *Engine {
	return &Engine{stopWords: englishStopWords}
}

// Score ranks every corpus document against query, highest first, ties by corpus order.
func (e *Engine) Score(query string, corpus []string) []Ranked {
	if len(corpus) == 0 {
		return []Ranked{}
	}

	scores, err := e.cosineScores(query, corpus)
	if err != nil {
		scores = jaccardScores(query, corpus)
	}

	ranked := make([]Ranked, len(corpus))
	for i, s := range scores {
		ranked[i] = Ranked{Index: i, Score: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Vectors returns L2-normalised TF-IDF vectors for docs over their shared vocabulary.
func (e *Engine) Vectors(docs []string) ([][]float64, error) {
	tokenized := make([][]string, len(docs))
	vocab := make(map[string]int)
	for i, d := range docs {
		tokenized[i] = e.tokens(d)
		for _, tok := range tokenized[i] {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}
	if len(vocab) == 0 {
		return nil, ErrEmptyVocabulary
	}

	df := make([]float64, len(vocab))
	for _, toks := range tokenized {
		seen := make(map[int]bool, len(toks))
		for _, tok := range toks {
			idx := vocab[tok]
			if !seen[idx] {
				seen[idx] = true
				df[idx]++
			}
		}
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, d := range df {
		idf[i] = math.Log((1+n)/(1+d)) + 1
	}

	vectors := make([][]float64, len(docs))
	for i, toks := range tokenized {
		v := make([]float64, len(vocab))
		for _, tok := range toks {
			v[vocab[tok]]++
		}
		floats.Mul(v, idf)
		if norm := floats.Norm(v, 2); norm > 0 {
			floats.Scale(1/norm, v)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

func (e *Engine) cosineScores(query string, corpus []string) ([]float64, error) {
	docs := make([]string, 0, len(corpus)+1)
	docs = append(docs, query)
	docs = append(docs, corpus...)

	vectors, err := e.Vectors(docs)
	if err != nil {
		return nil, err
	}

	q := vectors[0]
	scores := make([]float64, len(corpus))
	for i := range corpus {
		// Both sides are unit length or zero, so the dot product is the cosine.
		scores[i] = clamp(floats.Dot(q, vectors[i+1]))
	}
	return scores, nil
}

func (e *Engine) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if !e.stopWords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// Jaccard returns the token-set overlap of two texts using whitespace tokens.
func Jaccard(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

func jaccardScores(query string, corpus []string) []float64 {
	q := wordSet(query)
	scores := make([]float64, len(corpus))
	for i, doc := range corpus {
		scores[i] = jaccard(q, wordSet(doc))
	}
	return scores
}

func jaccard(q, d map[string]bool) float64 {
	inter := 0
	for tok := range q {
		if d[tok] {
			inter++
		}
	}
	union := len(q) + len(d) - inter
	if union < 1 {
		union = 1
	}
	return float64(inter) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
