package similarity

import (
	"math"
	"testing"
)

func TestScoreLengthBoundsAndOrder(t *testing.T) {
	e := NewEngine()
	corpus := []string{
		"GS2 Polity constitution parliament judiciary fundamental rights",
		"GS3 Economy inflation monetary policy banking growth",
		"GS1 History freedom struggle colonial rule",
		"",
		"GS3 Environment climate change biodiversity pollution",
	}
	got := e.Score("Parliament passes constitution amendment on judiciary", corpus)

	if len(got) != len(corpus) {
		t.Fatalf("len = %d, want %d", len(got), len(corpus))
	}
	seen := make(map[int]bool)
	for i, r := range got {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score[%d] = %v out of [0,1]", i, r.Score)
		}
		if i > 0 && got[i-1].Score < r.Score {
			t.Errorf("not sorted at %d: %v < %v", i, got[i-1].Score, r.Score)
		}
		seen[r.Index] = true
	}
	if len(seen) != len(corpus) {
		t.Errorf("indices not a permutation: %v", got)
	}
	if got[0].Index != 0 {
		t.Errorf("best match = %d, want 0 (polity)", got[0].Index)
	}
}

func TestScoreEmptyCorpus(t *testing.T) {
	if got := NewEngine().Score("anything", nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestScoreTiesKeepCorpusOrder(t *testing.T) {
	got := NewEngine().Score("inflation", []string{"sports", "cricket", "football"})
	for i, r := range got {
		if r.Index != i {
			t.Fatalf("tie order broken: %v", got)
		}
		if r.Score != 0 {
			t.Errorf("expected zero score, got %v", r.Score)
		}
	}
}

func TestScoreIdenticalDocument(t *testing.T) {
	got := NewEngine().Score("monsoon rainfall deficit", []string{"budget deficit", "monsoon rainfall deficit"})
	if got[0].Index != 1 || math.Abs(got[0].Score-1) > 1e-9 {
		t.Errorf("identical doc should score 1, got %+v", got[0])
	}
}

func TestScoreFallsBackToJaccard(t *testing.T) {
	// Every token is a stop word or a single character, so TF-IDF has no vocabulary.
	got := NewEngine().Score("the a of", []string{"the of", "x y"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Index != 0 {
		t.Errorf("expected overlapping doc first, got %+v", got)
	}
	if want := 2.0 / 3.0; math.Abs(got[0].Score-want) > 1e-9 {
		t.Errorf("jaccard = %v, want %v", got[0].Score, want)
	}
	if got[1].Score != 0 {
		t.Errorf("disjoint doc = %v, want 0", got[1].Score)
	}
}

func TestVectorsEmptyVocabulary(t *testing.T) {
	if _, err := NewEngine().Vectors([]string{"the", "and of"}); err != ErrEmptyVocabulary {
		t.Errorf("err = %v, want ErrEmptyVocabulary", err)
	}
}

func TestJaccardEmptyInputs(t *testing.T) {
	if got := Jaccard("", ""); got != 0 {
		t.Errorf("Jaccard of empty strings = %v, want 0", got)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{0, 0}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
