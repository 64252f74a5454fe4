package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"civicbriefs/internal/config"
	"civicbriefs/internal/similarity"
)

// mockGenerator implements llm.Generator for testing
type mockGenerator struct {
	response   string
	shouldFail bool
	prompts    []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.shouldFail {
		return "", errors.New("mock generator error")
	}
	return m.response, nil
}

const article = `The Union Cabinet approved the National Green Hydrogen Mission with an outlay of 19,744 crore rupees. ` +
	`The mission aims to make India a global hub for production of green hydrogen. ` +
	`Green hydrogen production capacity of 5 million tonnes per annum is targeted by 2030. ` +
	`The mission will reduce dependence on imported fossil fuels. ` +
	`Electrolyser manufacturing will receive incentives under a dedicated programme. ` +
	`Pilot projects in steel and shipping will be supported. ` +
	`The Ministry of New and Renewable Energy will formulate the scheme guidelines.`

func TestLead(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"caps at max", "A one. B two. C three. D four. E five", 4, "A one. B two. C three. D four."},
		{"floor of three", "A one. B two. C three. D four.", 1, "A one. B two. C three."},
		{"fewer than three", "Only one sentence", 5, "Only one sentence."},
		{"newlines flattened", "First line\nstill first. Second.", 2, "First line still first. Second."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lead{}.Summarize(context.Background(), Request{Text: tt.text, MaxSentences: tt.max})
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLeadEmpty(t *testing.T) {
	if _, err := (Lead{}).Summarize(context.Background(), Request{Text: " . . "}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestTextRankSelectsInDocumentOrder(t *testing.T) {
	tr := NewTextRank(similarity.NewEngine())
	got, err := tr.Summarize(context.Background(), Request{Text: article, MaxSentences: 3})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	sentences := segment(article)
	var positions []int
	for i, s := range sentences {
		if strings.Contains(got, s) {
			positions = append(positions, i)
		}
	}
	if len(positions) != 3 {
		t.Fatalf("expected 3 sentences from the source, got %d in %q", len(positions), got)
	}
	idx := strings.Index(got, sentences[positions[0]])
	for _, p := range positions[1:] {
		next := strings.Index(got, sentences[p])
		if next < idx {
			t.Errorf("sentences not in document order: %q", got)
		}
		idx = next
	}
}

func TestTextRankNeedsTwoSentences(t *testing.T) {
	tr := NewTextRank(nil)
	if _, err := tr.Summarize(context.Background(), Request{Text: "Just one sentence here", MaxSentences: 3}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPageRankUniformOnSymmetricGraph(t *testing.T) {
	v := []float64{1, 0}
	scores := pageRank([][]float64{v, v, v})
	for i := 1; i < len(scores); i++ {
		if diff := scores[i] - scores[0]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("scores differ: %v", scores)
		}
	}
}

func TestGenerativeFallsBackToExtractive(t *testing.T) {
	gen := &mockGenerator{shouldFail: true}
	svc := NewService(gen, nil, Options{Backend: config.BackendGenerative, MinBullets: 4, MaxBullets: 8})

	out := svc.SummarizeNewsArticle(context.Background(), "Green Hydrogen Mission", article, "https://example.com/h2")
	if out == "" {
		t.Fatal("expected extractive fallback output")
	}
	if len(gen.prompts) != 1 {
		t.Errorf("generator calls = %d, want 1", len(gen.prompts))
	}
	if !strings.HasPrefix(out, "- ") {
		t.Errorf("expected bullets, got %q", out)
	}
}

func TestGenerativeOutputIsBulletized(t *testing.T) {
	gen := &mockGenerator{response: `Green Hydrogen Mission
- Cabinet approved the mission with 19,744 crore outlay.
- Target is 5 MMT green hydrogen by 2030
* Electrolyser manufacturing gets incentives.
1. Pilots in steel and shipping will be supported.
- Target is 5 MMT green hydrogen by 2030.`}
	svc := NewService(gen, nil, Options{Backend: config.BackendGenerative})

	out := svc.SummarizeNewsArticle(context.Background(), "Green Hydrogen Mission", article, "")
	want := strings.Join([]string{
		"- Cabinet approved the mission with 19,744 crore outlay.",
		"- Target is 5 MMT green hydrogen by 2030.",
		"- Electrolyser manufacturing gets incentives.",
		"- Pilots in steel and shipping will be supported.",
	}, "\n")
	if out != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
	if !strings.Contains(gen.prompts[0], "**Title:** Green Hydrogen Mission") {
		t.Error("prompt missing title")
	}
}

func TestExtractiveBackendNeverCallsGenerator(t *testing.T) {
	gen := &mockGenerator{response: "unused"}
	svc := NewService(gen, nil, Options{Backend: config.BackendExtractive})
	if out := svc.SummarizeText(context.Background(), article, 2); out == "" {
		t.Fatal("expected summary")
	}
	if out := svc.SummarizeNewsArticle(context.Background(), "t", article, ""); out == "" {
		t.Fatal("expected news summary")
	}
	if len(gen.prompts) != 0 {
		t.Errorf("generator called %d times on extractive backend", len(gen.prompts))
	}
}

func TestSummarizeEmptyText(t *testing.T) {
	svc := NewService(nil, nil, Options{})
	if out := svc.SummarizeText(context.Background(), "   ", 3); out != "" {
		t.Errorf("expected empty summary, got %q", out)
	}
}

func TestBuildNewsPromptTruncates(t *testing.T) {
	long := strings.Repeat("word ", 3000)
	prompt := BuildNewsPrompt("T", long, "u")
	if len(prompt) > maxPromptChars+1500 {
		t.Errorf("article text not truncated")
	}
	if !strings.Contains(prompt, "5 to 8 bullet points") {
		t.Error("prompt missing output contract")
	}
}
