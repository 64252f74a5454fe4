package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"civicbriefs/internal/similarity"
	"civicbriefs/internal/testdb"
)

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func TestGreetingFastPath(t *testing.T) {
	db := testdb.Open(t)
	gen := &fakeGenerator{}
	svc := NewService(db, similarity.NewEngine(), gen, Options{})
	ctx := context.Background()

	resp, err := svc.Ask(ctx, "", "", "Hello there")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Response != greetingReply || resp.SessionID == "" {
		t.Errorf("response = %+v", resp)
	}
	if len(gen.prompts) != 0 {
		t.Errorf("generator called for a greeting")
	}

	history, err := svc.History(ctx, "", resp.SessionID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("history = %+v", history)
	}
}

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"hi", true},
		{"hey, what's up?", true},
		{"whats up", true},
		{"explain this amendment", false},
		{"which paper covers ethics", false},
	}
	for _, tt := range tests {
		if got := isGreeting(tt.in); got != tt.want {
			t.Errorf("isGreeting(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewsFastPath(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, similarity.NewEngine(), &fakeGenerator{}, Options{})
	ctx := context.Background()

	resp, err := svc.Ask(ctx, "u1", "", "any news today?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Response != noNewsReply {
		t.Errorf("empty store reply = %q", resp.Response)
	}

	for _, title := range []string{"one", "two", "three", "four", "five", "six"} {
		testdb.AddNews(t, db, title, "https://news.test/"+title, "", "")
	}
	resp, err = svc.Ask(ctx, "u1", "", "latest news please")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	lines := strings.Split(resp.Response, "\n")
	if len(lines) != 6 || lines[0] != latestNewsTitle {
		t.Fatalf("digest = %q", resp.Response)
	}
	if !strings.HasPrefix(lines[1], "- six") || !strings.HasPrefix(lines[5], "- two") {
		t.Errorf("digest not newest first: %v", lines)
	}
}

func TestGroundedAnswer(t *testing.T) {
	db := testdb.Open(t)
	testdb.SeedSyllabus(t, db)
	testdb.AddNews(t, db, "Supreme Court on federalism", "https://news.test/court",
		"The Supreme Court ruled on the constitution and federalism.", "Court backs federalism.")
	testdb.AddNews(t, db, "Monsoon update", "https://news.test/rain", "Rainfall was normal.", "")

	gen := &fakeGenerator{out: "User: echo\nFederalism is a core polity theme.\nfederalism is a core polity theme.\nStates keep residuary powers."}
	svc := NewService(db, similarity.NewEngine(), gen, Options{})

	resp, err := svc.Ask(context.Background(), "u1", "", "How does the constitution protect federalism?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Response != "Federalism is a core polity theme.\nStates keep residuary powers." {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.Pyqs) == 0 || resp.Pyqs[0].Year != 2019 {
		t.Errorf("pyqs = %+v", resp.Pyqs)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "- Supreme Court on federalism: Court backs federalism.") {
		t.Errorf("prompt = %v", gen.prompts)
	}
}

func TestGroundedAnswerFallsBackToContext(t *testing.T) {
	db := testdb.Open(t)
	testdb.AddNews(t, db, "Budget widens fiscal deficit", "https://news.test/budget", "", "The fiscal deficit target was relaxed.")
	gen := &fakeGenerator{err: errors.New("offline")}
	svc := NewService(db, similarity.NewEngine(), gen, Options{})

	resp, err := svc.Ask(context.Background(), "u1", "", "What about the fiscal deficit?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.HasPrefix(resp.Response, "- Budget widens fiscal deficit") || !strings.HasSuffix(resp.Response, "...") {
		t.Errorf("fallback = %q", resp.Response)
	}
	if resp.Pyqs != nil {
		t.Errorf("pyqs attached without a domain keyword: %+v", resp.Pyqs)
	}
}

func TestGroundedAnswerWithoutContext(t *testing.T) {
	svc := NewService(testdb.Open(t), similarity.NewEngine(), &fakeGenerator{err: errors.New("offline")}, Options{})
	resp, err := svc.Ask(context.Background(), "u1", "", "Explain monetary transmission")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Response != noContextReply {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestTidy(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("line ")
		b.WriteByte(byte('a' + i))
		b.WriteString("\nLINE ")
		b.WriteByte(byte('a' + i))
		b.WriteString("\n\n")
	}
	got := strings.Split(Tidy(b.String()), "\n")
	if len(got) != maxLines || got[0] != "line a" || got[1] != "line b" {
		t.Errorf("Tidy lines = %v", got)
	}

	long := Tidy(strings.Repeat("x", 1500))
	if r := []rune(long); len(r) != maxChars+1 || !strings.HasSuffix(long, "…") {
		t.Errorf("long answer not capped: %d runes", len(r))
	}
}
