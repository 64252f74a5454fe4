// Package chat answers study questions grounded in stored news and archived questions.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"civicbriefs/internal/core"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/similarity"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultTimeout  = 15 * time.Second
	historyLimit    = 6
	factsTopK       = 3
	pyqsTopK        = 3
	latestNews      = 5
	factChars       = 300
	promptContext   = 1200
	fallbackContext = 200
	maxLines        = 12
	maxChars        = 1200
)

const (
	greetingReply = "Hi! I'm your UPSC mentor. Ask me about current affairs, map a topic to GS papers, " +
		"or request PYQs (e.g. 'Map RBI inflation update' or 'PYQs on biodiversity')."
	noNewsReply     = "No news stored yet. Run the pipeline or add sample news."
	noContextReply  = "Please specify details so I can tailor a UPSC-ready answer."
	emptyReply      = "I didn't catch that. Could you rephrase or add specifics?"
	latestNewsTitle = "Here are the latest items:"
)

var greetings = []string{"hi", "hii", "hello", "hey", "hey there", "what's up", "whats up"}

// domainKeywords decide whether related questions are attached to an answer.
var domainKeywords = []string{"governance", "economy", "foreign policy", "constitution", "polity", "environment", "security", "ethics"}

// Options configures the service.
type Options struct {
	Timeout time.Duration
}

// Response is one assistant turn.
type Response struct {
	SessionID string            `json:"session_id,omitempty"`
	Response  string            `json:"response"`
	Pyqs      []core.RelatedPyq `json:"pyqs,omitempty"`
}

// Service answers chat messages and keeps the conversation history.
type Service struct {
	db      persistence.Database
	engine  *similarity.Engine
	gen     llm.Generator
	timeout time.Duration
	log     *slog.Logger
}

// NewService creates a chat service.
func NewService(db persistence.Database, engine *similarity.Engine, gen llm.Generator, opts Options) *Service {
	if gen == nil {
		gen = llm.Disabled{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Service{db: db, engine: engine, gen: gen, timeout: opts.Timeout, log: logger.Get()}
}

// Ask answers message for a user or an anonymous session. When both userID and
// sessionID are empty a new session is started and returned in the response.
func (s *Service) Ask(ctx context.Context, userID, sessionID, message string) (*Response, error) {
	if userID == "" && sessionID == "" {
		sessionID = uuid.NewString()
	}
	question := strings.TrimSpace(message)
	lower := strings.ToLower(question)

	var (
		reply string
		pyqs  []core.RelatedPyq
		err   error
	)
	switch {
	case isGreeting(lower):
		reply = greetingReply
	case strings.Contains(lower, "news"):
		if reply, err = s.latestNews(ctx); err != nil {
			return nil, err
		}
	default:
		if reply, pyqs, err = s.grounded(ctx, userID, sessionID, question); err != nil {
			return nil, err
		}
		if !mentionsDomain(lower) {
			pyqs = nil
		}
	}

	if err := s.save(ctx, userID, sessionID, RoleUser, question); err != nil {
		return nil, err
	}
	if err := s.save(ctx, userID, sessionID, RoleAssistant, reply); err != nil {
		return nil, err
	}
	return &Response{SessionID: sessionID, Response: reply, Pyqs: pyqs}, nil
}

// History returns the newest limit messages of a conversation, oldest first.
func (s *Service) History(ctx context.Context, userID, sessionID string, limit int) ([]core.ChatMessage, error) {
	return s.db.Chats().Recent(ctx, userID, sessionID, limit)
}

func (s *Service) save(ctx context.Context, userID, sessionID, role, content string) error {
	return s.db.Chats().Append(ctx, &core.ChatMessage{UserID: userID, SessionID: sessionID, Role: role, Content: content})
}

func (s *Service) latestNews(ctx context.Context) (string, error) {
	items, err := s.db.News().Recent(ctx, latestNews)
	if err != nil {
		return "", fmt.Errorf("failed to load news: %w", err)
	}
	if len(items) == 0 {
		return noNewsReply, nil
	}
	lines := []string{latestNewsTitle}
	for i := len(items) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("- %s (%s)", items[i].Title, items[i].Source))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) grounded(ctx context.Context, userID, sessionID, question string) (string, []core.RelatedPyq, error) {
	history, err := s.db.Chats().Recent(ctx, userID, sessionID, historyLimit)
	if err != nil {
		return "", nil, err
	}
	facts, err := s.facts(ctx, question)
	if err != nil {
		return "", nil, err
	}
	pyqs, err := s.relatedPyqs(ctx, question)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	for _, m := range history {
		prefix := "User:"
		if m.Role != RoleUser {
			prefix = "Assistant:"
		}
		parts = append(parts, prefix+" "+m.Content)
	}
	grounding := strings.TrimSpace(strings.Join(parts, "\n") + "\n\n" + facts)

	reply := Tidy(s.answer(ctx, question, grounding))
	if reply == "" {
		reply = emptyReply
	}
	return reply, pyqs, nil
}

// facts renders the top news items for question as "- title: summary" lines.
func (s *Service) facts(ctx context.Context, question string) (string, error) {
	news, err := s.db.News().All(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load news: %w", err)
	}
	corpus := make([]string, len(news))
	for i, n := range news {
		corpus[i] = n.Title + " " + n.Summary + " " + n.RawContent
	}

	var lines []string
	for _, r := range top(s.engine.Score(question, corpus), factsTopK) {
		n := news[r.Index]
		text := n.Summary
		if text == "" {
			text = n.RawContent
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", n.Title, clip(text, factChars)))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) relatedPyqs(ctx context.Context, question string) ([]core.RelatedPyq, error) {
	archive, err := s.db.Pyqs().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	corpus := make([]string, len(archive))
	for i, q := range archive {
		corpus[i] = fmt.Sprintf("%s %d %s %s", q.Paper, q.Year, q.Question, q.Keywords)
	}

	var out []core.RelatedPyq
	for _, r := range top(s.engine.Score(question, corpus), pyqsTopK) {
		q := archive[r.Index]
		out = append(out, core.RelatedPyq{ID: q.ID, Year: q.Year, Paper: q.Paper, Question: q.Question, Score: r.Score})
	}
	return out, nil
}

// answer asks the generator and falls back to the start of the context.
func (s *Service) answer(ctx context.Context, question, grounding string) string {
	prompt := fmt.Sprintf("Question: %s\nContext: %s\nAnswer clearly and accurately:", question, clip(grounding, promptContext))

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.gen.Generate(genCtx, prompt)
	if err == nil {
		if cleaned := clean(out); cleaned != "" {
			return cleaned
		}
	} else {
		s.log.Debug("Chat generator unavailable", "error", err)
	}

	if grounding == "" {
		return noContextReply
	}
	return clean(clip(grounding, fallbackContext) + " ...")
}

// Tidy drops repeated lines (case-insensitive), keeps at most twelve and caps
// the answer at 1200 characters.
func Tidy(text string) string {
	seen := map[string]bool{}
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		key := strings.ToLower(ln)
		if ln == "" || seen[key] {
			continue
		}
		seen[key] = true
		lines = append(lines, ln)
		if len(lines) == maxLines {
			break
		}
	}
	out := strings.Join(lines, "\n")
	if r := []rune(out); len(r) > maxChars {
		out = string(r[:maxChars]) + "…"
	}
	return out
}

// clean strips echoed role lines, wrapping quotes and replacement characters.
func clean(text string) string {
	var kept []string
	for _, ln := range strings.Split(text, "\n") {
		t := strings.TrimSpace(ln)
		if strings.HasPrefix(t, "User:") || strings.HasPrefix(t, "Assistant:") {
			continue
		}
		kept = append(kept, ln)
	}
	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if len(out) >= 2 && (out[0] == '"' && out[len(out)-1] == '"' || out[0] == '\'' && out[len(out)-1] == '\'') {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return strings.TrimSpace(strings.ReplaceAll(out, "�", ""))
}

// isGreeting matches greeting phrases on word boundaries so "this" is not "hi".
func isGreeting(lower string) bool {
	padded := " " + strings.Join(strings.FieldsFunc(lower, notWordRune), " ") + " "
	for _, g := range greetings {
		if strings.Contains(padded, " "+g+" ") {
			return true
		}
	}
	return false
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}

func mentionsDomain(lower string) bool {
	for _, k := range domainKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func top(ranked []similarity.Ranked, k int) []similarity.Ranked {
	var out []similarity.Ranked
	for _, r := range ranked {
		if len(out) == k || r.Score <= 0 {
			break
		}
		out = append(out, r)
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
