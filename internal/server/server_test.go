package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civicbriefs/internal/cache"
	"civicbriefs/internal/chat"
	"civicbriefs/internal/config"
	"civicbriefs/internal/core"
	"civicbriefs/internal/feeds"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/pipeline"
	"civicbriefs/internal/quiz"
	"civicbriefs/internal/testdb"
)

type noFeeds struct{}

func (noFeeds) Fetch(context.Context, string) ([]feeds.Item, error) { return nil, nil }

var fixedNow = time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testdb.Open(t)
	testdb.SeedSyllabus(t, db)

	body := strings.Repeat("The Supreme Court ruled on federalism and the constitution after a long hearing in parliament. ", 3)
	testdb.AddNews(t, db, "Court rules on federalism", "https://news.test/federalism", body, "")
	testdb.AddNews(t, db, "Budget widens fiscal deficit", "https://news.test/budget",
		strings.Repeat("The budget widened the fiscal deficit while inflation stayed within the RBI band. ", 3), "")

	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Feeds.Sources = nil

	services, err := pipeline.NewBuilder(cfg).
		WithDatabase(db).
		WithGenerator(llm.Disabled{}).
		WithCache(cache.NewMemory()).
		WithFeedFetcher(noFeeds{}).
		WithClock(func() time.Time { return fixedNow }).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { services.Close() })

	ts := httptest.NewServer(New(services, cfg.Server).Router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := do(t, ts, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	if got := decode[HealthResponse](t, body); got.Status != "ok" || got.Checks["database"] != "ok" {
		t.Errorf("health = %+v", got)
	}
}

func TestRelatedPyqs(t *testing.T) {
	ts := newTestServer(t)

	if status, _ := do(t, ts, http.MethodGet, "/api/pyqs/related", nil); status != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", status)
	}
	if status, _ := do(t, ts, http.MethodGet, "/api/pyqs/related?q=court&k=99", nil); status != http.StatusBadRequest {
		t.Errorf("k out of range: status = %d, want 400", status)
	}

	status, body := do(t, ts, http.MethodGet, "/api/pyqs/related?q=supreme+court+federalism&k=2", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	got := decode[RelatedPyqsResponse](t, body)
	// only the federalism question clears the score floor, so k is not filled
	if len(got.Results) != 1 {
		t.Fatalf("results = %+v, want 1", got.Results)
	}
	if got.Results[0].Year != 2019 || got.Results[0].LowConfidence {
		t.Errorf("top result = %+v, want the 2019 federalism question", got.Results[0])
	}
}

func TestPlanLifecycle(t *testing.T) {
	ts := newTestServer(t)

	if status, _ := do(t, ts, http.MethodGet, "/api/plan/asha", nil); status != http.StatusNotFound {
		t.Errorf("plan before generate: status = %d, want 404", status)
	}

	status, body := do(t, ts, http.MethodPost, "/api/plan/asha/generate", nil)
	if status != http.StatusOK {
		t.Fatalf("generate: status = %d, body %s", status, body)
	}
	plan := decode[core.StudyPlan](t, body)
	if plan.UserID != "asha" || len(plan.Weeks) != 8 || plan.TargetYear != 2026 {
		t.Errorf("plan = %+v", plan)
	}

	if status, _ := do(t, ts, http.MethodPost, "/api/plan/asha/test-result", map[string]any{"test_name": "Polity"}); status != http.StatusBadRequest {
		t.Errorf("missing score: status = %d, want 400", status)
	}
	if status, _ := do(t, ts, http.MethodPost, "/api/plan/asha/test-result", map[string]any{"score": 140}); status != http.StatusBadRequest {
		t.Errorf("score above 100: status = %d, want 400", status)
	}

	status, body = do(t, ts, http.MethodPost, "/api/plan/asha/test-result", map[string]any{"test_name": "Polity mock", "score": 40})
	if status != http.StatusOK {
		t.Fatalf("test-result: status = %d, body %s", status, body)
	}
	adapted := decode[core.StudyPlan](t, body)
	if adapted.Feedback == nil || adapted.Feedback.TestsConsidered != 1 {
		t.Fatalf("feedback = %+v", adapted.Feedback)
	}
	for _, w := range adapted.Weeks {
		if w.Hours != 12 {
			t.Errorf("week %d hours = %d, want 12 after a low score", w.Index, w.Hours)
		}
	}

	status, body = do(t, ts, http.MethodGet, "/api/plan/asha/history", nil)
	if status != http.StatusOK {
		t.Fatalf("history: status = %d", status)
	}
	if history := decode[[]core.TestResult](t, body); len(history) != 1 || history[0].Date != "2025-03-14" {
		t.Errorf("history = %+v", history)
	}

	status, body = do(t, ts, http.MethodGet, "/api/plan/asha?format=markdown", nil)
	if status != http.StatusOK || !strings.HasPrefix(string(body), "# Study Plan for asha") {
		t.Errorf("markdown plan: status = %d, body %s", status, body)
	}
}

func TestCapsuleQuizFlow(t *testing.T) {
	ts := newTestServer(t)

	if status, body := do(t, ts, http.MethodPost, "/api/mapping", nil); status != http.StatusOK {
		t.Fatalf("mapping: status = %d, body %s", status, body)
	}

	status, body := do(t, ts, http.MethodGet, "/api/capsule/today", nil)
	if status != http.StatusOK {
		t.Fatalf("capsule: status = %d, body %s", status, body)
	}
	capsule := decode[core.Capsule](t, body)
	if capsule.Date != "2025-03-14" || len(capsule.Items) != 2 {
		t.Fatalf("capsule = %+v", capsule)
	}

	status, body = do(t, ts, http.MethodGet, "/api/capsule/today?format=markdown", nil)
	if status != http.StatusOK || !strings.HasPrefix(string(body), "# Daily Capsule - 2025-03-14") {
		t.Errorf("markdown capsule: status = %d, body %s", status, body)
	}

	if status, _ := do(t, ts, http.MethodPost, "/api/quiz/submit", map[string]any{"user_id": "asha"}); status != http.StatusNotFound {
		t.Errorf("submit before quiz exists: status = %d, want 404", status)
	}

	status, body = do(t, ts, http.MethodGet, "/api/quiz/today", nil)
	if status != http.StatusOK {
		t.Fatalf("quiz: status = %d, body %s", status, body)
	}
	q := decode[core.Quiz](t, body)
	if q.Name != quiz.DailyName("2025-03-14") {
		t.Errorf("quiz name = %q", q.Name)
	}

	answers := make([]int, len(q.Questions))
	for i, question := range q.Questions {
		answers[i] = question.AnswerIndex
	}
	status, body = do(t, ts, http.MethodPost, "/api/quiz/submit", map[string]any{"user_id": "asha", "answers": answers})
	if status != http.StatusOK {
		t.Fatalf("submit: status = %d, body %s", status, body)
	}
	res := decode[quiz.Result](t, body)
	if res.Total != len(q.Questions) || res.Correct != res.Total {
		t.Errorf("result = %+v", res)
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t)

	if status, _ := do(t, ts, http.MethodPost, "/api/chat", map[string]any{"message": "  "}); status != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want 400", status)
	}

	status, body := do(t, ts, http.MethodPost, "/api/chat", map[string]any{"message": "hello there"})
	if status != http.StatusOK {
		t.Fatalf("chat: status = %d, body %s", status, body)
	}
	resp := decode[chat.Response](t, body)
	if resp.SessionID == "" || !strings.HasPrefix(resp.Response, "Hi!") {
		t.Errorf("chat response = %+v", resp)
	}
}

func TestPipelineRunAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/api/pipeline/run", map[string]any{"skip_email": true})
	if status != http.StatusOK {
		t.Fatalf("run: status = %d, body %s", status, body)
	}
	res := decode[pipeline.Result](t, body)
	if res.Stats.Mapped == 0 || res.Stats.CapsuleItems != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}

	status, body = do(t, ts, http.MethodGet, "/api/report/weekly", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"week_end":"2025-03-14"`) {
		t.Errorf("weekly report: status = %d, body %s", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/metrics", nil)
	if status != http.StatusOK || !strings.Contains(string(body), "civicbriefs_http_requests_total") {
		t.Errorf("metrics: status = %d, missing request counter", status)
	}
}
