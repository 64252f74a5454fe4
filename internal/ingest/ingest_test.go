package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/feeds"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/similarity"
	"civicbriefs/internal/summarize"
)

type stubExtractor struct {
	pages map[string]string
	calls int
}

func (s *stubExtractor) ExtractArticleText(_ context.Context, url string) (string, bool) {
	s.calls++
	text, ok := s.pages[url]
	return text, ok
}

func openTestDB(t *testing.T) persistence.Database {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func rssWith(links ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for i, link := range links {
		fmt.Fprintf(&b, `<item><title>Story %d</title><link>%s</link><description>Short teaser %d.</description></item>`, i, link, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func longArticle() string {
	sentences := []string{
		"The Supreme Court delivered a landmark judgment on federalism and state autonomy.",
		"Parliament debated the bill on cooperative federalism for two full days.",
		"Economists warned that fiscal transfers to states remain uneven across regions.",
		"The Finance Commission recommended a revised formula for tax devolution.",
		"Several chief ministers welcomed the verdict as a boost to the constitution.",
		"Legal experts expect the ruling to shape centre state relations for decades.",
		"Opposition parties demanded a special session to discuss the implications.",
		"Civil society groups organised public hearings on the fiscal autonomy of local bodies.",
	}
	return strings.Join(sentences, " ")
}

func newTestService(t *testing.T, db persistence.Database, sources []string, ex *stubExtractor, maxItems int) *Service {
	t.Helper()
	sum := summarize.NewService(llm.Disabled{}, similarity.NewEngine(), summarize.Options{})
	return NewService(db, feeds.NewManager(time.Second, "test"), ex, sum, Options{
		Sources:         sources,
		MaxItemsPerFeed: maxItems,
	})
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			w.Write([]byte(rssWith("https://news.test/shared", "https://news.test/a-only")))
		case "/b":
			w.Write([]byte(rssWith("https://news.test/shared")))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	db := openTestDB(t)
	ex := &stubExtractor{pages: map[string]string{"https://news.test/shared": longArticle()}}
	svc := newTestService(t, db, []string{server.URL + "/a", server.URL + "/broken", server.URL + "/b"}, ex, 0)
	ctx := context.Background()

	report, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fetched != 3 {
		t.Errorf("fetched = %d, want 3", report.Fetched)
	}
	if len(report.Saved) != 2 {
		t.Fatalf("saved = %d, want 2", len(report.Saved))
	}
	n, err := db.News().Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("count = %d, %v; want 2", n, err)
	}

	shared, err := db.News().GetByURL(ctx, "https://news.test/shared")
	if err != nil || shared == nil {
		t.Fatalf("GetByURL: %v, %v", shared, err)
	}
	if shared.RawContent != longArticle() {
		t.Errorf("teaser not replaced by extracted text: %q", shared.RawContent)
	}
	if shared.Summary == "" {
		t.Error("expected summary after enrichment")
	}

	again, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again.Saved) != 0 {
		t.Errorf("second run saved %d, want 0", len(again.Saved))
	}
}

func TestFetchItemsOrderAndDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/first":
			w.Write([]byte(rssWith("https://news.test/1", "https://news.test/2", "https://news.test/3")))
		case "/second":
			w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel>
				<item><title></title><link>https://news.test/untitled</link></item>
				<item><title>No link</title></item>
			</channel></rss>`))
		}
	}))
	defer server.Close()

	svc := newTestService(t, openTestDB(t), []string{server.URL + "/first", server.URL + "/second"}, &stubExtractor{}, 2)
	got := svc.FetchItems(context.Background())

	var urls []string
	for _, c := range got {
		urls = append(urls, c.URL)
	}
	want := []string{"https://news.test/1", "https://news.test/2", "https://news.test/untitled"}
	if strings.Join(urls, ",") != strings.Join(want, ",") {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
	if got[2].Title != "Untitled" {
		t.Errorf("blank title = %q, want Untitled", got[2].Title)
	}
	if got[0].Source != server.URL+"/first" {
		t.Errorf("source = %q", got[0].Source)
	}
}

func TestSaveItemsSkipsBatchDuplicates(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, nil, &stubExtractor{}, 0)
	ctx := context.Background()

	saved, err := svc.SaveItems(ctx, []core.Candidate{
		{Source: "s", Title: "One", URL: "https://news.test/x", Content: "Budget. Deficit."},
		{Source: "s", Title: "One again", URL: "https://news.test/x", Content: "Budget. Deficit."},
	})
	if err != nil {
		t.Fatalf("SaveItems: %v", err)
	}
	if len(saved) != 1 || saved[0].Title != "One" {
		t.Fatalf("saved = %+v", saved)
	}
}

func TestResummarize(t *testing.T) {
	db := openTestDB(t)
	ex := &stubExtractor{pages: map[string]string{}}
	svc := newTestService(t, db, nil, ex, 0)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		url := fmt.Sprintf("https://news.test/%d", i)
		ex.pages[url] = longArticle()
		if _, err := svc.SaveItems(ctx, []core.Candidate{{Source: "s", Title: fmt.Sprintf("T%d", i), URL: url}}); err != nil {
			t.Fatalf("SaveItems: %v", err)
		}
	}
	ex.calls = 0

	report, err := svc.Resummarize(ctx, 10, true)
	if err != nil {
		t.Fatalf("Resummarize: %v", err)
	}
	if report.Updated != 4 || report.Failures != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Samples) != 3 {
		t.Errorf("samples = %d, want 3", len(report.Samples))
	}
	if report.Samples[0].Title != "T3" {
		t.Errorf("first sample = %q, want newest item", report.Samples[0].Title)
	}
	if ex.calls != 4 {
		t.Errorf("forced extraction calls = %d, want 4", ex.calls)
	}
}
