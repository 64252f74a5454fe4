package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCounters(t *testing.T) {
	Init()
	Init()

	NewsIngested.Add(2)
	SummarizerFallbacks.WithLabelValues("textrank").Inc()

	if got := testutil.ToFloat64(SummarizerFallbacks.WithLabelValues("textrank")); got < 1 {
		t.Errorf("fallback counter = %v, want >= 1", got)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{"civicbriefs_news_ingested_total", "civicbriefs_summarizer_fallbacks_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
