// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NewsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "civicbriefs_news_ingested_total",
			Help: "Total news items newly stored",
		},
	)

	FeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicbriefs_feed_errors_total",
			Help: "Total feed fetch failures",
		},
		[]string{"source"},
	)

	SummarizerFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicbriefs_summarizer_fallbacks_total",
			Help: "Total summarization strategy failures that fell through to the next strategy",
		},
		[]string{"strategy"},
	)

	CapsuleBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicbriefs_capsule_builds_total",
			Help: "Capsule requests by outcome",
		},
		[]string{"result"},
	)

	PlanAdaptations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "civicbriefs_plan_adaptations_total",
			Help: "Total study plan adaptations",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicbriefs_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "status"},
	)

	CapsuleBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "civicbriefs_capsule_build_seconds",
			Help:    "Capsule build duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

var once sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(NewsIngested)
		prometheus.MustRegister(FeedErrors)
		prometheus.MustRegister(SummarizerFallbacks)
		prometheus.MustRegister(CapsuleBuilds)
		prometheus.MustRegister(PlanAdaptations)
		prometheus.MustRegister(CapsuleBuildDuration)
		prometheus.MustRegister(HTTPRequests)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
