// Package metrics provides Prometheus metrics for the winner card service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the service metrics. A nil *Manager records nothing.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       *prometheus.Registry

	scores          *prometheus.CounterVec
	scoreValues     prometheus.Histogram
	scoringLatency  prometheus.Histogram
	cardsGenerated  prometheus.Counter
	cardsFailed     *prometheus.CounterVec
	cardLatency     prometheus.Histogram
	contests        *prometheus.CounterVec
	scoreCacheHits  prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// NewManager creates a Manager on its own registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "winnercard",
		subsystem:      "api",
		latencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		registry:       prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scores = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_total",
		Help:      "Scored submissions by outcome",
	}, []string{"outcome"})

	m.scoreValues = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "excitement_score",
		Help:      "Distribution of excitement scores",
		Buckets:   prometheus.LinearBuckets(70, 3, 11),
	})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_duration_seconds",
		Help:      "Time to score one submission",
		Buckets:   m.latencyBuckets,
	})

	m.cardsGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cards_generated_total",
		Help:      "Winner cards rendered and stored",
	})

	m.cardsFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cards_failed_total",
		Help:      "Winner cards that could not be produced, by reason",
	}, []string{"reason"})

	m.cardLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "card_duration_seconds",
		Help:      "Time to render and store one card",
		Buckets:   m.latencyBuckets,
	})

	m.contests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "contests_total",
		Help:      "Contest requests by submission count and status",
	}, []string{"count", "status"})

	m.scoreCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_cache_hits_total",
		Help:      "Scores served from the cache",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	m.httpRequestTime = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.latencyBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordScore counts one scored submission.
func (m *Manager) RecordScore(outcome string, score float64, took time.Duration) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(outcome).Inc()
	m.scoreValues.Observe(score)
	m.scoringLatency.Observe(took.Seconds())
}

// RecordScoreCacheHit counts a score served from the cache.
func (m *Manager) RecordScoreCacheHit() {
	if m == nil {
		return
	}
	m.scoreCacheHits.Inc()
}

// RecordCard counts a generated card.
func (m *Manager) RecordCard(took time.Duration) {
	if m == nil {
		return
	}
	m.cardsGenerated.Inc()
	m.cardLatency.Observe(took.Seconds())
}

// RecordCardFailure counts a card that failed for reason.
func (m *Manager) RecordCardFailure(reason string) {
	if m == nil {
		return
	}
	m.cardsFailed.WithLabelValues(reason).Inc()
}

// RecordContest counts a finished contest request.
func (m *Manager) RecordContest(count int, status string) {
	if m == nil {
		return
	}
	m.contests.WithLabelValues(countLabel(count), status).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusLabel(status)).Inc()
	m.httpRequestTime.WithLabelValues(route, method).Observe(took.Seconds())
}

func countLabel(n int) string {
	switch n {
	case 2:
		return "2"
	case 4:
		return "4"
	default:
		return "other"
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
