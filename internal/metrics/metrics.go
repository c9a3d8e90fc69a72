// Package metrics exposes Prometheus instrumentation for the interview
// service and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interviewer"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	interviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interviews_total",
		Help:      "Interview lifecycle events",
	}, []string{"event"})

	answerScores = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "answer_score",
		Help:      "Distribution of answer scores",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	}, []string{"difficulty", "timed_out"})

	scoringLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scoring_duration_seconds",
		Help:      "Time spent scoring a single answer",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})

	failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Failures of collaborators that do not abort the interview",
	}, []string{"stage"})

	activeInterview = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interview_active",
		Help:      "1 while an interview is running",
	})
)

// Interview lifecycle events.
const (
	EventIntake    = "intake"
	EventStarted   = "started"
	EventResumed   = "resumed"
	EventDiscarded = "discarded"
	EventCompleted = "completed"
)

// Failure stages.
const (
	StageScoring = "scoring"
	StagePersist = "persist"
	StageNotify  = "notify"
)

// Interview counts a lifecycle event.
func Interview(event string) {
	interviews.WithLabelValues(event).Inc()
}

// Answer records the score of an accepted answer.
func Answer(difficulty string, score int, timedOut bool) {
	answerScores.WithLabelValues(difficulty, strconv.FormatBool(timedOut)).Observe(float64(score))
}

// Scoring records how long a scoring call took.
func Scoring(d time.Duration) {
	scoringLatency.Observe(d.Seconds())
}

// Failure counts a swallowed collaborator failure.
func Failure(stage string) {
	failures.WithLabelValues(stage).Inc()
}

// SetActive flips the active interview gauge.
func SetActive(active bool) {
	if active {
		activeInterview.Set(1)
		return
	}
	activeInterview.Set(0)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latency, labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(rec.status)
		httpRequests.WithLabelValues(r.Method, route, status).Inc()
		httpLatency.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
