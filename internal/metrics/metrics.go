// Package metrics exposes Prometheus instruments for the dispatch pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathlight_dispatch_requests_total",
		Help: "Dispatch requests by transport and response status",
	}, []string{"transport", "status"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathlight_dispatch_duration_seconds",
		Help:    "End-to-end dispatch latency",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
	}, []string{"transport"})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathlight_actions_total",
		Help: "Pilot actions produced by the intent parser",
	}, []string{"action"})

	synthesisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathlight_tts_failures_total",
		Help: "Replies sent without audio because synthesis failed",
	})

	feedbackItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pathlight_feedback_items",
		Help: "Feedback items held in memory",
	})

	feedbackAppends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathlight_feedback_appends_total",
		Help: "Feedback items appended",
	})

	feedbackEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathlight_feedback_evictions_total",
		Help: "Feedback items evicted by the capacity bound",
	})

	mirrorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathlight_feedback_mirror_failures_total",
		Help: "Failed best-effort feedback mirror writes",
	}, []string{"mirror"})
)

// RecordDispatch records one handled dispatch.
func RecordDispatch(transport string, status int, d time.Duration) {
	dispatchRequests.WithLabelValues(transport, strconv.Itoa(status)).Inc()
	dispatchDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// RecordAction counts a parsed pilot action.
func RecordAction(name string) {
	actionsTotal.WithLabelValues(name).Inc()
}

// RecordSynthesisFailure counts a degraded text-only reply.
func RecordSynthesisFailure() {
	synthesisFailures.Inc()
}

// RecordFeedbackAppend updates the store instruments after an append.
func RecordFeedbackAppend(size, evicted int) {
	feedbackAppends.Inc()
	feedbackItems.Set(float64(size))
	if evicted > 0 {
		feedbackEvictions.Add(float64(evicted))
	}
}

// SetFeedbackItems sets the in-memory feedback gauge.
func SetFeedbackItems(size int) {
	feedbackItems.Set(float64(size))
}

// RecordMirrorFailure counts a failed mirror write.
func RecordMirrorFailure(mirror string) {
	mirrorFailures.WithLabelValues(mirror).Inc()
}
