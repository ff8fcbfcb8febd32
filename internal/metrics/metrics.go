package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qorlgns1/binbang-sub001/internal/engine"
	"github.com/qorlgns1/binbang-sub001/internal/model"
)

var (
	// RequestsTotal counts HTTP requests by method, path, status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationSeconds measures request latency.
	RequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ChecksTotal counts finished checks by platform and outcome.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_checks_total",
			Help: "Total availability checks",
		},
		[]string{"platform", "outcome"},
	)

	// CheckDurationSeconds measures full check duration including retries.
	CheckDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_check_duration_seconds",
			Help:    "Check duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"platform"},
	)

	// CheckRetries counts retry attempts consumed across all checks.
	CheckRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_check_retries_total",
			Help: "Total check retry attempts consumed",
		},
	)

	// BrowsersInUse gauges loaned browser pool handles.
	BrowsersInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_browsers_in_use",
			Help: "Browser pool handles currently loaned out",
		},
	)

	// QueueDepth gauges the length of each job queue.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Pending jobs per queue",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDurationSeconds,
		ChecksTotal,
		CheckDurationSeconds,
		CheckRetries,
		BrowsersInUse,
		QueueDepth,
	)
}

// ObserveCheck records counters for one finished check.
func ObserveCheck(platform string, res model.CheckResult, elapsed time.Duration) {
	outcome := "available"
	switch {
	case res.Error == engine.ErrPatternNotDetected:
		outcome = "pattern_not_detected"
	case res.Error != "":
		outcome = "error"
	case !res.Available:
		outcome = "unavailable"
	}
	ChecksTotal.WithLabelValues(platform, outcome).Inc()
	CheckDurationSeconds.WithLabelValues(platform).Observe(elapsed.Seconds())
	CheckRetries.Add(float64(res.RetryCount))
}
