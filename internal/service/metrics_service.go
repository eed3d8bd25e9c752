package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// accessibility sweeps and notification dispatch.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	sweepRuns     *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	opened        prometheus.Counter
	expiredSkips  prometheus.Counter
	markedExpired prometheus.Counter
	notifyFailed  prometheus.Counter
}

// NewMetricsService registers the sweep collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assessment_sweep_runs_total",
		Help: "Total sweeps executed, by task",
	}, []string{"task"})

	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assessment_sweep_duration_seconds",
		Help:    "Duration of accessibility sweeps in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	opened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessments_opened_total",
		Help: "Assessments flipped to accessible by the opener sweep",
	})

	expiredSkips := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessments_expired_skips_total",
		Help: "Opener candidates skipped because their deadline had passed",
	})

	markedExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessments_marked_incomplete_total",
		Help: "Assessments marked incomplete by the grace expiry sweep",
	})

	notifyFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Notification emissions that failed and were swallowed",
	})

	registry.MustRegister(sweepRuns, sweepDuration, opened, expiredSkips, markedExpired, notifyFailed)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		sweepRuns:     sweepRuns,
		sweepDuration: sweepDuration,
		opened:        opened,
		expiredSkips:  expiredSkips,
		markedExpired: markedExpired,
		notifyFailed:  notifyFailed,
	}
}

// Handler exposes the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// RecordOpenerSweep captures one opener sweep outcome.
func (m *MetricsService) RecordOpenerSweep(opened, expiredSkips int, duration time.Duration) {
	m.sweepRuns.WithLabelValues("opener").Inc()
	m.sweepDuration.WithLabelValues("opener").Observe(duration.Seconds())
	m.opened.Add(float64(opened))
	m.expiredSkips.Add(float64(expiredSkips))
}

// RecordExpirySweep captures one grace expiry sweep outcome.
func (m *MetricsService) RecordExpirySweep(processed int, duration time.Duration) {
	m.sweepRuns.WithLabelValues("expiry").Inc()
	m.sweepDuration.WithLabelValues("expiry").Observe(duration.Seconds())
	m.markedExpired.Add(float64(processed))
}

// RecordNotificationFailure counts a swallowed notification error.
func (m *MetricsService) RecordNotificationFailure() {
	m.notifyFailed.Inc()
}
