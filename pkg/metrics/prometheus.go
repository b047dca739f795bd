package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the scan pipeline metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	signalsTotal   *prometheus.CounterVec
	gradesTotal    *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
	upstreamTime   *prometheus.HistogramVec
	scanProgress   prometheus.Gauge
}

// New creates a Recorder bound to its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantscan_scans_total",
				Help: "Total number of scans by outcome",
			},
			[]string{"status"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quantscan_scan_duration_seconds",
				Help:    "Wall time of a full scan",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		signalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantscan_signals_total",
				Help: "Triggered signals by strategy",
			},
			[]string{"strategy"},
		),
		gradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantscan_grades_total",
				Help: "Graded signals by grade",
			},
			[]string{"grade"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantscan_upstream_fallback_total",
				Help: "Reads served by the synthetic source after a live failure",
			},
			[]string{"operation"},
		),
		cacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantscan_cache_requests_total",
				Help: "Collector cache lookups by result",
			},
			[]string{"operation", "result"},
		),
		upstreamTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantscan_upstream_duration_seconds",
				Help:    "Latency of upstream market data calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "operation"},
		),
		scanProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantscan_scan_progress_percent",
				Help: "Progress of the running scan",
			},
		),
	}
}

// RecordScan records a finished scan
func (r *Recorder) RecordScan(status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scansTotal.WithLabelValues(status).Inc()
	r.scanDuration.Observe(elapsed.Seconds())
}

// RecordSignal records one triggered signal
func (r *Recorder) RecordSignal(strategy string) {
	if r == nil {
		return
	}
	r.signalsTotal.WithLabelValues(strategy).Inc()
}

// RecordGrade records one graded signal
func (r *Recorder) RecordGrade(grade string) {
	if r == nil {
		return
	}
	r.gradesTotal.WithLabelValues(grade).Inc()
}

// RecordFallback records a synthetic fallback
func (r *Recorder) RecordFallback(operation string) {
	if r == nil {
		return
	}
	r.fallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordCache records a cache hit or miss
func (r *Recorder) RecordCache(operation string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(operation, result).Inc()
}

// RecordUpstream records latency of an upstream call
func (r *Recorder) RecordUpstream(source, operation string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.upstreamTime.WithLabelValues(source, operation).Observe(elapsed.Seconds())
}

// SetProgress publishes the running scan percentage
func (r *Recorder) SetProgress(percent int) {
	if r == nil {
		return
	}
	r.scanProgress.Set(float64(percent))
}

// Registry exposes the underlying registry (tests, custom collectors)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
