// Package promcollector exports segbloom metrics to Prometheus.
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/segbloom"
)

const (
	namespace = "segbloom"

	resultCommitted = "committed"
	resultFailed    = "failed"

	queryHit      = "hit"
	queryMiss     = "miss"
	queryNotFound = "not_found"
)

var _ segbloom.MetricsCollector = (*Collector)(nil)

// Collector implements segbloom.MetricsCollector with Prometheus metrics.
type Collector struct {
	creates       *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	terms         prometheus.Counter
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	filterMemory  prometheus.Gauge
}

// New creates a Collector and registers its metrics with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "segments",
			Name:      "created_total",
			Help:      "Segment builds by outcome.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "segments",
			Name:      "build_duration_seconds",
			Help:      "Wall time of segment builds.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"result"}),
		terms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "segments",
			Name:      "terms_inserted_total",
			Help:      "Terms inserted into committed segments.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queries",
			Name:      "total",
			Help:      "Point queries by result.",
		}, []string{"result"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queries",
			Name:      "duration_seconds",
			Help:      "Latency of point queries.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		filterMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "filters",
			Name:      "memory_bytes",
			Help:      "Tracked bit-array memory of committed filters.",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.creates, c.buildDuration, c.terms, c.queries, c.queryDuration, c.filterMemory,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// RecordCreate implements segbloom.MetricsCollector.
func (c *Collector) RecordCreate(duration time.Duration, terms uint64, err error) {
	result := resultCommitted
	if err != nil {
		result = resultFailed
	}

	c.creates.WithLabelValues(result).Inc()
	c.buildDuration.WithLabelValues(result).Observe(duration.Seconds())
	if err == nil {
		c.terms.Add(float64(terms))
	}
}

// RecordQuery implements segbloom.MetricsCollector.
func (c *Collector) RecordQuery(duration time.Duration, found, exists bool) {
	result := queryMiss
	switch {
	case !found:
		result = queryNotFound
	case exists:
		result = queryHit
	}

	c.queries.WithLabelValues(result).Inc()
	c.queryDuration.Observe(duration.Seconds())
}

// RecordFilterMemory implements segbloom.MetricsCollector.
func (c *Collector) RecordFilterMemory(bytes int64) {
	c.filterMemory.Set(float64(bytes))
}

// RegisterStats exports registry counts and memory diagnostics of svc as
// gauges evaluated at scrape time.
func RegisterStats(reg prometheus.Registerer, svc *segbloom.Service) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gauge := func(subsystem, name, help string, fn func(segbloom.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(svc.Stats()) })
	}

	for _, m := range []prometheus.Collector{
		gauge("segments", "reserved", "Highest segment number handed out.",
			func(s segbloom.Stats) float64 { return float64(s.Reserved) }),
		gauge("segments", "building", "Segments currently building.",
			func(s segbloom.Stats) float64 { return float64(s.Building) }),
		gauge("segments", "committed", "Committed segments.",
			func(s segbloom.Stats) float64 { return float64(s.Committed) }),
		gauge("segments", "failed", "Segments whose build failed.",
			func(s segbloom.Stats) float64 { return float64(s.Failed) }),
		gauge("builds", "active", "Build slots in use.",
			func(s segbloom.Stats) float64 { return float64(s.ActiveBuilds) }),
		gauge("builds", "slots", "Build slots configured.",
			func(s segbloom.Stats) float64 { return float64(s.BuildSlots) }),
		gauge("process", "peak_rss_bytes", "Peak resident set size.",
			func(s segbloom.Stats) float64 { return float64(s.PeakRSSBytes) }),
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}

	return nil
}
