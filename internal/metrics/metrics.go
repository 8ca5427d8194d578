// Package metrics exports eviction activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasew/offlinepages/internal/eviction"
)

// Metrics implements eviction.Observer.
type Metrics struct {
	cyclesTotal   *prometheus.CounterVec
	pagesExpired  prometheus.Counter
	pagesRemoved  prometheus.Counter
	cycleDuration prometheus.Histogram
	archivesBytes prometheus.Gauge
	freeDiskBytes prometheus.Gauge
	lastClearTime prometheus.Gauge
}

// New creates the eviction metrics and registers them with reg. A nil reg
// uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clear_cycles_total",
				Help:      "Total number of clearing cycles by result",
			},
			[]string{"result"},
		),
		pagesExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_expired_total",
				Help:      "Total number of pages selected for expiration",
			},
		),
		pagesRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_removed_total",
				Help:      "Total number of pages selected for removal",
			},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "clear_cycle_duration_seconds",
				Help:      "Duration of clearing cycles",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		archivesBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archives_bytes",
				Help:      "Total size of stored archives at the last check",
			},
		),
		freeDiskBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "free_disk_bytes",
				Help:      "Free disk space at the last check",
			},
		),
		lastClearTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_clear_timestamp_seconds",
				Help:      "Unix time of the last finished clearing cycle",
			},
		),
	}

	reg.MustRegister(
		m.cyclesTotal,
		m.pagesExpired,
		m.pagesRemoved,
		m.cycleDuration,
		m.archivesBytes,
		m.freeDiskBytes,
		m.lastClearTime,
	)

	return m
}

func (m *Metrics) ObserveStats(stats eviction.StorageStats) {
	m.archivesBytes.Set(float64(stats.TotalArchivesSize))
	m.freeDiskBytes.Set(float64(stats.FreeDiskSpace))
}

func (m *Metrics) ObserveCycle(report eviction.CycleReport) {
	m.cyclesTotal.WithLabelValues(report.Result.String()).Inc()
	m.pagesExpired.Add(float64(report.Expired))
	m.pagesRemoved.Add(float64(report.Removed))
	m.cycleDuration.Observe(report.Duration.Seconds())
	if report.Completed {
		m.lastClearTime.Set(float64(report.ClearTime.Unix()))
	}
}
