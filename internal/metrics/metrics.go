// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal          *prometheus.CounterVec
	harvestRecordsTotal        *prometheus.CounterVec
	harvestRetriesTotal        *prometheus.CounterVec
	harvestPageDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total pages attempted, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)

		harvestRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_records_total",
				Help: "Total records harvested, labeled by category.",
			},
			[]string{"category"},
		)

		harvestRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_retries_total",
				Help: "Total retry-pass attempts, labeled by category.",
			},
			[]string{"category"},
		)

		harvestPageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_page_duration_seconds",
				Help:    "Histogram of per-page fetch+extract+persist latency.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"category"},
		)
	})
}

// ObservePage records one page attempt.
func ObservePage(category string, success bool, dur time.Duration) {
	if harvestPagesTotal == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "completed"
	}
	harvestPagesTotal.WithLabelValues(category, outcome).Inc()
	harvestPageDurationSeconds.WithLabelValues(category).Observe(dur.Seconds())
}

// ObserveRecords adds harvested record counts.
func ObserveRecords(category string, n int) {
	if harvestRecordsTotal == nil || n <= 0 {
		return
	}
	harvestRecordsTotal.WithLabelValues(category).Add(float64(n))
}

// ObserveRetry records one retry-pass attempt.
func ObserveRetry(category string) {
	if harvestRetriesTotal == nil {
		return
	}
	harvestRetriesTotal.WithLabelValues(category).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
