// Package metrics exposes Prometheus collectors for the WiGLE fetcher.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wigleRequestsTotal          *prometheus.CounterVec
	wigleRequestDurationSeconds *prometheus.HistogramVec
	wigleResultsSeenTotal       prometheus.Counter
	wigleResultsMatchedTotal    prometheus.Counter
	wigleRowsWrittenTotal       prometheus.Counter
	wigleRetriesTotal           *prometheus.CounterVec
	wigleRunsTotal              *prometheus.CounterVec
	wigleLastRunTimestamp       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		wigleRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wigle_requests_total",
				Help: "Total number of search requests, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		wigleRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wigle_request_duration_seconds",
				Help:    "Histogram of search request latencies, labeled by host.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"host"},
		)

		wigleResultsSeenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wigle_results_seen_total",
				Help: "Total number of search results received.",
			},
		)

		wigleResultsMatchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wigle_results_matched_total",
				Help: "Total number of results that passed the organization filter.",
			},
		)

		wigleRowsWrittenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wigle_csv_rows_written_total",
				Help: "Total number of data rows appended to CSV output.",
			},
		)

		wigleRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wigle_retries_total",
				Help: "Total number of retried search requests, labeled by failure kind.",
			},
			[]string{"kind"},
		)

		wigleRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wigle_runs_total",
				Help: "Total number of fetch runs, labeled by stop reason.",
			},
			[]string{"stop_reason"},
		)

		wigleLastRunTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wigle_last_run_timestamp_seconds",
				Help: "Unix time at which the last fetch run finished.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveRequest records a search request outcome and its latency.
func ObserveRequest(site, outcome string, duration time.Duration) {
	host := SanitizeSite(site)
	wigleRequestsTotal.WithLabelValues(host, outcome).Inc()
	wigleRequestDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObservePage adds the results seen and matched on one page.
func ObservePage(seen, matched int) {
	if seen > 0 {
		wigleResultsSeenTotal.Add(float64(seen))
	}
	if matched > 0 {
		wigleResultsMatchedTotal.Add(float64(matched))
	}
}

// ObserveRowsWritten adds appended CSV rows.
func ObserveRowsWritten(rows int) {
	if rows > 0 {
		wigleRowsWrittenTotal.Add(float64(rows))
	}
}

// ObserveRetry increments the retry counter for the given failure kind.
func ObserveRetry(kind string) {
	wigleRetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveRun increments the run counter and stamps the finish time.
func ObserveRun(stopReason string, finishedAt time.Time) {
	wigleRunsTotal.WithLabelValues(stopReason).Inc()
	wigleLastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
