package watchlist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine counters. Construction takes a Registerer so
// tests can use a private registry.
type Metrics struct {
	RecordsScanned     prometheus.Counter
	ValidationFailures prometheus.Counter
	CandidatesFound    prometheus.Counter
	AlertsCreated      prometheus.Counter
	DedupHits          prometheus.Counter
	PersistFailures    prometheus.Counter
	ScanLatency        prometheus.Histogram
}

// NewMetrics registers and returns the engine metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchlist_records_scanned_total",
			Help: "Transaction records scanned against the watchlist",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchlist_record_validation_failures_total",
			Help: "Malformed transaction records skipped during scanning",
		}),
		CandidatesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchlist_match_candidates_total",
			Help: "Match candidates produced by the scanner",
		}),
		AlertsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchlist_alerts_created_total",
			Help: "Alerts persisted for operator review",
		}),
		DedupHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchlist_alert_dedup_hits_total",
			Help: "Candidates skipped because a non-discarded alert already existed",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "watchlist_alert_persist_failures_total",
			Help: "Candidates that could not be persisted after retries",
		}),
		ScanLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchlist_record_scan_seconds",
			Help:    "Per-record scan and persist latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
