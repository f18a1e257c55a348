// Package watchlist ties the scanner and the alert persister into the batch
// ingestion entry point used by the HTTP API and the Kafka consumer.
package watchlist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/watchlist/alerting"
	"github.com/orovista/backoffice/internal/watchlist/scanner"
	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

// RecordError reports why one record of a batch could not be processed
type RecordError struct {
	RecordID uuid.UUID `json:"record_id"`
	Field    string    `json:"field,omitempty"`
	Reason   string    `json:"reason"`
}

// IngestReport summarizes one batch scan. Per-record failures never abort the
// batch; they are collected here instead.
type IngestReport struct {
	BatchID        uuid.UUID     `json:"batch_id"`
	RecordsScanned int           `json:"records_scanned"`
	AlertsCreated  int           `json:"alerts_created"`
	Duplicates     int           `json:"duplicates"`
	Errors         []RecordError `json:"errors,omitempty"`
}

// Engine scans ingested transaction records against the watchlist and turns
// the resulting candidates into alerts.
type Engine struct {
	scanner   *scanner.Scanner
	persister *alerting.Persister
	logger    *zap.Logger
	metrics   *Metrics
	workers   int
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithWorkers bounds the scan concurrency for a batch
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMetrics attaches Prometheus counters to the engine
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine
func NewEngine(sc *scanner.Scanner, persister *alerting.Persister, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		scanner:   sc,
		persister: persister,
		logger:    logger,
		workers:   4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnBatchIngested scans every record of a freshly ingested batch and persists
// the match candidates as alerts. Records are scanned concurrently with a
// bounded worker pool; a malformed record is skipped and reported, it never
// fails the batch.
func (e *Engine) OnBatchIngested(ctx context.Context, batchID uuid.UUID, records []models.TransactionRecord) IngestReport {
	report := IngestReport{BatchID: batchID}
	if len(records) == 0 {
		return report
	}

	jobs := make(chan *models.TransactionRecord)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := e.workers
	if workers > len(records) {
		workers = len(records)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range jobs {
				created, duplicates, errs := e.processRecord(ctx, record)
				mu.Lock()
				report.RecordsScanned++
				report.AlertsCreated += created
				report.Duplicates += duplicates
				report.Errors = append(report.Errors, errs...)
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range records {
		select {
		case <-ctx.Done():
			// stop feeding; already queued records still finish
			break feed
		case jobs <- &records[i]:
		}
	}
	close(jobs)
	wg.Wait()

	e.logger.Info("batch scanned",
		zap.String("batch_id", batchID.String()),
		zap.Int("records", report.RecordsScanned),
		zap.Int("alerts_created", report.AlertsCreated),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("errors", len(report.Errors)))

	return report
}

func (e *Engine) processRecord(ctx context.Context, record *models.TransactionRecord) (created, duplicates int, errs []RecordError) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordsScanned.Inc()
			e.metrics.ScanLatency.Observe(time.Since(start).Seconds())
		}
	}()

	candidates, err := e.scanner.Scan(ctx, record)
	if err != nil {
		if e.metrics != nil && pkgerrors.IsKind(err, pkgerrors.KindValidation) {
			e.metrics.ValidationFailures.Inc()
		}
		e.logger.Warn("record skipped",
			zap.String("record_id", record.ID.String()),
			zap.Error(err))
		return 0, 0, []RecordError{{RecordID: record.ID, Reason: err.Error()}}
	}
	if e.metrics != nil {
		e.metrics.CandidatesFound.Add(float64(len(candidates)))
	}
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	result := e.persister.Persist(ctx, candidates)
	if e.metrics != nil {
		e.metrics.AlertsCreated.Add(float64(len(result.Created)))
		e.metrics.DedupHits.Add(float64(len(result.Existing)))
		e.metrics.PersistFailures.Add(float64(len(result.Failures)))
	}
	for _, failure := range result.Failures {
		errs = append(errs, RecordError{
			RecordID: record.ID,
			Field:    failure.Candidate.Field,
			Reason:   failure.Err.Error(),
		})
	}
	return len(result.Created), len(result.Existing), errs
}
