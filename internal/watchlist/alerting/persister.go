package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

// Notifier receives fire-and-forget pushes after alerts are committed.
// Implementations must never block; delivery is best-effort.
type Notifier interface {
	AlertCreated(alert models.Alert)
	UnreadCount(count int64)
}

// NopNotifier discards all notifications
type NopNotifier struct{}

func (NopNotifier) AlertCreated(models.Alert) {}
func (NopNotifier) UnreadCount(int64)         {}

// Failure pairs a candidate with the error that kept it from persisting
type Failure struct {
	Candidate models.Candidate
	Err       error
}

// BatchResult reports what happened to a batch of candidates. Failures never
// abort sibling candidates.
type BatchResult struct {
	Created  []models.Alert
	Existing []models.Alert
	Failures []Failure
}

// Persister converts candidates into durable alerts, deduplicating on the
// (record, entity, field) identity key so re-scans are idempotent.
type Persister struct {
	store      *Store
	notifier   Notifier
	counter    UnreadCounter
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

// PersisterOption configures a Persister
type PersisterOption func(*Persister)

// WithRetries sets the bounded retry policy for transient storage failures
func WithRetries(max int, backoff time.Duration) PersisterOption {
	return func(p *Persister) {
		p.maxRetries = max
		p.backoff = backoff
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) PersisterOption {
	return func(p *Persister) { p.now = now }
}

// WithUnreadCache plugs in the cached unread aggregate. Creating alerts
// invalidates and refreshes it, so the badge endpoint never trails the list.
func WithUnreadCache(c UnreadCounter) PersisterOption {
	return func(p *Persister) { p.counter = c }
}

// NewPersister creates a Persister
func NewPersister(store *Store, notifier Notifier, logger *zap.Logger, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:      store,
		notifier:   notifier,
		counter:    nopCounter{},
		logger:     logger,
		maxRetries: 2,
		backoff:    100 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist stores every candidate that does not already have a non-discarded
// alert. Created alerts are handed to the notifier after the writes are done;
// notification never blocks or fails persistence.
func (p *Persister) Persist(ctx context.Context, candidates []models.Candidate) BatchResult {
	var result BatchResult
	for _, candidate := range candidates {
		alert, created, err := p.persistOne(ctx, candidate)
		if err != nil {
			p.logger.Warn("alert persistence failed",
				zap.String("record_id", candidate.RecordID.String()),
				zap.String("field", candidate.Field),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{Candidate: candidate, Err: err})
			continue
		}
		if created {
			result.Created = append(result.Created, *alert)
		} else {
			result.Existing = append(result.Existing, *alert)
		}
	}

	if len(result.Created) > 0 {
		p.notify(ctx, result.Created)
	}
	return result
}

func (p *Persister) persistOne(ctx context.Context, candidate models.Candidate) (*models.Alert, bool, error) {
	identity := models.AlertIdentity{
		TransactionRecordID: candidate.RecordID,
		Entity:              candidate.Entity,
		Field:               candidate.Field,
	}

	existing, err := p.store.FindActive(ctx, identity)
	if err != nil {
		return nil, false, pkgerrors.Persistence(err, "looking up alert for record %s", candidate.RecordID)
	}
	if existing != nil {
		return existing, false, nil
	}

	alert := &models.Alert{
		ID:                  uuid.New(),
		TransactionRecordID: candidate.RecordID,
		Entity:              candidate.Entity,
		Field:               candidate.Field,
		TransactionValue:    candidate.TransactionValue,
		WatchlistValue:      candidate.WatchlistValue,
		Confidence:          candidate.Confidence,
		Exact:               candidate.Verdict == models.VerdictExact,
		Status:              models.AlertStatusUnread,
		CreatedAt:           p.now().UTC(),
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false, pkgerrors.Persistence(ctx.Err(), "creating alert for record %s", candidate.RecordID)
			case <-time.After(p.backoff * time.Duration(attempt)):
			}
		}

		err := p.store.Insert(ctx, alert)
		if err == nil {
			return alert, true, nil
		}
		if pkgerrors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent scan won the race; this is a successful no-op
			existing, ferr := p.store.FindActive(ctx, identity)
			if ferr == nil && existing != nil {
				return existing, false, nil
			}
			return nil, false, pkgerrors.Persistence(err, "re-reading alert for record %s after duplicate insert", candidate.RecordID)
		}
		lastErr = err
	}

	return nil, false, pkgerrors.Persistence(lastErr, "creating alert for record %s after %d attempts", candidate.RecordID, p.maxRetries+1)
}

func (p *Persister) notify(ctx context.Context, created []models.Alert) {
	for _, alert := range created {
		p.notifier.AlertCreated(alert)
	}
	p.counter.Invalidate(ctx)
	count, err := p.store.CountUnread(ctx)
	if err != nil {
		p.logger.Warn("unread count after alert creation unavailable", zap.Error(err))
		return
	}
	p.counter.Set(ctx, count)
	p.notifier.UnreadCount(count)
}
