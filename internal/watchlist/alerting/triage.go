package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

// UnreadCounter caches the unread aggregate used for notification badges.
// A miss falls back to a COUNT query.
type UnreadCounter interface {
	Get(ctx context.Context) (int64, bool)
	Set(ctx context.Context, count int64)
	Invalidate(ctx context.Context)
}

type nopCounter struct{}

func (nopCounter) Get(context.Context) (int64, bool) { return 0, false }
func (nopCounter) Set(context.Context, int64)        {}
func (nopCounter) Invalidate(context.Context)        {}

// Triage runs the alert review state machine:
// UNREAD -> READ -> DISCARDED, with UNREAD -> DISCARDED allowed and no
// transition out of DISCARDED. Transitions are compare-and-set on the current
// status so two operators cannot both apply conflicting moves.
type Triage struct {
	store    *Store
	notifier Notifier
	counter  UnreadCounter
	logger   *zap.Logger
	now      func() time.Time
}

// TriageOption configures a Triage manager
type TriageOption func(*Triage)

// WithUnreadCounter plugs in the cached unread aggregate
func WithUnreadCounter(c UnreadCounter) TriageOption {
	return func(t *Triage) { t.counter = c }
}

// WithTriageClock overrides the time source, for tests
func WithTriageClock(now func() time.Time) TriageOption {
	return func(t *Triage) { t.now = now }
}

// NewTriage creates a Triage manager
func NewTriage(store *Store, notifier Notifier, logger *zap.Logger, opts ...TriageOption) *Triage {
	t := &Triage{
		store:    store,
		notifier: notifier,
		counter:  nopCounter{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// List returns alerts newest first, optionally filtered by status
func (t *Triage) List(ctx context.Context, status *models.AlertStatus, page, pageSize int) ([]models.Alert, error) {
	return t.store.List(ctx, status, page, pageSize)
}

// Get loads one alert
func (t *Triage) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return t.store.Get(ctx, id)
}

// CountUnread returns the number of alerts awaiting review
func (t *Triage) CountUnread(ctx context.Context) (int64, error) {
	if count, ok := t.counter.Get(ctx); ok {
		return count, nil
	}
	count, err := t.store.CountUnread(ctx)
	if err != nil {
		return 0, pkgerrors.Persistence(err, "counting unread alerts")
	}
	t.counter.Set(ctx, count)
	return count, nil
}

// MarkRead transitions an unread alert to READ, recording the reviewer.
// Already READ or DISCARDED alerts are a no-op returning the current state.
func (t *Triage) MarkRead(ctx context.Context, id, reviewerID uuid.UUID) (*models.Alert, error) {
	alert, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != models.AlertStatusUnread {
		return alert, nil
	}

	now := t.now().UTC()
	ok, err := t.store.UpdateIfStatus(ctx, id,
		[]models.AlertStatus{models.AlertStatusUnread},
		map[string]interface{}{
			"status":      models.AlertStatusRead,
			"reviewer_id": reviewerID,
			"resolved_at": now,
		})
	if err != nil {
		return nil, pkgerrors.Persistence(err, "marking alert %s read", id)
	}
	if !ok {
		// lost the race; a concurrent mark-read still satisfies the caller
		current, gerr := t.store.Get(ctx, id)
		if gerr == nil && current.Status == models.AlertStatusRead {
			return current, nil
		}
		return nil, pkgerrors.Conflict("alert %s was modified concurrently", id)
	}

	t.afterUnreadChange(ctx)
	return t.store.Get(ctx, id)
}

// Discard transitions an alert to DISCARDED from either UNREAD or READ.
// Discarding an already discarded alert is a no-op returning current state.
func (t *Triage) Discard(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*models.Alert, error) {
	alert, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == models.AlertStatusDiscarded {
		return alert, nil
	}
	wasUnread := alert.Status == models.AlertStatusUnread

	updates := map[string]interface{}{
		"status":      models.AlertStatusDiscarded,
		"reviewer_id": reviewerID,
		"resolved_at": t.now().UTC(),
	}
	if notes != "" {
		updates["review_notes"] = notes
	}

	ok, err := t.store.UpdateIfStatus(ctx, id,
		[]models.AlertStatus{models.AlertStatusUnread, models.AlertStatusRead},
		updates)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "discarding alert %s", id)
	}
	if !ok {
		current, gerr := t.store.Get(ctx, id)
		if gerr == nil && current.Status == models.AlertStatusDiscarded {
			return current, nil
		}
		return nil, pkgerrors.Conflict("alert %s was modified concurrently", id)
	}

	if wasUnread {
		t.afterUnreadChange(ctx)
	}
	return t.store.Get(ctx, id)
}

// AttachReview records reviewer notes on any non-discarded alert
func (t *Triage) AttachReview(ctx context.Context, id, reviewerID uuid.UUID, notes string) (*models.Alert, error) {
	alert, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == models.AlertStatusDiscarded {
		return nil, pkgerrors.Conflict("alert %s is discarded and no longer accepts review notes", id)
	}

	ok, err := t.store.UpdateIfStatus(ctx, id,
		[]models.AlertStatus{models.AlertStatusUnread, models.AlertStatusRead},
		map[string]interface{}{
			"reviewer_id":  reviewerID,
			"review_notes": notes,
		})
	if err != nil {
		return nil, pkgerrors.Persistence(err, "attaching review to alert %s", id)
	}
	if !ok {
		return nil, pkgerrors.Conflict("alert %s was modified concurrently", id)
	}
	return t.store.Get(ctx, id)
}

// afterUnreadChange refreshes the cached unread aggregate and pushes the new
// badge count to connected operators, best effort.
func (t *Triage) afterUnreadChange(ctx context.Context) {
	t.counter.Invalidate(ctx)
	count, err := t.store.CountUnread(ctx)
	if err != nil {
		t.logger.Warn("unread count refresh failed", zap.Error(err))
		return
	}
	t.counter.Set(ctx, count)
	t.notifier.UnreadCount(count)
}
