package alerting_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/watchlist/alerting"
	"github.com/orovista/backoffice/pkg/models"
)

func TestPersist_CreatesUnreadAlert(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	notifier := &recordingNotifier{}
	persister := alerting.NewPersister(store, notifier, zap.NewNop())

	candidate := personCandidate(uuid.New())
	result := persister.Persist(context.Background(), []models.Candidate{candidate})

	require.Len(t, result.Created, 1)
	assert.Empty(t, result.Existing)
	assert.Empty(t, result.Failures)

	alert := result.Created[0]
	assert.Equal(t, models.AlertStatusUnread, alert.Status)
	assert.True(t, alert.Exact)
	assert.Equal(t, 1.0, alert.Confidence)
	assert.Equal(t, candidate.RecordID, alert.TransactionRecordID)
	assert.Equal(t, candidate.Entity, alert.Entity)
	assert.Nil(t, alert.ReviewerID)
	assert.Nil(t, alert.ResolvedAt)
}

func TestPersist_RescanIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	persister := alerting.NewPersister(store, alerting.NopNotifier{}, zap.NewNop())

	candidate := personCandidate(uuid.New())
	ctx := context.Background()

	first := persister.Persist(ctx, []models.Candidate{candidate})
	require.Len(t, first.Created, 1)

	countBefore, err := store.CountUnread(ctx)
	require.NoError(t, err)

	second := persister.Persist(ctx, []models.Candidate{candidate})
	assert.Empty(t, second.Created)
	require.Len(t, second.Existing, 1)
	assert.Equal(t, first.Created[0].ID, second.Existing[0].ID)

	countAfter, err := store.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, countBefore, countAfter)
}

func TestPersist_DistinctFieldsYieldDistinctAlerts(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	persister := alerting.NewPersister(store, alerting.NopNotifier{}, zap.NewNop())

	recordID := uuid.New()
	a := personCandidate(recordID)
	b := a
	b.Field = "customer_contact/phone"

	result := persister.Persist(context.Background(), []models.Candidate{a, b})
	assert.Len(t, result.Created, 2)
	assert.Empty(t, result.Failures)
}

func TestPersist_DiscardedAlertDoesNotBlockRecreation(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	persister := alerting.NewPersister(store, alerting.NopNotifier{}, zap.NewNop())
	triage := alerting.NewTriage(store, alerting.NopNotifier{}, zap.NewNop())

	ctx := context.Background()
	candidate := personCandidate(uuid.New())

	first := persister.Persist(ctx, []models.Candidate{candidate})
	require.Len(t, first.Created, 1)

	_, err := triage.Discard(ctx, first.Created[0].ID, uuid.New(), "false positive")
	require.NoError(t, err)

	// the identity is free again once the prior alert is discarded
	second := persister.Persist(ctx, []models.Candidate{candidate})
	require.Len(t, second.Created, 1)
	assert.NotEqual(t, first.Created[0].ID, second.Created[0].ID)
}

func TestPersist_NotifierReceivesCreatedAlertsAndCount(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	notifier := &recordingNotifier{}
	persister := alerting.NewPersister(store, notifier, zap.NewNop())

	recordID := uuid.New()
	a := personCandidate(recordID)
	b := a
	b.Field = "identifier/national_id"

	persister.Persist(context.Background(), []models.Candidate{a, b})

	assert.Len(t, notifier.createdAlerts(), 2)
	counts := notifier.unreadCounts()
	require.Len(t, counts, 1)
	assert.Equal(t, int64(2), counts[0])

	// re-scan creates nothing and pushes nothing
	persister.Persist(context.Background(), []models.Candidate{a, b})
	assert.Len(t, notifier.createdAlerts(), 2)
	assert.Len(t, notifier.unreadCounts(), 1)
}

func TestPersist_CreationRefreshesUnreadCache(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	counter := &recordingCounter{}
	persister := alerting.NewPersister(store, alerting.NopNotifier{}, zap.NewNop(),
		alerting.WithUnreadCache(counter))

	candidate := personCandidate(uuid.New())
	ctx := context.Background()

	persister.Persist(ctx, []models.Candidate{candidate})

	invalidations, sets := counter.snapshot()
	assert.Equal(t, 1, invalidations)
	require.Len(t, sets, 1)
	assert.Equal(t, int64(1), sets[0])

	// a pure re-scan creates nothing, so the cache stays untouched
	persister.Persist(ctx, []models.Candidate{candidate})
	invalidations, sets = counter.snapshot()
	assert.Equal(t, 1, invalidations)
	assert.Len(t, sets, 1)
}

func TestPersist_FailureDoesNotAbortBatch(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	persister := alerting.NewPersister(store, alerting.NopNotifier{}, zap.NewNop(),
		alerting.WithRetries(0, 0))

	// break the storage layer underneath the persister
	require.NoError(t, db.Migrator().DropTable(&models.Alert{}))

	a := personCandidate(uuid.New())
	b := personCandidate(uuid.New())

	result := persister.Persist(context.Background(), []models.Candidate{a, b})
	assert.Empty(t, result.Created)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, a.RecordID, result.Failures[0].Candidate.RecordID)
	assert.Equal(t, b.RecordID, result.Failures[1].Candidate.RecordID)
	for _, f := range result.Failures {
		assert.Error(t, f.Err)
	}
}
