package alerting_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orovista/backoffice/internal/watchlist/alerting"
	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

func unreadAlert(identity models.AlertIdentity) *models.Alert {
	return &models.Alert{
		ID:                  uuid.New(),
		TransactionRecordID: identity.TransactionRecordID,
		Entity:              identity.Entity,
		Field:               identity.Field,
		TransactionValue:    "Maria Lopez",
		WatchlistValue:      "María López",
		Confidence:          1.0,
		Exact:               true,
		Status:              models.AlertStatusUnread,
		CreatedAt:           time.Now().UTC(),
	}
}

// The partial unique index is the serialization point for concurrent alert
// creation, so insert against it directly instead of going through the
// persister's look-before-insert path.
func TestStore_InsertDuplicateIdentityHitsUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	ctx := context.Background()

	identity := models.AlertIdentity{
		TransactionRecordID: uuid.New(),
		Entity:              models.PersonRef(uuid.New()),
		Field:               "customer_name/full_name",
	}

	first := unreadAlert(identity)
	require.NoError(t, store.Insert(ctx, first))

	err := store.Insert(ctx, unreadAlert(identity))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, gorm.ErrDuplicatedKey))

	// a different field on the same record and entity is a distinct identity
	other := identity
	other.Field = "customer_contact/phone"
	require.NoError(t, store.Insert(ctx, unreadAlert(other)))
}

func TestStore_DiscardedRowLeavesUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	store := alerting.NewStore(db)
	ctx := context.Background()

	identity := models.AlertIdentity{
		TransactionRecordID: uuid.New(),
		Entity:              models.ItemRef(uuid.New()),
		Field:               "engravings/serial_number",
	}

	first := unreadAlert(identity)
	require.NoError(t, store.Insert(ctx, first))

	ok, err := store.UpdateIfStatus(ctx, first.ID,
		[]models.AlertStatus{models.AlertStatusUnread},
		map[string]interface{}{"status": models.AlertStatusDiscarded})
	require.NoError(t, err)
	require.True(t, ok)

	// only non-discarded rows occupy the identity
	require.NoError(t, store.Insert(ctx, unreadAlert(identity)))

	err = store.Insert(ctx, unreadAlert(identity))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, gorm.ErrDuplicatedKey))
}
