package watchlist_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/orovista/backoffice/internal/watchlist"
	"github.com/orovista/backoffice/internal/watchlist/alerting"
	"github.com/orovista/backoffice/internal/watchlist/scanner"
	"github.com/orovista/backoffice/pkg/models"
)

type fakeSource struct {
	persons []models.WatchlistPerson
	items   []models.WatchlistItem
}

func (f *fakeSource) ListActivePersons(context.Context) ([]models.WatchlistPerson, error) {
	return f.persons, nil
}

func (f *fakeSource) ListActiveItems(context.Context) ([]models.WatchlistItem, error) {
	return f.items, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
	counts []int64
}

func (n *recordingNotifier) AlertCreated(alert models.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *recordingNotifier) UnreadCount(count int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts = append(n.counts, count)
}

func (n *recordingNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func newTestEngine(t *testing.T, src scanner.Source) (*watchlist.Engine, *recordingNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Alert{}))

	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	store := alerting.NewStore(db)
	persister := alerting.NewPersister(store, notifier, logger)
	sc := scanner.New(src, logger)
	metrics := watchlist.NewMetrics(prometheus.NewRegistry())
	return watchlist.NewEngine(sc, persister, logger,
		watchlist.WithWorkers(2), watchlist.WithMetrics(metrics)), notifier
}

func saleRecord(batchID uuid.UUID, name, details string) models.TransactionRecord {
	return models.TransactionRecord{
		ID:           uuid.New(),
		BatchID:      batchID,
		StoreCode:    "MAD-01",
		CustomerName: name,
		ItemDetails:  details,
		OrderDate:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestEngine_BatchCreatesAlertsOnce(t *testing.T) {
	src := &fakeSource{
		persons: []models.WatchlistPerson{{
			ID:       uuid.New(),
			FullName: "María López",
			Status:   models.EntryStatusActive,
		}},
		items: []models.WatchlistItem{{
			ID:           uuid.New(),
			Description:  "sello oro 18k iniciales JM",
			SerialNumber: "ABC123",
			Status:       models.EntryStatusActive,
		}},
	}
	engine, notifier := newTestEngine(t, src)

	batchID := uuid.New()
	records := []models.TransactionRecord{
		saleRecord(batchID, "Maria Lopez", "anillo oro 18k grabado ABC123"),
		saleRecord(batchID, "Pedro Sanchez", "pulsera plata lisa"),
	}

	report := engine.OnBatchIngested(context.Background(), batchID, records)

	assert.Equal(t, batchID, report.BatchID)
	assert.Equal(t, 2, report.RecordsScanned)
	// first record hits the person name and the item serial number
	assert.Equal(t, 2, report.AlertsCreated)
	assert.Zero(t, report.Duplicates)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, notifier.alertCount())

	// re-ingesting the same batch is idempotent
	again := engine.OnBatchIngested(context.Background(), batchID, records)
	assert.Zero(t, again.AlertsCreated)
	assert.Equal(t, 2, again.Duplicates)
	assert.Equal(t, 2, notifier.alertCount())
}

func TestEngine_MalformedRecordReportedNotFatal(t *testing.T) {
	src := &fakeSource{persons: []models.WatchlistPerson{{
		ID:       uuid.New(),
		FullName: "María López",
		Status:   models.EntryStatusActive,
	}}}
	engine, _ := newTestEngine(t, src)

	batchID := uuid.New()
	bad := saleRecord(batchID, "", "anillo")
	good := saleRecord(batchID, "maria lopez", "colgante")

	report := engine.OnBatchIngested(context.Background(), batchID, []models.TransactionRecord{bad, good})

	assert.Equal(t, 2, report.RecordsScanned)
	assert.Equal(t, 1, report.AlertsCreated)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID, report.Errors[0].RecordID)
}

func TestEngine_EmptyBatch(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeSource{})
	report := engine.OnBatchIngested(context.Background(), uuid.New(), nil)
	assert.Zero(t, report.RecordsScanned)
	assert.Empty(t, report.Errors)
}
