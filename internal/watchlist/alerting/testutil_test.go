package alerting_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/orovista/backoffice/pkg/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every session on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Alert{}))
	return db
}

// recordingNotifier captures fan-out calls for assertions
type recordingNotifier struct {
	mu      sync.Mutex
	alerts  []models.Alert
	counts  []int64
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

func (n *recordingNotifier) createdAlerts() []models.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Alert(nil), n.alerts...)
}

func (n *recordingNotifier) unreadCounts() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.counts...)
}

// recordingCounter captures unread-cache calls for assertions
type recordingCounter struct {
	mu            sync.Mutex
	invalidations int
	sets          []int64
}

func (c *recordingCounter) Get(context.Context) (int64, bool) { return 0, false }

func (c *recordingCounter) Set(_ context.Context, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, count)
}

func (c *recordingCounter) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
}

func (c *recordingCounter) snapshot() (int, []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations, append([]int64(nil), c.sets...)
}

func personCandidate(recordID uuid.UUID) models.Candidate {
	return models.Candidate{
		RecordID:         recordID,
		Entity:           models.PersonRef(uuid.New()),
		Field:            "customer_name/full_name",
		TransactionValue: "Maria Lopez",
		WatchlistValue:   "María López",
		Verdict:          models.VerdictExact,
		Confidence:       1.0,
		Similarity:       1.0,
	}
}
