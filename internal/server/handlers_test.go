package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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

	"github.com/orovista/backoffice/internal/config"
	"github.com/orovista/backoffice/internal/watchlist"
	"github.com/orovista/backoffice/internal/watchlist/alerting"
	"github.com/orovista/backoffice/internal/watchlist/notify"
	"github.com/orovista/backoffice/internal/watchlist/records"
	"github.com/orovista/backoffice/internal/watchlist/registry"
	"github.com/orovista/backoffice/internal/watchlist/scanner"
	"github.com/orovista/backoffice/pkg/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.WatchlistPerson{}, &models.WatchlistItem{},
		&models.TransactionRecord{}, &models.Alert{}))

	logger := zap.NewNop()
	hub := notify.NewHub(logger)
	t.Cleanup(hub.Shutdown)

	registryStore := registry.NewStore(db, logger)
	recordStore := records.NewStore(db, logger)
	alertStore := alerting.NewStore(db)
	persister := alerting.NewPersister(alertStore, hub, logger)
	triage := alerting.NewTriage(alertStore, hub, logger)
	engine := watchlist.NewEngine(scanner.New(registryStore, logger), persister, logger,
		watchlist.WithMetrics(watchlist.NewMetrics(prometheus.NewRegistry())))

	srv := New(config.ServerConfig{Addr: ":0"}, Deps{
		Engine:   engine,
		Triage:   triage,
		Registry: registryStore,
		Records:  recordStore,
		Hub:      hub,
	}, logger)

	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return ts, db
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestServer_IngestThenTriage(t *testing.T) {
	ts, _ := newTestServer(t)

	// seed the watchlist
	resp := postJSON(t, ts.URL+"/api/v1/watchlist/persons", map[string]interface{}{
		"full_name":  "María López",
		"risk_level": "HIGH",
		"status":     "ACTIVE",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var person models.WatchlistPerson
	decode(t, resp, &person)

	// ingest a batch that hits her name
	resp = postJSON(t, ts.URL+"/api/v1/ingest/batches", map[string]interface{}{
		"batch_id": uuid.New(),
		"records": []map[string]interface{}{{
			"id":            uuid.New(),
			"store_code":    "MAD-01",
			"customer_name": "Maria Lopez",
			"item_details":  "anillo oro 18k",
			"order_date":    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var report watchlist.IngestReport
	decode(t, resp, &report)
	assert.Equal(t, 1, report.AlertsCreated)

	// the alert shows up unread
	resp, err := http.Get(ts.URL + "/api/v1/alerts?status=UNREAD")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Alerts []models.Alert `json:"alerts"`
	}
	decode(t, resp, &listing)
	require.Len(t, listing.Alerts, 1)
	alertID := listing.Alerts[0].ID

	// mark it read
	reviewer := uuid.New()
	resp = postJSON(t, fmt.Sprintf("%s/api/v1/alerts/%s/read", ts.URL, alertID),
		map[string]interface{}{"reviewer_id": reviewer})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var alert models.Alert
	decode(t, resp, &alert)
	assert.Equal(t, models.AlertStatusRead, alert.Status)

	resp, err = http.Get(ts.URL + "/api/v1/alerts/unread-count")
	require.NoError(t, err)
	var count struct {
		Unread int64 `json:"unread"`
	}
	decode(t, resp, &count)
	assert.Zero(t, count.Unread)
}

func TestServer_ErrorMapping(t *testing.T) {
	ts, _ := newTestServer(t)

	// unknown alert id
	resp := postJSON(t, fmt.Sprintf("%s/api/v1/alerts/%s/read", ts.URL, uuid.New()),
		map[string]interface{}{"reviewer_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// malformed id
	resp = postJSON(t, ts.URL+"/api/v1/alerts/not-a-uuid/read",
		map[string]interface{}{"reviewer_id": uuid.New()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// invalid watchlist entry
	resp = postJSON(t, ts.URL+"/api/v1/watchlist/persons",
		map[string]interface{}{"full_name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
