// Package records persists ingested transaction records and serves the
// back-office search over them.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orovista/backoffice/internal/watchlist/normalize"
	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

const (
	insertBatchSize = 200

	defaultPageSize = 50
	maxPageSize     = 200
)

// Filter narrows a record search. Location goes through the place-name
// variant resolver, so "España" finds contacts that say "SPAIN" or carry a
// Spanish postal code.
type Filter struct {
	StoreCode string
	Location  string
	Page      int
	PageSize  int
}

// Store is the gorm-backed transaction record repository
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a record store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// SaveBatch inserts the records of one ingested batch. Records that already
// exist are left untouched, so replayed batches do not duplicate rows.
func (s *Store) SaveBatch(ctx context.Context, records []models.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, insertBatchSize).Error
	if err != nil {
		return pkgerrors.Persistence(err, "saving batch of %d records", len(records))
	}
	s.logger.Debug("record batch saved",
		zap.String("batch_id", records[0].BatchID.String()),
		zap.Int("records", len(records)))
	return nil
}

// Get loads one record by id
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.NotFound("transaction record %s not found", id)
	}
	if err != nil {
		return nil, pkgerrors.Persistence(err, "loading transaction record %s", id)
	}
	return &record, nil
}

// Search returns records matching the filter, newest order date first
func (s *Store) Search(ctx context.Context, filter Filter) ([]models.TransactionRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.TransactionRecord{})
	if filter.StoreCode != "" {
		q = q.Where("store_code = ?", filter.StoreCode)
	}
	if filter.Location != "" {
		cond, args := normalize.BuildLocationCondition("customer_contact", filter.Location)
		q = q.Where(cond, args...)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	var records []models.TransactionRecord
	err := q.Order("order_date desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Persistence(err, "searching transaction records")
	}
	return records, nil
}

// SetSaleDate marks a record as sold. The sale date is the only mutable field
// of a record after ingestion.
func (s *Store) SetSaleDate(ctx context.Context, id uuid.UUID, saleDate time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("id = ?", id).
		Update("sale_date", saleDate.UTC())
	if res.Error != nil {
		return pkgerrors.Persistence(res.Error, "updating sale date of record %s", id)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.NotFound("transaction record %s not found", id)
	}
	return nil
}
