// Package alerting turns match candidates into durable alerts and runs the
// operator triage workflow over them.
package alerting

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store is the gorm-backed alert repository. The partial unique index on
// (record, entity kind, entity id, field) serializes concurrent creation of
// the same alert at the storage layer.
type Store struct {
	db *gorm.DB
}

// NewStore creates an alert store over the given database handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert persists a new alert. A unique-constraint violation surfaces as
// gorm.ErrDuplicatedKey for the caller to treat as "already exists".
func (s *Store) Insert(ctx context.Context, alert *models.Alert) error {
	return s.db.WithContext(ctx).Create(alert).Error
}

// FindActive returns the non-discarded alert for the identity key, or nil
// when none exists.
func (s *Store) FindActive(ctx context.Context, identity models.AlertIdentity) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).
		Where("transaction_record_id = ? AND entity_kind = ? AND entity_id = ? AND field = ? AND status <> ?",
			identity.TransactionRecordID, identity.Entity.Kind, identity.Entity.ID, identity.Field,
			models.AlertStatusDiscarded).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Get loads one alert by id
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.NotFound("alert %s does not exist", id)
	}
	if err != nil {
		return nil, pkgerrors.Persistence(err, "loading alert %s", id)
	}
	return &alert, nil
}

// List returns alerts newest first, optionally filtered by status
func (s *Store) List(ctx context.Context, status *models.AlertStatus, page, pageSize int) ([]models.Alert, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	q := s.db.WithContext(ctx).Model(&models.Alert{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var alerts []models.Alert
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&alerts).Error
	if err != nil {
		return nil, pkgerrors.Persistence(err, "listing alerts")
	}
	return alerts, nil
}

// CountUnread counts alerts still awaiting review
func (s *Store) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("status = ?", models.AlertStatusUnread).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateIfStatus applies updates to the alert only while its status is one of
// the given values. Returns false when the row was not in any of those states
// anymore, which is how triage detects a lost race.
func (s *Store) UpdateIfStatus(ctx context.Context, id uuid.UUID, from []models.AlertStatus, updates map[string]interface{}) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
