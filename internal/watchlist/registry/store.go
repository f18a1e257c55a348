// Package registry manages the watchlist entries themselves: the persons and
// items that ingested transactions are scanned against.
package registry

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

// Store is the gorm-backed watchlist registry. It satisfies the scanner's
// Source interface, so the scan path reads the same tables the admin API
// writes.
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStore creates a registry store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:       db,
		validate: validator.New(),
		logger:   logger,
	}
}

// ListActivePersons returns every ACTIVE person, oldest first so scan output
// stays deterministic across runs.
func (s *Store) ListActivePersons(ctx context.Context) ([]models.WatchlistPerson, error) {
	var persons []models.WatchlistPerson
	err := s.db.WithContext(ctx).
		Where("status = ?", models.EntryStatusActive).
		Order("created_at asc").
		Find(&persons).Error
	if err != nil {
		return nil, pkgerrors.Persistence(err, "listing active watchlist persons")
	}
	return persons, nil
}

// ListActiveItems returns every ACTIVE item, oldest first
func (s *Store) ListActiveItems(ctx context.Context) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	err := s.db.WithContext(ctx).
		Where("status = ?", models.EntryStatusActive).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Persistence(err, "listing active watchlist items")
	}
	return items, nil
}

// CreatePerson validates and stores a new watchlist person
func (s *Store) CreatePerson(ctx context.Context, person *models.WatchlistPerson) error {
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}
	applyPersonDefaults(person)
	if err := s.validate.Struct(person); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindValidation, err, "watchlist person is invalid")
	}
	if err := s.db.WithContext(ctx).Create(person).Error; err != nil {
		return pkgerrors.Persistence(err, "creating watchlist person")
	}
	s.logger.Info("watchlist person created",
		zap.String("person_id", person.ID.String()),
		zap.String("risk_level", string(person.RiskLevel)))
	return nil
}

// CreateItem validates and stores a new watchlist item
func (s *Store) CreateItem(ctx context.Context, item *models.WatchlistItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	applyItemDefaults(item)
	if err := s.validate.Struct(item); err != nil {
		return pkgerrors.Wrap(pkgerrors.KindValidation, err, "watchlist item is invalid")
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return pkgerrors.Persistence(err, "creating watchlist item")
	}
	s.logger.Info("watchlist item created",
		zap.String("item_id", item.ID.String()),
		zap.String("risk_level", string(item.RiskLevel)))
	return nil
}

// GetPerson loads one person by id
func (s *Store) GetPerson(ctx context.Context, id uuid.UUID) (*models.WatchlistPerson, error) {
	var person models.WatchlistPerson
	err := s.db.WithContext(ctx).First(&person, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.NotFound("watchlist person %s not found", id)
	}
	if err != nil {
		return nil, pkgerrors.Persistence(err, "loading watchlist person %s", id)
	}
	return &person, nil
}

// GetItem loads one item by id
func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.WatchlistItem, error) {
	var item models.WatchlistItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.NotFound("watchlist item %s not found", id)
	}
	if err != nil {
		return nil, pkgerrors.Persistence(err, "loading watchlist item %s", id)
	}
	return &item, nil
}

// SetPersonStatus activates or deactivates a person. Entries are never
// deleted, existing alerts keep a valid reference.
func (s *Store) SetPersonStatus(ctx context.Context, id uuid.UUID, status models.EntryStatus) error {
	if status != models.EntryStatusActive && status != models.EntryStatusInactive {
		return pkgerrors.Validation("unknown entry status %q", status)
	}
	res := s.db.WithContext(ctx).
		Model(&models.WatchlistPerson{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Persistence(res.Error, "updating watchlist person %s", id)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.NotFound("watchlist person %s not found", id)
	}
	return nil
}

// SetItemStatus activates or deactivates an item
func (s *Store) SetItemStatus(ctx context.Context, id uuid.UUID, status models.EntryStatus) error {
	if status != models.EntryStatusActive && status != models.EntryStatusInactive {
		return pkgerrors.Validation("unknown entry status %q", status)
	}
	res := s.db.WithContext(ctx).
		Model(&models.WatchlistItem{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Persistence(res.Error, "updating watchlist item %s", id)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.NotFound("watchlist item %s not found", id)
	}
	return nil
}

func applyPersonDefaults(p *models.WatchlistPerson) {
	if p.RiskLevel == "" {
		p.RiskLevel = models.RiskLevelMedium
	}
	if p.Status == "" {
		p.Status = models.EntryStatusActive
	}
}

func applyItemDefaults(i *models.WatchlistItem) {
	if i.RiskLevel == "" {
		i.RiskLevel = models.RiskLevelMedium
	}
	if i.Status == "" {
		i.Status = models.EntryStatusActive
	}
}
