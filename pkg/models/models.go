package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskLevel classifies how dangerous a watchlist entry is considered
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// EntryStatus is the lifecycle status of a watchlist entry. Entries referenced
// by alerts are never hard-deleted, only set to INACTIVE.
type EntryStatus string

const (
	EntryStatusActive   EntryStatus = "ACTIVE"
	EntryStatusInactive EntryStatus = "INACTIVE"
)

// EntityKind tags which watchlist table an alert or candidate points at
type EntityKind string

const (
	EntityKindPerson EntityKind = "person"
	EntityKindItem   EntityKind = "item"
)

// MatchVerdict classifies the strength of a field comparison
type MatchVerdict string

const (
	VerdictNone    MatchVerdict = "none"
	VerdictPartial MatchVerdict = "partial"
	VerdictExact   MatchVerdict = "exact"
)

// AlertStatus is the triage state of an alert
type AlertStatus string

const (
	AlertStatusUnread    AlertStatus = "UNREAD"
	AlertStatusRead      AlertStatus = "READ"
	AlertStatusDiscarded AlertStatus = "DISCARDED"
)

// WatchlistPerson is an identity under surveillance
type WatchlistPerson struct {
	ID         uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	FullName   string      `json:"full_name" validate:"required,min=2,max=200"`
	NationalID string      `json:"national_id" gorm:"column:national_id;index" validate:"omitempty,max=30"`
	Phone      string      `json:"phone" validate:"omitempty,max=30"`
	RiskLevel  RiskLevel   `json:"risk_level" gorm:"default:MEDIUM" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Status     EntryStatus `json:"status" gorm:"default:ACTIVE;index" validate:"required,oneof=ACTIVE INACTIVE"`
	Notes      string      `json:"notes" gorm:"type:text" validate:"omitempty,max=2000"`
	CreatedBy  string      `json:"created_by" validate:"omitempty,max=100"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// WatchlistItem is a flagged physical object (stolen or suspicious goods)
type WatchlistItem struct {
	ID                  uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	Description         string      `json:"description" validate:"required,min=2,max=500"`
	SerialNumber        string      `json:"serial_number" gorm:"index" validate:"omitempty,max=100"`
	IdentificationMarks string      `json:"identification_marks" validate:"omitempty,max=500"`
	BrandModel          string      `json:"brand_model" validate:"omitempty,max=200"`
	RiskLevel           RiskLevel   `json:"risk_level" gorm:"default:MEDIUM" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Status              EntryStatus `json:"status" gorm:"default:ACTIVE;index" validate:"required,oneof=ACTIVE INACTIVE"`
	Notes               string      `json:"notes" gorm:"type:text" validate:"omitempty,max=2000"`
	CreatedBy           string      `json:"created_by" validate:"omitempty,max=100"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// TransactionRecord is one ingested purchase/order line, the scan subject.
// Immutable once created except for SaleDate, which is set later in its
// lifecycle by the sales workflow.
type TransactionRecord struct {
	ID              uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	BatchID         uuid.UUID       `json:"batch_id" gorm:"type:uuid;index" validate:"required"`
	StoreCode       string          `json:"store_code" validate:"required,max=20"`
	CustomerName    string          `json:"customer_name" validate:"required,min=2,max=200"`
	CustomerContact string          `json:"customer_contact" validate:"omitempty,max=300"`
	ItemDetails     string          `json:"item_details" validate:"required,max=1000"`
	Metals          string          `json:"metals" validate:"omitempty,max=300"`
	Stones          string          `json:"stones" validate:"omitempty,max=300"`
	Engravings      string          `json:"engravings" validate:"omitempty,max=500"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric"`
	OrderDate       time.Time       `json:"order_date" validate:"required"`
	SaleDate        *time.Time      `json:"sale_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EntityRef is a tagged reference to exactly one watchlist person or item.
// Keeping kind and id together makes the mutual exclusion structural instead
// of relying on two nullable foreign keys.
type EntityRef struct {
	Kind EntityKind `json:"kind" gorm:"column:entity_kind;uniqueIndex:uniq_alert_identity,priority:2"`
	ID   uuid.UUID  `json:"id" gorm:"column:entity_id;type:uuid;uniqueIndex:uniq_alert_identity,priority:3"`
}

// PersonRef builds an EntityRef for a watchlist person
func PersonRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: EntityKindPerson, ID: id}
}

// ItemRef builds an EntityRef for a watchlist item
func ItemRef(id uuid.UUID) EntityRef {
	return EntityRef{Kind: EntityKindItem, ID: id}
}

// Candidate is an in-flight match produced by the scanner. It is never
// persisted directly; the deduplicator turns it into an Alert or drops it.
type Candidate struct {
	RecordID         uuid.UUID    `json:"record_id"`
	Entity           EntityRef    `json:"entity"`
	Field            string       `json:"field"`
	TransactionValue string       `json:"transaction_value"`
	WatchlistValue   string       `json:"watchlist_value"`
	Verdict          MatchVerdict `json:"verdict"`
	Confidence       float64      `json:"confidence"`

	// Similarity is a Levenshtein-based detail used only for deterministic
	// ordering of candidates; it never affects verdict or confidence.
	Similarity float64 `json:"similarity"`
}

// Alert is the durable, reviewable output of a confirmed match. At most one
// non-discarded alert exists per (record, entity, field) triple; the partial
// unique index enforces that at the storage layer.
type Alert struct {
	ID                  uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid"`
	TransactionRecordID uuid.UUID   `json:"transaction_record_id" gorm:"type:uuid;index;uniqueIndex:uniq_alert_identity,priority:1,where:status <> 'DISCARDED'"`
	Entity              EntityRef   `json:"entity" gorm:"embedded"`
	Field               string      `json:"field" gorm:"uniqueIndex:uniq_alert_identity,priority:4"`
	TransactionValue    string      `json:"transaction_value"`
	WatchlistValue      string      `json:"watchlist_value"`
	Confidence          float64     `json:"confidence"`
	Exact               bool        `json:"exact"`
	Status              AlertStatus `json:"status" gorm:"default:UNREAD;index"`
	ReviewerID          *uuid.UUID  `json:"reviewer_id,omitempty" gorm:"type:uuid"`
	ReviewNotes         string      `json:"review_notes" gorm:"type:text"`
	CreatedAt           time.Time   `json:"created_at" gorm:"index:idx_alerts_created_at,sort:desc"`
	ResolvedAt          *time.Time  `json:"resolved_at,omitempty"`
}

// IdentityKey returns the dedup key components of an alert as a comparable value
func (a *Alert) IdentityKey() AlertIdentity {
	return AlertIdentity{
		TransactionRecordID: a.TransactionRecordID,
		Entity:              a.Entity,
		Field:               a.Field,
	}
}

// AlertIdentity is the (record, entity, field) triple that identifies an alert
type AlertIdentity struct {
	TransactionRecordID uuid.UUID
	Entity              EntityRef
	Field               string
}
