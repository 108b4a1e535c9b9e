// Package entity provides the base types shared by persisted aggregates.
package entity

import (
	"context"
	"time"

	"docflow/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains the identity and optimistic-lock version of every row.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// Touch increments version (for optimistic locking).
func (b *BaseEntity) Touch() {
	b.Version++
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// BaseDocument extends BaseEntity with audit fields.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy *string   `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy *string   `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument creates a new BaseDocument with generated ID and timestamps.
func NewBaseDocument() BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch updates the UpdatedAt timestamp and increments version.
func (b *BaseDocument) Touch() {
	b.UpdatedAt = time.Now().UTC()
	b.BaseEntity.Touch()
}

// StampCreator records the acting user on a new row.
func (b *BaseDocument) StampCreator(userID string) {
	if userID == "" {
		return
	}
	b.CreatedBy = &userID
	b.UpdatedBy = &userID
}

// StampUpdater records the acting user on a modified row.
func (b *BaseDocument) StampUpdater(userID string) {
	if userID == "" {
		return
	}
	b.UpdatedBy = &userID
}

// BaseCatalog is the base of reference data (clients, projects).
type BaseCatalog struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewBaseCatalog creates a new BaseCatalog with generated ID.
func NewBaseCatalog() BaseCatalog {
	return BaseCatalog{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  time.Now().UTC(),
	}
}
