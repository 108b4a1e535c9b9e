package documents

import (
	"context"
	"time"

	"docflow/internal/core/id"
	"docflow/internal/domain"
)

// ListFilter narrows document lists.
type ListFilter struct {
	domain.ListFilter

	Type      *Type
	Status    *Status
	ClientID  *id.ID
	ProjectID *id.ID
	DateFrom  *time.Time
	DateTo    *time.Time
}

// ListResult is a page of documents.
type ListResult = domain.ListResult[*Document]

// Repository persists documents and their items.
// Methods use the transaction carried by ctx when there is one.
type Repository interface {
	// Create inserts the document row. Items are written by SaveItems.
	Create(ctx context.Context, doc *Document) error

	// Update writes the document row with optimistic locking on Version
	// and bumps the in-memory version on success.
	Update(ctx context.Context, doc *Document) error

	// GetByID loads a document without items.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetForUpdate loads a document and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// Delete removes the document; items and payments go by cascade.
	Delete(ctx context.Context, docID id.ID) error

	List(ctx context.Context, filter ListFilter) (ListResult, error)

	// GetItems returns items ordered by position.
	GetItems(ctx context.Context, docID id.ID) ([]Item, error)

	// SaveItems replaces all items of a document.
	SaveItems(ctx context.Context, docID id.ID, items []Item) error

	// ListChildren returns documents whose parent is parentID, oldest first.
	ListChildren(ctx context.Context, parentID id.ID) ([]*Document, error)

	CountChildren(ctx context.Context, docID id.ID) (int, error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)
	Delete(ctx context.Context, paymentID id.ID) error
	ListByDocument(ctx context.Context, docID id.ID) ([]Payment, error)
	CountByDocument(ctx context.Context, docID id.ID) (int, error)
}
