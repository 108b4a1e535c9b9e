package client

import (
	"context"

	"docflow/internal/domain"
)

// Repository defines the interface for Client persistence.
type Repository interface {
	domain.CatalogRepository[*Client]

	// FindByTaxID retrieves a client by tax id.
	FindByTaxID(ctx context.Context, taxID string) (*Client, error)
}
