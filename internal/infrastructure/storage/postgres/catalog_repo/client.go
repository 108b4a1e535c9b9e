package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"docflow/internal/domain/catalogs/client"
	"docflow/internal/infrastructure/storage/postgres"
)

// ClientRepo implements client.Repository.
type ClientRepo struct {
	*BaseCatalogRepo[*client.Client]
}

var _ client.Repository = (*ClientRepo)(nil)

// NewClientRepo creates the client repository.
func NewClientRepo(txManager *postgres.TxManager) *ClientRepo {
	return &ClientRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txManager, "clients", "client",
			[]string{"name", "city", "tax_id", "email"},
			func() *client.Client { return &client.Client{} }),
	}
}

// FindByTaxID implements client.Repository.
func (r *ClientRepo) FindByTaxID(ctx context.Context, taxID string) (*client.Client, error) {
	return r.FindOne(ctx, r.baseSelect().Where(squirrel.Eq{"tax_id": taxID}), taxID)
}
