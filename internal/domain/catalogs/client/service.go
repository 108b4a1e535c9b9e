package client

import (
	"context"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/tx"
	"docflow/internal/domain"
)

// Service provides business logic for the Client catalog.
type Service struct {
	*domain.CatalogService[*Client]
	repo Repository
}

// NewService creates a new Client service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Client]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "client",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.checkTaxIDUnique)
	base.Hooks().OnBeforeUpdate(svc.checkTaxIDUnique)

	return svc
}

func (s *Service) checkTaxIDUnique(ctx context.Context, c *Client) error {
	if c.TaxID == nil || *c.TaxID == "" {
		return nil
	}
	taken, err := s.taxIDTaken(ctx, *c.TaxID, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return apperror.NewConflict("client with this tax id already exists").
			WithDetail("taxId", *c.TaxID)
	}
	return nil
}

func (s *Service) taxIDTaken(ctx context.Context, taxID string, excludeID id.ID) (bool, error) {
	existing, err := s.repo.FindByTaxID(ctx, taxID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return existing.ID != excludeID, nil
}
