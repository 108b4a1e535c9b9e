package project

import (
	"context"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/tx"
	"docflow/internal/domain"
)

// Repository defines the interface for Project persistence.
type Repository interface {
	domain.CatalogRepository[*Project]
}

// ClientChecker reports whether a client exists.
type ClientChecker interface {
	Exists(ctx context.Context, id id.ID) (bool, error)
}

// Service provides business logic for the Project catalog.
type Service struct {
	*domain.CatalogService[*Project]
	clients ClientChecker
}

// NewService creates a new Project service.
func NewService(repo Repository, clients ClientChecker, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Project]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "project",
	})
	svc := &Service{CatalogService: base, clients: clients}
	base.Hooks().OnBeforeCreate(svc.requireClient)
	return svc
}

func (s *Service) requireClient(ctx context.Context, p *Project) error {
	ok, err := s.clients.Exists(ctx, p.ClientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFound("client", p.ClientID.String())
	}
	return nil
}
