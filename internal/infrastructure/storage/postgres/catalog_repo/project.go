package catalog_repo

import (
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/infrastructure/storage/postgres"
)

// ProjectRepo implements project.Repository.
type ProjectRepo struct {
	*BaseCatalogRepo[*project.Project]
}

var _ project.Repository = (*ProjectRepo)(nil)

// NewProjectRepo creates the project repository.
func NewProjectRepo(txManager *postgres.TxManager) *ProjectRepo {
	return &ProjectRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txManager, "projects", "project",
			[]string{"name"},
			func() *project.Project { return &project.Project{} }),
	}
}
