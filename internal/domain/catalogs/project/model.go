// Package project provides the Project catalog. A project groups the
// documents of one client engagement.
package project

import (
	"context"
	"strings"

	"docflow/internal/core/apperror"
	"docflow/internal/core/entity"
	"docflow/internal/core/id"
)

// Project is a client engagement.
type Project struct {
	entity.BaseCatalog

	Name     string `db:"name" json:"name"`
	ClientID id.ID  `db:"client_id" json:"clientId"`
}

// NewProject creates a new Project.
func NewProject(name string, clientID id.ID) *Project {
	return &Project{
		BaseCatalog: entity.NewBaseCatalog(),
		Name:        strings.TrimSpace(name),
		ClientID:    clientID,
	}
}

// Validate implements entity.Validatable interface.
func (p *Project) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if id.IsNil(p.ClientID) {
		return apperror.NewValidation("client is required").WithDetail("field", "clientId")
	}
	return nil
}
