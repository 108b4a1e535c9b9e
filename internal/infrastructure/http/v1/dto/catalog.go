package dto

import (
	"time"

	"docflow/internal/core/id"
	"docflow/internal/domain"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
)

// CreateClientRequest is the body of POST /clients.
type CreateClientRequest struct {
	Name    string  `json:"name" binding:"required,max=300"`
	Address *string `json:"address" binding:"omitempty,max=500"`
	City    *string `json:"city" binding:"omitempty,max=100"`
	TaxID   *string `json:"taxId" binding:"omitempty,len=15,numeric"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Email   *string `json:"email" binding:"omitempty,email"`
}

// ToEntity builds a new client.
func (r CreateClientRequest) ToEntity() *client.Client {
	c := client.NewClient(r.Name)
	c.Address = r.Address
	c.City = r.City
	c.TaxID = r.TaxID
	c.Phone = r.Phone
	c.Email = r.Email
	return c
}

// ClientResponse is a client as sent over the wire.
type ClientResponse struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	City      *string   `json:"city,omitempty"`
	TaxID     *string   `json:"taxId,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromClient maps a client.
func FromClient(c *client.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID.String(),
		Version:   c.Version,
		Name:      c.Name,
		Address:   c.Address,
		City:      c.City,
		TaxID:     c.TaxID,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name     string `json:"name" binding:"required,max=300"`
	ClientID string `json:"clientId" binding:"required,uuid"`
}

// ToEntity builds a new project.
func (r CreateProjectRequest) ToEntity() (*project.Project, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return nil, &FieldFormatError{Field: "clientId", Err: err}
	}
	return project.NewProject(r.Name, clientID), nil
}

// ProjectResponse is a project as sent over the wire.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	ClientID  string    `json:"clientId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromProject maps a project.
func FromProject(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID.String(),
		Version:   p.Version,
		Name:      p.Name,
		ClientID:  p.ClientID.String(),
		CreatedAt: p.CreatedAt,
	}
}

// CatalogListResponse is a page of catalog entries.
type CatalogListResponse[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// ListCatalogQuery holds the query of a catalog list endpoint.
type ListCatalogQuery struct {
	PaginationRequest
	Search string `form:"search" binding:"max=200"`
}

// ToFilter converts the query into a list filter ordered by name.
func (q ListCatalogQuery) ToFilter() domain.ListFilter {
	f := domain.ListFilter{Search: q.Search, OrderBy: "name"}
	q.Apply(&f)
	return f
}
