// Package client provides the Client catalog: the customers documents are issued to.
package client

import (
	"context"
	"regexp"
	"strings"

	"docflow/internal/core/apperror"
	"docflow/internal/core/entity"
)

var (
	taxIDRE = regexp.MustCompile(`^\d{15}$`)
	emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Client represents a business customer.
type Client struct {
	entity.BaseCatalog

	// Name is the registered company name, printed on documents
	Name string `db:"name" json:"name"`

	// Address and City form the billing address
	Address *string `db:"address" json:"address,omitempty"`
	City    *string `db:"city" json:"city,omitempty"`

	// TaxID is the company identifier (ICE, 15 digits)
	TaxID *string `db:"tax_id" json:"taxId,omitempty"`

	Phone *string `db:"phone" json:"phone,omitempty"`
	Email *string `db:"email" json:"email,omitempty"`
}

// NewClient creates a new Client with required fields.
func NewClient(name string) *Client {
	return &Client{
		BaseCatalog: entity.NewBaseCatalog(),
		Name:        strings.TrimSpace(name),
	}
}

// Validate implements entity.Validatable interface.
func (c *Client) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if c.TaxID != nil && *c.TaxID != "" && !taxIDRE.MatchString(*c.TaxID) {
		return apperror.NewValidation("invalid tax id format (must be 15 digits)").
			WithDetail("field", "taxId")
	}

	if c.Email != nil && *c.Email != "" && !emailRE.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email")
	}

	return nil
}
