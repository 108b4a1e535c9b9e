// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/id"
	"docflow/internal/core/types"
	"docflow/internal/domain"
)

// --- Wire scalars ---

// Money is an amount sent as a JSON number with two decimals.
type Money decimal.Decimal

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(types.Round2(decimal.Decimal(m)).StringFixed(types.MoneyPlaces)), nil
}

// NewMoney converts a domain amount.
func NewMoney(m types.Money) Money { return Money(m) }

// MoneyPtr converts an optional amount.
func MoneyPtr(m *types.Money) *Money {
	if m == nil {
		return nil
	}
	v := Money(*m)
	return &v
}

// Number is an exact decimal (quantity, rate, percent) sent as a JSON number.
type Number decimal.Decimal

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

// NewNumber converts a domain decimal.
func NewNumber(d decimal.Decimal) Number { return Number(d) }

// NumberPtr converts an optional decimal.
func NumberPtr(d *decimal.Decimal) *Number {
	if d == nil {
		return nil
	}
	v := Number(*d)
	return &v
}

// Date accepts YYYY-MM-DD or RFC 3339 on input.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := types.ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	d.Time = t
	return nil
}

// TimePtr returns the parsed time of an optional date.
func (d *Date) TimePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// ParseOptionalID parses an optional id field, reporting the field name on error.
func ParseOptionalID(field string, s *string) (*id.ID, error) {
	if s == nil {
		return nil, nil
	}
	v, err := id.ParseOptional(*s)
	if err != nil {
		return nil, &FieldFormatError{Field: field, Err: err}
	}
	return v, nil
}

func parseQueryDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := types.ParseDate(s)
	if err != nil {
		return nil, &FieldFormatError{Field: field, Err: err}
	}
	return &t, nil
}

// FieldFormatError is a malformed scalar in a request body.
type FieldFormatError struct {
	Field string
	Err   error
}

func (e *FieldFormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldFormatError) Unwrap() error { return e.Err }

// --- Envelopes ---

// Response wraps every successful payload.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// NewResponse wraps data in the success envelope.
func NewResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// --- Pagination ---

// PaginationRequest contains pagination parameters.
type PaginationRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Apply writes the page window into a domain filter.
func (p PaginationRequest) Apply(f *domain.ListFilter) {
	f.Page(p.Page, p.Limit)
}

// PaginationResponse contains pagination metadata.
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination builds pagination metadata out of a list result.
func NewPagination[T any](r domain.ListResult[T]) PaginationResponse {
	return PaginationResponse{
		Page:       r.PageNumber(),
		Limit:      r.Limit,
		Total:      r.TotalCount,
		TotalPages: r.TotalPages(),
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}
