package dto

import (
	"encoding/json"
	"time"

	"docflow/internal/infrastructure/storage/postgres"
)

// AuditEntryResponse is one entry of a document history.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	UserEmail string          `json:"userEmail,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FromAuditEntries maps audit entries, newest first.
func FromAuditEntries(entries []postgres.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			UserID:    e.UserID,
			UserEmail: e.UserEmail,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
