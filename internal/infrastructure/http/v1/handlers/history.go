package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/id"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/http/v1/dto"
	"docflow/internal/infrastructure/storage/postgres"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryReader reads the audit trail of an entity.
type HistoryReader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// HistoryHandler serves GET /documents/:id/history.
type HistoryHandler struct {
	*BaseHandler
	reader HistoryReader
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(base *BaseHandler, reader HistoryReader) *HistoryHandler {
	return &HistoryHandler{BaseHandler: base, reader: reader}
}

// Document handles GET /documents/:id/history?limit=.
func (h *HistoryHandler) Document(c *gin.Context) {
	docID, ok := h.ParseDocumentID(c)
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	entries, err := h.reader.History(c.Request.Context(), documents.EntityType, docID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromAuditEntries(entries))
}
