package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain"
	"docflow/internal/domain/documents"
)

func TestApplyFilter(t *testing.T) {
	typ := documents.TypeInvoice
	status := documents.StatusSent
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	q := applyFilter(Builder().Select("id").From(tableDocuments), documents.ListFilter{
		ListFilter: domain.ListFilter{Search: " acme "},
		Type:       &typ,
		Status:     &status,
		DateFrom:   &from,
	})
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM documents WHERE type = $1 AND status = $2 AND date >= $3 AND (number ILIKE $4 OR client_name ILIKE $5 OR project_id IN (SELECT id FROM projects WHERE name ILIKE $6))",
		sql)
	assert.Equal(t, []any{typ, status, from, "%acme%", "%acme%", "%acme%"}, args)
}

func TestApplyFilter_Empty(t *testing.T) {
	sql, args, err := applyFilter(Builder().Select("id").From(tableDocuments), documents.ListFilter{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM documents", sql)
	assert.Empty(t, args)
}

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "created_at DESC"},
		{"-created_at", "created_at DESC"},
		{"number", "number ASC"},
		{"+total_ttc", "total_ttc ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOrderBy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseOrderBy("-name; DROP TABLE documents")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDeliveredLinesQuery(t *testing.T) {
	orderID := id.New()
	sql, args, err := deliveredLinesQuery(orderID).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM documents d JOIN document_items i ON i.document_id = d.id")
	assert.Contains(t, sql, "WHERE d.parent_id = $1 AND d.type = $2 AND i.source_order_item_id IS NOT NULL")
	assert.Contains(t, sql, "ORDER BY d.created_at, i.position")
	assert.Equal(t, []any{orderID, documents.TypeDeliveryNote}, args)
}

func TestColumns(t *testing.T) {
	assert.Contains(t, documentColumns, "deposits_applied")
	assert.NotContains(t, documentColumns, "items")
	assert.Contains(t, itemColumns, "source_order_item_id")
	assert.Equal(t, "id", paymentColumns[0])
	assert.Contains(t, logColumns, "delivery_note_number")
}
