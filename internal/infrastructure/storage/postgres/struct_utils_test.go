package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/documents"
)

func TestExtractDBColumns_FlattensEmbedded(t *testing.T) {
	cols := ExtractDBColumns[client.Client]()
	assert.Equal(t, []string{"id", "version", "created_at", "name", "address", "city", "tax_id", "phone", "email"}, cols)
}

func TestExtractDBColumns_SkipsIgnored(t *testing.T) {
	cols := ExtractDBColumns[documents.Document]()
	assert.Contains(t, cols, "tva_details")
	assert.Contains(t, cols, "updated_by")
	assert.NotContains(t, cols, "items")
	assert.Equal(t, "id", cols[0])
}

func TestStructToMap(t *testing.T) {
	c := client.NewClient("Acme")
	city := "Lyon"
	c.City = &city

	m := StructToMap(c)
	assert.Equal(t, c.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "Acme", m["name"])
	assert.Equal(t, &city, m["city"])
	assert.Nil(t, StructToMap(42))
}

func TestValuesAndPick(t *testing.T) {
	it := documents.Item{Designation: "Bolt", Quantity: decimal.NewFromInt(3)}
	vals := Values(it, []string{"designation", "quantity", "missing"})
	assert.Equal(t, "Bolt", vals[0])
	assert.True(t, decimal.NewFromInt(3).Equal(vals[1].(decimal.Decimal)))
	assert.Nil(t, vals[2])

	picked := Pick(map[string]any{"id": 1, "name": "a", "version": 2, "extra": 3}, []string{"id", "name", "version"}, "id", "version")
	assert.Equal(t, map[string]any{"name": "a"}, picked)
}
