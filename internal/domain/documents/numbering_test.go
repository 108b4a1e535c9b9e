package documents

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"docflow/internal/core/id"
)

var draftRE = regexp.MustCompile(`^DRAFT-PURCHASE_ORDER-[0-9A-Z]+$`)

func TestDraftNumber(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	a := DraftNumber(TypePurchaseOrder, now)
	b := DraftNumber(TypePurchaseOrder, now)

	assert.Regexp(t, draftRE, a)
	assert.True(t, IsDraftNumber(a))
	assert.NotEqual(t, a, b, "random suffix must differ")
	assert.False(t, IsDraftNumber("BC-2026-000001"))
}

func TestContentHash(t *testing.T) {
	clientID := id.New()
	build := func(qty string) *Document {
		d := NewDocument(TypeInvoice)
		d.ClientID = &clientID
		d.Items = []Item{{
			Designation: "Widget",
			Quantity:    decimal.RequireFromString(qty),
			UnitPriceHT: decimal.RequireFromString("12.50"),
			TVARate:     decimal.NewFromInt(20),
		}}
		d.Recalculate()
		return d
	}

	h1 := ContentHash(build("4"))
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, ContentHash(build("4")))
	assert.Equal(t, h1, ContentHash(build("4.000")), "trailing zeros do not change the hash")
	assert.NotEqual(t, h1, ContentHash(build("5")))
}
