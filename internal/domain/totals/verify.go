package totals

import (
	"fmt"

	"github.com/shopspring/decimal"

	"docflow/internal/core/types"
)

var tolerance = decimal.RequireFromString("0.01")

// Stored is the persisted state of a document, as read back from storage.
type Stored struct {
	Lines    []LineTotals
	TotalHT  types.Money
	NetHT    types.Money
	TotalTVA types.Money
	TotalTTC types.Money
}

// Discrepancy describes one stored amount that drifted from its recomputed value.
type Discrepancy struct {
	Field    string      `json:"field"`
	Stored   types.Money `json:"stored"`
	Computed types.Money `json:"computed"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: stored %s, computed %s", d.Field, d.Stored.StringFixed(2), d.Computed.StringFixed(2))
}

// Verify compares stored totals with a fresh computation and returns the
// fields that differ by more than one cent.
func Verify(stored Stored, computed Result) []Discrepancy {
	var out []Discrepancy
	check := func(field string, s, c types.Money) {
		if s.Sub(c).Abs().GreaterThan(tolerance) {
			out = append(out, Discrepancy{Field: field, Stored: s, Computed: c})
		}
	}

	for i, line := range stored.Lines {
		if i >= len(computed.Lines) {
			break
		}
		check(fmt.Sprintf("items[%d].totalHT", i), line.TotalHT, computed.Lines[i].TotalHT)
		check(fmt.Sprintf("items[%d].totalTVA", i), line.TotalTVA, computed.Lines[i].TotalTVA)
	}
	check("totalHT", stored.TotalHT, computed.TotalHT)
	check("netHT", stored.NetHT, computed.NetHT)
	check("totalTVA", stored.TotalTVA, computed.TotalTVA)
	check("totalTTC", stored.TotalTTC, computed.TotalTTC)

	return out
}
