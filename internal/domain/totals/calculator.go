// Package totals computes the monetary fields of a document and its lines.
//
// Every boundary is rounded to cents (half away from zero):
// line discount, line net, line VAT, line TTC, the global discount,
// each VAT band, and the deposit. Aggregates are sums of rounded values.
package totals

import (
	"github.com/shopspring/decimal"

	"docflow/internal/core/types"
)

// DiscountType selects how the global discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// IsValid reports whether t is a known discount type.
func (t DiscountType) IsValid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Line is the pricing input of one item.
type Line struct {
	Quantity        types.Quantity
	UnitPriceHT     types.Money
	DiscountPercent decimal.Decimal
	TVARate         decimal.Decimal
}

// Options carries the document-level settings.
type Options struct {
	DiscountType   DiscountType
	DiscountValue  *decimal.Decimal
	DepositPercent *decimal.Decimal
}

// LineTotals is the computed result of one line.
// TotalHT is the net amount after the line discount.
type LineTotals struct {
	DiscountAmount types.Money
	TotalHT        types.Money
	TotalTVA       types.Money
	TotalTTC       types.Money
}

// Band is the VAT breakdown for one rate.
type Band struct {
	Rate   decimal.Decimal `json:"rate"`
	Base   types.Money     `json:"base"`
	Amount types.Money     `json:"amount"`
}

// Result holds every derived amount of a document.
type Result struct {
	Lines []LineTotals

	// TotalHT is the sum of line nets, before the global discount.
	TotalHT        types.Money
	DiscountAmount types.Money
	NetHT          types.Money
	TotalTVA       types.Money
	TotalTTC       types.Money
	Bands          []Band

	// DepositAmount is nil when no deposit percent is configured.
	DepositAmount *types.Money
}

// CalculateLine computes the totals of a single line.
func CalculateLine(l Line) LineTotals {
	gross := l.Quantity.Mul(l.UnitPriceHT)
	discount := types.Round2(types.Percent(gross, l.DiscountPercent))
	net := types.Round2(gross.Sub(discount))
	tva := types.Round2(types.Percent(net, l.TVARate))
	return LineTotals{
		DiscountAmount: discount,
		TotalHT:        net,
		TotalTVA:       tva,
		TotalTTC:       types.Round2(net.Add(tva)),
	}
}

// Calculate computes line and document totals. Lines keep their input order
// and VAT bands are listed in order of first appearance of their rate.
func Calculate(lines []Line, opts Options) Result {
	res := Result{
		Lines:   make([]LineTotals, len(lines)),
		TotalHT: decimal.Zero,
	}

	for i, l := range lines {
		lt := CalculateLine(l)
		res.Lines[i] = lt
		res.TotalHT = res.TotalHT.Add(lt.TotalHT)
	}

	res.DiscountAmount = globalDiscount(res.TotalHT, opts)
	res.NetHT = res.TotalHT.Sub(res.DiscountAmount)
	res.Bands = bands(lines, res.Lines, res.TotalHT, res.NetHT)

	res.TotalTVA = decimal.Zero
	for _, b := range res.Bands {
		res.TotalTVA = res.TotalTVA.Add(b.Amount)
	}
	res.TotalTTC = res.NetHT.Add(res.TotalTVA)

	if opts.DepositPercent != nil && !opts.DepositPercent.IsZero() {
		deposit := types.Round2(types.Percent(res.TotalTTC, *opts.DepositPercent))
		res.DepositAmount = &deposit
	}

	return res
}

func globalDiscount(totalHT types.Money, opts Options) types.Money {
	if opts.DiscountType == "" || opts.DiscountValue == nil || opts.DiscountValue.IsZero() {
		return decimal.Zero
	}
	if opts.DiscountType == DiscountPercentage {
		return types.Round2(types.Percent(totalHT, *opts.DiscountValue))
	}
	return types.Round2(*opts.DiscountValue)
}

// bands spreads netHT across VAT rates pro rata of each line's share of totalHT.
func bands(lines []Line, computed []LineTotals, totalHT, netHT types.Money) []Band {
	order := make([]string, 0, 4)
	acc := make(map[string]*Band, 4)

	for i, l := range lines {
		key := l.TVARate.String()
		b, ok := acc[key]
		if !ok {
			b = &Band{Rate: l.TVARate, Base: decimal.Zero, Amount: decimal.Zero}
			acc[key] = b
			order = append(order, key)
		}
		if totalHT.IsZero() {
			continue
		}
		share := netHT.Mul(computed[i].TotalHT).Div(totalHT)
		b.Base = b.Base.Add(share)
		b.Amount = b.Amount.Add(types.Percent(share, l.TVARate))
	}

	out := make([]Band, 0, len(order))
	for _, key := range order {
		b := acc[key]
		out = append(out, Band{
			Rate:   b.Rate,
			Base:   types.Round2(b.Base),
			Amount: types.Round2(b.Amount),
		})
	}
	return out
}
