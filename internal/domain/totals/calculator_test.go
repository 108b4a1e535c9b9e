package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: got %s, want %s", msg, got.String(), want)
}

func TestCalculate_SingleLine(t *testing.T) {
	res := Calculate([]Line{{Quantity: d("100"), UnitPriceHT: d("50"), TVARate: d("20")}}, Options{})

	assertMoney(t, "5000", res.TotalHT, "totalHT")
	assertMoney(t, "0", res.DiscountAmount, "discount")
	assertMoney(t, "5000", res.NetHT, "netHT")
	assertMoney(t, "1000", res.TotalTVA, "totalTVA")
	assertMoney(t, "6000", res.TotalTTC, "totalTTC")
	require.Len(t, res.Bands, 1)
	assertMoney(t, "5000", res.Bands[0].Base, "band base")
	assert.Nil(t, res.DepositAmount)
}

func TestCalculate_GlobalPercentageDiscount(t *testing.T) {
	res := Calculate(
		[]Line{{Quantity: d("100"), UnitPriceHT: d("50"), TVARate: d("20")}},
		Options{DiscountType: DiscountPercentage, DiscountValue: dp("10")},
	)

	assertMoney(t, "5000", res.TotalHT, "totalHT")
	assertMoney(t, "500", res.DiscountAmount, "discount")
	assertMoney(t, "4500", res.NetHT, "netHT")
	assertMoney(t, "900", res.TotalTVA, "totalTVA")
	assertMoney(t, "5400", res.TotalTTC, "totalTTC")
}

func TestCalculate_FixedDiscountSpreadAcrossBands(t *testing.T) {
	lines := []Line{
		{Quantity: d("3"), UnitPriceHT: d("33.33"), TVARate: d("20")},
		{Quantity: d("1"), UnitPriceHT: d("10"), TVARate: d("7")},
		{Quantity: d("2"), UnitPriceHT: d("12.5"), DiscountPercent: d("15"), TVARate: d("20")},
	}
	res := Calculate(lines, Options{DiscountType: DiscountFixed, DiscountValue: dp("7.77")})

	sumNet := decimal.Zero
	for _, l := range res.Lines {
		sumNet = sumNet.Add(l.TotalHT)
	}
	assert.True(t, sumNet.Equal(res.TotalHT))
	assert.True(t, res.NetHT.Add(res.TotalTVA).Equal(res.TotalTTC))

	require.Len(t, res.Bands, 2)
	assertMoney(t, "20", res.Bands[0].Rate, "first band keeps first-seen rate")
	assertMoney(t, "7", res.Bands[1].Rate, "second band")

	sumBase := decimal.Zero
	for _, b := range res.Bands {
		sumBase = sumBase.Add(b.Base)
	}
	assert.True(t, sumBase.Sub(res.NetHT).Abs().LessThanOrEqual(d("0.02")),
		"bases %s should sum to netHT %s", sumBase, res.NetHT)
}

func TestCalculate_LineDiscountRounding(t *testing.T) {
	lt := CalculateLine(Line{Quantity: d("3"), UnitPriceHT: d("19.99"), DiscountPercent: d("12.5"), TVARate: d("20")})

	// 59.97 * 12.5% = 7.49625 -> 7.50
	assertMoney(t, "7.5", lt.DiscountAmount, "line discount")
	assertMoney(t, "52.47", lt.TotalHT, "line net")
	// 52.47 * 20% = 10.494 -> 10.49
	assertMoney(t, "10.49", lt.TotalTVA, "line tva")
	assertMoney(t, "62.96", lt.TotalTTC, "line ttc")
}

func TestCalculate_ZeroTotalHasZeroBands(t *testing.T) {
	res := Calculate([]Line{
		{Quantity: d("5"), UnitPriceHT: d("0"), TVARate: d("20")},
		{Quantity: d("1"), UnitPriceHT: d("0"), TVARate: d("10")},
	}, Options{})

	require.Len(t, res.Bands, 2)
	for _, b := range res.Bands {
		assert.True(t, b.Base.IsZero())
		assert.True(t, b.Amount.IsZero())
	}
	assert.True(t, res.TotalTTC.IsZero())
}

func TestCalculate_Deposit(t *testing.T) {
	res := Calculate(
		[]Line{{Quantity: d("1"), UnitPriceHT: d("1000"), TVARate: d("20")}},
		Options{DepositPercent: dp("30")},
	)
	require.NotNil(t, res.DepositAmount)
	assertMoney(t, "360", *res.DepositAmount, "deposit")

	res = Calculate(
		[]Line{{Quantity: d("1"), UnitPriceHT: d("1000"), TVARate: d("20")}},
		Options{DepositPercent: dp("0")},
	)
	assert.Nil(t, res.DepositAmount)
}

func TestCalculate_DiscountIgnoredWithoutType(t *testing.T) {
	res := Calculate(
		[]Line{{Quantity: d("1"), UnitPriceHT: d("100"), TVARate: d("20")}},
		Options{DiscountValue: dp("10")},
	)
	assertMoney(t, "0", res.DiscountAmount, "discount")
}

func TestCalculate_Empty(t *testing.T) {
	res := Calculate(nil, Options{})
	assert.Empty(t, res.Lines)
	assert.Empty(t, res.Bands)
	assert.True(t, res.TotalTTC.IsZero())
}

func TestVerify(t *testing.T) {
	lines := []Line{{Quantity: d("2"), UnitPriceHT: d("10"), TVARate: d("20")}}
	res := Calculate(lines, Options{})

	stored := Stored{
		Lines:    []LineTotals{{TotalHT: d("20"), TotalTVA: d("4")}},
		TotalHT:  d("20"),
		NetHT:    d("20"),
		TotalTVA: d("4"),
		TotalTTC: d("24"),
	}
	assert.Empty(t, Verify(stored, res))

	stored.TotalTTC = d("24.05")
	out := Verify(stored, res)
	require.Len(t, out, 1)
	assert.Equal(t, "totalTTC", out[0].Field)
}
