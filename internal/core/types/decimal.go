// Package types provides the monetary and quantity types used by documents.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is an item quantity. Deliveries may split a line into fractional
// parts, so quantities share the decimal representation of Money.
type Quantity = decimal.Decimal

// MoneyPlaces is the number of fractional digits kept for monetary amounts.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// NewMoney creates a Money value from a float.
// Used at the JSON boundary only; arithmetic stays in decimal.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round2 rounds to cents, half away from zero.
func Round2(m Money) Money {
	return m.Round(MoneyPlaces)
}

// Percent returns v × pct / 100 without rounding.
func Percent(v Money, pct decimal.Decimal) Money {
	return v.Mul(pct).Div(hundred)
}

// Float returns the wire representation of an amount rounded to cents.
func Float(m Money) float64 {
	return Round2(m).InexactFloat64()
}

// FloatPtr is Float for optional amounts.
func FloatPtr(m *Money) *float64 {
	if m == nil {
		return nil
	}
	f := Float(*m)
	return &f
}

// QtyFloat returns the wire representation of a quantity.
func QtyFloat(q Quantity) float64 {
	return q.InexactFloat64()
}

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ParseDate accepts either a plain date (YYYY-MM-DD, taken as UTC midnight)
// or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "T") {
		return time.Parse(time.DateOnly, s)
	}
	return time.Parse(time.RFC3339, s)
}

// ParseDatePtr is ParseDate for optional inputs. Empty input yields nil.
func ParseDatePtr(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
