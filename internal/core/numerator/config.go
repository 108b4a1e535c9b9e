// Package numerator provides domain contracts for official document numbering.
package numerator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Family groups the sequences of commercial documents. Every category below
// lives in the same family and therefore in the same sequence table keyspace.
const Family = "B2B"

// Category names a numbering sequence (one per document type).
type Category string

const (
	CategoryQuote            Category = "DEV"
	CategoryPurchaseOrder    Category = "BC"
	CategoryDeliveryNote     Category = "BL"
	CategoryAcceptanceReport Category = "PV"
	CategoryInvoice          Category = "FAC"
	CategoryDepositInvoice   Category = "FAAC"
	CategoryCreditNote       Category = "AV"
)

// ResetPeriod controls when a sequence starts over at 1.
type ResetPeriod string

const (
	ResetYearly ResetPeriod = "year"
	ResetNever  ResetPeriod = "never"
)

// Config holds the formatting rules of one category.
type Config struct {
	// Prefix printed before the number (e.g., "FAC")
	Prefix string

	// PadWidth is the minimum width of the sequential part
	PadWidth int

	// Reset selects the sequence period
	Reset ResetPeriod
}

// DefaultConfig returns the yearly, 6-digit format used by all commercial documents.
func DefaultConfig(c Category) Config {
	return Config{
		Prefix:   string(c),
		PadWidth: 6,
		Reset:    ResetYearly,
	}
}

// Key builds the sequence key for a period, e.g. "B2B:FAC:2026".
func (c Config) Key(period time.Time) string {
	if c.Reset == ResetYearly {
		return fmt.Sprintf("%s:%s:%d", Family, c.Prefix, period.Year())
	}
	return fmt.Sprintf("%s:%s", Family, c.Prefix)
}

// Format renders a sequence value, e.g. FAC-2026-000001.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = 6
	}
	if c.Reset == ResetYearly {
		return fmt.Sprintf("%s-%d-%0*d", c.Prefix, period.Year(), width, n)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, n)
}

var officialPattern = regexp.MustCompile(`^([A-Z]{1,4})-(\d{4})-(\d{6,})$`)

// Parsed is the decomposition of an official number.
type Parsed struct {
	Prefix   string
	Year     int
	Sequence int64
}

// Parse decomposes an official yearly number. Draft tokens do not parse.
func Parse(number string) (Parsed, bool) {
	m := officialPattern.FindStringSubmatch(strings.TrimSpace(number))
	if m == nil {
		return Parsed{}, false
	}
	year, _ := strconv.Atoi(m[2])
	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	return Parsed{Prefix: m[1], Year: year, Sequence: seq}, true
}
