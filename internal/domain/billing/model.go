// Package billing records payments against invoices and builds deposit and
// final invoices out of accepted quotes and delivered orders.
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/id"
	"docflow/internal/core/types"
	"docflow/internal/domain/documents"
)

// DefaultDepositPercent applies when neither the request nor the quote sets one.
var DefaultDepositPercent = decimal.NewFromInt(30)

// DepositUnit is the unit of the single line of a deposit invoice.
const DepositUnit = "forfait"

// Repository finds the deposit invoices of a quote.
type Repository interface {
	// ListDepositInvoices returns the deposit invoices linked to quoteID,
	// oldest first.
	ListDepositInvoices(ctx context.Context, quoteID id.ID) ([]*documents.Document, error)
}

// PaymentInput describes a payment to record.
type PaymentInput struct {
	Amount    types.Money
	Method    documents.PaymentMethod
	Reference *string
	PaidAt    *time.Time
	Notes     *string
}

// PaymentResult is a recorded payment with the invoice it settled.
type PaymentResult struct {
	Payment  *documents.Payment  `json:"payment"`
	Document *documents.Document `json:"document"`
}

// DepositInput sizes a deposit invoice. Amount wins over Percent.
type DepositInput struct {
	Percent *decimal.Decimal
	Amount  *types.Money
	DueDate *time.Time
	Notes   *string
}

// QuotePosition is the deposit position of a quote after a new deposit.
type QuotePosition struct {
	ID               id.ID       `json:"id"`
	Number           string      `json:"number"`
	TotalTTC         types.Money `json:"totalTTC"`
	ExistingDeposits types.Money `json:"existingDeposits"`
	RemainingBalance types.Money `json:"remainingBalance"`
}

// DepositResult is a created deposit invoice.
type DepositResult struct {
	Invoice     *documents.Document `json:"invoice"`
	SourceQuote QuotePosition       `json:"sourceQuote"`
}

// DepositLine is one deposit invoice in a summary.
type DepositLine struct {
	ID         id.ID            `json:"id"`
	Number     string           `json:"number"`
	Amount     types.Money      `json:"amount"`
	PaidAmount types.Money      `json:"paidAmount"`
	Balance    types.Money      `json:"balance"`
	Status     documents.Status `json:"status"`
	Date       time.Time        `json:"date"`
}

// DepositSummary is the deposit position of a quote.
type DepositSummary struct {
	QuoteID            id.ID         `json:"quoteId"`
	QuoteNumber        string        `json:"quoteNumber"`
	QuoteTotalTTC      types.Money   `json:"quoteTotalTTC"`
	DepositInvoices    []DepositLine `json:"depositInvoices"`
	TotalInvoiced      types.Money   `json:"totalDepositsInvoiced"`
	TotalPaid          types.Money   `json:"totalDepositsPaid"`
	RemainingToInvoice types.Money   `json:"remainingToInvoice"`
	RemainingToPay     types.Money   `json:"remainingToPay"`
	PercentInvoiced    int64         `json:"percentInvoiced"`
	PercentPaid        int64         `json:"percentPaid"`
}

// FinalInvoiceInput selects the deposits deducted from a final invoice.
type FinalInvoiceInput struct {
	// ApplyDeposits deducts every paid deposit invoice of the originating quote.
	ApplyDeposits bool

	// DepositIDs, when set, lists the deposit invoices to deduct instead.
	DepositIDs []id.ID

	DueDate *time.Time
	Notes   *string
}

// AppliedDeposit is a deposit invoice deducted from a final invoice.
type AppliedDeposit struct {
	ID     id.ID       `json:"id"`
	Number string      `json:"number"`
	Amount types.Money `json:"amount"`
}

// FinalInvoiceResult is a created final invoice.
type FinalInvoiceResult struct {
	Invoice         *documents.Document `json:"invoice"`
	AppliedDeposits []AppliedDeposit    `json:"appliedDeposits"`
	QuoteID         *id.ID              `json:"quoteId,omitempty"`
}
