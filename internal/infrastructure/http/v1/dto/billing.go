package dto

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/id"
	"docflow/internal/domain/billing"
	"docflow/internal/domain/documents"
)

// PaymentRequest is the body of POST /documents/:id/payments.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" binding:"required,oneof=CASH CHECK BANK_TRANSFER CARD OTHER"`
	Reference *string         `json:"reference" binding:"omitempty,max=100"`
	PaidAt    *Date           `json:"paidAt"`
	Notes     *string         `json:"notes"`
}

// ToInput converts the body into the domain input.
func (r PaymentRequest) ToInput() billing.PaymentInput {
	return billing.PaymentInput{
		Amount:    r.Amount,
		Method:    documents.PaymentMethod(r.Method),
		Reference: r.Reference,
		PaidAt:    r.PaidAt.TimePtr(),
		Notes:     r.Notes,
	}
}

// PaymentResultResponse is a recorded payment with the settled invoice.
type PaymentResultResponse struct {
	Payment  PaymentResponse  `json:"payment"`
	Document DocumentResponse `json:"document"`
}

// FromPaymentResult maps a payment result.
func FromPaymentResult(r *billing.PaymentResult) PaymentResultResponse {
	return PaymentResultResponse{
		Payment:  FromPayment(*r.Payment),
		Document: FromDocument(r.Document),
	}
}

// DepositRequest is the body of POST /documents/:id/deposit-invoice.
// Amount wins over Percent; both absent means the quote default.
type DepositRequest struct {
	Percent *decimal.Decimal `json:"percent"`
	Amount  *decimal.Decimal `json:"amount"`
	DueDate *Date            `json:"dueDate"`
	Notes   *string          `json:"notes"`
}

// ToInput converts the body into the domain input.
func (r DepositRequest) ToInput() billing.DepositInput {
	return billing.DepositInput{
		Percent: r.Percent,
		Amount:  r.Amount,
		DueDate: r.DueDate.TimePtr(),
		Notes:   r.Notes,
	}
}

// QuotePositionResponse is the deposit position of a quote.
type QuotePositionResponse struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	TotalTTC         Money  `json:"totalTTC"`
	ExistingDeposits Money  `json:"existingDeposits"`
	RemainingBalance Money  `json:"remainingBalance"`
}

// DepositResponse is a created deposit invoice.
type DepositResponse struct {
	Invoice     DocumentResponse      `json:"invoice"`
	SourceQuote QuotePositionResponse `json:"sourceQuote"`
}

// FromDeposit maps a deposit result.
func FromDeposit(r *billing.DepositResult) DepositResponse {
	q := r.SourceQuote
	return DepositResponse{
		Invoice: FromDocument(r.Invoice),
		SourceQuote: QuotePositionResponse{
			ID:               q.ID.String(),
			Number:           q.Number,
			TotalTTC:         NewMoney(q.TotalTTC),
			ExistingDeposits: NewMoney(q.ExistingDeposits),
			RemainingBalance: NewMoney(q.RemainingBalance),
		},
	}
}

// DepositLineResponse is one deposit invoice of a quote.
type DepositLineResponse struct {
	ID         string    `json:"id"`
	Number     string    `json:"number"`
	Amount     Money     `json:"amount"`
	PaidAmount Money     `json:"paidAmount"`
	Balance    Money     `json:"balance"`
	Status     string    `json:"status"`
	Date       time.Time `json:"date"`
}

// DepositSummaryResponse is GET /documents/:id/deposit-invoice.
type DepositSummaryResponse struct {
	QuoteID            string                `json:"quoteId"`
	QuoteNumber        string                `json:"quoteNumber"`
	QuoteTotalTTC      Money                 `json:"quoteTotalTTC"`
	DepositInvoices    []DepositLineResponse `json:"depositInvoices"`
	TotalInvoiced      Money                 `json:"totalDepositsInvoiced"`
	TotalPaid          Money                 `json:"totalDepositsPaid"`
	RemainingToInvoice Money                 `json:"remainingToInvoice"`
	RemainingToPay     Money                 `json:"remainingToPay"`
	PercentInvoiced    int64                 `json:"percentInvoiced"`
	PercentPaid        int64                 `json:"percentPaid"`
}

// FromDepositSummary maps a deposit summary.
func FromDepositSummary(s *billing.DepositSummary) DepositSummaryResponse {
	out := DepositSummaryResponse{
		QuoteID:            s.QuoteID.String(),
		QuoteNumber:        s.QuoteNumber,
		QuoteTotalTTC:      NewMoney(s.QuoteTotalTTC),
		DepositInvoices:    make([]DepositLineResponse, 0, len(s.DepositInvoices)),
		TotalInvoiced:      NewMoney(s.TotalInvoiced),
		TotalPaid:          NewMoney(s.TotalPaid),
		RemainingToInvoice: NewMoney(s.RemainingToInvoice),
		RemainingToPay:     NewMoney(s.RemainingToPay),
		PercentInvoiced:    s.PercentInvoiced,
		PercentPaid:        s.PercentPaid,
	}
	for _, l := range s.DepositInvoices {
		out.DepositInvoices = append(out.DepositInvoices, DepositLineResponse{
			ID:         l.ID.String(),
			Number:     l.Number,
			Amount:     NewMoney(l.Amount),
			PaidAmount: NewMoney(l.PaidAmount),
			Balance:    NewMoney(l.Balance),
			Status:     string(l.Status),
			Date:       l.Date,
		})
	}
	return out
}

// FinalInvoiceRequest is the body of POST /documents/:id/final-invoice.
type FinalInvoiceRequest struct {
	ApplyDeposits bool     `json:"applyDeposits"`
	DepositIDs    []string `json:"depositInvoiceIds" binding:"omitempty,dive,uuid"`
	DueDate       *Date    `json:"dueDate"`
	Notes         *string  `json:"notes"`
}

// ToInput converts the body into the domain input.
func (r FinalInvoiceRequest) ToInput() (billing.FinalInvoiceInput, error) {
	in := billing.FinalInvoiceInput{
		ApplyDeposits: r.ApplyDeposits,
		DueDate:       r.DueDate.TimePtr(),
		Notes:         r.Notes,
	}
	for i, s := range r.DepositIDs {
		v, err := id.Parse(s)
		if err != nil {
			return in, &FieldFormatError{Field: "depositInvoiceIds[" + strconv.Itoa(i) + "]", Err: err}
		}
		in.DepositIDs = append(in.DepositIDs, v)
	}
	return in, nil
}

// AppliedDepositResponse is a deposit deducted from a final invoice.
type AppliedDepositResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Amount Money  `json:"amount"`
}

// FinalInvoiceResponse is a created final invoice.
type FinalInvoiceResponse struct {
	Invoice         DocumentResponse         `json:"invoice"`
	AppliedDeposits []AppliedDepositResponse `json:"appliedDeposits"`
	QuoteID         *id.ID                   `json:"quoteId,omitempty"`
}

// FromFinalInvoice maps a final invoice result.
func FromFinalInvoice(r *billing.FinalInvoiceResult) FinalInvoiceResponse {
	out := FinalInvoiceResponse{
		Invoice:         FromDocument(r.Invoice),
		AppliedDeposits: make([]AppliedDepositResponse, 0, len(r.AppliedDeposits)),
		QuoteID:         r.QuoteID,
	}
	for _, d := range r.AppliedDeposits {
		out.AppliedDeposits = append(out.AppliedDeposits, AppliedDepositResponse{
			ID: d.ID.String(), Number: d.Number, Amount: NewMoney(d.Amount),
		})
	}
	return out
}
