package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/types"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/events"
	"docflow/internal/domain/totals"
	"docflow/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

func checkQuote(quote *documents.Document) error {
	if quote.Type != documents.TypeQuote {
		return apperror.NewValidation("deposit invoices can only be created from a quote").
			WithCode(apperror.CodeInvalidSourceType).
			WithDetail("type", quote.Type)
	}
	return nil
}

// invoicedDeposits sums the TTC of the deposit invoices that still count.
func invoicedDeposits(invoices []*documents.Document) types.Money {
	sum := decimal.Zero
	for _, inv := range invoices {
		if inv.Status != documents.StatusCancelled {
			sum = sum.Add(inv.TotalTTC)
		}
	}
	return sum
}

// depositAmount resolves the requested deposit against the quote. The
// percent used is returned alongside.
func depositAmount(quote *documents.Document, in DepositInput) (types.Money, decimal.Decimal) {
	ttc := quote.TotalTTC
	if in.Amount != nil {
		amount := types.Round2(*in.Amount)
		pct := decimal.Zero
		if ttc.IsPositive() {
			pct = amount.Mul(hundred).Div(ttc).Round(2)
		}
		return amount, pct
	}

	pct := DefaultDepositPercent
	switch {
	case in.Percent != nil:
		pct = *in.Percent
	case quote.DepositPercent != nil && quote.DepositPercent.IsPositive():
		pct = *quote.DepositPercent
	}
	return types.Round2(types.Percent(ttc, pct)), pct
}

// CreateDepositInvoice issues a deposit invoice for an accepted quote.
func (s *Service) CreateDepositInvoice(ctx context.Context, quoteID id.ID, in DepositInput) (*DepositResult, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, apperror.NewValidation("deposit amount must be greater than zero").WithDetail("field", "depositAmount")
	}
	if in.Percent != nil && (!in.Percent.IsPositive() || in.Percent.GreaterThan(hundred)) {
		return nil, apperror.NewValidation("deposit percent must be between 0 and 100").WithDetail("field", "depositPercent")
	}

	var res *DepositResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		quote, err := s.repo.GetForUpdate(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := checkQuote(quote); err != nil {
			return err
		}
		if quote.Status != documents.StatusAccepted {
			return apperror.NewValidation("quote must be accepted to invoice a deposit").
				WithDetail("status", quote.Status)
		}

		existing, err := s.deposits.ListDepositInvoices(ctx, quote.ID)
		if err != nil {
			return fmt.Errorf("list deposit invoices: %w", err)
		}
		invoiced := invoicedDeposits(existing)

		amount, pct := depositAmount(quote, in)
		if !amount.IsPositive() {
			return apperror.NewValidation("deposit amount must be greater than zero").WithDetail("field", "depositAmount")
		}
		if invoiced.Add(amount).GreaterThan(quote.TotalTTC) {
			return apperror.NewBusinessRule(apperror.CodeDepositExceedsTotal,
				"deposit exceeds the amount left to invoice on the quote").
				WithDetail("requested", amount.StringFixed(2)).
				WithDetail("maxAllowed", quote.TotalTTC.Sub(invoiced).StringFixed(2))
		}

		inv := buildDepositInvoice(quote, amount, pct, in, s.docs.Now())
		if err := s.docs.Store(ctx, inv, documents.ModeIssue); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, documents.EntityType, inv.ID, audit.ActionCreate, map[string]any{
			"type":        inv.Type,
			"number":      inv.Number,
			"quoteId":     quote.ID,
			"quoteNumber": quote.Number,
			"amount":      amount.StringFixed(2),
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		if err := s.publish(ctx, inv.ID, events.DepositInvoiceCreated, map[string]any{
			"number":      inv.Number,
			"quoteId":     quote.ID,
			"quoteNumber": quote.Number,
			"amount":      amount.StringFixed(2),
		}); err != nil {
			return err
		}

		res = &DepositResult{
			Invoice: inv,
			SourceQuote: QuotePosition{
				ID:               quote.ID,
				Number:           quote.Number,
				TotalTTC:         quote.TotalTTC,
				ExistingDeposits: invoiced,
				RemainingBalance: quote.TotalTTC.Sub(invoiced).Sub(amount),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "deposit invoice created",
		"quote", res.SourceQuote.Number,
		"number", res.Invoice.Number,
		"amount", res.Invoice.TotalTTC.StringFixed(2))

	return res, nil
}

// buildDepositInvoice pro-rates the quote's VAT bands by amount/TTC into a
// single forfait line.
func buildDepositInvoice(quote *documents.Document, amount types.Money, pct decimal.Decimal, in DepositInput, now time.Time) *documents.Document {
	ratio := decimal.Zero
	if quote.TotalTTC.IsPositive() {
		ratio = amount.Div(quote.TotalTTC)
	}

	bands := make([]totals.Band, len(quote.TVADetails))
	for i, b := range quote.TVADetails {
		bands[i] = totals.Band{
			Rate:   b.Rate,
			Base:   types.Round2(b.Base.Mul(ratio)),
			Amount: types.Round2(b.Amount.Mul(ratio)),
		}
	}
	vat := types.Round2(quote.TotalTVA.Mul(ratio))
	net := amount.Sub(vat)

	rate := documents.DefaultTVARate
	if vat.IsPositive() && net.IsPositive() {
		rate = vat.Mul(hundred).Div(net).Round(2)
	}

	inv := documents.NewDocument(documents.TypeDepositInvoice)
	inv.Date = now
	documents.CopyClient(inv, quote)
	inv.ParentID = &quote.ID
	inv.LinkedQuoteID = &quote.ID
	documents.ChainRefs(inv, quote)
	inv.DueDate = in.DueDate
	inv.Conditions = quote.Conditions

	notes := fmt.Sprintf("Deposit of %s%% on quote %s", pct.Round(0).String(), quote.Number)
	if in.Notes != nil && *in.Notes != "" {
		notes = *in.Notes
	}
	inv.Notes = &notes

	description := fmt.Sprintf("Deposit of %s%% on the quote total of %s", pct.Round(0).String(), quote.TotalTTC.StringFixed(2))
	inv.Items = []documents.Item{{
		ID:              id.New(),
		Designation:     "Deposit on quote " + quote.Number,
		Description:     &description,
		Unit:            DepositUnit,
		Quantity:        decimal.NewFromInt(1),
		UnitPriceHT:     net,
		DiscountPercent: decimal.Zero,
		TVARate:         rate,
		DiscountAmount:  decimal.Zero,
		TotalHT:         net,
		TotalTVA:        vat,
		TotalTTC:        amount,
	}}

	inv.TotalHT = net
	inv.DiscountAmount = decimal.Zero
	inv.NetHT = net
	inv.TotalTVA = vat
	inv.TotalTTC = amount
	inv.TVADetails = bands
	depositPct := pct
	inv.DepositPercent = &depositPct
	depositAmt := amount
	inv.DepositAmount = &depositAmt
	inv.RecomputeBalance()
	return inv
}

// DepositSummary reports the deposit position of a quote.
func (s *Service) DepositSummary(ctx context.Context, quoteID id.ID) (*DepositSummary, error) {
	quote, err := s.repo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if err := checkQuote(quote); err != nil {
		return nil, err
	}
	invoices, err := s.deposits.ListDepositInvoices(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("list deposit invoices: %w", err)
	}

	sum := &DepositSummary{
		QuoteID:         quote.ID,
		QuoteNumber:     quote.Number,
		QuoteTotalTTC:   quote.TotalTTC,
		DepositInvoices: make([]DepositLine, 0, len(invoices)),
		TotalInvoiced:   invoicedDeposits(invoices),
		TotalPaid:       decimal.Zero,
	}
	for _, inv := range invoices {
		sum.DepositInvoices = append(sum.DepositInvoices, DepositLine{
			ID:         inv.ID,
			Number:     inv.Number,
			Amount:     inv.TotalTTC,
			PaidAmount: inv.PaidAmount,
			Balance:    inv.Balance,
			Status:     inv.Status,
			Date:       inv.Date,
		})
		if inv.Status != documents.StatusCancelled {
			sum.TotalPaid = sum.TotalPaid.Add(inv.PaidAmount)
		}
	}
	sum.RemainingToInvoice = quote.TotalTTC.Sub(sum.TotalInvoiced)
	sum.RemainingToPay = sum.TotalInvoiced.Sub(sum.TotalPaid)
	if quote.TotalTTC.IsPositive() {
		sum.PercentInvoiced = sum.TotalInvoiced.Mul(hundred).Div(quote.TotalTTC).Round(0).IntPart()
		sum.PercentPaid = sum.TotalPaid.Mul(hundred).Div(quote.TotalTTC).Round(0).IntPart()
	}
	return sum, nil
}
