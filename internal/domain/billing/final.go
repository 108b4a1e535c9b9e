package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

// maxChainDepth bounds the walk from a source document up to its quote.
const maxChainDepth = 4

var finalInvoiceSources = map[documents.Type][]documents.Status{
	documents.TypePurchaseOrder:    {documents.StatusConfirmed, documents.StatusPartial, documents.StatusDelivered},
	documents.TypeDeliveryNote:     {documents.StatusDelivered},
	documents.TypeAcceptanceReport: {documents.StatusSigned},
}

func checkFinalSource(source *documents.Document) error {
	statuses, ok := finalInvoiceSources[source.Type]
	if !ok {
		return apperror.NewValidation("final invoices can only be created from an order, a delivery note or an acceptance report").
			WithCode(apperror.CodeInvalidSourceType).
			WithDetail("type", source.Type)
	}
	for _, st := range statuses {
		if st == source.Status {
			return nil
		}
	}
	return apperror.NewValidation(fmt.Sprintf("%s in status %s cannot be invoiced", source.Type, source.Status)).
		WithDetail("status", source.Status).
		WithDetail("required", statuses)
}

// findQuote walks the parent chain of doc up to the originating quote.
func (s *Service) findQuote(ctx context.Context, doc *documents.Document) (*documents.Document, error) {
	current := doc
	for range maxChainDepth {
		if current.ParentID == nil {
			return nil, nil
		}
		parent, err := s.repo.GetByID(ctx, *current.ParentID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		if parent.Type == documents.TypeQuote {
			return parent, nil
		}
		current = parent
	}
	return nil, nil
}

// depositsToApply selects the paid deposit invoices deducted from the final invoice.
func (s *Service) depositsToApply(ctx context.Context, source *documents.Document, in FinalInvoiceInput) ([]*documents.Document, *id.ID, error) {
	if len(in.DepositIDs) > 0 {
		out := make([]*documents.Document, 0, len(in.DepositIDs))
		for _, depositID := range in.DepositIDs {
			dep, err := s.repo.GetByID(ctx, depositID)
			if err != nil {
				return nil, nil, err
			}
			if dep.Type != documents.TypeDepositInvoice || dep.Status != documents.StatusPaid {
				return nil, nil, apperror.NewValidation("only paid deposit invoices can be applied").
					WithDetail("depositId", depositID).
					WithDetail("status", dep.Status)
			}
			out = append(out, dep)
		}
		return out, nil, nil
	}
	if !in.ApplyDeposits {
		return nil, nil, nil
	}

	quote, err := s.findQuote(ctx, source)
	if err != nil || quote == nil {
		return nil, nil, err
	}
	invoices, err := s.deposits.ListDepositInvoices(ctx, quote.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list deposit invoices: %w", err)
	}
	var out []*documents.Document
	for _, inv := range invoices {
		if inv.Status == documents.StatusPaid {
			out = append(out, inv)
		}
	}
	return out, &quote.ID, nil
}

// CreateFinalInvoice issues the invoice of a delivered order, deducting the
// deposits already paid on its quote.
func (s *Service) CreateFinalInvoice(ctx context.Context, sourceID id.ID, in FinalInvoiceInput) (*FinalInvoiceResult, error) {
	var res *FinalInvoiceResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, err := s.repo.GetForUpdate(ctx, sourceID)
		if err != nil {
			return err
		}
		if err := checkFinalSource(source); err != nil {
			return err
		}
		if source.Items, err = s.repo.GetItems(ctx, sourceID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}

		deposits, quoteID, err := s.depositsToApply(ctx, source, in)
		if err != nil {
			return err
		}

		inv := documents.NewDocument(documents.TypeInvoice)
		inv.Date = s.docs.Now()
		documents.CopyClient(inv, source)
		inv.ParentID = &source.ID
		documents.ChainRefs(inv, source)
		inv.DueDate = in.DueDate
		inv.Notes = in.Notes
		inv.Conditions = source.Conditions
		inv.DiscountType = source.DiscountType
		inv.DiscountValue = source.DiscountValue
		for _, it := range source.Items {
			inv.Items = append(inv.Items, documents.CopyItem(it))
		}

		applied := make([]AppliedDeposit, 0, len(deposits))
		inv.DepositsApplied = decimal.Zero
		for _, dep := range deposits {
			inv.DepositsApplied = inv.DepositsApplied.Add(dep.PaidAmount)
			applied = append(applied, AppliedDeposit{ID: dep.ID, Number: dep.Number, Amount: dep.PaidAmount})
		}
		if len(deposits) == 1 {
			inv.LinkedQuoteID = deposits[0].LinkedQuoteID
		} else if quoteID != nil {
			inv.LinkedQuoteID = quoteID
		}
		inv.Recalculate()

		if err := s.docs.Store(ctx, inv, documents.ModeIssue); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, documents.EntityType, inv.ID, audit.ActionCreate, map[string]any{
			"type":            inv.Type,
			"number":          inv.Number,
			"sourceId":        source.ID,
			"sourceNumber":    source.Number,
			"depositsApplied": inv.DepositsApplied.StringFixed(2),
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		if err := s.publish(ctx, inv.ID, events.FinalInvoiceCreated, map[string]any{
			"number":          inv.Number,
			"sourceId":        source.ID,
			"sourceNumber":    source.Number,
			"totalTTC":        inv.TotalTTC.StringFixed(2),
			"depositsApplied": inv.DepositsApplied.StringFixed(2),
		}); err != nil {
			return err
		}

		res = &FinalInvoiceResult{Invoice: inv, AppliedDeposits: applied, QuoteID: quoteID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "final invoice created",
		"number", res.Invoice.Number,
		"total_ttc", res.Invoice.TotalTTC.StringFixed(2),
		"deposits_applied", res.Invoice.DepositsApplied.StringFixed(2))

	return res, nil
}
