package billing

import (
	"context"
	"fmt"

	"docflow/internal/core/apperror"
	appctx "docflow/internal/core/context"
	"docflow/internal/core/id"
	"docflow/internal/core/tx"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

// Config wires the billing service.
type Config struct {
	Documents *documents.Service
	Repo      documents.Repository
	Payments  documents.PaymentRepository
	Deposits  Repository
	TxManager tx.Manager
	Audit     audit.Recorder
	Events    events.Publisher
}

// Service provides payments and invoice generation.
type Service struct {
	docs      *documents.Service
	repo      documents.Repository
	payments  documents.PaymentRepository
	deposits  Repository
	txManager tx.Manager
	audit     audit.Recorder
	events    events.Publisher
}

// NewService creates a new billing service.
func NewService(cfg Config) *Service {
	s := &Service{
		docs:      cfg.Documents,
		repo:      cfg.Repo,
		payments:  cfg.Payments,
		deposits:  cfg.Deposits,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		events:    cfg.Events,
	}
	if s.txManager == nil {
		s.txManager = tx.Nop{}
	}
	if s.audit == nil {
		s.audit = audit.NopRecorder{}
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	return s
}

func (s *Service) publish(ctx context.Context, docID id.ID, eventType string, payload map[string]any) error {
	err := s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateDocument,
		AggregateID:   docID,
		Type:          eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func isPayable(t documents.Type) bool {
	return t == documents.TypeInvoice || t == documents.TypeDepositInvoice
}

// RecordPayment records an amount received against an invoice.
func (s *Service) RecordPayment(ctx context.Context, invoiceID id.ID, in PaymentInput) (*PaymentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be greater than zero").WithDetail("field", "amount")
	}
	if in.Method == "" {
		in.Method = documents.MethodBankTransfer
	}
	if !in.Method.IsValid() {
		return nil, apperror.NewValidation(fmt.Sprintf("unknown payment method %q", in.Method)).
			WithDetail("field", "method")
	}

	var res *PaymentResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !isPayable(doc.Type) {
			return apperror.NewValidation("only invoices accept payments").
				WithCode(apperror.CodeInvalidSourceType).
				WithDetail("type", doc.Type)
		}
		if doc.IsDraft || doc.Status == documents.StatusCancelled {
			return apperror.NewStateConflict(apperror.CodeStateConflict,
				"payments can only be recorded on issued invoices").
				WithDetail("status", doc.Status)
		}
		if in.Amount.GreaterThan(doc.Balance) {
			return apperror.NewValidation(fmt.Sprintf("amount %s exceeds the remaining balance %s",
				in.Amount.StringFixed(2), doc.Balance.StringFixed(2))).
				WithCode(apperror.CodePaymentExceedsBalance).
				WithDetail("amount", in.Amount.StringFixed(2)).
				WithDetail("balance", doc.Balance.StringFixed(2))
		}

		now := s.docs.Now()
		p := &documents.Payment{
			ID:         id.New(),
			DocumentID: doc.ID,
			Amount:     in.Amount,
			Method:     in.Method,
			Reference:  in.Reference,
			PaidAt:     now,
			Notes:      in.Notes,
			CreatedAt:  now,
		}
		if in.PaidAt != nil {
			p.PaidAt = *in.PaidAt
		}
		if userID := appctx.GetUserID(ctx); userID != "" {
			p.CreatedBy = &userID
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		from := doc.Status
		doc.PaidAmount = doc.PaidAmount.Add(in.Amount)
		doc.RecomputeBalance()
		if doc.Balance.IsPositive() {
			doc.Status = documents.StatusPartial
		} else {
			doc.Status = documents.StatusPaid
			paidAt := now
			doc.PaidAt = &paidAt
		}
		doc.UpdatedAt = now
		audit.EnrichUpdated(ctx, &doc.BaseDocument)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, documents.EntityType, doc.ID, audit.ActionPayment, map[string]any{
			"paymentId":  p.ID,
			"amount":     p.Amount.StringFixed(2),
			"method":     p.Method,
			"paidAmount": doc.PaidAmount.StringFixed(2),
			"from":       from,
			"to":         doc.Status,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		if err := s.publish(ctx, doc.ID, events.PaymentRecorded, map[string]any{
			"paymentId": p.ID,
			"number":    doc.Number,
			"amount":    p.Amount.StringFixed(2),
			"balance":   doc.Balance.StringFixed(2),
			"status":    doc.Status,
		}); err != nil {
			return err
		}

		res = &PaymentResult{Payment: p, Document: doc}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"invoice", res.Document.Number,
		"amount", res.Payment.Amount.StringFixed(2),
		"status", res.Document.Status)

	return res, nil
}

// DeletePayment reverses a payment of an invoice.
func (s *Service) DeletePayment(ctx context.Context, invoiceID, paymentID id.ID) (*documents.Document, error) {
	var doc *documents.Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.repo.GetForUpdate(ctx, invoiceID); err != nil {
			return err
		}
		if doc.Status == documents.StatusCancelled {
			return apperror.NewStateConflict(apperror.CodeStateConflict,
				"payments of a cancelled document cannot be removed").
				WithDetail("number", doc.Number).
				WithDetail("status", doc.Status)
		}
		p, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.DocumentID != doc.ID {
			return apperror.NewValidation("payment does not belong to this document").
				WithDetail("paymentId", paymentID)
		}
		if err := s.payments.Delete(ctx, paymentID); err != nil {
			return err
		}

		from := doc.Status
		doc.PaidAmount = doc.PaidAmount.Sub(p.Amount)
		doc.RecomputeBalance()
		if doc.PaidAmount.IsPositive() {
			doc.Status = documents.StatusPartial
		} else {
			doc.Status = documents.StatusSent
		}
		doc.PaidAt = nil
		doc.UpdatedAt = s.docs.Now()
		audit.EnrichUpdated(ctx, &doc.BaseDocument)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, documents.EntityType, doc.ID, audit.ActionPaymentUndo, map[string]any{
			"paymentId": p.ID,
			"amount":    p.Amount.StringFixed(2),
			"from":      from,
			"to":        doc.Status,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, doc.ID, events.PaymentDeleted, map[string]any{
			"paymentId": p.ID,
			"number":    doc.Number,
			"balance":   doc.Balance.StringFixed(2),
			"status":    doc.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment deleted", "invoice", doc.Number, "payment", paymentID)
	return doc, nil
}

// ListPayments returns the payments of a document, newest first.
func (s *Service) ListPayments(ctx context.Context, docID id.ID) ([]documents.Payment, error) {
	if _, err := s.repo.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []documents.Payment{}
	}
	return payments, nil
}
