package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

// CanEdit reports whether the content of d may be changed.
func CanEdit(d *Document) error {
	switch {
	case d.IsLocked:
		return apperror.NewStateConflict(apperror.CodeDocumentLocked,
			"document is locked and can only be cancelled").
			WithDetail("number", d.Number)
	case !d.IsDraft:
		return apperror.NewStateConflict(apperror.CodeStateConflict,
			"issued document can only be cancelled").
			WithDetail("number", d.Number)
	case d.Status == StatusPaid || d.Status == StatusSigned || d.Status == StatusCancelled:
		return apperror.NewStateConflict(apperror.CodeStateConflict,
			fmt.Sprintf("document in status %s cannot be modified", d.Status)).
			WithDetail("status", d.Status)
	}
	return nil
}

// CanDelete reports whether d may be removed given its dependents.
func CanDelete(d *Document, children, payments int) error {
	if d.IsLocked || !d.IsDraft || d.Status != StatusDraft {
		return apperror.NewStateConflict(apperror.CodeDocumentLocked,
			"only unlocked drafts can be deleted").
			WithDetail("number", d.Number).
			WithDetail("status", d.Status)
	}
	if children > 0 {
		return apperror.NewStateConflict(apperror.CodeStateConflict,
			"document has dependent documents").
			WithDetail("children", children)
	}
	if payments > 0 {
		return apperror.NewStateConflict(apperror.CodeStateConflict,
			"document has recorded payments").
			WithDetail("payments", payments)
	}
	return nil
}

// Update applies a partial patch to a document.
func (s *Service) Update(ctx context.Context, docID id.ID, in UpdateInput) (*Document, error) {
	if err := validatePricing(in.DiscountType, in.DiscountValue, in.DepositPercent); err != nil {
		return nil, err
	}
	if in.Items != nil {
		if err := validateItems(*in.Items); err != nil {
			return nil, err
		}
	}

	var (
		doc     *Document
		changed []string
		from    Status
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.repo.GetForUpdate(ctx, docID); err != nil {
			return err
		}
		if in.Version != nil && *in.Version != doc.Version {
			return apperror.NewConcurrentModification(EntityType, docID)
		}
		if !in.IsCancellationOnly() {
			if err := CanEdit(doc); err != nil {
				return err
			}
		}
		if in.Items != nil {
			children, err := s.repo.CountChildren(ctx, docID)
			if err != nil {
				return fmt.Errorf("count children: %w", err)
			}
			if children > 0 {
				return apperror.NewStateConflict(apperror.CodeStateConflict,
					"items of a document with dependent documents cannot be replaced").
					WithDetail("children", children)
			}
		}
		if doc.Items, err = s.repo.GetItems(ctx, docID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		from = doc.Status

		if changed, err = s.applyPatch(ctx, doc, in); err != nil {
			return err
		}

		if in.touchesPricing() {
			doc.Recalculate()
			if err := checkDiscount(doc); err != nil {
				return err
			}
			if doc.TotalTTC.LessThan(doc.PaidAmount) {
				return apperror.NewBusinessRule(apperror.CodePaymentExceedsBalance,
					"new total is lower than the amount already paid").
					WithDetail("totalTTC", doc.TotalTTC.StringFixed(2)).
					WithDetail("paidAmount", doc.PaidAmount.StringFixed(2))
			}
		}
		if in.Items != nil {
			if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
				return fmt.Errorf("save items: %w", err)
			}
		}

		now := s.now()
		if in.Status != nil && *in.Status != doc.Status {
			if err := s.applyTransition(ctx, doc, *in.Status, in.Reason, now); err != nil {
				return err
			}
			changed = append(changed, "status")
		}

		doc.UpdatedAt = now
		audit.EnrichUpdated(ctx, &doc.BaseDocument)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if from != doc.Status {
			if err := s.reconcileOrder(ctx, doc); err != nil {
				return err
			}
		}

		changes := map[string]any{"fields": changed}
		if from != doc.Status {
			changes["from"] = from
			changes["to"] = doc.Status
		}
		if err := s.audit.LogChange(ctx, EntityType, doc.ID, audit.ActionUpdate, changes); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, doc, events.DocumentUpdated, map[string]any{
			"number": doc.Number,
			"fields": changed,
			"status": doc.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document updated",
		"id", doc.ID,
		"number", doc.Number,
		"fields", strings.Join(changed, ","))

	return doc, nil
}

// applyPatch copies the set fields of in onto doc and returns their names.
func (s *Service) applyPatch(ctx context.Context, doc *Document, in UpdateInput) ([]string, error) {
	var changed []string
	mark := func(name string) { changed = append(changed, name) }

	if in.ClientID != nil {
		if err := s.resolveClient(ctx, doc, in.ClientID); err != nil {
			return nil, err
		}
		mark("clientId")
	}
	if in.ProjectID != nil {
		if err := s.resolveProject(ctx, doc, in.ProjectID); err != nil {
			return nil, err
		}
		mark("projectId")
	}

	setTime := func(name string, dst **time.Time, v *time.Time) {
		if v != nil {
			*dst = v
			mark(name)
		}
	}
	setText := func(name string, dst **string, v *string) {
		if v != nil {
			*dst = v
			mark(name)
		}
	}
	setDecimal := func(name string, dst **decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = v
			mark(name)
		}
	}

	if in.Date != nil {
		doc.Date = *in.Date
		mark("date")
	}
	setTime("validUntil", &doc.ValidUntil, in.ValidUntil)
	setTime("dueDate", &doc.DueDate, in.DueDate)
	setTime("deliveryDate", &doc.DeliveryDate, in.DeliveryDate)
	setText("notes", &doc.Notes, in.Notes)
	setText("conditions", &doc.Conditions, in.Conditions)
	setText("deliveryAddress", &doc.DeliveryAddress, in.DeliveryAddress)
	setText("deliveryCity", &doc.DeliveryCity, in.DeliveryCity)
	setText("deliveryNotes", &doc.DeliveryNotes, in.DeliveryNotes)
	setText("receivedBy", &doc.ReceivedBy, in.ReceivedBy)
	setText("signedBy", &doc.SignedBy, in.SignedBy)

	if in.DiscountType != nil {
		if *in.DiscountType == "" {
			doc.DiscountType = nil
		} else {
			dt := *in.DiscountType
			doc.DiscountType = &dt
		}
		mark("discountType")
	}
	setDecimal("discountValue", &doc.DiscountValue, in.DiscountValue)
	setDecimal("depositPercent", &doc.DepositPercent, in.DepositPercent)

	if in.Items != nil {
		doc.Items = buildItems(doc.ID, *in.Items)
		mark("items")
	}
	return changed, nil
}

// ChangeStatus moves a document to a new status through the transition table.
func (s *Service) ChangeStatus(ctx context.Context, docID id.ID, target Status, reason string) (*Document, error) {
	var (
		doc  *Document
		from Status
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.repo.GetForUpdate(ctx, docID); err != nil {
			return err
		}
		if doc.Items, err = s.repo.GetItems(ctx, docID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		from = doc.Status
		wasDraft := doc.IsDraft

		now := s.now()
		if err := s.applyTransition(ctx, doc, target, reason, now); err != nil {
			return err
		}
		doc.UpdatedAt = now
		audit.EnrichUpdated(ctx, &doc.BaseDocument)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.reconcileOrder(ctx, doc); err != nil {
			return err
		}

		changes := map[string]any{"from": from, "to": target}
		if strings.TrimSpace(reason) != "" {
			changes["reason"] = reason
		}
		if wasDraft && !doc.IsDraft {
			changes["number"] = doc.Number
		}
		if err := s.audit.LogChange(ctx, EntityType, doc.ID, audit.ActionStatusChange, changes); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, doc, events.DocumentStatusChanged, map[string]any{
			"number": doc.Number,
			"from":   from,
			"to":     target,
			"issued": wasDraft && !doc.IsDraft,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document status changed",
		"id", doc.ID,
		"number", doc.Number,
		"from", from,
		"to", target)

	return doc, nil
}

// applyTransition checks and applies a status change with its side effects.
// doc.Items must be loaded.
func (s *Service) applyTransition(ctx context.Context, doc *Document, target Status, reason string, now time.Time) error {
	if err := CanTransition(doc, target, reason); err != nil {
		return err
	}

	if target == StatusConfirmed && doc.IsDraft {
		if missing := missingForConfirmation(doc); len(missing) > 0 {
			return apperror.NewBusinessRule(apperror.CodeIncompleteDocument,
				"document is incomplete and cannot be confirmed").
				WithDetail("errors", missing)
		}
		if err := s.assignOfficialNumber(ctx, doc, now); err != nil {
			return err
		}
	}

	at := now
	switch target {
	case StatusSent:
		doc.SentAt = &at
	case StatusPaid:
		doc.PaidAt = &at
		doc.PaidAmount = doc.TotalTTC
		doc.Balance = decimal.Zero
	case StatusCancelled:
		doc.CancelledAt = &at
		if r := strings.TrimSpace(reason); r != "" {
			doc.CancellationReason = &r
		}
	case StatusSigned:
		if doc.SignedAt == nil {
			doc.SignedAt = &at
		}
	}
	doc.Status = target
	return nil
}

// OrderStatusFor derives the delivery status of a purchase order from the
// quantities delivered per order line.
func OrderStatusFor(items []Item, delivered map[id.ID]decimal.Decimal) Status {
	some, full := false, len(items) > 0
	for _, it := range items {
		qty := delivered[it.ID]
		if qty.IsPositive() {
			some = true
		}
		if qty.LessThan(it.Quantity) {
			full = false
		}
	}
	switch {
	case full:
		return StatusDelivered
	case some:
		return StatusPartial
	default:
		return StatusConfirmed
	}
}

// reconcileOrder recomputes the status of the purchase order a cancelled
// delivery note was delivered against. It runs in the caller's transaction.
func (s *Service) reconcileOrder(ctx context.Context, note *Document) error {
	if note.Type != TypeDeliveryNote || note.Status != StatusCancelled || note.ParentID == nil {
		return nil
	}
	order, err := s.repo.GetForUpdate(ctx, *note.ParentID)
	if err != nil {
		return err
	}
	if order.Type != TypePurchaseOrder || (order.Status != StatusPartial && order.Status != StatusDelivered) {
		return nil
	}
	if order.Items, err = s.repo.GetItems(ctx, order.ID); err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	children, err := s.repo.ListChildren(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}

	delivered := make(map[id.ID]decimal.Decimal)
	for _, c := range children {
		if c.Type != TypeDeliveryNote || c.Status == StatusCancelled || c.ID == note.ID {
			continue
		}
		lines, err := s.repo.GetItems(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("get delivery note items: %w", err)
		}
		for _, l := range lines {
			if l.SourceOrderItemID != nil {
				delivered[*l.SourceOrderItemID] = delivered[*l.SourceOrderItemID].Add(l.Quantity)
			}
		}
	}

	from := order.Status
	order.Status = OrderStatusFor(order.Items, delivered)
	if order.Status == from {
		return nil
	}
	order.UpdatedAt = s.now()
	audit.EnrichUpdated(ctx, &order.BaseDocument)
	if err := s.repo.Update(ctx, order); err != nil {
		return err
	}
	if err := s.audit.LogChange(ctx, EntityType, order.ID, audit.ActionStatusChange, map[string]any{
		"from":               from,
		"to":                 order.Status,
		"reason":             "delivery note cancelled",
		"deliveryNoteId":     note.ID,
		"deliveryNoteNumber": note.Number,
	}); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	logger.Info(ctx, "order delivery status recomputed",
		"order", order.Number,
		"delivery_note", note.Number,
		"from", from,
		"to", order.Status)

	return s.publish(ctx, order, events.DocumentStatusChanged, map[string]any{
		"number": order.Number,
		"from":   from,
		"to":     order.Status,
	})
}

// Delete removes an unlocked draft without dependents.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	var doc *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.repo.GetForUpdate(ctx, docID); err != nil {
			return err
		}
		children, err := s.repo.CountChildren(ctx, docID)
		if err != nil {
			return fmt.Errorf("count children: %w", err)
		}
		payments := 0
		if s.payments != nil {
			if payments, err = s.payments.CountByDocument(ctx, docID); err != nil {
				return fmt.Errorf("count payments: %w", err)
			}
		}
		if err := CanDelete(doc, children, payments); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return err
		}
		if err := s.audit.LogChange(ctx, EntityType, doc.ID, audit.ActionDelete, map[string]any{
			"type":   doc.Type,
			"number": doc.Number,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, doc, events.DocumentDeleted, map[string]any{"number": doc.Number})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document deleted", "id", docID, "number", doc.Number)
	return nil
}

// IssueResult reports the number change of an issued draft.
type IssueResult struct {
	Document       *Document `json:"document"`
	PreviousNumber string    `json:"previousNumber"`
	OfficialNumber string    `json:"officialNumber"`
}

// Issue gives a draft its official number and locks it.
func (s *Service) Issue(ctx context.Context, docID id.ID) (*IssueResult, error) {
	var (
		doc      *Document
		previous string
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.repo.GetForUpdate(ctx, docID); err != nil {
			return err
		}
		if doc.IsLocked {
			return apperror.NewStateConflict(apperror.CodeDocumentLocked, "document is already locked").
				WithDetail("number", doc.Number)
		}
		if !doc.IsDraft {
			return apperror.NewStateConflict(apperror.CodeStateConflict, "document already has an official number").
				WithDetail("number", doc.Number)
		}
		if doc.Items, err = s.repo.GetItems(ctx, docID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		if missing := missingForIssue(doc); len(missing) > 0 {
			return apperror.NewStateConflict(apperror.CodeIncompleteDocument, "document cannot be issued").
				WithDetail("errors", missing)
		}

		previous = doc.Number
		now := s.now()
		if err := s.assignOfficialNumber(ctx, doc, now); err != nil {
			return err
		}
		doc.Status = IssuedStatus(doc.Type, doc.Status)
		doc.UpdatedAt = now
		audit.EnrichUpdated(ctx, &doc.BaseDocument)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, EntityType, doc.ID, audit.ActionIssue, map[string]any{
			"previousNumber": previous,
			"number":         doc.Number,
			"contentHash":    *doc.ContentHash,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, doc, events.DocumentIssued, map[string]any{
			"previousNumber": previous,
			"number":         doc.Number,
			"status":         doc.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document issued",
		"id", doc.ID,
		"number", doc.Number,
		"draft_number", previous)

	return &IssueResult{Document: doc, PreviousNumber: previous, OfficialNumber: doc.Number}, nil
}
