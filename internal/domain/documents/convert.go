package documents

import (
	"context"
	"fmt"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

var conversions = map[Type][]Type{
	TypeQuote:            {TypePurchaseOrder},
	TypePurchaseOrder:    {TypeDeliveryNote, TypeInvoice},
	TypeDeliveryNote:     {TypeAcceptanceReport, TypeInvoice},
	TypeAcceptanceReport: {TypeInvoice},
	TypeInvoice:          {TypeCreditNote},
}

var convertibleStatuses = map[Type][]Status{
	TypeQuote:            {StatusAccepted},
	TypePurchaseOrder:    {StatusConfirmed, StatusPartial},
	TypeDeliveryNote:     {StatusDelivered, StatusPartial},
	TypeAcceptanceReport: {StatusSigned},
	TypeInvoice:          {StatusPaid, StatusPartial, StatusOverdue},
}

// ConversionTargets lists the types a document of type t converts into.
func ConversionTargets(t Type) []Type {
	out := make([]Type, len(conversions[t]))
	copy(out, conversions[t])
	return out
}

func checkConversion(source *Document, target Type) error {
	allowed := false
	for _, t := range conversions[source.Type] {
		if t == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperror.NewValidation(fmt.Sprintf("%s cannot be converted to %s", source.Type, target)).
			WithCode(apperror.CodeInvalidSourceType).
			WithDetail("sourceType", source.Type).
			WithDetail("targetType", target).
			WithDetail("allowed", conversions[source.Type])
	}

	for _, st := range convertibleStatuses[source.Type] {
		if st == source.Status {
			return nil
		}
	}
	return apperror.NewStateConflict(apperror.CodeStateConflict,
		fmt.Sprintf("%s in status %s cannot be converted", source.Type, source.Status)).
		WithDetail("status", source.Status).
		WithDetail("required", convertibleStatuses[source.Type])
}

// selectItems copies the requested lines of the source. With no selection
// every line is copied with its full quantity.
func selectItems(source []Item, selection []ConvertItem) ([]Item, error) {
	if len(selection) == 0 {
		out := make([]Item, len(source))
		for i, it := range source {
			out[i] = CopyItem(it)
		}
		return out, nil
	}

	byID := make(map[id.ID]Item, len(source))
	for _, it := range source {
		byID[it.ID] = it
	}

	out := make([]Item, 0, len(selection))
	for _, sel := range selection {
		src, ok := byID[sel.ItemID]
		if !ok {
			return nil, apperror.NewValidation("item does not belong to the source document").
				WithCode(apperror.CodeUnknownLineItem).
				WithDetail("itemId", sel.ItemID)
		}
		if sel.Quantity.IsNegative() {
			return nil, apperror.NewValidation("quantity must not be negative").
				WithDetail("itemId", sel.ItemID)
		}
		if sel.Quantity.IsZero() {
			continue
		}
		if sel.Quantity.GreaterThan(src.Quantity) {
			return nil, apperror.NewValidation(fmt.Sprintf("quantity %s exceeds the source quantity %s",
				sel.Quantity, src.Quantity)).
				WithDetail("itemId", sel.ItemID).
				WithDetail("designation", src.Designation)
		}
		cp := CopyItem(src)
		cp.Quantity = sel.Quantity
		out = append(out, cp)
	}
	return out, nil
}

// CopyItem copies the description and pricing of src into a new line.
func CopyItem(src Item) Item {
	return Item{
		ID:              id.New(),
		Reference:       src.Reference,
		Designation:     src.Designation,
		Description:     src.Description,
		Unit:            src.Unit,
		Quantity:        src.Quantity,
		UnitPriceHT:     src.UnitPriceHT,
		DiscountPercent: src.DiscountPercent,
		TVARate:         src.TVARate,
		CatalogItemID:   src.CatalogItemID,
	}
}

// Convert creates a draft successor of a document.
func (s *Service) Convert(ctx context.Context, sourceID id.ID, in ConvertInput) (*Document, error) {
	source, err := s.GetDocument(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := checkConversion(source, in.TargetType); err != nil {
		return nil, err
	}

	items, err := selectItems(source.Items, in.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperror.NewValidation("no items selected for conversion").WithDetail("field", "items")
	}

	child := NewDocument(in.TargetType)
	child.Date = s.now()
	CopyClient(child, source)
	child.ParentID = &source.ID
	ChainRefs(child, source)

	child.DueDate = source.DueDate
	if in.DueDate != nil {
		child.DueDate = in.DueDate
	}
	child.DeliveryDate = pick(in.DeliveryDate, source.DeliveryDate)
	child.DeliveryAddress = pick(in.DeliveryAddress, source.DeliveryAddress)
	child.DeliveryCity = pick(in.DeliveryCity, source.DeliveryCity)
	child.DeliveryNotes = pick(in.DeliveryNotes, source.DeliveryNotes)
	child.DiscountType = source.DiscountType
	child.DiscountValue = source.DiscountValue
	child.Conditions = source.Conditions
	if in.TargetType == TypeCreditNote && in.Reason != nil {
		child.Notes = in.Reason
	}

	child.Items = items
	child.Recalculate()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.Store(ctx, child, ModeDraft); err != nil {
			return err
		}
		changes := createdChanges(child)
		changes["sourceId"] = source.ID
		changes["sourceNumber"] = source.Number
		if err := s.audit.LogChange(ctx, EntityType, child.ID, audit.ActionCreate, changes); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return s.publish(ctx, child, events.DocumentConverted, map[string]any{
			"sourceId":     source.ID,
			"sourceNumber": source.Number,
			"sourceType":   source.Type,
			"targetType":   child.Type,
			"number":       child.Number,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document converted",
		"source", source.Number,
		"target_type", child.Type,
		"id", child.ID,
		"number", child.Number)

	return child, nil
}

func pick[T any](override, fallback *T) *T {
	if override != nil {
		return override
	}
	return fallback
}
