package delivery

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/tx"
	"docflow/internal/core/types"
	"docflow/internal/domain/audit"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Config wires the delivery service.
type Config struct {
	// Documents numbers and stores delivery notes
	Documents  *documents.Service
	Repo       documents.Repository
	Deliveries Repository
	Locker     Locker
	TxManager  tx.Manager
	Audit      audit.Recorder
	Events     events.Publisher
}

// Service creates partial deliveries and reports delivery progress.
type Service struct {
	docs       *documents.Service
	repo       documents.Repository
	deliveries Repository
	locker     Locker
	txManager  tx.Manager
	audit      audit.Recorder
	events     events.Publisher
}

// NewService creates a new delivery service.
func NewService(cfg Config) *Service {
	s := &Service{
		docs:       cfg.Documents,
		repo:       cfg.Repo,
		deliveries: cfg.Deliveries,
		locker:     cfg.Locker,
		txManager:  cfg.TxManager,
		audit:      cfg.Audit,
		events:     cfg.Events,
	}
	if s.locker == nil {
		s.locker = NopLocker{}
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

// position is the delivery state of one order line before the request.
type position struct {
	item      documents.Item
	delivered types.Quantity
	requested types.Quantity
}

func (p position) remaining() types.Quantity {
	return p.item.Quantity.Sub(p.delivered)
}

func (p position) remainingAfter() types.Quantity {
	return p.remaining().Sub(p.requested)
}

func checkOrder(order *documents.Document, statuses ...documents.Status) error {
	if order.Type != documents.TypePurchaseOrder {
		return apperror.NewValidation("deliveries can only be created from a purchase order").
			WithCode(apperror.CodeInvalidSourceType).
			WithDetail("type", order.Type)
	}
	for _, st := range statuses {
		if order.Status == st {
			return nil
		}
	}
	if len(statuses) == 0 {
		return nil
	}
	return apperror.NewValidation("purchase order must be confirmed to be delivered").
		WithCode(apperror.CodeInvalidSourceType).
		WithDetail("status", order.Status).
		WithDetail("required", statuses)
}

// deliveredByItem sums the counted quantities per order line.
func deliveredByItem(lines []DeliveredLine) map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity)
	for _, l := range lines {
		if !l.Counts() {
			continue
		}
		out[l.SourceOrderItemID] = out[l.SourceOrderItemID].Add(l.Quantity)
	}
	return out
}

// plan validates the request against the order and returns the positions in
// order-line order. Nothing is written.
func plan(order *documents.Document, delivered map[id.ID]types.Quantity, req Request) ([]position, error) {
	if len(req.Items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}

	index := make(map[id.ID]int, len(order.Items))
	positions := make([]position, len(order.Items))
	for i, it := range order.Items {
		index[it.ID] = i
		positions[i] = position{item: it, delivered: delivered[it.ID], requested: decimal.Zero}
	}

	for i, r := range req.Items {
		at, ok := index[r.ItemID]
		if !ok {
			return nil, apperror.NewValidation("order item not found").
				WithCode(apperror.CodeUnknownLineItem).
				WithDetail("itemId", r.ItemID).
				WithDetail("field", fmt.Sprintf("items[%d].itemId", i))
		}
		if !r.Quantity.IsPositive() {
			return nil, apperror.NewValidation("delivered quantity must be greater than zero").
				WithDetail("itemId", r.ItemID).
				WithDetail("field", fmt.Sprintf("items[%d].deliverQty", i))
		}
		positions[at].requested = positions[at].requested.Add(r.Quantity)
	}

	for _, p := range positions {
		if p.requested.IsZero() {
			continue
		}
		remaining := p.remaining()
		if p.requested.GreaterThan(remaining) {
			return nil, apperror.NewExceedsRemaining(
				p.item.Designation,
				p.requested.String(),
				remaining.String(),
				p.requested.Sub(remaining).String(),
			).WithDetail("itemId", p.item.ID)
		}
	}
	return positions, nil
}

// CreateDelivery creates a delivery note for part of a purchase order.
func (s *Service) CreateDelivery(ctx context.Context, orderID id.ID, req Request) (*Result, error) {
	release, err := s.locker.Acquire(ctx, LockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "release delivery lock", "order", orderID, "error", err)
		}
	}()

	var result *Result
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkOrder(order, documents.StatusConfirmed, documents.StatusPartial); err != nil {
			return err
		}
		if order.Items, err = s.repo.GetItems(ctx, orderID); err != nil {
			return fmt.Errorf("get order items: %w", err)
		}
		lines, err := s.deliveries.ListDeliveredLines(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list delivered lines: %w", err)
		}

		positions, err := plan(order, deliveredByItem(lines), req)
		if err != nil {
			return err
		}

		note := s.buildNote(order, positions, req)
		if err := s.docs.Store(ctx, note, documents.ModeIssue); err != nil {
			return err
		}

		full := true
		statuses := make([]LineStatus, 0, len(positions))
		for _, p := range positions {
			after := p.remainingAfter()
			if !after.IsZero() {
				full = false
			}
			statuses = append(statuses, LineStatus{
				ItemID:              p.item.ID,
				Designation:         p.item.Designation,
				OrderedQty:          p.item.Quantity,
				PreviouslyDelivered: p.delivered,
				DeliveredInThisNote: p.requested,
				TotalDelivered:      p.delivered.Add(p.requested),
				Remaining:           after,
				IsComplete:          after.IsZero(),
			})
		}

		from := order.Status
		order.Status = documents.StatusPartial
		if full {
			order.Status = documents.StatusDelivered
		}
		order.UpdatedAt = s.docs.Now()
		audit.EnrichUpdated(ctx, &order.BaseDocument)
		if err := s.repo.Update(ctx, order); err != nil {
			return err
		}

		children, err := s.repo.ListChildren(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list deliveries: %w", err)
		}
		existing := 0
		for _, c := range children {
			if c.Type == documents.TypeDeliveryNote {
				existing++
			}
		}

		log := &Log{
			ID:                 id.New(),
			OrderID:            order.ID,
			OrderNumber:        order.Number,
			DeliveryNoteID:     note.ID,
			DeliveryNoteNumber: note.Number,
			DeliveryDate:       *note.DeliveryDate,
			ItemCount:          len(note.Items),
			IsPartial:          !full,
			IsFinal:            full,
			DeliveredValue:     note.TotalTTC,
			Notes:              req.Notes,
			CreatedBy:          note.CreatedBy,
			CreatedAt:          note.CreatedAt,
		}
		if err := s.deliveries.CreateLog(ctx, log); err != nil {
			return fmt.Errorf("create delivery log: %w", err)
		}

		if err := s.audit.LogChange(ctx, documents.EntityType, order.ID, audit.ActionDelivery, map[string]any{
			"deliveryNoteId":     note.ID,
			"deliveryNoteNumber": note.Number,
			"from":               from,
			"to":                 order.Status,
			"items":              len(note.Items),
			"deliveredValue":     note.TotalTTC.StringFixed(2),
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateDocument,
			AggregateID:   order.ID,
			Type:          events.DeliveryCreated,
			Payload: map[string]any{
				"orderNumber":        order.Number,
				"deliveryNoteId":     note.ID,
				"deliveryNoteNumber": note.Number,
				"isFinal":            full,
			},
		}); err != nil {
			return fmt.Errorf("publish %s: %w", events.DeliveryCreated, err)
		}

		result = &Result{
			DeliveryNote: note,
			SourceOrder: OrderState{
				ID:               order.ID,
				Number:           order.Number,
				NewStatus:        order.Status,
				IsFullyDelivered: full,
			},
			DeliveryStatus:     statuses,
			ExistingDeliveries: existing,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery created",
		"order", result.SourceOrder.Number,
		"delivery_note", result.DeliveryNote.Number,
		"status", result.SourceOrder.NewStatus)

	return result, nil
}

func (s *Service) buildNote(order *documents.Document, positions []position, req Request) *documents.Document {
	now := s.docs.Now()

	note := documents.NewDocument(documents.TypeDeliveryNote)
	note.Date = now
	documents.CopyClient(note, order)
	note.ParentID = &order.ID
	documents.ChainRefs(note, order)
	note.Conditions = order.Conditions
	note.Notes = req.Notes

	deliveryDate := now
	if req.DeliveryDate != nil {
		deliveryDate = *req.DeliveryDate
	}
	receivedAt := now
	note.DeliveryDate = &deliveryDate
	note.ReceivedAt = &receivedAt
	note.ReceivedBy = req.ReceivedBy
	note.DeliveryAddress = fallback(req.DeliveryAddress, order.DeliveryAddress)
	note.DeliveryCity = fallback(req.DeliveryCity, order.DeliveryCity)
	note.DeliveryNotes = fallback(req.DeliveryNotes, order.DeliveryNotes)

	for _, p := range positions {
		if p.requested.IsZero() {
			continue
		}
		ordered := p.item.Quantity
		delivered := p.requested
		total := p.delivered.Add(p.requested)
		remaining := p.remainingAfter()
		orderItemID := p.item.ID
		note.Items = append(note.Items, documents.Item{
			ID:                id.New(),
			Reference:         p.item.Reference,
			Designation:       p.item.Designation,
			Description:       p.item.Description,
			Unit:              p.item.Unit,
			Quantity:          p.requested,
			UnitPriceHT:       p.item.UnitPriceHT,
			DiscountPercent:   p.item.DiscountPercent,
			TVARate:           p.item.TVARate,
			CatalogItemID:     p.item.CatalogItemID,
			SourceOrderItemID: &orderItemID,
			OrderedQty:        &ordered,
			DeliveredQty:      &delivered,
			TotalDeliveredQty: &total,
			RemainingQty:      &remaining,
		})
	}
	note.Recalculate()
	return note
}

func fallback(v, def *string) *string {
	if v != nil && *v != "" {
		return v
	}
	return def
}

// Status reports the delivery progress of a purchase order.
func (s *Service) Status(ctx context.Context, orderID id.ID) (*StatusReport, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	if order.Items, err = s.repo.GetItems(ctx, orderID); err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	lines, err := s.deliveries.ListDeliveredLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list delivered lines: %w", err)
	}
	children, err := s.repo.ListChildren(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	logs, err := s.deliveries.ListLogs(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}

	report := &StatusReport{
		Order:      documents.SummaryOf(order),
		Items:      make([]ItemStatus, 0, len(order.Items)),
		Deliveries: []documents.Summary{},
		Logs:       logs,
	}
	if report.Logs == nil {
		report.Logs = []Log{}
	}

	history := make(map[id.ID][]HistoryEntry)
	for _, l := range lines {
		history[l.SourceOrderItemID] = append(history[l.SourceOrderItemID], HistoryEntry{
			DeliveryNoteID: l.DeliveryNoteID,
			Number:         l.Number,
			Status:         l.Status,
			DeliveredQty:   l.Quantity,
			Date:           l.Date,
			ReceivedBy:     l.ReceivedBy,
		})
	}
	delivered := deliveredByItem(lines)

	sum := &report.Summary
	sum.TotalItems = len(order.Items)
	sum.IsFullyDelivered = len(order.Items) > 0
	for _, it := range order.Items {
		total := delivered[it.ID]
		remaining := it.Quantity.Sub(total)
		complete := !remaining.IsPositive()

		entries := history[it.ID]
		if entries == nil {
			entries = []HistoryEntry{}
		}
		report.Items = append(report.Items, ItemStatus{
			ItemID:           it.ID,
			Reference:        it.Reference,
			Designation:      it.Designation,
			Unit:             it.Unit,
			OrderedQty:       it.Quantity,
			TotalDelivered:   total,
			RemainingQty:     remaining,
			PercentDelivered: percent(total, it.Quantity),
			IsComplete:       complete,
			History:          entries,
		})

		switch {
		case complete:
			sum.ItemsFullyDelivered++
		case total.IsPositive():
			sum.ItemsPartiallyDelivered++
			sum.IsFullyDelivered = false
		default:
			sum.ItemsNotDelivered++
			sum.IsFullyDelivered = false
		}
	}

	sum.TotalOrderedValue = order.TotalTTC
	sum.TotalDeliveredValue = decimal.Zero
	for _, c := range children {
		if c.Type != documents.TypeDeliveryNote {
			continue
		}
		report.Deliveries = append(report.Deliveries, documents.SummaryOf(c))
		if c.Status != documents.StatusCancelled {
			sum.TotalDeliveredValue = sum.TotalDeliveredValue.Add(c.TotalTTC)
		}
	}
	sum.DeliveriesCount = len(report.Deliveries)
	sum.RemainingValue = sum.TotalOrderedValue.Sub(sum.TotalDeliveredValue)
	sum.PercentDelivered = percent(sum.TotalDeliveredValue, sum.TotalOrderedValue)

	return report, nil
}

// percent returns round(part/whole × 100), or 0 when whole is zero.
func percent(part, whole decimal.Decimal) int64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(hundred).Div(whole).Round(0).IntPart()
}
