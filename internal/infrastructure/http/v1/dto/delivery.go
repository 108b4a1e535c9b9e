package dto

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"docflow/internal/core/id"
	"docflow/internal/domain/delivery"
)

// DeliveryItemRequest asks for a quantity of one order line. The line is
// named by bcItemId; itemId is accepted as an alias.
type DeliveryItemRequest struct {
	BcItemID   string          `json:"bcItemId" binding:"required_without=ItemID"`
	ItemID     string          `json:"itemId"`
	DeliverQty decimal.Decimal `json:"deliverQty"`
}

func (r DeliveryItemRequest) lineRef() (string, string) {
	if r.BcItemID != "" {
		return "bcItemId", r.BcItemID
	}
	return "itemId", r.ItemID
}

// DeliveryRequest is the body of POST /documents/:id/partial-delivery.
type DeliveryRequest struct {
	Items           []DeliveryItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryDate    *Date                 `json:"deliveryDate"`
	DeliveryAddress *string               `json:"deliveryAddress" binding:"omitempty,max=500"`
	DeliveryCity    *string               `json:"deliveryCity" binding:"omitempty,max=100"`
	DeliveryNotes   *string               `json:"deliveryNotes"`
	ReceivedBy      *string               `json:"receivedBy" binding:"omitempty,max=200"`
	Notes           *string               `json:"notes"`
}

// ToRequest converts the body into the domain request.
func (r DeliveryRequest) ToRequest() (delivery.Request, error) {
	out := delivery.Request{
		DeliveryDate:    r.DeliveryDate.TimePtr(),
		DeliveryAddress: r.DeliveryAddress,
		DeliveryCity:    r.DeliveryCity,
		DeliveryNotes:   r.DeliveryNotes,
		ReceivedBy:      r.ReceivedBy,
		Notes:           r.Notes,
	}
	for i, it := range r.Items {
		name, raw := it.lineRef()
		itemID, err := id.Parse(raw)
		if err != nil {
			return out, &FieldFormatError{Field: "items[" + strconv.Itoa(i) + "]." + name, Err: err}
		}
		out.Items = append(out.Items, delivery.RequestItem{ItemID: itemID, Quantity: it.DeliverQty})
	}
	return out, nil
}

// OrderStateResponse is the order after a delivery.
type OrderStateResponse struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	NewStatus        string `json:"newStatus"`
	IsFullyDelivered bool   `json:"isFullyDelivered"`
}

// LineStatusResponse is the position of one order line after a delivery.
type LineStatusResponse struct {
	ItemID              string `json:"itemId"`
	Designation         string `json:"designation"`
	OrderedQty          Number `json:"orderedQty"`
	PreviouslyDelivered Number `json:"previouslyDelivered"`
	DeliveredInThisNote Number `json:"deliveredInThisNote"`
	TotalDelivered      Number `json:"totalDelivered"`
	Remaining           Number `json:"remaining"`
	IsComplete          bool   `json:"isComplete"`
}

// DeliveryResponse is the result of POST /documents/:id/partial-delivery.
type DeliveryResponse struct {
	DeliveryNote       DocumentResponse     `json:"deliveryNote"`
	SourceOrder        OrderStateResponse   `json:"sourceOrder"`
	DeliveryStatus     []LineStatusResponse `json:"deliveryStatus"`
	ExistingDeliveries int                  `json:"existingDeliveries"`
}

// FromDelivery maps a delivery result.
func FromDelivery(r *delivery.Result) DeliveryResponse {
	out := DeliveryResponse{
		DeliveryNote: FromDocument(r.DeliveryNote),
		SourceOrder: OrderStateResponse{
			ID:               r.SourceOrder.ID.String(),
			Number:           r.SourceOrder.Number,
			NewStatus:        string(r.SourceOrder.NewStatus),
			IsFullyDelivered: r.SourceOrder.IsFullyDelivered,
		},
		DeliveryStatus:     make([]LineStatusResponse, 0, len(r.DeliveryStatus)),
		ExistingDeliveries: r.ExistingDeliveries,
	}
	for _, l := range r.DeliveryStatus {
		out.DeliveryStatus = append(out.DeliveryStatus, LineStatusResponse{
			ItemID:              l.ItemID.String(),
			Designation:         l.Designation,
			OrderedQty:          NewNumber(l.OrderedQty),
			PreviouslyDelivered: NewNumber(l.PreviouslyDelivered),
			DeliveredInThisNote: NewNumber(l.DeliveredInThisNote),
			TotalDelivered:      NewNumber(l.TotalDelivered),
			Remaining:           NewNumber(l.Remaining),
			IsComplete:          l.IsComplete,
		})
	}
	return out
}

// HistoryEntryResponse is one delivery of an order line.
type HistoryEntryResponse struct {
	DeliveryNoteID string    `json:"deliveryNoteId"`
	Number         string    `json:"number"`
	Status         string    `json:"status"`
	DeliveredQty   Number    `json:"deliveredQty"`
	Date           time.Time `json:"date"`
	ReceivedBy     *string   `json:"receivedBy,omitempty"`
}

// ItemStatusResponse is the delivery position of one order line.
type ItemStatusResponse struct {
	ItemID           string                 `json:"itemId"`
	Reference        *string                `json:"reference,omitempty"`
	Designation      string                 `json:"designation"`
	Unit             string                 `json:"unit"`
	OrderedQty       Number                 `json:"orderedQty"`
	TotalDelivered   Number                 `json:"totalDelivered"`
	RemainingQty     Number                 `json:"remainingQty"`
	PercentDelivered int64                  `json:"percentDelivered"`
	IsComplete       bool                   `json:"isComplete"`
	History          []HistoryEntryResponse `json:"deliveryHistory"`
}

// DeliverySummaryResponse aggregates the delivery position of an order.
type DeliverySummaryResponse struct {
	TotalItems              int   `json:"totalItems"`
	ItemsFullyDelivered     int   `json:"itemsFullyDelivered"`
	ItemsPartiallyDelivered int   `json:"itemsPartiallyDelivered"`
	ItemsNotDelivered       int   `json:"itemsNotDelivered"`
	DeliveriesCount         int   `json:"deliveriesCount"`
	TotalOrderedValue       Money `json:"totalOrderedValue"`
	TotalDeliveredValue     Money `json:"totalDeliveredValue"`
	RemainingValue          Money `json:"remainingValue"`
	PercentDelivered        int64 `json:"percentDelivered"`
	IsFullyDelivered        bool  `json:"isFullyDelivered"`
}

// DeliveryLogResponse is one immutable delivery record.
type DeliveryLogResponse struct {
	ID                 string    `json:"id"`
	DeliveryNoteID     string    `json:"deliveryNoteId"`
	DeliveryNoteNumber string    `json:"deliveryNoteNumber"`
	DeliveryDate       time.Time `json:"deliveryDate"`
	ItemCount          int       `json:"itemCount"`
	IsPartial          bool      `json:"isPartial"`
	IsFinal            bool      `json:"isFinal"`
	DeliveredValue     Money     `json:"deliveredValue"`
	Notes              *string   `json:"notes,omitempty"`
	CreatedBy          *string   `json:"createdBy,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// DeliveryStatusResponse is GET /documents/:id/partial-delivery.
type DeliveryStatusResponse struct {
	Order      SummaryResponse         `json:"order"`
	Summary    DeliverySummaryResponse `json:"summary"`
	Items      []ItemStatusResponse    `json:"items"`
	Deliveries []SummaryResponse       `json:"deliveries"`
	Logs       []DeliveryLogResponse   `json:"deliveryLogs"`
}

// FromDeliveryStatus maps a delivery status report.
func FromDeliveryStatus(r *delivery.StatusReport) DeliveryStatusResponse {
	s := r.Summary
	out := DeliveryStatusResponse{
		Order: FromSummary(r.Order),
		Summary: DeliverySummaryResponse{
			TotalItems:              s.TotalItems,
			ItemsFullyDelivered:     s.ItemsFullyDelivered,
			ItemsPartiallyDelivered: s.ItemsPartiallyDelivered,
			ItemsNotDelivered:       s.ItemsNotDelivered,
			DeliveriesCount:         s.DeliveriesCount,
			TotalOrderedValue:       NewMoney(s.TotalOrderedValue),
			TotalDeliveredValue:     NewMoney(s.TotalDeliveredValue),
			RemainingValue:          NewMoney(s.RemainingValue),
			PercentDelivered:        s.PercentDelivered,
			IsFullyDelivered:        s.IsFullyDelivered,
		},
		Items:      make([]ItemStatusResponse, 0, len(r.Items)),
		Deliveries: FromSummaries(r.Deliveries),
		Logs:       make([]DeliveryLogResponse, 0, len(r.Logs)),
	}
	for _, it := range r.Items {
		item := ItemStatusResponse{
			ItemID:           it.ItemID.String(),
			Reference:        it.Reference,
			Designation:      it.Designation,
			Unit:             it.Unit,
			OrderedQty:       NewNumber(it.OrderedQty),
			TotalDelivered:   NewNumber(it.TotalDelivered),
			RemainingQty:     NewNumber(it.RemainingQty),
			PercentDelivered: it.PercentDelivered,
			IsComplete:       it.IsComplete,
			History:          make([]HistoryEntryResponse, 0, len(it.History)),
		}
		for _, h := range it.History {
			item.History = append(item.History, HistoryEntryResponse{
				DeliveryNoteID: h.DeliveryNoteID.String(),
				Number:         h.Number,
				Status:         string(h.Status),
				DeliveredQty:   NewNumber(h.DeliveredQty),
				Date:           h.Date,
				ReceivedBy:     h.ReceivedBy,
			})
		}
		out.Items = append(out.Items, item)
	}
	for _, l := range r.Logs {
		out.Logs = append(out.Logs, DeliveryLogResponse{
			ID:                 l.ID.String(),
			DeliveryNoteID:     l.DeliveryNoteID.String(),
			DeliveryNoteNumber: l.DeliveryNoteNumber,
			DeliveryDate:       l.DeliveryDate,
			ItemCount:          l.ItemCount,
			IsPartial:          l.IsPartial,
			IsFinal:            l.IsFinal,
			DeliveredValue:     NewMoney(l.DeliveredValue),
			Notes:              l.Notes,
			CreatedBy:          l.CreatedBy,
			CreatedAt:          l.CreatedAt,
		})
	}
	return out
}
