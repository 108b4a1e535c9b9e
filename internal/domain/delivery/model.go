// Package delivery reconciles partial deliveries of purchase orders: every
// delivery note consumes part of the remaining quantity of the order lines
// and the order status follows what is left.
package delivery

import (
	"context"
	"time"

	"docflow/internal/core/id"
	"docflow/internal/core/types"
	"docflow/internal/domain/documents"
)

// Log is the immutable record of one delivery against an order.
type Log struct {
	ID                 id.ID       `db:"id" json:"id"`
	OrderID            id.ID       `db:"order_id" json:"orderId"`
	OrderNumber        string      `db:"order_number" json:"orderNumber"`
	DeliveryNoteID     id.ID       `db:"delivery_note_id" json:"deliveryNoteId"`
	DeliveryNoteNumber string      `db:"delivery_note_number" json:"deliveryNoteNumber"`
	DeliveryDate       time.Time   `db:"delivery_date" json:"deliveryDate"`
	ItemCount          int         `db:"item_count" json:"itemCount"`
	IsPartial          bool        `db:"is_partial" json:"isPartial"`
	IsFinal            bool        `db:"is_final" json:"isFinal"`
	DeliveredValue     types.Money `db:"delivered_value" json:"deliveredValue"`
	Notes              *string     `db:"notes" json:"notes,omitempty"`
	CreatedBy          *string     `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"createdAt"`
}

// DeliveredLine is one delivery-note line that references an order line.
type DeliveredLine struct {
	DeliveryNoteID    id.ID            `db:"delivery_note_id"`
	Number            string           `db:"number"`
	Status            documents.Status `db:"status"`
	Date              time.Time        `db:"date"`
	ReceivedBy        *string          `db:"received_by"`
	SourceOrderItemID id.ID            `db:"source_order_item_id"`
	Quantity          types.Quantity   `db:"quantity"`
}

// Counts reports whether the line consumes order quantity.
func (l DeliveredLine) Counts() bool {
	return l.Status != documents.StatusCancelled
}

// Repository reads delivered quantities and stores delivery logs.
type Repository interface {
	// ListDeliveredLines returns the tracked lines of every delivery note
	// whose parent is orderID, oldest note first.
	ListDeliveredLines(ctx context.Context, orderID id.ID) ([]DeliveredLine, error)

	CreateLog(ctx context.Context, log *Log) error
	ListLogs(ctx context.Context, orderID id.ID) ([]Log, error)
}

// Locker serializes deliveries of one order across processes.
type Locker interface {
	// Acquire takes the lock or fails with a conflict. The returned func releases it.
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// NopLocker always succeeds. Row locks alone serialize deliveries then.
type NopLocker struct{}

// Acquire implements Locker.
func (NopLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// LockKey is the lock name of an order.
func LockKey(orderID id.ID) string {
	return "delivery:" + orderID.String()
}

// RequestItem asks for a quantity of one order line.
type RequestItem struct {
	ItemID   id.ID
	Quantity types.Quantity
}

// Request describes a delivery to create.
type Request struct {
	Items []RequestItem

	DeliveryDate    *time.Time
	DeliveryAddress *string
	DeliveryCity    *string
	DeliveryNotes   *string
	ReceivedBy      *string
	Notes           *string
}

// OrderState is the order as it stands after a delivery.
type OrderState struct {
	ID               id.ID            `json:"id"`
	Number           string           `json:"number"`
	NewStatus        documents.Status `json:"newStatus"`
	IsFullyDelivered bool             `json:"isFullyDelivered"`
}

// LineStatus is the delivery position of one order line after a delivery.
// Lines left out of the request report a zero DeliveredInThisNote.
type LineStatus struct {
	ItemID              id.ID          `json:"itemId"`
	Designation         string         `json:"designation"`
	OrderedQty          types.Quantity `json:"orderedQty"`
	PreviouslyDelivered types.Quantity `json:"previouslyDelivered"`
	DeliveredInThisNote types.Quantity `json:"deliveredInThisNote"`
	TotalDelivered      types.Quantity `json:"totalDelivered"`
	Remaining           types.Quantity `json:"remaining"`
	IsComplete          bool           `json:"isComplete"`
}

// Result is the outcome of CreateDelivery.
type Result struct {
	DeliveryNote       *documents.Document `json:"deliveryNote"`
	SourceOrder        OrderState          `json:"sourceOrder"`
	DeliveryStatus     []LineStatus        `json:"deliveryStatus"`
	ExistingDeliveries int                 `json:"existingDeliveries"`
}

// HistoryEntry is one delivery of an order line.
type HistoryEntry struct {
	DeliveryNoteID id.ID            `json:"deliveryNoteId"`
	Number         string           `json:"number"`
	Status         documents.Status `json:"status"`
	DeliveredQty   types.Quantity   `json:"deliveredQty"`
	Date           time.Time        `json:"date"`
	ReceivedBy     *string          `json:"receivedBy,omitempty"`
}

// ItemStatus is the delivery position of one order line.
type ItemStatus struct {
	ItemID           id.ID          `json:"itemId"`
	Reference        *string        `json:"reference,omitempty"`
	Designation      string         `json:"designation"`
	Unit             string         `json:"unit"`
	OrderedQty       types.Quantity `json:"orderedQty"`
	TotalDelivered   types.Quantity `json:"totalDelivered"`
	RemainingQty     types.Quantity `json:"remainingQty"`
	PercentDelivered int64          `json:"percentDelivered"`
	IsComplete       bool           `json:"isComplete"`
	History          []HistoryEntry `json:"deliveryHistory"`
}

// Summary aggregates the delivery position of an order.
type Summary struct {
	TotalItems              int         `json:"totalItems"`
	ItemsFullyDelivered     int         `json:"itemsFullyDelivered"`
	ItemsPartiallyDelivered int         `json:"itemsPartiallyDelivered"`
	ItemsNotDelivered       int         `json:"itemsNotDelivered"`
	DeliveriesCount         int         `json:"deliveriesCount"`
	TotalOrderedValue       types.Money `json:"totalOrderedValue"`
	TotalDeliveredValue     types.Money `json:"totalDeliveredValue"`
	RemainingValue          types.Money `json:"remainingValue"`
	PercentDelivered        int64       `json:"percentDelivered"`
	IsFullyDelivered        bool        `json:"isFullyDelivered"`
}

// StatusReport is the read-only delivery view of an order.
type StatusReport struct {
	Order      documents.Summary   `json:"order"`
	Summary    Summary             `json:"summary"`
	Items      []ItemStatus        `json:"items"`
	Deliveries []documents.Summary `json:"deliveries"`
	Logs       []Log               `json:"deliveryLogs"`
}
