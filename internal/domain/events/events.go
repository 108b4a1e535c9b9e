// Package events defines the domain events emitted by document operations
// and the publisher contract that carries them to the transactional outbox.
package events

import (
	"context"

	"docflow/internal/core/id"
)

// Event types.
const (
	DocumentCreated       = "document.created"
	DocumentUpdated       = "document.updated"
	DocumentDeleted       = "document.deleted"
	DocumentIssued        = "document.issued"
	DocumentStatusChanged = "document.status_changed"
	DocumentConverted     = "document.converted"
	DeliveryCreated       = "delivery.created"
	PaymentRecorded       = "payment.recorded"
	PaymentDeleted        = "payment.deleted"
	DepositInvoiceCreated = "deposit_invoice.created"
	FinalInvoiceCreated   = "final_invoice.created"
)

// AggregateDocument is the aggregate type of every document event.
const AggregateDocument = "document"

// Event is a fact about an aggregate, published in the same transaction
// as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher writes events. Implementations must use the transaction in ctx.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	Events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the types of the recorded events in order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
