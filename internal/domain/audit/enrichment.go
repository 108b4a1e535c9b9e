// Package audit provides the audit trail contract used by domain services
// and helpers for audit field enrichment.
package audit

import (
	"context"

	appctx "docflow/internal/core/context"
	"docflow/internal/core/entity"
	"docflow/internal/core/id"
)

// Action is the kind of change recorded in the audit trail.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionIssue        Action = "issue"
	ActionStatusChange Action = "status_change"
	ActionDelivery     Action = "delivery"
	ActionPayment      Action = "payment"
	ActionPaymentUndo  Action = "payment_delete"
)

// Recorder writes audit entries. Implementations must write inside the
// transaction carried by ctx when there is one.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// NopRecorder discards audit entries.
type NopRecorder struct{}

// LogChange implements Recorder.
func (NopRecorder) LogChange(context.Context, string, id.ID, Action, map[string]any) error {
	return nil
}

// EnrichCreated sets CreatedBy and UpdatedBy from the actor in context.
// If no actor is present this is a no-op.
func EnrichCreated(ctx context.Context, doc *entity.BaseDocument) {
	doc.StampCreator(appctx.GetUserID(ctx))
}

// EnrichUpdated sets only UpdatedBy from the actor in context.
func EnrichUpdated(ctx context.Context, doc *entity.BaseDocument) {
	doc.StampUpdater(appctx.GetUserID(ctx))
}
