package documents

import (
	"fmt"
	"strings"

	"docflow/internal/core/apperror"
)

// Transition is one allowed target of a status.
type Transition struct {
	To             Status `json:"to"`
	RequiresReason bool   `json:"requiresReason"`
}

func to(s Status) Transition       { return Transition{To: s} }
func reasoned(s Status) Transition { return Transition{To: s, RequiresReason: true} }

// transitions is the single source of status legality. Statuses with an
// empty list are terminal.
var transitions = map[Status][]Transition{
	StatusDraft:     {to(StatusConfirmed), to(StatusSent), to(StatusCancelled)},
	StatusConfirmed: {to(StatusSent), to(StatusDelivered), to(StatusPartial), reasoned(StatusCancelled)},
	StatusSent: {
		to(StatusViewed), to(StatusAccepted), to(StatusRejected), to(StatusDelivered),
		to(StatusSigned), to(StatusPartial), to(StatusPaid), reasoned(StatusCancelled),
	},
	StatusViewed:    {to(StatusAccepted), to(StatusRejected), to(StatusPaid), to(StatusPartial), reasoned(StatusCancelled)},
	StatusAccepted:  {to(StatusConfirmed), reasoned(StatusCancelled)},
	StatusPartial:   {to(StatusDelivered), to(StatusPaid), reasoned(StatusCancelled)},
	StatusDelivered: {to(StatusSigned), reasoned(StatusCancelled)},
	StatusOverdue:   {to(StatusPaid), to(StatusPartial), reasoned(StatusCancelled)},
	StatusRejected:  {},
	StatusSigned:    {},
	StatusPaid:      {},
	StatusCancelled: {},
}

// AllowedTransitions lists the targets reachable from s.
func AllowedTransitions(s Status) []Transition {
	out := make([]Transition, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransition checks whether d may move to target with the given reason.
func CanTransition(d *Document, target Status, reason string) error {
	if !target.IsValid() {
		return apperror.NewValidation(fmt.Sprintf("unknown status %q", target)).
			WithDetail("field", "status")
	}

	allowed := transitions[d.Status]
	for _, t := range allowed {
		if t.To != target {
			continue
		}
		if t.RequiresReason && strings.TrimSpace(reason) == "" {
			return apperror.NewValidation("a reason is required for this transition").
				WithDetail("field", "reason").
				WithDetail("from", d.Status).
				WithDetail("to", target)
		}
		return nil
	}

	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = string(t.To)
	}
	return apperror.NewStateConflict(apperror.CodeInvalidTransition,
		fmt.Sprintf("invalid transition %s -> %s", d.Status, target)).
		WithDetail("from", d.Status).
		WithDetail("to", target).
		WithDetail("allowed", names)
}

// missingForConfirmation lists what a document lacks to be confirmed.
func missingForConfirmation(d *Document) []string {
	var missing []string
	if d.ClientID == nil {
		missing = append(missing, "client is required")
	}
	if len(d.Items) == 0 {
		missing = append(missing, "at least one item is required")
	}
	if d.Date.IsZero() {
		missing = append(missing, "date is required")
	}
	return missing
}

// IssuedStatus is the status a draft takes when it is issued.
func IssuedStatus(t Type, current Status) Status {
	if current != StatusDraft {
		return current
	}
	switch t {
	case TypePurchaseOrder:
		return StatusConfirmed
	case TypeDeliveryNote:
		return StatusDelivered
	case TypeAcceptanceReport:
		return StatusSigned
	default:
		return StatusSent
	}
}

var workflowSteps = map[Type][]Status{
	TypeQuote:            {StatusDraft, StatusSent, StatusAccepted},
	TypePurchaseOrder:    {StatusDraft, StatusConfirmed, StatusPartial, StatusDelivered},
	TypeDeliveryNote:     {StatusDraft, StatusDelivered, StatusSigned},
	TypeAcceptanceReport: {StatusDraft, StatusSent, StatusSigned},
	TypeInvoice:          {StatusDraft, StatusSent, StatusPartial, StatusPaid},
	TypeDepositInvoice:   {StatusDraft, StatusSent, StatusPaid},
	TypeCreditNote:       {StatusDraft, StatusSent, StatusPaid},
}

// WorkflowSteps returns the ordered progress steps shown for a type.
// The list is for display; legality is decided by the transition table.
func WorkflowSteps(t Type) []Status {
	steps := workflowSteps[t]
	out := make([]Status, len(steps))
	copy(out, steps)
	return out
}
