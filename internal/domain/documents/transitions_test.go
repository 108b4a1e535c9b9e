package documents

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/core/apperror"
)

func docIn(s Status) *Document {
	d := NewDocument(TypeInvoice)
	d.Status = s
	return d
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to Status
		reason   string
		code     string
	}{
		{name: "draft to confirmed", from: StatusDraft, to: StatusConfirmed},
		{name: "draft cancel needs no reason", from: StatusDraft, to: StatusCancelled},
		{name: "sent to paid", from: StatusSent, to: StatusPaid},
		{name: "sent cancel with reason", from: StatusSent, to: StatusCancelled, reason: "client withdrew"},
		{name: "sent cancel without reason", from: StatusSent, to: StatusCancelled, reason: "  ", code: apperror.CodeValidation},
		{name: "draft to paid", from: StatusDraft, to: StatusPaid, code: apperror.CodeInvalidTransition},
		{name: "paid is terminal", from: StatusPaid, to: StatusCancelled, reason: "x", code: apperror.CodeInvalidTransition},
		{name: "no self transition", from: StatusSent, to: StatusSent, code: apperror.CodeInvalidTransition},
		{name: "unknown target", from: StatusDraft, to: Status("ARCHIVED"), code: apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(docIn(tt.from), tt.to, tt.reason)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))
		})
	}
}

func TestCanTransition_ReportsAllowedTargets(t *testing.T) {
	err := CanTransition(docIn(StatusDelivered), StatusPaid, "")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"SIGNED", "CANCELLED"}, appErr.Details["allowed"])
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusSigned, StatusPaid, StatusCancelled} {
		assert.True(t, docIn(s).IsTerminal(), s)
		assert.Empty(t, AllowedTransitions(s), s)
	}
	assert.False(t, docIn(StatusOverdue).IsTerminal())
}

func TestIssuedStatus(t *testing.T) {
	assert.Equal(t, StatusConfirmed, IssuedStatus(TypePurchaseOrder, StatusDraft))
	assert.Equal(t, StatusDelivered, IssuedStatus(TypeDeliveryNote, StatusDraft))
	assert.Equal(t, StatusSigned, IssuedStatus(TypeAcceptanceReport, StatusDraft))
	assert.Equal(t, StatusSent, IssuedStatus(TypeQuote, StatusDraft))
	assert.Equal(t, StatusSent, IssuedStatus(TypeInvoice, StatusDraft))
	assert.Equal(t, StatusAccepted, IssuedStatus(TypeQuote, StatusAccepted))
}

func TestMissingForConfirmation(t *testing.T) {
	d := NewDocument(TypePurchaseOrder)
	assert.Equal(t, []string{"client is required", "at least one item is required"}, missingForConfirmation(d))
}

func TestWorkflowSteps_ReturnsCopy(t *testing.T) {
	steps := WorkflowSteps(TypePurchaseOrder)
	require.Equal(t, []Status{StatusDraft, StatusConfirmed, StatusPartial, StatusDelivered}, steps)
	steps[0] = StatusPaid
	assert.Equal(t, StatusDraft, WorkflowSteps(TypePurchaseOrder)[0])
}

func TestCanEdit(t *testing.T) {
	draft := NewDocument(TypeQuote)
	assert.NoError(t, CanEdit(draft))

	locked := NewDocument(TypeQuote)
	locked.IsDraft = false
	locked.IsLocked = true
	assert.True(t, apperror.HasCode(CanEdit(locked), apperror.CodeDocumentLocked))

	issued := NewDocument(TypeQuote)
	issued.IsDraft = false
	assert.True(t, apperror.HasCode(CanEdit(issued), apperror.CodeStateConflict))

	cancelled := NewDocument(TypeQuote)
	cancelled.Status = StatusCancelled
	assert.True(t, apperror.HasCode(CanEdit(cancelled), apperror.CodeStateConflict))
}

func TestCanDelete(t *testing.T) {
	draft := NewDocument(TypeQuote)
	assert.NoError(t, CanDelete(draft, 0, 0))
	assert.Error(t, CanDelete(draft, 1, 0))
	assert.Error(t, CanDelete(draft, 0, 2))

	sent := NewDocument(TypeQuote)
	sent.Status = StatusSent
	assert.Error(t, CanDelete(sent, 0, 0))
}
