package delivery_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/core/numerator"
	"docflow/internal/domain/delivery"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/events"
	"docflow/internal/domain/memrepo"
)

var clock = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertQty(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: got %s, want %s", msg, got.String(), want)
}

type fixture struct {
	docs   *documents.Service
	svc    *delivery.Service
	store  *memrepo.Store
	events *events.Recorder
	order  *documents.Document
}

func newFixture(t *testing.T, locker delivery.Locker, items ...documents.ItemInput) *fixture {
	t.Helper()
	store := memrepo.New()
	catalog := memrepo.NewCatalog()
	rec := &events.Recorder{}
	docs := documents.NewService(documents.Config{
		Repo:      store,
		Payments:  store.Payments(),
		Clients:   catalog.ClientLookup(),
		Projects:  catalog.ProjectLookup(),
		Numerator: numerator.NewMockGenerator(),
		Events:    rec,
		Now:       func() time.Time { return clock },
	})
	f := &fixture{
		docs:   docs,
		store:  store,
		events: rec,
		svc: delivery.NewService(delivery.Config{
			Documents:  docs,
			Repo:       store,
			Deliveries: store,
			Locker:     locker,
			Events:     rec,
		}),
	}

	if len(items) == 0 {
		items = []documents.ItemInput{{Designation: "Steel beam", Quantity: d("100"), UnitPriceHT: d("50")}}
	}
	acme := catalog.AddClient("Acme Industries")
	address := "12 Quay Street"
	order, err := docs.Create(context.Background(), documents.CreateInput{
		Type:         documents.TypePurchaseOrder,
		Mode:         documents.ModeIssue,
		ClientID:     &acme.ID,
		DeliveryInfo: documents.DeliveryInfo{DeliveryAddress: &address},
		Items:        items,
	})
	require.NoError(t, err)
	require.Equal(t, documents.StatusConfirmed, order.Status)
	f.order = order
	return f
}

func (f *fixture) deliver(lines ...delivery.RequestItem) (*delivery.Result, error) {
	return f.svc.CreateDelivery(context.Background(), f.order.ID, delivery.Request{Items: lines})
}

func (f *fixture) line(i int, qty string) delivery.RequestItem {
	return delivery.RequestItem{ItemID: f.order.Items[i].ID, Quantity: d(qty)}
}

func (f *fixture) orderStatus(t *testing.T) documents.Status {
	t.Helper()
	doc, err := f.docs.GetDocument(context.Background(), f.order.ID)
	require.NoError(t, err)
	return doc.Status
}

func TestCreateDelivery_PartialThenFinal(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.deliver(f.line(0, "60"))
	require.NoError(t, err)

	note := res.DeliveryNote
	assert.Equal(t, documents.TypeDeliveryNote, note.Type)
	assert.Equal(t, "BL-2026-000001", note.Number)
	assert.Equal(t, documents.StatusDelivered, note.Status)
	assert.True(t, note.IsLocked)
	assert.Equal(t, f.order.ID, *note.ParentID)
	require.NotNil(t, note.OrderRef)
	assert.Equal(t, f.order.Number, *note.OrderRef)
	require.NotNil(t, note.DeliveryAddress)
	assert.Equal(t, "12 Quay Street", *note.DeliveryAddress)
	assert.Equal(t, clock, *note.DeliveryDate)

	require.Len(t, note.Items, 1)
	line := note.Items[0]
	assertQty(t, "60", line.Quantity, "quantity")
	assertQty(t, "100", *line.OrderedQty, "ordered")
	assertQty(t, "60", *line.TotalDeliveredQty, "total delivered")
	assertQty(t, "40", *line.RemainingQty, "remaining")
	assert.Equal(t, f.order.Items[0].ID, *line.SourceOrderItemID)
	assertQty(t, "3600", note.TotalTTC, "note TTC")

	assert.Equal(t, documents.StatusPartial, res.SourceOrder.NewStatus)
	assert.False(t, res.SourceOrder.IsFullyDelivered)
	assert.Equal(t, 1, res.ExistingDeliveries)
	require.Len(t, res.DeliveryStatus, 1)
	assertQty(t, "0", res.DeliveryStatus[0].PreviouslyDelivered, "previously")
	assertQty(t, "40", res.DeliveryStatus[0].Remaining, "remaining")
	assert.Equal(t, documents.StatusPartial, f.orderStatus(t))

	res, err = f.deliver(f.line(0, "40"))
	require.NoError(t, err)
	assert.Equal(t, "BL-2026-000002", res.DeliveryNote.Number)
	assert.Equal(t, documents.StatusDelivered, res.SourceOrder.NewStatus)
	assert.True(t, res.SourceOrder.IsFullyDelivered)
	assert.Equal(t, 2, res.ExistingDeliveries)
	assertQty(t, "60", res.DeliveryStatus[0].PreviouslyDelivered, "previously")
	assertQty(t, "100", res.DeliveryStatus[0].TotalDelivered, "total")
	assert.True(t, res.DeliveryStatus[0].IsComplete)

	logs, err := f.store.ListLogs(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].IsPartial)
	assert.False(t, logs[0].IsFinal)
	assert.True(t, logs[1].IsFinal)
	assert.Equal(t, res.DeliveryNote.Number, logs[1].DeliveryNoteNumber)

	assert.Equal(t, []string{
		events.DocumentCreated, events.DeliveryCreated, events.DeliveryCreated,
	}, f.events.Types())
}

func TestCreateDelivery_FullyDeliveredOrderRejectsMore(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.deliver(f.line(0, "100"))
	require.NoError(t, err)

	_, err = f.deliver(f.line(0, "10"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))

	children, err := f.store.ListChildren(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Equal(t, documents.StatusDelivered, f.orderStatus(t))
}

func TestCreateDelivery_ExceedsRemaining(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.deliver(f.line(0, "60"))
	require.NoError(t, err)

	_, err = f.deliver(f.line(0, "50"))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeExceedsRemaining, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Equal(t, "Steel beam", appErr.Details["designation"])
	assert.Equal(t, "50", appErr.Details["requested"])
	assert.Equal(t, "40", appErr.Details["remaining"])
	assert.Equal(t, "10", appErr.Details["shortfall"])

	children, err := f.store.ListChildren(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Equal(t, documents.StatusPartial, f.orderStatus(t))
}

func TestCreateDelivery_DuplicateLinesAreSummed(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.deliver(f.line(0, "60"), f.line(0, "50"))
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsRemaining))

	res, err := f.deliver(f.line(0, "30"), f.line(0, "20"))
	require.NoError(t, err)
	require.Len(t, res.DeliveryNote.Items, 1)
	assertQty(t, "50", res.DeliveryNote.Items[0].Quantity, "summed quantity")
}

func TestCreateDelivery_RequestValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.deliver()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.deliver(delivery.RequestItem{ItemID: id.New(), Quantity: d("1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownLineItem))

	_, err = f.deliver(f.line(0, "0"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.CreateDelivery(context.Background(), id.New(), delivery.Request{Items: []delivery.RequestItem{f.line(0, "1")}})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateDelivery_RequiresConfirmedOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	draft, err := f.docs.Create(ctx, documents.CreateInput{
		Type:  documents.TypePurchaseOrder,
		Items: []documents.ItemInput{{Designation: "Bolt", Quantity: d("5"), UnitPriceHT: d("1")}},
	})
	require.NoError(t, err)
	_, err = f.svc.CreateDelivery(ctx, draft.ID, delivery.Request{
		Items: []delivery.RequestItem{{ItemID: draft.Items[0].ID, Quantity: d("1")}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSourceType))

	quote, err := f.docs.Create(ctx, documents.CreateInput{Type: documents.TypeQuote})
	require.NoError(t, err)
	_, err = f.svc.Status(ctx, quote.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSourceType))
}

func TestCreateDelivery_CancelledNotesDoNotCount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.deliver(f.line(0, "100"))
	require.NoError(t, err)
	require.True(t, first.SourceOrder.IsFullyDelivered)

	_, err = f.docs.ChangeStatus(ctx, first.DeliveryNote.ID, documents.StatusCancelled, "wrong truck")
	require.NoError(t, err)

	assert.Equal(t, documents.StatusConfirmed, f.orderStatus(t))
	report, err := f.svc.Status(ctx, f.order.ID)
	require.NoError(t, err)
	assert.False(t, report.Summary.IsFullyDelivered)
	assertQty(t, "100", report.Items[0].RemainingQty, "remaining after cancel")

	res, err := f.deliver(f.line(0, "100"))
	require.NoError(t, err)
	assertQty(t, "0", res.DeliveryStatus[0].PreviouslyDelivered, "cancelled note excluded")
	assert.True(t, res.SourceOrder.IsFullyDelivered)
	assert.Equal(t, documents.StatusDelivered, f.orderStatus(t))
}

func TestCancelDeliveryNote_ReopensOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.deliver(f.line(0, "60"))
	require.NoError(t, err)
	second, err := f.deliver(f.line(0, "40"))
	require.NoError(t, err)
	require.Equal(t, documents.StatusDelivered, f.orderStatus(t))

	_, err = f.docs.ChangeStatus(ctx, second.DeliveryNote.ID, documents.StatusCancelled, "returned")
	require.NoError(t, err)
	assert.Equal(t, documents.StatusPartial, f.orderStatus(t))

	_, err = f.deliver(f.line(0, "41"))
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsRemaining))
	res, err := f.deliver(f.line(0, "40"))
	require.NoError(t, err)
	assert.Equal(t, documents.StatusDelivered, res.SourceOrder.NewStatus)

	cancelled := documents.StatusCancelled
	_, err = f.docs.Update(ctx, first.DeliveryNote.ID, documents.UpdateInput{Status: &cancelled, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, documents.StatusPartial, f.orderStatus(t))
}

func TestCreateDelivery_MultipleLines(t *testing.T) {
	f := newFixture(t, nil,
		documents.ItemInput{Designation: "Beam", Quantity: d("10"), UnitPriceHT: d("100")},
		documents.ItemInput{Designation: "Bolt", Quantity: d("500"), UnitPriceHT: d("0.2")},
	)

	res, err := f.deliver(f.line(0, "10"))
	require.NoError(t, err)
	assert.Equal(t, documents.StatusPartial, res.SourceOrder.NewStatus)
	require.Len(t, res.DeliveryNote.Items, 1)
	assert.Equal(t, "Beam", res.DeliveryNote.Items[0].Designation)

	require.Len(t, res.DeliveryStatus, 2)
	bolt := res.DeliveryStatus[1]
	assert.Equal(t, f.order.Items[1].ID, bolt.ItemID)
	assertQty(t, "0", bolt.DeliveredInThisNote, "bolt in this note")
	assertQty(t, "0", bolt.TotalDelivered, "bolt delivered")
	assertQty(t, "500", bolt.Remaining, "bolt remaining")
	assert.False(t, bolt.IsComplete)

	res, err = f.deliver(f.line(1, "500"))
	require.NoError(t, err)
	assert.Equal(t, documents.StatusDelivered, res.SourceOrder.NewStatus)
	require.Len(t, res.DeliveryStatus, 2)
	beam := res.DeliveryStatus[0]
	assertQty(t, "0", beam.DeliveredInThisNote, "beam in this note")
	assertQty(t, "10", beam.PreviouslyDelivered, "beam previously")
	assert.True(t, beam.IsComplete)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil,
		documents.ItemInput{Designation: "Beam", Quantity: d("100"), UnitPriceHT: d("50")},
		documents.ItemInput{Designation: "Bolt", Quantity: d("10"), UnitPriceHT: d("1")},
	)
	receiver := "J. Martin"
	_, err := f.svc.CreateDelivery(context.Background(), f.order.ID, delivery.Request{
		Items:      []delivery.RequestItem{f.line(0, "60")},
		ReceivedBy: &receiver,
	})
	require.NoError(t, err)

	report, err := f.svc.Status(context.Background(), f.order.ID)
	require.NoError(t, err)

	assert.Equal(t, f.order.Number, report.Order.Number)
	require.Len(t, report.Items, 2)

	beam := report.Items[0]
	assertQty(t, "60", beam.TotalDelivered, "beam delivered")
	assertQty(t, "40", beam.RemainingQty, "beam remaining")
	assert.EqualValues(t, 60, beam.PercentDelivered)
	assert.False(t, beam.IsComplete)
	require.Len(t, beam.History, 1)
	assert.Equal(t, "J. Martin", *beam.History[0].ReceivedBy)

	bolt := report.Items[1]
	assertQty(t, "0", bolt.TotalDelivered, "bolt delivered")
	assert.Empty(t, bolt.History)

	sum := report.Summary
	assert.Equal(t, 2, sum.TotalItems)
	assert.Equal(t, 0, sum.ItemsFullyDelivered)
	assert.Equal(t, 1, sum.ItemsPartiallyDelivered)
	assert.Equal(t, 1, sum.ItemsNotDelivered)
	assert.False(t, sum.IsFullyDelivered)
	assert.Equal(t, 1, sum.DeliveriesCount)
	assertQty(t, "6012", sum.TotalOrderedValue, "ordered value")
	assertQty(t, "3600", sum.TotalDeliveredValue, "delivered value")
	assertQty(t, "2412", sum.RemainingValue, "remaining value")
	assert.EqualValues(t, 60, sum.PercentDelivered)
	require.Len(t, report.Logs, 1)
	require.Len(t, report.Deliveries, 1)
}

type busyLocker struct{ key string }

func (l *busyLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.key = key
	return nil, apperror.NewLocked(key)
}

func TestCreateDelivery_LockHeld(t *testing.T) {
	locker := &busyLocker{}
	f := newFixture(t, locker)

	_, err := f.deliver(f.line(0, "10"))
	assert.True(t, apperror.HasCode(err, apperror.CodeLocked))
	assert.Equal(t, http.StatusConflict, apperror.GetHTTPStatus(err))
	assert.Equal(t, delivery.LockKey(f.order.ID), locker.key)

	children, err := f.store.ListChildren(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}
