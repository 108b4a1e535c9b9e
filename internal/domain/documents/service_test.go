package documents_test

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
	"docflow/internal/domain"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/events"
	"docflow/internal/domain/memrepo"
	"docflow/internal/domain/totals"
)

var clock = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: got %s, want %s", msg, got.String(), want)
}

func assertCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
	assert.Equal(t, status, appErr.HTTPStatus)
}

type fixture struct {
	svc     *documents.Service
	store   *memrepo.Store
	catalog *memrepo.Catalog
	events  *events.Recorder
	client  *client.Client
}

func newFixture() *fixture {
	f := &fixture{
		store:   memrepo.New(),
		catalog: memrepo.NewCatalog(),
		events:  &events.Recorder{},
	}
	f.client = f.catalog.AddClient("Acme Industries")
	f.svc = documents.NewService(documents.Config{
		Repo:      f.store,
		Payments:  f.store.Payments(),
		Clients:   f.catalog.ClientLookup(),
		Projects:  f.catalog.ProjectLookup(),
		Numerator: numerator.NewMockGenerator(),
		Events:    f.events,
		Now:       func() time.Time { return clock },
	})
	return f
}

func widgets(qty, price string) []documents.ItemInput {
	return []documents.ItemInput{{Designation: "Widget", Quantity: d(qty), UnitPriceHT: d(price)}}
}

func (f *fixture) create(t *testing.T, typ documents.Type, mode documents.Mode) *documents.Document {
	t.Helper()
	doc, err := f.svc.Create(context.Background(), documents.CreateInput{
		Type:     typ,
		Mode:     mode,
		ClientID: &f.client.ID,
		Items:    widgets("100", "50"),
	})
	require.NoError(t, err)
	return doc
}

func TestCreate_DraftWithDiscount(t *testing.T) {
	f := newFixture()
	pct := totals.DiscountPercentage

	doc, err := f.svc.Create(context.Background(), documents.CreateInput{
		Type:          documents.TypePurchaseOrder,
		ClientID:      &f.client.ID,
		DiscountType:  &pct,
		DiscountValue: dp("10"),
		Items:         widgets("100", "50"),
	})
	require.NoError(t, err)

	assert.Regexp(t, `^DRAFT-PURCHASE_ORDER-[0-9A-Z]+$`, doc.Number)
	assert.True(t, doc.IsDraft)
	assert.False(t, doc.IsLocked)
	assert.Equal(t, documents.StatusDraft, doc.Status)
	assert.Nil(t, doc.ContentHash)
	require.NotNil(t, doc.ClientName)
	assert.Equal(t, "Acme Industries", *doc.ClientName)

	assertMoney(t, "5000", doc.TotalHT, "totalHT")
	assertMoney(t, "500", doc.DiscountAmount, "discount")
	assertMoney(t, "4500", doc.NetHT, "netHT")
	assertMoney(t, "900", doc.TotalTVA, "totalTVA")
	assertMoney(t, "5400", doc.TotalTTC, "totalTTC")
	assertMoney(t, "5400", doc.Balance, "balance")

	require.Len(t, doc.Items, 1)
	assert.Equal(t, documents.DefaultUnit, doc.Items[0].Unit)
	assertMoney(t, "20", doc.Items[0].TVARate, "default rate")

	stored, err := f.store.GetItems(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Equal(t, []string{events.DocumentCreated}, f.events.Types())
}

func TestCreate_Issued(t *testing.T) {
	f := newFixture()

	doc := f.create(t, documents.TypeInvoice, documents.ModeIssue)

	assert.Equal(t, "FAC-2026-000001", doc.Number)
	assert.Equal(t, documents.StatusSent, doc.Status)
	assert.False(t, doc.IsDraft)
	assert.True(t, doc.IsLocked)
	require.NotNil(t, doc.IssuedAt)
	assert.Equal(t, clock, *doc.IssuedAt)
	require.NotNil(t, doc.ContentHash)
	assert.Equal(t, documents.ContentHash(doc), *doc.ContentHash)
	assertMoney(t, "6000", doc.TotalTTC, "totalTTC")

	second := f.create(t, documents.TypeInvoice, documents.ModeIssue)
	assert.Equal(t, "FAC-2026-000002", second.Number)
}

func TestCreate_LegacyNonDraftIsIssued(t *testing.T) {
	f := newFixture()

	doc, err := f.svc.Create(context.Background(), documents.CreateInput{
		Type:           documents.TypePurchaseOrder,
		LegacyNonDraft: true,
		ClientID:       &f.client.ID,
		Items:          widgets("1", "10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "BC-2026-000001", doc.Number)
	assert.Equal(t, documents.StatusConfirmed, doc.Status)
}

func TestCreate_IssueWithoutClient(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), documents.CreateInput{
		Type:  documents.TypeInvoice,
		Mode:  documents.ModeIssue,
		Items: widgets("1", "10"),
	})
	assertCode(t, err, apperror.CodeIncompleteDocument, http.StatusBadRequest)
	assert.Empty(t, f.events.Events)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), documents.CreateInput{Type: "RECEIPT"})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)

	_, err = f.svc.Create(context.Background(), documents.CreateInput{
		Type:  documents.TypeQuote,
		Items: []documents.ItemInput{{Designation: "Widget", Quantity: d("0"), UnitPriceHT: d("5")}},
	})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "items[0].quantity", appErr.Details["field"])

	unknown := id.New()
	_, err = f.svc.Create(context.Background(), documents.CreateInput{Type: documents.TypeQuote, ClientID: &unknown})
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_ChainsParentReferences(t *testing.T) {
	f := newFixture()
	quote := f.create(t, documents.TypeQuote, documents.ModeIssue)

	child, err := f.svc.Create(context.Background(), documents.CreateInput{
		Type:     documents.TypePurchaseOrder,
		ClientID: &f.client.ID,
		ParentID: &quote.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, child.QuoteRef)
	assert.Equal(t, quote.Number, *child.QuoteRef)
	assert.Equal(t, quote.ID, *child.ParentID)

	detail, err := f.svc.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Len(t, detail.Children, 1)
	assert.Equal(t, child.ID, detail.Children[0].ID)

	childDetail, err := f.svc.Get(context.Background(), child.ID)
	require.NoError(t, err)
	require.NotNil(t, childDetail.Parent)
	assert.Equal(t, quote.Number, childDetail.Parent.Number)
}

func TestUpdate_ReplacesItemsAndRecomputes(t *testing.T) {
	f := newFixture()
	doc := f.create(t, documents.TypeQuote, documents.ModeDraft)
	version := doc.Version

	items := []documents.ItemInput{
		{Designation: "Widget", Quantity: d("10"), UnitPriceHT: d("50")},
		{Designation: "Manual", Quantity: d("1"), UnitPriceHT: d("100"), TVARate: dp("5.5")},
	}
	notes := "revised"
	updated, err := f.svc.Update(context.Background(), doc.ID, documents.UpdateInput{
		Version: &version,
		Notes:   &notes,
		Items:   &items,
	})
	require.NoError(t, err)

	assertMoney(t, "600", updated.TotalHT, "totalHT")
	assertMoney(t, "105.5", updated.TotalTVA, "totalTVA")
	assertMoney(t, "705.5", updated.TotalTTC, "totalTTC")
	assertMoney(t, "705.5", updated.Balance, "balance")
	assert.Len(t, updated.TVADetails, 2)
	assert.Equal(t, version+1, updated.Version)

	stored, err := f.svc.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Manual", stored.Items[1].Designation)
	assert.Equal(t, "revised", *stored.Notes)

	_, err = f.svc.Update(context.Background(), doc.ID, documents.UpdateInput{Version: &version, Notes: &notes})
	assertCode(t, err, apperror.CodeConcurrentModification, http.StatusConflict)
}

func TestUpdate_LockedDocumentIsUnchanged(t *testing.T) {
	f := newFixture()
	doc := f.create(t, documents.TypePurchaseOrder, documents.ModeIssue)

	items := widgets("1", "1")
	_, err := f.svc.Update(context.Background(), doc.ID, documents.UpdateInput{Items: &items})
	assertCode(t, err, apperror.CodeDocumentLocked, http.StatusBadRequest)

	stored, err := f.svc.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Version, stored.Version)
	assertMoney(t, "6000", stored.TotalTTC, "totalTTC")
	require.Len(t, stored.Items, 1)
	assertMoney(t, "100", stored.Items[0].Quantity, "quantity")
}

func TestUpdate_CancellationOnlyOnIssuedDocument(t *testing.T) {
	f := newFixture()
	doc := f.create(t, documents.TypeInvoice, documents.ModeIssue)
	cancelled := documents.StatusCancelled

	_, err := f.svc.Update(context.Background(), doc.ID, documents.UpdateInput{Status: &cancelled})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)

	updated, err := f.svc.Update(context.Background(), doc.ID, documents.UpdateInput{
		Status: &cancelled,
		Reason: "issued twice",
	})
	require.NoError(t, err)
	assert.Equal(t, documents.StatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelledAt)
	assert.Equal(t, "issued twice", *updated.CancellationReason)
	assert.Equal(t, doc.Number, updated.Number)
}

func TestUpdate_ItemsOfDocumentWithChildren(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	quote := f.create(t, documents.TypeQuote, documents.ModeDraft)
	_, err := f.svc.Create(ctx, documents.CreateInput{
		Type:     documents.TypePurchaseOrder,
		ClientID: &f.client.ID,
		ParentID: &quote.ID,
		Items:    widgets("100", "50"),
	})
	require.NoError(t, err)

	items := widgets("100", "50")
	_, err = f.svc.Update(ctx, quote.ID, documents.UpdateInput{Items: &items})
	assertCode(t, err, apperror.CodeStateConflict, http.StatusBadRequest)

	stored, err := f.svc.GetDocument(ctx, quote.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, quote.Items[0].ID, stored.Items[0].ID)

	notes := "still editable"
	_, err = f.svc.Update(ctx, quote.ID, documents.UpdateInput{Notes: &notes})
	require.NoError(t, err)
}

func TestDiscountIsCheckedAgainstMergedValues(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	fixed := totals.DiscountFixed
	pct := totals.DiscountPercentage

	_, err := f.svc.Create(ctx, documents.CreateInput{
		Type:          documents.TypeQuote,
		ClientID:      &f.client.ID,
		DiscountType:  &fixed,
		DiscountValue: dp("5000.01"),
		Items:         widgets("100", "50"),
	})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)

	doc, err := f.svc.Create(ctx, documents.CreateInput{
		Type:          documents.TypeQuote,
		ClientID:      &f.client.ID,
		DiscountType:  &pct,
		DiscountValue: dp("10"),
		Items:         widgets("100", "50"),
	})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, doc.ID, documents.UpdateInput{DiscountValue: dp("150")})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)

	_, err = f.svc.Update(ctx, doc.ID, documents.UpdateInput{DiscountType: &fixed, DiscountValue: dp("6000")})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)

	updated, err := f.svc.Update(ctx, doc.ID, documents.UpdateInput{DiscountType: &fixed, DiscountValue: dp("5000")})
	require.NoError(t, err)
	assertMoney(t, "0", updated.NetHT, "netHT")
	assert.False(t, updated.TotalTTC.IsNegative())
}

func TestChangeStatus_ConfirmIssuesNumber(t *testing.T) {
	f := newFixture()
	doc := f.create(t, documents.TypePurchaseOrder, documents.ModeDraft)
	draft := doc.Number

	confirmed, err := f.svc.ChangeStatus(context.Background(), doc.ID, documents.StatusConfirmed, "")
	require.NoError(t, err)

	assert.Equal(t, "BC-2026-000001", confirmed.Number)
	require.NotNil(t, confirmed.DraftNumber)
	assert.Equal(t, draft, *confirmed.DraftNumber)
	assert.True(t, confirmed.IsLocked)
	assert.False(t, confirmed.IsDraft)
	assert.NotNil(t, confirmed.ContentHash)

	last := f.events.Events[len(f.events.Events)-1]
	assert.Equal(t, events.DocumentStatusChanged, last.Type)
	assert.Equal(t, true, last.Payload.(map[string]any)["issued"])
}

func TestChangeStatus_ConfirmIncompleteDraft(t *testing.T) {
	f := newFixture()
	doc, err := f.svc.Create(context.Background(), documents.CreateInput{Type: documents.TypePurchaseOrder})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(context.Background(), doc.ID, documents.StatusConfirmed, "")
	assertCode(t, err, apperror.CodeIncompleteDocument, http.StatusUnprocessableEntity)
	appErr, _ := apperror.AsAppError(err)
	assert.Contains(t, appErr.Details["errors"], "client is required")

	stored, err := f.svc.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusDraft, stored.Status)
	assert.Equal(t, doc.Number, stored.Number)
}

func TestChangeStatus_PaidSettlesBalance(t *testing.T) {
	f := newFixture()
	doc := f.create(t, documents.TypeInvoice, documents.ModeIssue)

	paid, err := f.svc.ChangeStatus(context.Background(), doc.ID, documents.StatusPaid, "")
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assertMoney(t, "6000", paid.PaidAmount, "paid")
	assertMoney(t, "0", paid.Balance, "balance")

	_, err = f.svc.ChangeStatus(context.Background(), doc.ID, documents.StatusCancelled, "late")
	assertCode(t, err, apperror.CodeInvalidTransition, http.StatusBadRequest)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	clean := f.create(t, documents.TypeQuote, documents.ModeDraft)
	require.NoError(t, f.svc.Delete(ctx, clean.ID))
	_, err := f.svc.GetDocument(ctx, clean.ID)
	assert.True(t, apperror.IsNotFound(err))

	parent := f.create(t, documents.TypeQuote, documents.ModeDraft)
	_, err = f.svc.Create(ctx, documents.CreateInput{Type: documents.TypePurchaseOrder, ParentID: &parent.ID})
	require.NoError(t, err)
	assertCode(t, f.svc.Delete(ctx, parent.ID), apperror.CodeStateConflict, http.StatusBadRequest)

	issued := f.create(t, documents.TypeInvoice, documents.ModeIssue)
	assertCode(t, f.svc.Delete(ctx, issued.ID), apperror.CodeDocumentLocked, http.StatusBadRequest)
}

func TestIssue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc := f.create(t, documents.TypeQuote, documents.ModeDraft)

	res, err := f.svc.Issue(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Number, res.PreviousNumber)
	assert.Equal(t, "DEV-2026-000001", res.OfficialNumber)
	assert.Equal(t, documents.StatusSent, res.Document.Status)
	assert.True(t, res.Document.IsLocked)

	_, err = f.svc.Issue(ctx, doc.ID)
	assertCode(t, err, apperror.CodeDocumentLocked, http.StatusBadRequest)

	empty, err := f.svc.Create(ctx, documents.CreateInput{Type: documents.TypeQuote})
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, empty.ID)
	assertCode(t, err, apperror.CodeIncompleteDocument, http.StatusBadRequest)
}

func TestPreviewNumber_DoesNotConsume(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.PreviewNumber(ctx, documents.TypeQuote)
	require.NoError(t, err)
	again, err := f.svc.PreviewNumber(ctx, documents.TypeQuote)
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-000001", first)
	assert.Equal(t, first, again)

	doc := f.create(t, documents.TypeQuote, documents.ModeIssue)
	assert.Equal(t, first, doc.Number)

	_, err = f.svc.PreviewNumber(ctx, "RECEIPT")
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)
}

func TestConvert_QuoteToOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	quote := f.create(t, documents.TypeQuote, documents.ModeIssue)

	_, err := f.svc.Convert(ctx, quote.ID, documents.ConvertInput{TargetType: documents.TypePurchaseOrder})
	assertCode(t, err, apperror.CodeStateConflict, http.StatusBadRequest)

	_, err = f.svc.ChangeStatus(ctx, quote.ID, documents.StatusAccepted, "")
	require.NoError(t, err)

	_, err = f.svc.Convert(ctx, quote.ID, documents.ConvertInput{TargetType: documents.TypeInvoice})
	assertCode(t, err, apperror.CodeInvalidSourceType, http.StatusBadRequest)

	order, err := f.svc.Convert(ctx, quote.ID, documents.ConvertInput{
		TargetType: documents.TypePurchaseOrder,
		Items:      []documents.ConvertItem{{ItemID: quote.Items[0].ID, Quantity: d("40")}},
	})
	require.NoError(t, err)

	assert.True(t, order.IsDraft)
	assert.Equal(t, documents.TypePurchaseOrder, order.Type)
	require.NotNil(t, order.QuoteRef)
	assert.Equal(t, quote.Number, *order.QuoteRef)
	assert.Equal(t, quote.ClientID, order.ClientID)
	require.Len(t, order.Items, 1)
	assert.NotEqual(t, quote.Items[0].ID, order.Items[0].ID)
	assert.Nil(t, order.Items[0].SourceOrderItemID)
	assertMoney(t, "2400", order.TotalTTC, "totalTTC")

	_, err = f.svc.Convert(ctx, quote.ID, documents.ConvertInput{
		TargetType: documents.TypePurchaseOrder,
		Items:      []documents.ConvertItem{{ItemID: quote.Items[0].ID, Quantity: d("101")}},
	})
	assertCode(t, err, apperror.CodeValidation, http.StatusBadRequest)

	_, err = f.svc.Convert(ctx, quote.ID, documents.ConvertInput{
		TargetType: documents.TypePurchaseOrder,
		Items:      []documents.ConvertItem{{ItemID: id.New(), Quantity: d("1")}},
	})
	assertCode(t, err, apperror.CodeUnknownLineItem, http.StatusBadRequest)
}

func TestVerifyIntegrity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft := f.create(t, documents.TypeQuote, documents.ModeDraft)
	report, err := f.svc.VerifyIntegrity(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.NotEmpty(t, report.Note)

	doc := f.create(t, documents.TypeInvoice, documents.ModeIssue)
	report, err = f.svc.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.Equal(t, report.StoredHash, report.CurrentHash)
	assert.Empty(t, report.Discrepancies)

	items, err := f.store.GetItems(ctx, doc.ID)
	require.NoError(t, err)
	items[0].Quantity = d("101")
	require.NoError(t, f.store.SaveItems(ctx, doc.ID, items))

	report, err = f.svc.VerifyIntegrity(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.NotEqual(t, report.StoredHash, report.CurrentHash)
	assert.NotEmpty(t, report.Discrepancies)
}

func TestList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	other := f.catalog.AddClient("Globex")

	f.create(t, documents.TypeQuote, documents.ModeDraft)
	f.create(t, documents.TypeInvoice, documents.ModeIssue)
	_, err := f.svc.Create(ctx, documents.CreateInput{Type: documents.TypeQuote, ClientID: &other.ID})
	require.NoError(t, err)

	quote := documents.TypeQuote
	res, err := f.svc.List(ctx, documents.ListFilter{ListFilter: domain.DefaultListFilter(), Type: &quote})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalCount)

	filter := documents.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = "globex"
	res, err = f.svc.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, other.ID, *res.Items[0].ClientID)

	page := documents.ListFilter{ListFilter: domain.DefaultListFilter()}
	page.Page(2, 2)
	res, err = f.svc.List(ctx, page)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.TotalCount)
	assert.Len(t, res.Items, 1)
}

func TestWorkflow(t *testing.T) {
	f := newFixture()
	doc := f.create(t, documents.TypePurchaseOrder, documents.ModeDraft)

	wf, err := f.svc.Workflow(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusDraft, wf.Status)
	assert.Len(t, wf.Allowed, 3)
	assert.Equal(t, documents.WorkflowSteps(documents.TypePurchaseOrder), wf.Steps)
}
