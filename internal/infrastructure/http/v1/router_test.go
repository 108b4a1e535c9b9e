package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/core/apperror"
	"docflow/internal/core/numerator"
	"docflow/internal/domain/billing"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/delivery"
	"docflow/internal/domain/documents"
	"docflow/internal/domain/memrepo"
	v1 "docflow/internal/infrastructure/http/v1"
	"docflow/internal/infrastructure/http/v1/handlers"
	"docflow/internal/infrastructure/http/v1/middleware"
	"docflow/internal/infrastructure/storage/postgres"
)

var clock = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type api struct {
	t      *testing.T
	router *gin.Engine
	client *client.Client
}

func newAPI(t *testing.T, store middleware.IdempotencyStore) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memrepo.New()
	catalog := memrepo.NewCatalog()
	docs := documents.NewService(documents.Config{
		Repo:      repo,
		Payments:  repo.Payments(),
		Clients:   catalog.ClientLookup(),
		Projects:  catalog.ProjectLookup(),
		Numerator: numerator.NewMockGenerator(),
		Now:       func() time.Time { return clock },
	})
	cfg := v1.RouterConfig{
		Documents: docs,
		Delivery: delivery.NewService(delivery.Config{
			Documents:  docs,
			Repo:       repo,
			Deliveries: repo,
		}),
		Billing: billing.NewService(billing.Config{
			Documents: docs,
			Repo:      repo,
			Payments:  repo.Payments(),
			Deposits:  repo,
		}),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return nil },
		},
	}
	if store != nil {
		cfg.Idempotency = store
	}
	return &api{t: t, router: v1.NewRouter(cfg), client: catalog.AddClient("Acme Industries")}
}

type response struct {
	Code    int             `json:"-"`
	Header  http.Header     `json:"-"`
	Raw     []byte          `json:"-"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	ErrCode string          `json:"code"`
	Details map[string]any  `json:"details"`
}

func (a *api) do(method, path string, body any, headers ...string) response {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	out := response{Code: rec.Code, Header: rec.Header(), Raw: rec.Body.Bytes()}
	if len(out.Raw) > 0 {
		require.NoError(a.t, json.Unmarshal(out.Raw, &out), "body: %s", out.Raw)
	}
	return out
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

type docView struct {
	ID       string  `json:"id"`
	Number   string  `json:"number"`
	Status   string  `json:"status"`
	IsLocked bool    `json:"isLocked"`
	Notes    *string `json:"notes"`
	TotalHT  float64 `json:"totalHT"`
	TotalTTC float64 `json:"totalTTC"`
	Balance  float64 `json:"balance"`
	Items    []struct {
		ID       string  `json:"id"`
		Quantity float64 `json:"quantity"`
	} `json:"items"`
}

func (a *api) createIssued(typ string, qty, price string) docView {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"type":             typ,
		"issueImmediately": true,
		"clientId":         a.client.ID.String(),
		"items": []map[string]any{
			{"designation": "Steel beam", "quantity": qty, "unitPriceHT": price},
		},
	})
	require.Equal(a.t, http.StatusCreated, res.Code, "body: %s", res.Raw)
	var doc docView
	res.decode(a.t, &doc)
	return doc
}

func TestCreateAndGetDocument(t *testing.T) {
	a := newAPI(t, nil)

	res := a.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"type":  "QUOTE",
		"date":  "2026-05-04",
		"items": []map[string]any{{"designation": "Audit", "quantity": 2, "unitPriceHT": "150.00"}},
	})
	require.Equal(t, http.StatusCreated, res.Code, "body: %s", res.Raw)
	assert.True(t, res.Success)

	var created docView
	res.decode(t, &created)
	assert.Equal(t, "DRAFT", created.Status)
	assert.False(t, created.IsLocked)
	assert.InDelta(t, 300.0, created.TotalHT, 0.001)
	assert.InDelta(t, 360.0, created.TotalTTC, 0.001)
	assert.InDelta(t, 360.0, created.Balance, 0.001)

	res = a.do(http.MethodGet, "/api/v1/documents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var detail struct {
		docView
		Payments []any `json:"payments"`
		Children []any `json:"children"`
	}
	res.decode(t, &detail)
	assert.Equal(t, created.ID, detail.ID)
	assert.Len(t, detail.Items, 1)
	assert.Empty(t, detail.Payments)
	assert.NotNil(t, detail.Children)
}

func TestMoneyIsSentWithTwoDecimals(t *testing.T) {
	a := newAPI(t, nil)
	res := a.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"type":  "QUOTE",
		"items": []map[string]any{{"designation": "Audit", "quantity": 1, "unitPriceHT": 100}},
	})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Contains(t, string(res.Raw), `"totalHT":100.00`)
	assert.Contains(t, string(res.Raw), `"totalTTC":120.00`)
}

func TestCreateDocumentValidation(t *testing.T) {
	a := newAPI(t, nil)

	res := a.do(http.MethodPost, "/api/v1/documents", map[string]any{
		"type":  "BOGUS",
		"items": []map[string]any{{"quantity": 1}},
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.False(t, res.Success)
	assert.Equal(t, apperror.CodeValidation, res.ErrCode)

	fields, ok := res.Details["fields"].([]any)
	require.True(t, ok, "details: %v", res.Details)
	names := make(map[string]string)
	for _, f := range fields {
		fe := f.(map[string]any)
		names[fe["field"].(string)] = fe["rule"].(string)
	}
	assert.Equal(t, "oneof", names["type"])
	assert.Equal(t, "required", names["items[0].designation"])
}

func TestErrorEnvelope(t *testing.T) {
	a := newAPI(t, nil)

	res := a.do(http.MethodGet, "/api/v1/documents/0190a4c2-0000-7000-8000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.False(t, res.Success)
	assert.Equal(t, apperror.CodeNotFound, res.ErrCode)
	assert.NotEmpty(t, res.Error)

	res = a.do(http.MethodGet, "/api/v1/documents/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, apperror.CodeValidation, res.ErrCode)
}

func TestUpdateLockedDocumentIsRejected(t *testing.T) {
	a := newAPI(t, nil)
	invoice := a.createIssued("INVOICE", "1", "500")
	require.True(t, invoice.IsLocked)

	res := a.do(http.MethodPut, "/api/v1/documents/"+invoice.ID, map[string]any{"notes": "changed"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, apperror.CodeDocumentLocked, res.ErrCode)

	res = a.do(http.MethodGet, "/api/v1/documents/"+invoice.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var after docView
	res.decode(t, &after)
	assert.Nil(t, after.Notes)
	assert.Equal(t, invoice.Number, after.Number)
	assert.InDelta(t, invoice.TotalTTC, after.TotalTTC, 0.001)

	res = a.do(http.MethodDelete, "/api/v1/documents/"+invoice.ID, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestUpdateAndDeleteDraft(t *testing.T) {
	a := newAPI(t, nil)
	res := a.do(http.MethodPost, "/api/v1/documents", map[string]any{"type": "QUOTE"})
	require.Equal(t, http.StatusCreated, res.Code)
	var draft docView
	res.decode(t, &draft)

	res = a.do(http.MethodPut, "/api/v1/documents/"+draft.ID, map[string]any{"notes": "call first"})
	require.Equal(t, http.StatusOK, res.Code, "body: %s", res.Raw)
	var updated docView
	res.decode(t, &updated)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "call first", *updated.Notes)

	res = a.do(http.MethodDelete, "/api/v1/documents/"+draft.ID, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = a.do(http.MethodGet, "/api/v1/documents/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestPartialDeliveryEndpoints(t *testing.T) {
	a := newAPI(t, nil)
	order := a.createIssued("PURCHASE_ORDER", "10", "20")
	require.Equal(t, "CONFIRMED", order.Status)
	require.Len(t, order.Items, 1)
	itemID := order.Items[0].ID

	res := a.do(http.MethodPost, "/api/v1/documents/"+order.ID+"/partial-delivery", map[string]any{
		"items": []map[string]any{{"bcItemId": itemID, "deliverQty": 11}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, apperror.CodeExceedsRemaining, res.ErrCode)

	res = a.do(http.MethodGet, "/api/v1/documents/"+order.ID, nil)
	var unchanged docView
	res.decode(t, &unchanged)
	assert.Equal(t, "CONFIRMED", unchanged.Status)

	res = a.do(http.MethodPost, "/api/v1/documents/"+order.ID+"/partial-delivery", map[string]any{
		"items": []map[string]any{{"bcItemId": itemID, "deliverQty": 4}},
	})
	require.Equal(t, http.StatusCreated, res.Code, "body: %s", res.Raw)
	var delivered struct {
		SourceOrder struct {
			NewStatus        string `json:"newStatus"`
			IsFullyDelivered bool   `json:"isFullyDelivered"`
		} `json:"sourceOrder"`
		DeliveryStatus []struct {
			Remaining      float64 `json:"remaining"`
			TotalDelivered float64 `json:"totalDelivered"`
		} `json:"deliveryStatus"`
	}
	res.decode(t, &delivered)
	assert.Equal(t, "PARTIAL", delivered.SourceOrder.NewStatus)
	assert.False(t, delivered.SourceOrder.IsFullyDelivered)
	require.Len(t, delivered.DeliveryStatus, 1)
	assert.InDelta(t, 6.0, delivered.DeliveryStatus[0].Remaining, 0.0001)
	assert.InDelta(t, 4.0, delivered.DeliveryStatus[0].TotalDelivered, 0.0001)

	res = a.do(http.MethodPost, "/api/v1/documents/"+order.ID+"/partial-delivery", map[string]any{
		"items": []map[string]any{{"deliverQty": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, apperror.CodeValidation, res.ErrCode)
	assert.Contains(t, string(res.Raw), `"field":"items[0].bcItemId"`)

	res = a.do(http.MethodPost, "/api/v1/documents/"+order.ID+"/partial-delivery", map[string]any{
		"items": []map[string]any{{"bcItemId": "not-a-uuid", "deliverQty": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, string(res.Raw), `"field":"items[0].bcItemId"`)

	res = a.do(http.MethodGet, "/api/v1/documents/"+order.ID+"/partial-delivery", nil)
	require.Equal(t, http.StatusOK, res.Code, "body: %s", res.Raw)
	var status struct {
		Deliveries []any `json:"deliveries"`
	}
	res.decode(t, &status)
	assert.Len(t, status.Deliveries, 1)
}

func TestPaymentEndpoints(t *testing.T) {
	a := newAPI(t, nil)
	invoice := a.createIssued("INVOICE", "1", "100")

	res := a.do(http.MethodPost, "/api/v1/documents/"+invoice.ID+"/payments", map[string]any{
		"amount": 50, "method": "BANK_TRANSFER",
	})
	require.Equal(t, http.StatusCreated, res.Code, "body: %s", res.Raw)

	res = a.do(http.MethodGet, "/api/v1/documents/"+invoice.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var payments []map[string]any
	res.decode(t, &payments)
	assert.Len(t, payments, 1)

	res = a.do(http.MethodPost, "/api/v1/documents/"+invoice.ID+"/payments", map[string]any{
		"amount": 50, "method": "BITCOIN",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestNextNumberAndWorkflow(t *testing.T) {
	a := newAPI(t, nil)

	res := a.do(http.MethodGet, "/api/v1/documents/next-number?type=INVOICE", nil)
	require.Equal(t, http.StatusOK, res.Code, "body: %s", res.Raw)
	var next struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	}
	res.decode(t, &next)
	assert.Equal(t, "INVOICE", next.Type)
	assert.NotEmpty(t, next.Number)

	res = a.do(http.MethodGet, "/api/v1/documents/next-number", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = a.do(http.MethodPost, "/api/v1/documents", map[string]any{"type": "QUOTE"})
	var draft docView
	res.decode(t, &draft)
	res = a.do(http.MethodGet, "/api/v1/documents/"+draft.ID+"/workflow", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var wf struct {
		Status  string `json:"status"`
		Allowed []struct {
			To string `json:"to"`
		} `json:"allowedTransitions"`
	}
	res.decode(t, &wf)
	assert.Equal(t, "DRAFT", wf.Status)
	assert.NotEmpty(t, wf.Allowed)
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)
	res := a.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Raw), `"database":"healthy"`)
}

// memIdempotency keeps keys in memory with the semantics of the postgres store.
type memIdempotency struct {
	mu      sync.Mutex
	hashes  map[string]string
	replays map[string]*postgres.Replay
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{hashes: map[string]string{}, replays: map[string]*postgres.Replay{}}
}

func (m *memIdempotency) Acquire(_ context.Context, key, _, _, requestHash string) (*postgres.Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hashes[key]; ok {
		if h != requestHash {
			return nil, apperror.NewIdempotencyMismatch(key)
		}
		if r, done := m.replays[key]; done {
			return r, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
	m.hashes[key] = requestHash
	return nil, nil
}

func (m *memIdempotency) store(key string, status int, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays[key] = &postgres.Replay{StatusCode: status, ContentType: contentType, Body: append([]byte(nil), body...)}
	return nil
}

func (m *memIdempotency) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	return m.store(key, status, contentType, body)
}

func (m *memIdempotency) Fail(_ context.Context, key string, status int, contentType string, body []byte) error {
	return m.store(key, status, contentType, body)
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	delete(m.replays, key)
	return nil
}

func TestIdempotentReplay(t *testing.T) {
	store := newMemIdempotency()
	a := newAPI(t, store)
	body := map[string]any{"type": "QUOTE", "notes": "once"}

	first := a.do(http.MethodPost, "/api/v1/documents", body, middleware.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := a.do(http.MethodPost, "/api/v1/documents", body, middleware.HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, first.Raw, second.Raw)

	list := a.do(http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var page struct {
		Documents  []docView `json:"documents"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	list.decode(t, &page)
	assert.Equal(t, 1, page.Pagination.Total)

	other := a.do(http.MethodPost, "/api/v1/documents", map[string]any{"type": "INVOICE"}, middleware.HeaderIdempotencyKey, "key-1")
	assert.Equal(t, http.StatusConflict, other.Code)
}

func TestIdempotencyReplaysClientErrors(t *testing.T) {
	store := newMemIdempotency()
	a := newAPI(t, store)
	body := map[string]any{"type": "BOGUS"}

	first := a.do(http.MethodPost, "/api/v1/documents", body, middleware.HeaderIdempotencyKey, "bad-1")
	require.Equal(t, http.StatusBadRequest, first.Code)

	second := a.do(http.MethodPost, "/api/v1/documents", body, middleware.HeaderIdempotencyKey, "bad-1")
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
}
