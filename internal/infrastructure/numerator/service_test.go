package numerator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "docflow/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (r mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.val
	return nil
}

// mockQuerier simulates sys_sequences as a map keyed by sequence key.
type mockQuerier struct {
	mu   sync.Mutex
	seqs map[string]int64
	keys []string
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{seqs: map[string]int64{}}
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := args[0].(string)
	m.keys = append(m.keys, key)
	switch {
	case strings.HasPrefix(strings.TrimSpace(sql), "SELECT"):
		v, ok := m.seqs[key]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{val: v}
	case len(args) == 2:
		m.seqs[key] = args[1].(int64)
	default:
		m.seqs[key]++
	}
	return mockRow{val: m.seqs[key]}
}

func newService(q *mockQuerier) *Service {
	return New(func(context.Context) Querier { return q })
}

var march = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestNext_SequentialPerCategoryAndYear(t *testing.T) {
	q := newMockQuerier()
	svc := newService(q)
	ctx := context.Background()

	n, err := svc.Next(ctx, core.CategoryInvoice, march)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-000001", n)

	n, err = svc.Next(ctx, core.CategoryInvoice, march)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-000002", n)

	n, err = svc.Next(ctx, core.CategoryQuote, march)
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-000001", n)

	n, err = svc.Next(ctx, core.CategoryInvoice, march.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "FAC-2027-000001", n)

	assert.Equal(t, []string{"B2B:FAC:2026", "B2B:FAC:2026", "B2B:DEV:2026", "B2B:FAC:2027"}, q.keys)
}

func TestPeek_DoesNotConsume(t *testing.T) {
	q := newMockQuerier()
	svc := newService(q)
	ctx := context.Background()

	n, err := svc.Peek(ctx, core.CategoryDeliveryNote, march)
	require.NoError(t, err)
	assert.Equal(t, "BL-2026-000001", n)

	_, err = svc.Next(ctx, core.CategoryDeliveryNote, march)
	require.NoError(t, err)

	n, err = svc.Peek(ctx, core.CategoryDeliveryNote, march)
	require.NoError(t, err)
	assert.Equal(t, "BL-2026-000002", n)

	n, err = svc.Next(ctx, core.CategoryDeliveryNote, march)
	require.NoError(t, err)
	assert.Equal(t, "BL-2026-000002", n)
}

func TestSetCurrent(t *testing.T) {
	q := newMockQuerier()
	svc := newService(q)
	ctx := context.Background()

	require.NoError(t, svc.SetCurrent(ctx, core.CategoryPurchaseOrder, march, 41))
	n, err := svc.Next(ctx, core.CategoryPurchaseOrder, march)
	require.NoError(t, err)
	assert.Equal(t, "BC-2026-000042", n)
}

func TestConfigure_Format(t *testing.T) {
	svc := newService(newMockQuerier())
	svc.Configure(core.CategoryCreditNote, core.Config{Prefix: "AV", PadWidth: 4, Reset: core.ResetNever})

	n, err := svc.Next(context.Background(), core.CategoryCreditNote, march)
	require.NoError(t, err)
	assert.Equal(t, "AV-0001", n)
}

func TestNext_WrapsDriverError(t *testing.T) {
	svc := New(func(context.Context) Querier { return errQuerier{} })
	_, err := svc.Next(context.Background(), core.CategoryInvoice, march)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B2B:FAC:2026")
	assert.ErrorIs(t, err, assert.AnError)
}

type errQuerier struct{}

func (errQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return mockRow{err: assert.AnError}
}
