package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docflow/internal/core/id"
	"docflow/internal/domain/delivery"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/storage/postgres"
)

var logColumns = postgres.ExtractDBColumns[delivery.Log]()

// DeliveryRepo implements delivery.Repository.
type DeliveryRepo struct {
	txManager *postgres.TxManager
}

var _ delivery.Repository = (*DeliveryRepo)(nil)

// NewDeliveryRepo creates the delivery repository.
func NewDeliveryRepo(txManager *postgres.TxManager) *DeliveryRepo {
	return &DeliveryRepo{txManager: txManager}
}

func deliveredLinesQuery(orderID id.ID) squirrel.SelectBuilder {
	return Builder().
		Select(
			"d.id AS delivery_note_id", "d.number", "d.status", "d.date", "d.received_by",
			"i.source_order_item_id", "i.quantity",
		).
		From(tableDocuments + " d").
		Join(tableItems + " i ON i.document_id = d.id").
		Where(squirrel.Eq{"d.parent_id": orderID, "d.type": documents.TypeDeliveryNote}).
		Where(squirrel.NotEq{"i.source_order_item_id": nil}).
		OrderBy("d.created_at", "i.position")
}

// ListDeliveredLines implements delivery.Repository. Cancelled notes are
// returned too; callers decide what counts.
func (r *DeliveryRepo) ListDeliveredLines(ctx context.Context, orderID id.ID) ([]delivery.DeliveredLine, error) {
	sql, args, err := deliveredLinesQuery(orderID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := []delivery.DeliveredLine{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list delivered lines: %w", err)
	}
	return out, nil
}

// CreateLog implements delivery.Repository.
func (r *DeliveryRepo) CreateLog(ctx context.Context, log *delivery.Log) error {
	sql, args, err := Builder().Insert(tableLogs).
		SetMap(postgres.Pick(postgres.StructToMap(log), logColumns)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// ListLogs implements delivery.Repository, oldest first.
func (r *DeliveryRepo) ListLogs(ctx context.Context, orderID id.ID) ([]delivery.Log, error) {
	sql, args, err := Builder().Select(logColumns...).From(tableLogs).
		Where(squirrel.Eq{"order_id": orderID}).OrderBy("created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := []delivery.Log{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	return out, nil
}
