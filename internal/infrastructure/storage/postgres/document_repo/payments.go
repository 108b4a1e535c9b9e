package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/storage/postgres"
)

var paymentColumns = postgres.ExtractDBColumns[documents.Payment]()

// PaymentRepo implements documents.PaymentRepository.
type PaymentRepo struct {
	txManager *postgres.TxManager
}

var _ documents.PaymentRepository = (*PaymentRepo)(nil)

// NewPaymentRepo creates the payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{txManager: txManager}
}

// Create implements documents.PaymentRepository.
func (r *PaymentRepo) Create(ctx context.Context, p *documents.Payment) error {
	sql, args, err := Builder().Insert(tablePayments).
		SetMap(postgres.Pick(postgres.StructToMap(p), paymentColumns)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID implements documents.PaymentRepository.
func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*documents.Payment, error) {
	sql, args, err := Builder().Select(paymentColumns...).From(tablePayments).
		Where(squirrel.Eq{"id": paymentID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p documents.Payment
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// Delete implements documents.PaymentRepository.
func (r *PaymentRepo) Delete(ctx context.Context, paymentID id.ID) error {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM `+tablePayments+` WHERE id = $1`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("payment", paymentID.String())
	}
	return nil
}

// ListByDocument implements documents.PaymentRepository, newest first.
func (r *PaymentRepo) ListByDocument(ctx context.Context, docID id.ID) ([]documents.Payment, error) {
	sql, args, err := Builder().Select(paymentColumns...).From(tablePayments).
		Where(squirrel.Eq{"document_id": docID}).OrderBy("paid_at DESC", "created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := []documents.Payment{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

// CountByDocument implements documents.PaymentRepository.
func (r *PaymentRepo) CountByDocument(ctx context.Context, docID id.ID) (int, error) {
	var n int
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+tablePayments+` WHERE document_id = $1`, docID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}
