// Package document_repo provides the PostgreSQL repositories of documents,
// their items, payments and delivery logs.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"docflow/internal/core/apperror"
	"docflow/internal/core/id"
	"docflow/internal/domain/billing"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/storage/postgres"
)

const (
	tableDocuments = "documents"
	tableItems     = "document_items"
	tablePayments  = "payments"
	tableLogs      = "delivery_logs"
)

var (
	documentColumns = postgres.ExtractDBColumns[documents.Document]()
	itemColumns     = postgres.ExtractDBColumns[documents.Item]()
)

// Columns never rewritten by Update.
var immutableDocumentColumns = []string{"id", "version", "type", "created_at", "created_by"}

// DocumentRepo implements documents.Repository and billing.Repository.
type DocumentRepo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchInserter
}

var (
	_ documents.Repository = (*DocumentRepo)(nil)
	_ billing.Repository   = (*DocumentRepo)(nil)
)

// NewDocumentRepo creates the document repository.
func NewDocumentRepo(txManager *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{txManager: txManager, batch: postgres.NewBatchInserter(txManager)}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return Builder().Select(documentColumns...).From(tableDocuments)
}

// Create implements documents.Repository.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	data := postgres.Pick(postgres.StructToMap(doc), documentColumns)
	sql, args, err := Builder().Insert(tableDocuments).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict("document number already exists").
				WithDetail("number", doc.Number).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", tableDocuments, err)
	}
	return nil
}

// Update implements documents.Repository.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	data := postgres.Pick(postgres.StructToMap(doc), documentColumns, immutableDocumentColumns...)
	sql, args, err := Builder().
		Update(tableDocuments).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID, "version": doc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableDocuments, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", doc.ID.String())
	}
	doc.Version++
	return nil
}

// GetByID implements documents.Repository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID)
}

// GetForUpdate implements documents.Repository.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

func (r *DocumentRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (*documents.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var doc documents.Document
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Delete implements documents.Repository.
func (r *DocumentRepo) Delete(ctx context.Context, docID id.ID) error {
	sql, args, err := Builder().Delete(tableDocuments).Where(squirrel.Eq{"id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewStateConflict(apperror.CodeStateConflict, "document is referenced by other documents").
				WithDetail("id", docID.String()).WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", tableDocuments, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}
	return nil
}

// List implements documents.Repository.
func (r *DocumentRepo) List(ctx context.Context, f documents.ListFilter) (documents.ListResult, error) {
	res := documents.ListResult{Limit: f.Limit, Offset: f.Offset, Items: []*documents.Document{}}

	q := applyFilter(r.baseSelect(), f)
	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return res, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count documents: %w", err)
	}

	orderBy, err := parseOrderBy(f.OrderBy)
	if err != nil {
		return res, err
	}
	q = q.OrderBy(orderBy)
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return res, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &res.Items, sql, args...); err != nil {
		return res, fmt.Errorf("list documents: %w", err)
	}
	return res, nil
}

func applyFilter(q squirrel.SelectBuilder, f documents.ListFilter) squirrel.SelectBuilder {
	if f.Type != nil {
		q = q.Where(squirrel.Eq{"type": *f.Type})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *f.ClientID})
	}
	if f.ProjectID != nil {
		q = q.Where(squirrel.Eq{"project_id": *f.ProjectID})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *f.DateTo})
	}
	if len(f.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": f.IDs})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"client_name": pattern},
			squirrel.Expr("project_id IN (SELECT id FROM projects WHERE name ILIKE ?)", pattern),
		})
	}
	return q
}

var sortable = map[string]struct{}{
	"number": {}, "date": {}, "status": {}, "type": {}, "created_at": {},
	"updated_at": {}, "total_ttc": {}, "balance": {}, "due_date": {},
}

func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "created_at DESC", nil
	}
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = orderBy[1:]
	} else if strings.HasPrefix(orderBy, "+") {
		field = orderBy[1:]
	}
	if _, ok := sortable[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}

// GetItems implements documents.Repository.
func (r *DocumentRepo) GetItems(ctx context.Context, docID id.ID) ([]documents.Item, error) {
	sql, args, err := Builder().Select(itemColumns...).From(tableItems).
		Where(squirrel.Eq{"document_id": docID}).OrderBy("position").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	items := []documents.Item{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return items, nil
}

// SaveItems implements documents.Repository. The old lines are deleted and
// the new ones copied in one COPY round trip.
func (r *DocumentRepo) SaveItems(ctx context.Context, docID id.ID, items []documents.Item) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.txManager.GetQuerier(ctx).Exec(ctx,
			`DELETE FROM `+tableItems+` WHERE document_id = $1`, docID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		rows := make([][]any, len(items))
		for i := range items {
			it := items[i]
			it.DocumentID = docID
			it.Position = i
			if id.IsNil(it.ID) {
				it.ID = id.New()
			}
			rows[i] = postgres.Values(it, itemColumns)
		}
		_, err := r.batch.CopyFromSlice(ctx, tableItems, itemColumns, rows)
		return err
	})
}

// ListChildren implements documents.Repository.
func (r *DocumentRepo) ListChildren(ctx context.Context, parentID id.ID) ([]*documents.Document, error) {
	return r.selectDocs(ctx, r.baseSelect().Where(squirrel.Eq{"parent_id": parentID}).OrderBy("created_at"))
}

// CountChildren implements documents.Repository.
func (r *DocumentRepo) CountChildren(ctx context.Context, docID id.ID) (int, error) {
	var n int
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+tableDocuments+` WHERE parent_id = $1`, docID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// ListDepositInvoices implements billing.Repository.
func (r *DocumentRepo) ListDepositInvoices(ctx context.Context, quoteID id.ID) ([]*documents.Document, error) {
	return r.selectDocs(ctx, r.baseSelect().
		Where(squirrel.Eq{"type": documents.TypeDepositInvoice, "linked_quote_id": quoteID}).
		OrderBy("created_at"))
}

func (r *DocumentRepo) selectDocs(ctx context.Context, q squirrel.SelectBuilder) ([]*documents.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	docs := []*documents.Document{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	return docs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
