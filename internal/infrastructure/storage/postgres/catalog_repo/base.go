// Package catalog_repo provides the PostgreSQL repositories of the client
// and project catalogs.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docflow/internal/core/apperror"
	"docflow/internal/core/entity"
	"docflow/internal/core/id"
	"docflow/internal/domain"
	"docflow/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo holds the CRUD shared by catalog tables.
type BaseCatalogRepo[T entity.Validatable] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	searchCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a base repository over tableName. Search
// matches searchCols case-insensitively.
func NewBaseCatalogRepo[T entity.Validatable](
	txManager *postgres.TxManager,
	tableName, entityName string,
	searchCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		searchCols: searchCols,
		newFn:      newFn,
	}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func (r *BaseCatalogRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

// Create inserts entity.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	sql, args, err := r.Builder().Insert(r.tableName).
		SetMap(postgres.Pick(postgres.StructToMap(entity), r.selectCols)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict(r.entityName + " already exists").WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes entity with optimistic locking on version.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	entityID, version := data["id"], data["version"]

	sql, args, err := r.Builder().Update(r.tableName).
		SetMap(postgres.Pick(data, r.selectCols, "id", "version", "created_at")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, entityID)
	}
	return nil
}

// GetByID loads one entity.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.FindOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// FindOne runs q and scans a single entity. what names the lookup in the
// not-found error.
func (r *BaseCatalogRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder, what string) (T, error) {
	entity := r.newFn()
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, what)
		}
		return entity, fmt.Errorf("get %s: %w", r.entityName, err)
	}
	return entity, nil
}

// List returns a page of entities.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	res := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset, Items: []T{}}

	q := r.applyFilter(r.baseSelect(), filter)
	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return res, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count %s: %w", r.tableName, err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return res, err
	}
	q = q.OrderBy(orderBy)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return res, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &res.Items, sql, args...); err != nil {
		return res, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return res, nil
}

func (r *BaseCatalogRepo[T]) applyFilter(q squirrel.SelectBuilder, filter domain.ListFilter) squirrel.SelectBuilder {
	if s := strings.TrimSpace(filter.Search); s != "" && len(r.searchCols) > 0 {
		or := squirrel.Or{}
		for _, col := range r.searchCols {
			or = append(or, squirrel.ILike{col: "%" + s + "%"})
		}
		q = q.Where(or)
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	return q
}

// Exists reports whether a row with entityID exists.
func (r *BaseCatalogRepo[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	var one int
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		"SELECT 1 FROM "+r.tableName+" WHERE id = $1", entityID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", r.tableName, err)
	}
	return true, nil
}

// Delete removes a row. Rows still referenced by documents are kept.
func (r *BaseCatalogRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		"DELETE FROM "+r.tableName+" WHERE id = $1", entityID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewConflict(r.entityName+" is used by documents").
				WithDetail("id", entityID.String()).WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

func (r *BaseCatalogRepo[T]) parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "name ASC", nil
	}
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = orderBy[1:]
	}
	for _, col := range r.selectCols {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}
