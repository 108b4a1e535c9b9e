package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/domain"
)

func TestClientRepo_SearchFilter(t *testing.T) {
	repo := NewClientRepo(nil)

	sql, args, err := repo.applyFilter(repo.Builder().Select("id").From("clients"),
		domain.ListFilter{Search: "acme"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM clients WHERE (name ILIKE $1 OR city ILIKE $2 OR tax_id ILIKE $3 OR email ILIKE $4)", sql)
	assert.Len(t, args, 4)
	assert.Equal(t, "%acme%", args[0])
}

func TestBaseCatalogRepo_Columns(t *testing.T) {
	repo := NewProjectRepo(nil)
	assert.Equal(t, []string{"id", "version", "created_at", "name", "client_id"}, repo.selectCols)

	sql, _, err := repo.baseSelect().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, version, created_at, name, client_id FROM projects", sql)
}

func TestBaseCatalogRepo_ParseOrderBy(t *testing.T) {
	repo := NewClientRepo(nil)

	got, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "name ASC", got)

	got, err = repo.parseOrderBy("-created_at")
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", got)

	_, err = repo.parseOrderBy("password")
	assert.Error(t, err)
}
