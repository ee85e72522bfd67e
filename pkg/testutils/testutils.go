// Package testutils provides helpers shared by package tests: an in-memory
// database with every migration applied, plus fixtures for the catalog.
package testutils

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pilcrowbooks/pilcrow/pkg/migrations"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewDB opens an in-memory sqlite database and brings it up to date. The
// database is closed when the test finishes.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: gets its own database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	_, err = db.Exec("PRAGMA foreign_keys=ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	return db
}

// InsertClassifications inserts one node per entry, deriving granularity
// from the code.
func InsertClassifications(t testing.TB, db *bun.DB, nodes map[int]string) {
	t.Helper()

	for code, description := range nodes {
		_, err := db.NewInsert().Model(&models.Classification{
			Code:        code,
			Description: description,
			Granularity: models.GranularityOf(code),
		}).Exec(context.Background())
		require.NoError(t, err)
	}
}

// InsertBook inserts a book with the given ISBN and title, optionally filed
// under a classification.
func InsertBook(t testing.TB, db *bun.DB, isbn, title string, classificationCode *int) *models.Book {
	t.Helper()

	book := &models.Book{
		ISBN:               isbn,
		Title:              &title,
		ClassificationCode: classificationCode,
	}
	_, err := db.NewInsert().Model(book).Returning("*").Exec(context.Background())
	require.NoError(t, err)
	return book
}
