package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// Matches the main listing's sort.
		_, err := db.Exec(`CREATE INDEX ix_books_catalog_order ON books (classification_code, author1_last, author1_first, title)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP INDEX IF EXISTS ix_books_catalog_order`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
