package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations holds the catalog schema: books, the classification tree and
// background jobs.
var Migrations = migrate.NewMigrations()

// NewMigrator returns a migrator over the catalog schema.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, Migrations)
}

// BringUpToDate creates the migration bookkeeping tables if needed and applies
// every pending migration as one group. The group is zero when nothing ran.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	log := logger.FromContext(ctx)

	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if group.IsZero() {
		log.Info("catalog schema is up to date")
	} else {
		log.Info("migrated catalog schema", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}
	return group, nil
}

// Pending lists the migrations that have not been applied yet, oldest first.
func Pending(ctx context.Context, db *bun.DB) (migrate.MigrationSlice, error) {
	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ms.Unapplied(), nil
}
