package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pilcrowbooks/pilcrow/pkg/classifications"
	"github.com/pilcrowbooks/pilcrow/pkg/config"
	"github.com/pilcrowbooks/pilcrow/pkg/database"
	"github.com/pilcrowbooks/pilcrow/pkg/migrations"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	app := &cli.App{
		Name:        "migrations",
		Usage:       "CLI to manage the catalog schema",
		Description: "Applies, rolls back and reports migrations, and seeds the classification scheme.",
		Before: func(c *cli.Context) error {
			c.Context = log.WithContext(c.Context)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return migrations.NewMigrator(db).Init(c.Context)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					_, err := migrations.BringUpToDate(c.Context, db)
					return err
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					group, err := migrations.NewMigrator(db).Rollback(c.Context)
					if err != nil {
						return err
					}

					if group.IsZero() {
						log.Info("there are no groups to roll back")
						return nil
					}

					log.Info("rolled back", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "create Go migration",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrations.NewMigrator(db).CreateGoMigration(
						c.Context,
						name,
						migrate.WithGoTemplate(migrationTemplate),
					)
					if err != nil {
						return err
					}
					log.Info("created migration", logger.Data{"name": mf.Name, "path": mf.Path})

					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "load the classification scheme into an empty database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Usage:   "yaml file with code and description entries; the bundled scheme when unset",
						Value:   cfg.ClassificationSeedFile,
						EnvVars: []string{"CLASSIFICATION_SEED_FILE"},
					},
				},
				Action: func(c *cli.Context) error {
					return classifications.NewService(db).SeedIfEmpty(c.Context, c.String("file"))
				},
			},
			{
				Name:  "status",
				Usage: "list migrations that have not been applied",
				Action: func(c *cli.Context) error {
					pending, err := migrations.Pending(c.Context, db)
					if err != nil {
						return err
					}
					if len(pending) == 0 {
						log.Info("catalog schema is up to date")
						return nil
					}
					for _, m := range pending {
						fmt.Printf("pending  %s\n", m.String())
					}
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
