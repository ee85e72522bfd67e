package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pilcrowbooks/pilcrow/pkg/books"
	"github.com/pilcrowbooks/pilcrow/pkg/classifications"
	"github.com/pilcrowbooks/pilcrow/pkg/config"
	"github.com/pilcrowbooks/pilcrow/pkg/database"
	"github.com/pilcrowbooks/pilcrow/pkg/googlebooks"
	"github.com/pilcrowbooks/pilcrow/pkg/ingestion"
	"github.com/pilcrowbooks/pilcrow/pkg/migrations"
	"github.com/pilcrowbooks/pilcrow/pkg/server"
	"github.com/pilcrowbooks/pilcrow/pkg/version"
	"github.com/pilcrowbooks/pilcrow/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	log := logger.New()
	ctx := log.WithContext(context.Background())

	log.Info("starting pilcrow", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	_, err = migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}

	err = classifications.NewService(db).SeedIfEmpty(ctx, cfg.ClassificationSeedFile)
	if err != nil {
		log.Err(err).Fatal("classification seed error")
	}

	client, err := googlebooks.NewClientFromConfig(cfg)
	if err != nil {
		log.Err(err).Fatal("google books client error")
	}
	ingestionService := ingestion.NewService(books.NewService(db), client)

	wrkr := worker.New(cfg, db, ingestionService)

	srv, err := server.New(cfg, db, ingestionService)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": fmt.Sprint(listener.Addr())})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(context.Background())
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
