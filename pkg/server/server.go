package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pilcrowbooks/pilcrow/pkg/auth"
	"github.com/pilcrowbooks/pilcrow/pkg/binder"
	"github.com/pilcrowbooks/pilcrow/pkg/books"
	"github.com/pilcrowbooks/pilcrow/pkg/classifications"
	"github.com/pilcrowbooks/pilcrow/pkg/config"
	"github.com/pilcrowbooks/pilcrow/pkg/database"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/ingestion"
	"github.com/pilcrowbooks/pilcrow/pkg/jobs"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, ingestionService *ingestion.Service) (*http.Server, error) {
	e, err := newEcho(cfg, db, ingestionService)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, ingestionService *ingestion.Service) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())
	if cfg.DatabaseDebug {
		e.Use(queryLogging)
	}

	health.RegisterRoutes(e)

	// The configured credential serves both the login form and HTTP Basic.
	authService, err := auth.NewServiceFromConfig(cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	authMiddleware := auth.NewMiddleware(authService, authService, cfg.AuthRealm)
	auth.RegisterRoutes(e, authService, authMiddleware)

	books.RegisterRoutesWithGroup(e.Group("/books"), db, ingestionService, authMiddleware)
	classifications.RegisterRoutesWithGroup(e.Group("/classifications"), db)

	jobs.RegisterRoutesWithGroup(e.Group("/jobs"), jobs.NewService(db), authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

// queryLogging marks every request context so the debug query hook logs the
// queries run on its behalf.
func queryLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.SetRequest(c.Request().WithContext(database.WithLogging(c.Request().Context())))
		return next(c)
	}
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
