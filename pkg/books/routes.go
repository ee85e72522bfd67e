package books

import (
	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/auth"
	"github.com/pilcrowbooks/pilcrow/pkg/classifications"
	"github.com/pilcrowbooks/pilcrow/pkg/ingestion"
	"github.com/pilcrowbooks/pilcrow/pkg/jobs"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
// Reads are public; anything that changes the catalog requires a login.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, ingestionService *ingestion.Service, authMiddleware *auth.Middleware) {
	h := &handler{
		bookService:           NewService(db),
		classificationService: classifications.NewService(db),
		ingestionService:      ingestionService,
		jobService:            jobs.NewService(db),
	}

	g.GET("", h.list)
	g.GET("/unclassified", h.unclassified)
	g.GET("/:id", h.retrieve)

	g.POST("", h.create, authMiddleware.Authenticate)
	g.POST("/refresh", h.refresh, authMiddleware.Authenticate)
	g.GET("/:id/edit", h.edit, authMiddleware.Authenticate)
	g.POST("/:id/classification", h.classify, authMiddleware.Authenticate)
	g.DELETE("/:id", h.delete, authMiddleware.Authenticate)
}
