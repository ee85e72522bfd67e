package classifications

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers classification routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	classificationService := NewService(db)

	h := &handler{
		classificationService: classificationService,
	}

	g.GET("", h.list)
	g.GET("/:code", h.retrieve)
	g.GET("/:code/books", h.books)
}
