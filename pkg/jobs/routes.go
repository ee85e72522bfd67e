package jobs

import (
	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/auth"
)

// RegisterRoutesWithGroup registers job routes on a pre-configured group.
// Refresh progress is only visible to a signed-in librarian.
func RegisterRoutesWithGroup(g *echo.Group, jobService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		jobService: jobService,
	}

	g.GET("", h.list, authMiddleware.Authenticate)
	g.GET("/:id", h.retrieve, authMiddleware.Authenticate)
}
