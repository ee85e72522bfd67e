package auth

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
)

const contextKeyUsername = "username"

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
	authorizer  Authorizer
	realm       string
}

// NewMiddleware creates a new auth middleware. Basic credentials are checked
// with authorizer; session cookies with authService.
func NewMiddleware(authService *Service, authorizer Authorizer, realm string) *Middleware {
	return &Middleware{
		authService: authService,
		authorizer:  authorizer,
		realm:       realm,
	}
}

// Authenticate lets the request through when it carries a valid session
// cookie or valid HTTP Basic credentials. Otherwise it returns 401 with a
// Basic challenge.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
			claims, err := m.authService.ValidateToken(cookie.Value)
			if err == nil {
				c.Set(contextKeyUsername, claims.Username)
				return next(c)
			}
		}

		if username, password, ok := c.Request().BasicAuth(); ok {
			if m.authorizer.Authorize(username, password) {
				c.Set(contextKeyUsername, username)
				return next(c)
			}
		}

		c.Response().Header().Set(echo.HeaderWWWAuthenticate, fmt.Sprintf("Basic realm=%q", m.realm))
		return errcodes.Unauthorized("Authentication required")
	}
}

// GetUsernameFromContext returns the authenticated username, if any.
func GetUsernameFromContext(c echo.Context) (string, bool) {
	username, ok := c.Get(contextKeyUsername).(string)
	return username, ok
}
