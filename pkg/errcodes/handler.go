package errcodes

import (
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/errutils"
	"github.com/robinjoseph08/golib/logger"
)

type errorBody struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"status_code"`
	Details    interface{} `json:"details,omitempty"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle is an Echo error handler. Errors from this package and Echo keep
// their status and code; anything else is rendered as a 500.
func (h *Handler) Handle(err error, c echo.Context) {
	log := logger.FromContext(c.Request().Context())

	if errutils.IsIgnorableErr(err) {
		log.Err(err).Warn("broken pipe")
		return
	}
	if c.Response().Committed {
		log.Err(err).Warn("error after response was written")
		return
	}

	body := render(err)

	switch body.StatusCode {
	case http.StatusInternalServerError:
		log.Err(err).Error("server error")
	case http.StatusBadGateway:
		log.Err(err).Warn("metadata source error", logger.Data{"code": body.Code, "details": body.Details})
	}

	if err := c.JSON(body.StatusCode, map[string]interface{}{"error": body}); err != nil {
		log.Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func render(err error) errorBody {
	body := errorBody{StatusCode: http.StatusInternalServerError}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		body.StatusCode = he.Code
		body.Message = fmt.Sprint(he.Message)
		body.Code = strcase.ToSnake(body.Message)
	}

	var e *Error
	if errors.As(err, &e) {
		body.StatusCode = e.HTTPCode
		body.Code = e.Code
		body.Message = e.Message
		body.Details = e.Details
	}

	if body.StatusCode == http.StatusInternalServerError && body.Message == "" {
		body.Code = "internal_server_error"
		body.Message = "Internal Server Error"
	}
	return body
}
