package errcodes

import (
	"fmt"
	"net/http"
	"strings"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
	// Details is rendered alongside the message when set.
	Details interface{}
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	te.Details = err.Details
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// Unauthorized returns a 401 error.
func Unauthorized(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnauthorized,
		Message:  msg,
		Code:     "unauthorized",
	}
}

// Conflict returns a 409 error.
func Conflict(msg string) error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  msg,
		Code:     "conflict",
	}
}

// DuplicateISBN returns a 409 error naming the book that already holds the
// ISBN.
func DuplicateISBN(existingTitle string, existingID int) error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  fmt.Sprintf("%s is already in the library.", existingTitle),
		Code:     "duplicate_isbn",
		Details:  map[string]interface{}{"book_id": existingID},
	}
}

// MetadataFetchFailed returns a 502 error carrying the raw upstream payload so
// the operator can see what the metadata source said.
func MetadataFetchFailed(msg string, payload string) error {
	return &Error{
		HTTPCode: http.StatusBadGateway,
		Message:  "Sorry, something went wrong: " + msg,
		Code:     "metadata_fetch_failed",
		Details:  map[string]interface{}{"payload": payload},
	}
}

// ValidationFailed returns a 422 error listing every field-level problem.
func ValidationFailed(messages []string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  "The following errors were reported: " + strings.Join(messages, ", "),
		Code:     "validation_error",
		Details:  map[string]interface{}{"messages": messages},
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		HTTPCode: http.StatusNotFound,
		Message:  resource + " not found.",
		Code:     "not_found",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		HTTPCode: http.StatusUnsupportedMediaType,
		Message:  "Unsupported Media Type",
		Code:     "unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  fmt.Sprintf("Unknown Parameter %q", param),
		Code:     "unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     "validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     "validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  "Malformed Payload",
		Code:     "malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  "Request body can't be empty.",
		Code:     "empty_request_body",
	}
}
