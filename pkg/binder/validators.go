package binder

import (
	"github.com/go-playground/validator/v10"
	"github.com/pilcrowbooks/pilcrow/pkg/isbn"
)

// isbnValidator accepts any formatting of a valid ISBN-10 or ISBN-13, e.g.
// "978-0-316-76948-8".
func isbnValidator(fl validator.FieldLevel) bool {
	return isbn.Valid(isbn.Normalize(fl.Field().String()))
}
