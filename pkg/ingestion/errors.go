package ingestion

import (
	"fmt"
	"strings"
)

// DuplicateISBNError is returned when the ISBN is already catalogued.
type DuplicateISBNError struct {
	ISBN       string
	ExistingID int
	Title      string
}

func (e *DuplicateISBNError) Error() string {
	return fmt.Sprintf("%s is already in the library", e.Title)
}

// MetadataFetchError is returned when the metadata source could not produce
// a volume. Payload is the raw response, when there was one.
type MetadataFetchError struct {
	ISBN    string
	Payload string
	Err     error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("failed to fetch metadata for %s: %v", e.ISBN, e.Err)
}

func (e *MetadataFetchError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when the normalized book was rejected by the
// store.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid book: " + strings.Join(e.Messages, ", ")
}
