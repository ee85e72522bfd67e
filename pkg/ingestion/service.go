// Package ingestion turns an ISBN into a catalogued book and keeps stored
// metadata and classifications up to date.
package ingestion

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pilcrowbooks/pilcrow/pkg/binder"
	"github.com/pilcrowbooks/pilcrow/pkg/database"
	"github.com/pilcrowbooks/pilcrow/pkg/googlebooks"
	"github.com/pilcrowbooks/pilcrow/pkg/isbn"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Store is the catalog storage ingestion works against.
type Store interface {
	FindByISBN(ctx context.Context, isbn string) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
	RetrieveBookByID(ctx context.Context, id int) (*models.Book, error)
	UpdateBookColumns(ctx context.Context, book *models.Book, columns ...string) error
	ListAllBooks(ctx context.Context) ([]*models.Book, error)
	CountUnclassified(ctx context.Context) (int, error)
}

// MetadataSource looks up volume metadata by ISBN.
type MetadataSource interface {
	LookupByISBN(ctx context.Context, isbn string) (*googlebooks.Volume, error)
}

type RefreshFailure struct {
	BookID int    `json:"book_id"`
	ISBN   string `json:"isbn"`
	Error  string `json:"error"`
}

type RefreshResult struct {
	Total   int              `json:"total"`
	Updated int              `json:"updated"`
	Failed  []RefreshFailure `json:"failed"`
}

// ProgressFunc is called after each book of a refresh with the number of
// books handled so far.
type ProgressFunc func(done, total int)

// ClassificationChoice carries one candidate code per tier. The most
// specific set code is used; nil and zero both mean the tier was left empty.
type ClassificationChoice struct {
	Level1   *int
	Level10  *int
	Level100 *int
}

// Code returns the chosen code, or nil when every level is empty.
func (c ClassificationChoice) Code() *int {
	for _, level := range []*int{c.Level1, c.Level10, c.Level100} {
		if level != nil && *level > 0 {
			code := *level
			return &code
		}
	}
	return nil
}

type AssignResult struct {
	Book              *models.Book
	UnclassifiedCount int
}

type Service struct {
	store  Store
	source MetadataSource
}

func NewService(store Store, source MetadataSource) *Service {
	return &Service{store, source}
}

// Ingest catalogues the book identified by rawISBN. The outcome is the new
// book or one of *DuplicateISBNError, *MetadataFetchError or
// *ValidationError. The metadata source is never consulted for an ISBN that
// is already stored.
func (svc *Service) Ingest(ctx context.Context, rawISBN string) (*models.Book, error) {
	log := logger.FromContext(ctx)

	code := isbn.Normalize(rawISBN)
	if code == "" {
		return nil, &ValidationError{Messages: []string{"isbn is required"}}
	}

	existing, err := svc.store.FindByISBN(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateISBNError{ISBN: code, ExistingID: existing.ID, Title: existing.DisplayTitle()}
	}

	info, err := svc.lookup(ctx, code)
	if err != nil {
		log.Warn("metadata lookup failed", logger.Data{"isbn": code, "error": err.Error()})
		return nil, newMetadataFetchError(code, err)
	}

	book := Normalize(code, info)
	if err := svc.store.CreateBook(ctx, book); err != nil {
		return nil, svc.createError(ctx, code, err)
	}

	log.Info("book ingested", logger.Data{"book_id": book.ID, "isbn": code})
	return book, nil
}

func (svc *Service) createError(ctx context.Context, code string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{Messages: binder.FormatValidationErrors(verrs)}
	}

	if database.IsUniqueViolation(err) {
		// Another request stored the same ISBN after our duplicate check.
		existing, findErr := svc.store.FindByISBN(ctx, code)
		if findErr != nil {
			return findErr
		}
		dup := &DuplicateISBNError{ISBN: code}
		if existing != nil {
			dup.ExistingID = existing.ID
			dup.Title = existing.DisplayTitle()
		} else {
			dup.Title = code
		}
		return dup
	}

	return err
}

// lookup fetches the volume metadata for code. A volume without a
// volumeInfo block is a failed fetch, not an empty book.
func (svc *Service) lookup(ctx context.Context, code string) (*googlebooks.VolumeInfo, error) {
	volume, err := svc.source.LookupByISBN(ctx, code)
	if err != nil {
		return nil, err
	}
	if volume == nil || volume.VolumeInfo == nil {
		fetchErr := &googlebooks.FetchError{ISBN: code, Err: googlebooks.ErrNoVolumeInfo}
		if volume != nil {
			fetchErr.Body = volume.Raw
		}
		return nil, fetchErr
	}
	return volume.VolumeInfo, nil
}

func newMetadataFetchError(code string, err error) *MetadataFetchError {
	fetchErr := &MetadataFetchError{ISBN: code, Err: err}
	var fe *googlebooks.FetchError
	if errors.As(err, &fe) {
		fetchErr.Payload = string(fe.Body)
		fetchErr.Err = fe.Err
	}
	return fetchErr
}

// RefreshMetadata re-fetches every book and overwrites its preview link and
// page count. A book that cannot be refreshed is recorded in the result and
// left unchanged; the rest of the batch carries on.
func (svc *Service) RefreshMetadata(ctx context.Context) (*RefreshResult, error) {
	return svc.RefreshMetadataWithProgress(ctx, nil)
}

// RefreshMetadataWithProgress is RefreshMetadata with a progress callback.
// When ctx is canceled the batch stops before the next book and the partial
// result is returned with the context's error.
func (svc *Service) RefreshMetadataWithProgress(ctx context.Context, progress ProgressFunc) (*RefreshResult, error) {
	log := logger.FromContext(ctx)

	books, err := svc.store.ListAllBooks(ctx)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Total: len(books), Failed: []RefreshFailure{}}
	for i, book := range books {
		if err := ctx.Err(); err != nil {
			return result, errors.WithStack(err)
		}

		if err := svc.refreshBook(ctx, book); err != nil {
			log.Warn("failed to refresh book metadata", logger.Data{
				"book_id": book.ID,
				"isbn":    book.ISBN,
				"error":   err.Error(),
			})
			result.Failed = append(result.Failed, RefreshFailure{BookID: book.ID, ISBN: book.ISBN, Error: err.Error()})
		} else {
			result.Updated++
		}

		if progress != nil {
			progress(i+1, len(books))
		}
	}

	log.Info("metadata refresh finished", logger.Data{
		"total":   result.Total,
		"updated": result.Updated,
		"failed":  len(result.Failed),
	})
	return result, nil
}

func (svc *Service) refreshBook(ctx context.Context, book *models.Book) error {
	info, err := svc.lookup(ctx, book.ISBN)
	if err != nil {
		return err
	}

	book.PreviewLink = info.PreviewLink
	book.PageCount = info.PageCount
	return svc.store.UpdateBookColumns(ctx, book, "preview_link", "page_count")
}

// AssignClassification files the book under the most specific code in
// choice, or unclassifies it when choice is empty. The code is stored as
// given, whether or not a node exists for it.
func (svc *Service) AssignClassification(ctx context.Context, bookID int, choice ClassificationChoice) (*AssignResult, error) {
	book, err := svc.store.RetrieveBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book.ClassificationCode = choice.Code()
	book.Classification = nil
	if err := svc.store.UpdateBookColumns(ctx, book, "classification_code"); err != nil {
		return nil, err
	}

	count, err := svc.store.CountUnclassified(ctx)
	if err != nil {
		return nil, err
	}

	return &AssignResult{Book: book, UnclassifiedCount: count}, nil
}
