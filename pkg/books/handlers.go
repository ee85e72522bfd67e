package books

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/classifications"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/ingestion"
	"github.com/pilcrowbooks/pilcrow/pkg/jobs"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	pathBooks        = "/books"
	pathUnclassified = "/books/unclassified"
)

type handler struct {
	bookService           *Service
	classificationService *classifications.Service
	ingestionService      *ingestion.Service
	jobService            *jobs.Service
}

type catalogEntry struct {
	*models.Book
	ClassificationPath string `json:"classification_path"`
}

type editResponse struct {
	Book     *models.Book `json:"book"`
	Level1   *int         `json:"selected_level1"`
	Level10  *int         `json:"selected_level10"`
	Level100 *int         `json:"selected_level100"`
	*classifications.EditOptions
}

func bookPath(id int) string {
	return fmt.Sprintf("/books/%d", id)
}

func parseID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Book")
	}
	return id, nil
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	classified := true
	books, err := h.bookService.ListBooks(ctx, ListBooksOptions{
		Classified: &classified,
		Order:      OrderCatalog,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Many books share a code, so each path is only built once per request.
	paths := map[int]string{}
	entries := make([]catalogEntry, 0, len(books))
	for _, book := range books {
		entry := catalogEntry{Book: book}
		// A dangling code has no node to describe.
		if !book.IsClassified() || book.Classification == nil {
			entries = append(entries, entry)
			continue
		}
		code := *book.ClassificationCode
		path, ok := paths[code]
		if !ok {
			path, err = h.classificationService.FullDescription(ctx, code)
			if err != nil {
				return errors.WithStack(err)
			}
			paths[code] = path
		}
		entry.ClassificationPath = path
		entries = append(entries, entry)
	}

	resp := struct {
		Books []catalogEntry `json:"books"`
		Total int            `json:"total"`
	}{entries, len(entries)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) unclassified(c echo.Context) error {
	ctx := c.Request().Context()

	classified := false
	books, err := h.bookService.ListBooks(ctx, ListBooksOptions{
		Classified: &classified,
		Order:      OrderNone,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, len(books)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c)
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBookByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	// Bind params.
	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.ingestionService.Ingest(ctx, params.ISBN)
	if err != nil {
		var dup *ingestion.DuplicateISBNError
		var fetch *ingestion.MetadataFetchError
		var invalid *ingestion.ValidationError
		switch {
		case errors.As(err, &dup):
			return errcodes.DuplicateISBN(dup.Title, dup.ExistingID)
		case errors.As(err, &fetch):
			return errcodes.MetadataFetchFailed(fetch.Err.Error(), fetch.Payload)
		case errors.As(err, &invalid):
			return errcodes.ValidationFailed(invalid.Messages)
		}
		return errors.WithStack(err)
	}

	log.Info("book added", logger.Data{"book_id": book.ID, "isbn": book.ISBN})

	resp := struct {
		Book *models.Book `json:"book"`
		Next string       `json:"next"`
	}{book, bookPath(book.ID) + "/edit"}

	return errors.WithStack(c.JSON(http.StatusCreated, resp))
}

func (h *handler) edit(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c)
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBookByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	opts, err := h.classificationService.GroupedForEdit(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, editResponse{
		Book:        book,
		Level1:      book.ClassificationAt(models.GranularitySection),
		Level10:     book.ClassificationAt(models.GranularityDivision),
		Level100:    book.ClassificationAt(models.GranularityClass),
		EditOptions: opts,
	}))
}

func (h *handler) classify(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c)
	if err != nil {
		return err
	}

	// Bind params.
	params := ClassificationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.ingestionService.AssignClassification(ctx, id, ingestion.ClassificationChoice{
		Level1:   params.Level1,
		Level10:  params.Level10,
		Level100: params.Level100,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Reload so the response carries the new classification relation.
	book, err := h.bookService.RetrieveBookByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	next := bookPath(id)
	if result.UnclassifiedCount > 0 {
		next = pathUnclassified
	}

	resp := struct {
		Book              *models.Book `json:"book"`
		UnclassifiedCount int          `json:"unclassified_count"`
		Next              string       `json:"next"`
	}{book, result.UnclassifiedCount, next}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.bookService.DeleteBook(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	count, err := h.bookService.CountUnclassified(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	next := pathBooks
	if count > 0 {
		next = pathUnclassified
	}

	resp := struct {
		Next string `json:"next"`
	}{next}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) refresh(c echo.Context) error {
	ctx := c.Request().Context()

	// The refresh has no body, so the query is read without the binder.
	var wait bool
	if err := echo.QueryParamsBinder(c).Bool("wait", &wait).BindError(); err != nil {
		return errcodes.ValidationError("\"wait\" must be a boolean")
	}

	if wait {
		result, err := h.ingestionService.RefreshMetadata(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		return errors.WithStack(c.JSON(http.StatusOK, result))
	}

	job, err := h.jobService.EnqueueRefreshMetadata(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusAccepted, job))
}
