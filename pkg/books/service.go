package books

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const (
	// OrderNone leaves rows in storage order.
	OrderNone = ""
	// OrderCatalog is shelf order: by classification, then author, then
	// title.
	OrderCatalog = "catalog"
)

type RetrieveBookOptions struct {
	ID   *int
	ISBN *string
}

type ListBooksOptions struct {
	Classified         *bool
	ClassificationCode *int
	Order              string
}

type UpdateBookOptions struct {
	Columns []string
}

type Service struct {
	db       *bun.DB
	validate *validator.Validate
}

func NewService(db *bun.DB) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{db, validate}
}

// CreateBook validates and inserts book. An ISBN that is already stored
// fails with a unique constraint error (see database.IsUniqueViolation).
func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	if err := svc.validate.Struct(book); err != nil {
		return errors.WithStack(err)
	}

	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("Classification")

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.ISBN != nil {
		q = q.Where("b.isbn = ?", *opts.ISBN)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	clearMissingClassification(book)
	return book, nil
}

// RetrieveBookByID is RetrieveBook by primary key.
func (svc *Service) RetrieveBookByID(ctx context.Context, id int) (*models.Book, error) {
	return svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
}

// FindByISBN returns the book holding isbn, or nil when there is none.
func (svc *Service) FindByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	book, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ISBN: &isbn})
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Book")) {
			return nil, nil
		}
		return nil, err
	}
	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Classification")

	q = applyListFilters(q, opts)

	switch opts.Order {
	case OrderCatalog:
		q = q.Order("b.classification_code ASC", "b.author1_last ASC", "b.author1_first ASC", "b.title ASC")
	case OrderNone:
	default:
		return nil, errors.Errorf("unknown book order %q", opts.Order)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, book := range books {
		clearMissingClassification(book)
	}
	return books, nil
}

// ListAllBooks returns every book in storage order.
func (svc *Service) ListAllBooks(ctx context.Context) ([]*models.Book, error) {
	return svc.ListBooks(ctx, ListBooksOptions{})
}

func (svc *Service) CountBooks(ctx context.Context, opts ListBooksOptions) (int, error) {
	q := svc.db.
		NewSelect().
		Model((*models.Book)(nil))

	q = applyListFilters(q, opts)

	count, err := q.Count(ctx)
	return count, errors.WithStack(err)
}

// CountUnclassified returns how many books have no classification yet.
func (svc *Service) CountUnclassified(ctx context.Context) (int, error) {
	classified := false
	return svc.CountBooks(ctx, ListBooksOptions{Classified: &classified})
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	if err := svc.validateColumns(book, opts.Columns); err != nil {
		return err
	}

	now := time.Now()
	book.UpdatedAt = now
	columns := make([]string, 0, len(opts.Columns)+1)
	columns = append(columns, opts.Columns...)
	columns = append(columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("Book")
	}
	return nil
}

// UpdateBookColumns is UpdateBook with the columns given inline.
func (svc *Service) UpdateBookColumns(ctx context.Context, book *models.Book, columns ...string) error {
	return svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: columns})
}

func (svc *Service) DeleteBook(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Book)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("Book")
	}
	return nil
}

// validateColumns runs the model rules for the given columns only, so an
// update is not rejected for a field it does not write.
func (svc *Service) validateColumns(book *models.Book, columns []string) error {
	table := svc.db.Table(reflect.TypeOf(book).Elem())

	fields := make([]string, 0, len(columns))
	for _, column := range columns {
		if field, ok := table.FieldMap[column]; ok {
			fields = append(fields, field.GoName)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return errors.WithStack(svc.validate.StructPartial(book, fields...))
}

func applyListFilters(q *bun.SelectQuery, opts ListBooksOptions) *bun.SelectQuery {
	if opts.Classified != nil {
		if *opts.Classified {
			q = q.Where("b.classification_code IS NOT NULL")
		} else {
			q = q.Where("b.classification_code IS NULL")
		}
	}
	if opts.ClassificationCode != nil {
		q = q.Where("b.classification_code = ?", *opts.ClassificationCode)
	}
	return q
}

// A book may point at a code with no node behind it, and an unclassified
// book still gets an empty relation from the left join.
func clearMissingClassification(book *models.Book) {
	if book.Classification != nil && (book.ClassificationCode == nil || book.Classification.Code == 0) {
		book.Classification = nil
	}
}
