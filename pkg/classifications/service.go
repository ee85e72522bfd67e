package classifications

import (
	"context"
	"database/sql"

	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const descriptionSeparator = " > "

type RetrieveClassificationOptions struct {
	Code *int
}

type ListClassificationsOptions struct {
	Granularities []int
}

// EditOptions holds the three option lists offered when classifying a book.
// Each list widens the previous one, so an operator can stop at whatever
// level of detail they know.
type EditOptions struct {
	Level100 []*models.Classification `json:"level100"`
	Level10  []*models.Classification `json:"level10"`
	Level1   []*models.Classification `json:"level1"`
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveClassification(ctx context.Context, opts RetrieveClassificationOptions) (*models.Classification, error) {
	classification := &models.Classification{}

	q := svc.db.
		NewSelect().
		Model(classification)

	if opts.Code != nil {
		q = q.Where("c.code = ?", *opts.Code)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Classification")
		}
		return nil, errors.WithStack(err)
	}

	return classification, nil
}

func (svc *Service) ListClassifications(ctx context.Context, opts ListClassificationsOptions) ([]*models.Classification, error) {
	var classifications []*models.Classification

	q := svc.db.
		NewSelect().
		Model(&classifications).
		Order("c.code ASC")

	if len(opts.Granularities) > 0 {
		q = q.Where("c.granularity IN (?)", bun.In(opts.Granularities))
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return classifications, nil
}

// GroupedForEdit returns the class list, the class+division list and the
// full list.
func (svc *Service) GroupedForEdit(ctx context.Context) (*EditOptions, error) {
	all, err := svc.ListClassifications(ctx, ListClassificationsOptions{})
	if err != nil {
		return nil, err
	}

	opts := &EditOptions{
		Level100: []*models.Classification{},
		Level10:  []*models.Classification{},
		Level1:   all,
	}
	for _, c := range all {
		switch c.Granularity {
		case models.GranularityClass:
			opts.Level100 = append(opts.Level100, c)
			opts.Level10 = append(opts.Level10, c)
		case models.GranularityDivision:
			opts.Level10 = append(opts.Level10, c)
		}
	}

	return opts, nil
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Classification)(nil)).
		Count(ctx)
	return count, errors.WithStack(err)
}

// ParentOf returns the code of the nearest existing ancestor of code, or nil
// when code is a class or none of its candidate ancestors exist.
func (svc *Service) ParentOf(ctx context.Context, code int) (*int, error) {
	for _, candidate := range ParentCandidates(code) {
		exists, err := svc.exists(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if exists {
			parent := candidate
			return &parent, nil
		}
	}
	return nil, nil
}

// FullDescription joins the descriptions from the root down to code, e.g.
// "Science > Mathematics > Algebra".
func (svc *Service) FullDescription(ctx context.Context, code int) (string, error) {
	classification, err := svc.RetrieveClassification(ctx, RetrieveClassificationOptions{Code: &code})
	if err != nil {
		return "", err
	}

	parent, err := svc.ParentOf(ctx, code)
	if err != nil {
		return "", err
	}
	if parent == nil {
		return classification.Description, nil
	}

	prefix, err := svc.FullDescription(ctx, *parent)
	if err != nil {
		return "", err
	}
	return prefix + descriptionSeparator + classification.Description, nil
}

// TopLevelDescription returns the description of the root of code's chain.
// It is NotFound when code itself has no node.
func (svc *Service) TopLevelDescription(ctx context.Context, code int) (string, error) {
	classification, err := svc.RetrieveClassification(ctx, RetrieveClassificationOptions{Code: &code})
	if err != nil {
		return "", err
	}

	parent, err := svc.ParentOf(ctx, code)
	if err != nil {
		return "", err
	}
	if parent == nil {
		return classification.Description, nil
	}
	return svc.TopLevelDescription(ctx, *parent)
}

// BooksAt returns the books filed exactly under code. Books under descendant
// codes are not included.
func (svc *Service) BooksAt(ctx context.Context, code int) ([]*models.Book, error) {
	books := []*models.Book{}

	err := svc.db.
		NewSelect().
		Model(&books).
		Where("b.classification_code = ?", code).
		Order("b.author1_last ASC", "b.author1_first ASC", "b.title ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return books, nil
}

// BookCount returns how many books are filed exactly under code.
func (svc *Service) BookCount(ctx context.Context, code int) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.classification_code = ?", code).
		Count(ctx)
	return count, errors.WithStack(err)
}

func (svc *Service) exists(ctx context.Context, code int) (bool, error) {
	exists, err := svc.db.
		NewSelect().
		Model((*models.Classification)(nil)).
		Where("c.code = ?", code).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

// ParentCandidates lists the codes that could be code's parent, in the order
// they should be tried. A section falls back to its class when its division
// is missing from the scheme.
func ParentCandidates(code int) []int {
	var candidates []int
	switch models.GranularityOf(code) {
	case models.GranularityClass:
		return nil
	case models.GranularityDivision:
		candidates = []int{code - code%100}
	default:
		candidates = []int{code - code%10, code - code%100}
	}

	valid := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if c > 0 && (len(valid) == 0 || valid[len(valid)-1] != c) {
			valid = append(valid, c)
		}
	}
	return valid
}
