package classifications

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	classificationService *Service
}

type classificationResponse struct {
	*models.Classification
	ParentCode          *int   `json:"parent_code"`
	FullDescription     string `json:"full_description"`
	TopLevelDescription string `json:"top_level_description"`
	BookCount           int    `json:"book_count"`
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListClassificationsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	classifications, err := h.classificationService.ListClassifications(ctx, ListClassificationsOptions{
		Granularities: params.Granularity,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Classifications []*models.Classification `json:"classifications"`
		Total           int                      `json:"total"`
	}{classifications, len(classifications)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil {
		return errcodes.NotFound("Classification")
	}

	classification, err := h.classificationService.RetrieveClassification(ctx, RetrieveClassificationOptions{
		Code: &code,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	parent, err := h.classificationService.ParentOf(ctx, code)
	if err != nil {
		return errors.WithStack(err)
	}
	full, err := h.classificationService.FullDescription(ctx, code)
	if err != nil {
		return errors.WithStack(err)
	}
	top, err := h.classificationService.TopLevelDescription(ctx, code)
	if err != nil {
		return errors.WithStack(err)
	}
	bookCount, err := h.classificationService.BookCount(ctx, code)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, classificationResponse{
		Classification:      classification,
		ParentCode:          parent,
		FullDescription:     full,
		TopLevelDescription: top,
		BookCount:           bookCount,
	}))
}

func (h *handler) books(c echo.Context) error {
	ctx := c.Request().Context()
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil {
		return errcodes.NotFound("Classification")
	}

	// 404 for unknown codes rather than an empty list.
	_, err = h.classificationService.RetrieveClassification(ctx, RetrieveClassificationOptions{
		Code: &code,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	books, err := h.classificationService.BooksAt(ctx, code)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, len(books)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
