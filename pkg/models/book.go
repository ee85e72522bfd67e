package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID                 int             `bun:",pk,autoincrement" json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ISBN               string          `bun:"isbn,notnull" json:"isbn" validate:"required,max=20"`
	Title              *string         `json:"title"`
	Subtitle           *string         `json:"subtitle"`
	Author1First       string          `bun:"author1_first,notnull" json:"author1_first"`
	Author1Last        string          `bun:"author1_last,notnull" json:"author1_last"`
	AllAuthors         string          `bun:",notnull" json:"all_authors"`
	Publisher          *string         `json:"publisher"`
	PubDate            *string         `json:"pub_date" validate:"omitempty,datetime=2006-01-02"`
	ImgURL             string          `bun:"img_url,notnull" json:"img_url"`
	SmallImgURL        string          `bun:"small_img_url,notnull" json:"small_img_url"`
	PreviewLink        *string         `json:"preview_link"`
	PageCount          *int            `json:"page_count" validate:"omitempty,min=0"`
	ClassificationCode *int            `json:"classification_code"`
	Classification     *Classification `bun:"rel:belongs-to,join:classification_code=code" json:"classification,omitempty"`
}

// DisplayTitle returns the title, or the ISBN when the source had none.
func (b *Book) DisplayTitle() string {
	if b.Title != nil && *b.Title != "" {
		return *b.Title
	}
	return b.ISBN
}

// IsClassified reports whether the book has been assigned a classification.
func (b *Book) IsClassified() bool {
	return b.ClassificationCode != nil
}

// ClassificationAt returns the book's classification truncated to the given
// tier, e.g. 512 at GranularityDivision is 510. It is nil for unclassified
// books.
func (b *Book) ClassificationAt(granularity int) *int {
	if b.ClassificationCode == nil {
		return nil
	}
	code := *b.ClassificationCode / granularity * granularity
	return &code
}
