package ingestion

import (
	"regexp"
	"strings"
	"time"

	"github.com/pilcrowbooks/pilcrow/pkg/googlebooks"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
)

var (
	fullDateRE  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	yearMonthRE = regexp.MustCompile(`(\d{4})-(\d{2})`)
	yearRE      = regexp.MustCompile(`\d{4}`)
)

// CleanUpDate coerces a published date into YYYY-MM-DD. Partial dates are
// padded to the first of the month or year. The patterns may appear anywhere
// in s, so "c. 1999" becomes 1999-01-01. It reports false when no date could
// be recovered.
func CleanUpDate(s string) (string, bool) {
	var candidate string
	switch {
	case fullDateRE.MatchString(s):
		candidate = fullDateRE.FindString(s)
	case yearMonthRE.MatchString(s):
		m := yearMonthRE.FindStringSubmatch(s)
		candidate = m[1] + "-" + m[2] + "-01"
	case yearRE.MatchString(s):
		candidate = yearRE.FindString(s) + "-01-01"
	default:
		return "", false
	}

	if _, err := time.Parse(time.DateOnly, candidate); err != nil {
		return "", false
	}
	return candidate, true
}

// SplitAuthor splits a display name into given names and surname. The last
// whitespace-separated token is the surname.
func SplitAuthor(name string) (first, last string) {
	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return "", ""
	}
	return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
}

// Normalize maps volume metadata onto a new, unclassified book.
func Normalize(isbn string, info *googlebooks.VolumeInfo) *models.Book {
	book := &models.Book{
		ISBN:        isbn,
		Title:       info.Title,
		Subtitle:    info.Subtitle,
		Publisher:   info.Publisher,
		PreviewLink: info.PreviewLink,
		PageCount:   info.PageCount,
	}

	if len(info.Authors) > 0 {
		book.Author1First, book.Author1Last = SplitAuthor(info.Authors[0])
		book.AllAuthors = strings.Join(info.Authors, ", ")
	}

	if info.ImageLinks != nil {
		book.ImgURL = deref(info.ImageLinks.Thumbnail)
		book.SmallImgURL = deref(info.ImageLinks.SmallThumbnail)
	}

	if info.PublishedDate != nil {
		if date, ok := CleanUpDate(*info.PublishedDate); ok {
			book.PubDate = &date
		}
	}

	return book
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
