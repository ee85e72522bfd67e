package ingestion

import (
	"testing"

	"github.com/pilcrowbooks/pilcrow/pkg/googlebooks"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanUpDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2020-05-14", "2020-05-14", true},
		{"2020-05", "2020-05-01", true},
		{"2020", "2020-01-01", true},
		{"c. 1999", "1999-01-01", true},
		{"2004-10-01T00:00:00Z", "2004-10-01", true},
		{"unknown", "", false},
		{"", "", false},
		{"99", "", false},
		{"2020-13", "", false},
		{"2021-02-30", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CleanUpDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitAuthor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		first string
		last  string
	}{
		{"Jane Q. Public", "Jane Q.", "Public"},
		{"Plato", "", "Plato"},
		{"  Ursula   K.  Le Guin ", "Ursula K. Le", "Guin"},
		{"", "", ""},
	}

	for _, tt := range tests {
		first, last := SplitAuthor(tt.name)
		assert.Equal(t, tt.first, first, tt.name)
		assert.Equal(t, tt.last, last, tt.name)
	}
}

func TestNormalize_FullVolume(t *testing.T) {
	t.Parallel()

	info := &googlebooks.VolumeInfo{
		Title:         pointerutil.String("Good Omens"),
		Subtitle:      pointerutil.String("The Nice and Accurate Prophecies"),
		Authors:       []string{"Terry Pratchett", "Neil Gaiman"},
		Publisher:     pointerutil.String("Workman"),
		PublishedDate: pointerutil.String("1990-05"),
		ImageLinks: &googlebooks.ImageLinks{
			Thumbnail:      pointerutil.String("http://img/thumb"),
			SmallThumbnail: pointerutil.String("http://img/small"),
		},
		PreviewLink: pointerutil.String("http://books.google.com/preview"),
		PageCount:   pointerutil.Int(354),
	}

	book := Normalize("9780060853983", info)
	assert.Equal(t, "9780060853983", book.ISBN)
	assert.Equal(t, "Good Omens", *book.Title)
	assert.Equal(t, "The Nice and Accurate Prophecies", *book.Subtitle)
	assert.Equal(t, "Terry", book.Author1First)
	assert.Equal(t, "Pratchett", book.Author1Last)
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", book.AllAuthors)
	assert.Equal(t, "Workman", *book.Publisher)
	require.NotNil(t, book.PubDate)
	assert.Equal(t, "1990-05-01", *book.PubDate)
	assert.Equal(t, "http://img/thumb", book.ImgURL)
	assert.Equal(t, "http://img/small", book.SmallImgURL)
	assert.Equal(t, "http://books.google.com/preview", *book.PreviewLink)
	assert.Equal(t, 354, *book.PageCount)
	assert.Nil(t, book.ClassificationCode)
}

func TestNormalize_SparseVolume(t *testing.T) {
	t.Parallel()

	book := Normalize("9780000000002", &googlebooks.VolumeInfo{
		Title:         pointerutil.String("Anonymous Pamphlet"),
		PublishedDate: pointerutil.String("unknown"),
	})

	assert.Empty(t, book.Author1First)
	assert.Empty(t, book.Author1Last)
	assert.Empty(t, book.AllAuthors)
	assert.Empty(t, book.ImgURL)
	assert.Empty(t, book.SmallImgURL)
	assert.Nil(t, book.PubDate)
	assert.Nil(t, book.Subtitle)
	assert.Nil(t, book.Publisher)
	assert.Nil(t, book.PreviewLink)
	assert.Nil(t, book.PageCount)
}

func TestClassificationChoice_Code(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 512, *ClassificationChoice{Level1: pointerutil.Int(512), Level10: pointerutil.Int(510)}.Code())
	assert.Equal(t, 510, *ClassificationChoice{Level10: pointerutil.Int(510), Level100: pointerutil.Int(500)}.Code())
	assert.Equal(t, 500, *ClassificationChoice{Level100: pointerutil.Int(500)}.Code())
	assert.Nil(t, ClassificationChoice{}.Code())
}
