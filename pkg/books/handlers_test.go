package books

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/auth"
	"github.com/pilcrowbooks/pilcrow/pkg/binder"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/googlebooks"
	"github.com/pilcrowbooks/pilcrow/pkg/ingestion"
	"github.com/pilcrowbooks/pilcrow/pkg/testutils"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fakeSource struct {
	volumes map[string]*googlebooks.Volume
	calls   int
}

func (s *fakeSource) LookupByISBN(_ context.Context, isbn string) (*googlebooks.Volume, error) {
	s.calls++
	if v, ok := s.volumes[isbn]; ok {
		return v, nil
	}
	return nil, &googlebooks.FetchError{ISBN: isbn, Status: 200, Body: []byte(`{"totalItems":0}`), Err: googlebooks.ErrNoItems}
}

type testServer struct {
	e      *echo.Echo
	db     *bun.DB
	source *fakeSource
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutils.NewDB(t)
	testutils.InsertClassifications(t, db, map[int]string{
		500: "Science",
		510: "Mathematics",
		512: "Algebra",
	})

	source := &fakeSource{volumes: map[string]*googlebooks.Volume{
		"9780316769488": {VolumeInfo: &googlebooks.VolumeInfo{
			Title:         pointerutil.String("The Catcher in the Rye"),
			Authors:       []string{"J. D. Salinger"},
			PublishedDate: pointerutil.String("1951"),
		}},
	}}
	ingestionService := ingestion.NewService(NewService(db), source)

	authService, err := auth.NewService("librarian", "books", "test-secret")
	require.NoError(t, err)
	authMiddleware := auth.NewMiddleware(authService, authService, "pilcrow")

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	RegisterRoutesWithGroup(e.Group("/books"), db, ingestionService, authMiddleware)
	return &testServer{e: e, db: db, source: source}
}

func (s *testServer) doForm(path, form string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth("librarian", "books")
	rr := httptest.NewRecorder()
	s.e.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) do(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authenticated {
		req.SetBasicAuth("librarian", "books")
	}
	rr := httptest.NewRecorder()
	s.e.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body, ok := decode(t, rr)["error"].(map[string]interface{})
	require.True(t, ok, "expected an error body, got %s", rr.Body.String())
	return body
}

func TestHandler_List_IncludesClassificationPath(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	testutils.InsertBook(t, s.db, "9780000000001", "Linear Algebra", pointerutil.Int(512))
	testutils.InsertBook(t, s.db, "9780000000002", "Calculus", pointerutil.Int(510))
	testutils.InsertBook(t, s.db, "9780000000003", "Unsorted", nil)

	rr := s.do(http.MethodGet, "/books", "", false)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Books []struct {
			Title              string `json:"title"`
			ClassificationPath string `json:"classification_path"`
		} `json:"books"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "Calculus", resp.Books[0].Title)
	assert.Equal(t, "Science > Mathematics", resp.Books[0].ClassificationPath)
	assert.Equal(t, "Science > Mathematics > Algebra", resp.Books[1].ClassificationPath)
}

func TestHandler_Unclassified(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	testutils.InsertBook(t, s.db, "9780000000001", "Linear Algebra", pointerutil.Int(512))
	testutils.InsertBook(t, s.db, "9780000000003", "Unsorted", nil)

	rr := s.do(http.MethodGet, "/books/unclassified", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["total"])
}

func TestHandler_Retrieve_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/books/42", "", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("requires login", func(tt *testing.T) {
		s := newTestServer(tt)
		rr := s.do(http.MethodPost, "/books", `{"isbn":"9780316769488"}`, false)
		assert.Equal(tt, http.StatusUnauthorized, rr.Code)
		assert.Contains(tt, rr.Header().Get(echo.HeaderWWWAuthenticate), `realm="pilcrow"`)
	})

	t.Run("ingests and points at the edit page", func(tt *testing.T) {
		s := newTestServer(tt)
		rr := s.do(http.MethodPost, "/books", `{"isbn":"978-0-316-76948-8"}`, true)
		require.Equal(tt, http.StatusCreated, rr.Code)

		var resp struct {
			Book struct {
				ID          int    `json:"id"`
				ISBN        string `json:"isbn"`
				Author1Last string `json:"author1_last"`
				PubDate     string `json:"pub_date"`
			} `json:"book"`
			Next string `json:"next"`
		}
		require.NoError(tt, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(tt, "9780316769488", resp.Book.ISBN)
		assert.Equal(tt, "Salinger", resp.Book.Author1Last)
		assert.Equal(tt, "1951-01-01", resp.Book.PubDate)
		assert.Equal(tt, bookPath(resp.Book.ID)+"/edit", resp.Next)
	})

	t.Run("rejects a duplicate by title", func(tt *testing.T) {
		s := newTestServer(tt)
		existing := testutils.InsertBook(tt, s.db, "9780316769488", "The Catcher in the Rye", nil)

		rr := s.do(http.MethodPost, "/books", `{"isbn":"9780316769488"}`, true)
		require.Equal(tt, http.StatusConflict, rr.Code)
		body := decodeError(tt, rr)
		assert.Equal(tt, "duplicate_isbn", body["code"])
		assert.Contains(tt, body["message"], "The Catcher in the Rye")
		details := body["details"].(map[string]interface{})
		assert.EqualValues(tt, existing.ID, details["book_id"])
	})

	t.Run("surfaces the upstream payload", func(tt *testing.T) {
		s := newTestServer(tt)
		rr := s.do(http.MethodPost, "/books", `{"isbn":"9780000000002"}`, true)
		require.Equal(tt, http.StatusBadGateway, rr.Code)
		body := decodeError(tt, rr)
		assert.Equal(tt, "metadata_fetch_failed", body["code"])
		details := body["details"].(map[string]interface{})
		assert.Equal(tt, `{"totalItems":0}`, details["payload"])
	})

	t.Run("requires an isbn", func(tt *testing.T) {
		s := newTestServer(tt)
		rr := s.do(http.MethodPost, "/books", `{"isbn":"  "}`, true)
		assert.Equal(tt, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("rejects a bad check digit before any lookup", func(tt *testing.T) {
		s := newTestServer(tt)
		rr := s.do(http.MethodPost, "/books", `{"isbn":"978-0-316-76948-7"}`, true)
		require.Equal(tt, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(tt, `"isbn" is not a valid ISBN`, decodeError(tt, rr)["message"])
		assert.Zero(tt, s.source.calls)
	})
}

func TestHandler_Edit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	book := testutils.InsertBook(t, s.db, "9780000000001", "Linear Algebra", pointerutil.Int(512))

	rr := s.do(http.MethodGet, bookPath(book.ID)+"/edit", "", true)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Level1   *int          `json:"selected_level1"`
		Level10  *int          `json:"selected_level10"`
		Level100 *int          `json:"selected_level100"`
		Options1 []interface{} `json:"level1"`
		Options  []interface{} `json:"level100"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Level1)
	assert.Equal(t, 512, *resp.Level1)
	assert.Equal(t, 510, *resp.Level10)
	assert.Equal(t, 500, *resp.Level100)
	assert.Len(t, resp.Options1, 3)
	assert.Len(t, resp.Options, 1)
}

func TestHandler_Classify(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	first := testutils.InsertBook(t, s.db, "9780000000001", "Linear Algebra", nil)
	second := testutils.InsertBook(t, s.db, "9780000000002", "Calculus", nil)

	rr := s.do(http.MethodPost, bookPath(first.ID)+"/classification", `{"level100":500,"level10":510,"level1":512}`, true)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["unclassified_count"])
	assert.Equal(t, pathUnclassified, body["next"])
	book := body["book"].(map[string]interface{})
	assert.EqualValues(t, 512, book["classification_code"])
	assert.NotNil(t, book["classification"])

	rr = s.do(http.MethodPost, bookPath(second.ID)+"/classification", `{"level10":510}`, true)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.EqualValues(t, 0, body["unclassified_count"])
	assert.Equal(t, bookPath(second.ID), body["next"])

	rr = s.do(http.MethodPost, bookPath(second.ID)+"/classification", `{}`, true)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Nil(t, body["book"].(map[string]interface{})["classification_code"])

	rr = s.do(http.MethodPost, "/books/999/classification", `{"level1":512}`, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Classify_FormFallsBackToDivision(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	book := testutils.InsertBook(t, s.db, "9780000000001", "Calculus", nil)

	rr := s.doForm(bookPath(book.ID)+"/classification", "level1=&level10=510&level100=500")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.EqualValues(t, 510, body["book"].(map[string]interface{})["classification_code"])
	assert.Equal(t, bookPath(book.ID), body["next"])
}

func TestHandler_Delete(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	classified := testutils.InsertBook(t, s.db, "9780000000001", "Linear Algebra", pointerutil.Int(512))
	unclassified := testutils.InsertBook(t, s.db, "9780000000002", "Calculus", nil)

	rr := s.do(http.MethodDelete, bookPath(classified.ID), "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, pathUnclassified, decode(t, rr)["next"])

	rr = s.do(http.MethodDelete, bookPath(unclassified.ID), "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, pathBooks, decode(t, rr)["next"])

	rr = s.do(http.MethodDelete, bookPath(unclassified.ID), "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Refresh(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	testutils.InsertBook(t, s.db, "9780316769488", "The Catcher in the Rye", nil)

	rr := s.do(http.MethodPost, "/books/refresh?wait=true", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 1, body["updated"])

	rr = s.do(http.MethodPost, "/books/refresh", "", true)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "pending", decode(t, rr)["status"])

	rr = s.do(http.MethodPost, "/books/refresh", "", true)
	assert.Equal(t, http.StatusConflict, rr.Code)
}
