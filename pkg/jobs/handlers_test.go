package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pilcrowbooks/pilcrow/pkg/auth"
	"github.com/pilcrowbooks/pilcrow/pkg/binder"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pilcrowbooks/pilcrow/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()

	svc := NewService(testutils.NewDB(t))
	authService, err := auth.NewService("librarian", "books", "test-secret")
	require.NoError(t, err)

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	RegisterRoutesWithGroup(e.Group("/jobs"), svc, auth.NewMiddleware(authService, authService, "pilcrow"))
	return e, svc
}

func get(e *echo.Echo, path string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authenticated {
		req.SetBasicAuth("librarian", "books")
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestHandler_RequiresLogin(t *testing.T) {
	e, svc := newTestEcho(t)
	job := createJob(t, svc, models.JobStatusPending)

	assert.Equal(t, http.StatusUnauthorized, get(e, "/jobs", false).Code)
	assert.Equal(t, http.StatusUnauthorized, get(e, fmt.Sprintf("/jobs/%d", job.ID), false).Code)
}

func TestHandler_ListFiltersByStatus(t *testing.T) {
	e, svc := newTestEcho(t)
	createJob(t, svc, models.JobStatusCompleted)
	pending := createJob(t, svc, models.JobStatusPending)

	rr := get(e, "/jobs?status=pending", true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Jobs []struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"jobs"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, pending.ID, resp.Jobs[0].ID)

	rr = get(e, "/jobs?status=bogus", true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandler_Retrieve(t *testing.T) {
	e, svc := newTestEcho(t)
	job, err := svc.EnqueueRefreshMetadata(context.Background())
	require.NoError(t, err)

	rr := get(e, fmt.Sprintf("/jobs/%d", job.ID), true)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.JobTypeRefreshMetadata, resp.Type)
	assert.Equal(t, models.JobStatusPending, resp.Status)

	assert.Equal(t, http.StatusNotFound, get(e, "/jobs/999", true).Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/jobs/abc", true).Code)
}
