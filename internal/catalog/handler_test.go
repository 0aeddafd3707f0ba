package catalog

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(svc).Routes(r, passthrough)
	return r
}

func TestHandlerAcceptsNumericAndStringYear(t *testing.T) {
	r := newTestRouter(t)

	for _, body := range []string{
		`{"title":"Dune","author":"Herbert","year":1965,"genre":"SciFi"}`,
		`{"title":"Dune","author":"Herbert","year":"1965","genre":"SciFi"}`,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"year":1965`)
		assert.Contains(t, rec.Body.String(), `"available":true`)
	}
}

func TestHandlerRejectsBadYear(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/books",
		strings.NewReader(`{"title":"Dune","author":"Herbert","year":"mid-sixties","genre":"SciFi"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"validation"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/books",
		strings.NewReader(`{"title":"Dune","author":"Herbert","year":true,"genre":"SciFi"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListETag(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/books",
		strings.NewReader(`{"title":"Dune","author":"Herbert","year":1965,"genre":"SciFi"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	tag := rec.Header().Get("ETag")
	require.NotEmpty(t, tag)

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("If-None-Match", tag)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandlerAvailableRouteIsNotAnID(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books/available", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
