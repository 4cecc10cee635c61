package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

func TestClassify(t *testing.T) {
	rules := []ErrorRule{{Status: http.StatusNotFound, Code: "NOT_FOUND", Errs: []error{errMissing}}}

	got := Classify(fmt.Errorf("lookup: %w", errMissing), "boom", rules...)
	require.Equal(t, http.StatusNotFound, got.HTTPStatus)
	require.Equal(t, "NOT_FOUND", got.Code)
	require.Equal(t, "lookup: missing", got.Message)
	require.ErrorIs(t, got, errMissing)

	got = Classify(errors.New("db down"), "boom", rules...)
	require.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	require.Equal(t, "boom", got.Message)

	got = Classify(NewAppError("OOPS", "bad", 0, nil), "boom", rules...)
	require.Equal(t, http.StatusBadRequest, got.HTTPStatus)
	require.Equal(t, "OOPS", got.Code)
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errMissing, "boom", ErrorRule{Status: http.StatusConflict, Code: "CONFLICT", Errs: []error{errMissing}})
	require.Equal(t, http.StatusConflict, rr.Code)

	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "CONFLICT", body.Error.Code)
	require.Equal(t, "missing", body.Error.Message)
}

func TestParsePagination(t *testing.T) {
	p := ParsePagination(httptest.NewRequest(http.MethodGet, "/?page=2&per_page=3", nil), 20)
	require.Equal(t, Pagination{Page: 2, PerPage: 3}, p)
	start, end := p.Window(5)
	require.Equal(t, 3, start)
	require.Equal(t, 5, end)
	require.Equal(t, 5, p.TotalItems)

	p = ParsePagination(httptest.NewRequest(http.MethodGet, "/?page=-1&limit=500", nil), 20)
	require.Equal(t, 1, p.Page)
	require.Equal(t, MaxPerPage, p.PerPage)

	p = ParsePagination(httptest.NewRequest(http.MethodGet, "/?page=9", nil), 20)
	start, end = p.Window(5)
	require.Equal(t, 5, start)
	require.Equal(t, 5, end)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	require.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	require.Equal(t, "203.0.113.9", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	require.Equal(t, "198.51.100.7", ClientIP(r))

	r.Header.Set("X-Real-IP", "not-an-ip")
	require.Equal(t, "203.0.113.9", ClientIP(r))
}
