// Package testutil holds helpers shared by handler and router tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outletdedup/pkg/platform/httputil"
)

// NewRequest builds a bodyless request; admin endpoints take no payload.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// DoRequest serves req and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// UnmarshalResponse decodes a JSON response body into T.
func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "decode response body")
	return &out
}

func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rec.Code, "unexpected status code, body: %s", rec.Body.String())
}

// AssertStatusAndError checks the status and the error code of an
// httputil.ErrorResponse body.
func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	AssertStatus(t, rec, wantStatus)
	resp := UnmarshalResponse[httputil.ErrorResponse](t, rec)
	assert.Equal(t, wantCode, resp.Error, "unexpected error code")
}
