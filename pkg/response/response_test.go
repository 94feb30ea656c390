package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSuccessWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	SuccessWithMeta(rec, http.StatusOK, "ok", []string{"a"}, NewMeta(0, 10, 21))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.True(t, body.Success)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.Equal(t, int64(21), body.Meta.Total)
}

func TestNewMetaWithoutLimit(t *testing.T) {
	assert.Equal(t, 0, NewMeta(0, 0, 5).TotalPages)
}

func TestErrorHelpersUseDefaultMessages(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		status  int
		message string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "", nil) }, http.StatusBadRequest, "Bad request"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "", nil) }, http.StatusConflict, "Conflict"},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "") }, http.StatusServiceUnavailable, "Service unavailable"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "") }, http.StatusNotFound, "Resource not found"},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "") }, http.StatusForbidden, "Forbidden"},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "") }, http.StatusUnauthorized, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestErrorCarriesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Conflict(rec, "Capacity full.", ErrorDetail{Kind: "conflict", Code: "capacity_full"})

	var body struct {
		Error ErrorDetail `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "capacity_full", body.Error.Code)
	assert.Equal(t, "conflict", body.Error.Kind)
}
