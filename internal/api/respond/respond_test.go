package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSONMergesMaps(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]interface{}{"recipe": "soup"})

	body := decodeBody(t, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "soup", body["recipe"])
}

func TestJSONWrapsOtherPayloads(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, []string{"a", "b"})

	body := decodeBody(t, rec)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []interface{}{"a", "b"}, body["data"])
}

func TestErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	rec := httptest.NewRecorder()
	Error(rec, req, apperr.NotFound("recipe", "r1"))
	body := decodeBody(t, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "recipe with ID r1 not found", body["error"])

	rec = httptest.NewRecorder()
	Error(rec, req, assert.AnError)
	body = decodeBody(t, rec)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestBindValidates(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"required"`
		Count int    `json:"count" validate:"min=1"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":0}`))
	var p payload
	err := Bind(req, &p)
	require.Error(t, err)
	appErr := apperr.As(err)
	assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Details, "name")
	assert.Contains(t, appErr.Details, "count")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.True(t, apperr.Is(Bind(req, &p), apperr.CodeValidationFailed))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","count":2}`))
	assert.NoError(t, Bind(req, &p))
}
