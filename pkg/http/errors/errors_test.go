package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondNotFound(rec, ErrCodeUnknownWindow, "Unknown window")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeUnknownWindow, body.Error)
	assert.Equal(t, "Unknown window", body.Message)
}

func TestRespondMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondMethodNotAllowed(rec, http.MethodPost)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestRespondValidationErrorCarriesField(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationError(rec, ErrCodeGuestCreationFailed, "display name too long", "display_name")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "display_name", body.Field)
}

func TestRespondInternalErrorKeepsCode(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondInternalError(rec, ErrCodeProgressRecordFailed, "Failed to record quiz")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeProgressRecordFailed, body.Error)
}
