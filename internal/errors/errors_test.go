package errors

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad payload")
	assert.Equal(t, "bad payload", err.Error())
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		statusCode int
		errorCode  string
	}{
		{"invalid range", ErrInvalidRange, http.StatusBadRequest, "INVALID_RANGE"},
		{"session not found", ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"file not found", ErrFileNotFound, http.StatusNotFound, "FILE_NOT_FOUND"},
		{"no data available", ErrNoDataAvailable, http.StatusUnprocessableEntity, "NO_DATA_AVAILABLE"},
		{"internal", ErrInternalServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.Equal(t, tt.errorCode, tt.err.ErrorCode)
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	handler := NewErrorHandler(slog.Default())

	t.Run("api error rendered with its status", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/sessions/unknown", nil)

		handler.HandleError(w, r, ErrSessionNotFound)

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "SESSION_NOT_FOUND")
	})

	t.Run("plain error becomes internal server error", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/dates", nil)

		handler.HandleError(w, r, errors.New("boom"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
		assert.NotContains(t, w.Body.String(), "boom")
	})
}
