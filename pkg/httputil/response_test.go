package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/contextkeys"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(w, map[string]int{"id": 7}))

	var body struct {
		Response
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, http.StatusOK, body.Status)
	assert.Equal(t, "SYS_000", body.Code)
	assert.Equal(t, 7, body.Data["id"])
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, "x"))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":201`)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "application error keeps its message",
			err:         apperrors.Newf(apperrors.CodeValidation, "title is required"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "SYS_002",
			wantMessage: "title is required",
		},
		{
			name:        "wrapped application error",
			err:         errors.Join(errors.New("context"), apperrors.New(apperrors.CodeTaskAccessDenied)),
			wantStatus:  http.StatusForbidden,
			wantCode:    "TASK_403",
			wantMessage: apperrors.CodeTaskAccessDenied.DefaultMessage(),
		},
		{
			name:        "plain error is hidden",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "SYS_001",
			wantMessage: "Internal server error",
		},
		{
			name:        "internal cause is hidden",
			err:         apperrors.Internal(errors.New("disk full")),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "SYS_001",
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/tasks/1", nil)
			r = r.WithContext(contextkeys.WithRequestID(r.Context(), "req-1"))
			w := httptest.NewRecorder()

			WriteError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeError(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, "/api/tasks/1", body.Path)
			assert.Equal(t, "req-1", body.TraceID)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestWriteCode(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()

	WriteCode(w, r, apperrors.CodeUnauthorized)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_401", decodeError(t, w).Code)
}
