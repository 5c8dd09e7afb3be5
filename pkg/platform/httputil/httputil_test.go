package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dErrors "greenctf/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantRetry   string
	}{
		{
			name:        "invalid credentials",
			err:         dErrors.New(dErrors.CodeInvalidCredentials, "Invalid credentials"),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid credentials",
		},
		{
			name:        "rate limited carries retry-after rounded up",
			err:         dErrors.NewRetryable(dErrors.CodeRateLimited, "", 1500*time.Millisecond),
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "Too many attempts. Please try again later.",
			wantRetry:   "2",
		},
		{
			name:        "account locked",
			err:         dErrors.NewRetryable(dErrors.CodeAccountLocked, "Account is temporarily locked", 30*time.Minute),
			wantStatus:  http.StatusLocked,
			wantMessage: "Account is temporarily locked",
			wantRetry:   "1800",
		},
		{
			name:        "persistence failure",
			err:         dErrors.Wrap(errors.New("dial tcp: refused"), dErrors.CodePersistence, ""),
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Service temporarily unavailable",
		},
		{
			name:        "internal error message is not leaked",
			err:         dErrors.New(dErrors.CodeInternal, "pq: relation does not exist"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
		{
			name:        "non domain error",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
		{
			name:        "session expired",
			err:         dErrors.New(dErrors.CodeSessionExpired, ""),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Session expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantRetry, w.Header().Get("Retry-After"))
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestDomainCodeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, DomainCodeToHTTPStatus(dErrors.CodeAccountDisabled))
	assert.Equal(t, http.StatusForbidden, DomainCodeToHTTPStatus(dErrors.CodeForbidden))
	assert.Equal(t, http.StatusConflict, DomainCodeToHTTPStatus(dErrors.CodeConflict))
	assert.Equal(t, http.StatusBadRequest, DomainCodeToHTTPStatus(dErrors.CodeNoChanges))
	assert.Equal(t, http.StatusUnauthorized, DomainCodeToHTTPStatus(dErrors.CodeUnauthenticated))
	assert.Equal(t, http.StatusInternalServerError, DomainCodeToHTTPStatus(dErrors.Code("unknown")))
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, Response{Success: true, Message: "Logged out"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Logged out", resp.Message)
}
