package httputil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decode(t *testing.T, r *http.Request) (*loginBody, bool, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	req, ok := DecodeJSON[loginBody](w, r, logger, context.Background(), "req-1")
	return req, ok, w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Message
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes one object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"alice","password":"pw"}`))
		req, ok, _ := decode(t, r)
		require.True(t, ok)
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "pw", req.Password)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":`))
		req, ok, w := decode(t, r)
		assert.False(t, ok)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", message(t, w))
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		_, ok, w := decode(t, r)
		assert.False(t, ok)
		assert.Equal(t, "Request body is required", message(t, w))
	})

	t.Run("trailing data", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"a"}{"username":"b"}`))
		_, ok, w := decode(t, r)
		assert.False(t, ok)
		assert.Equal(t, "Invalid request body", message(t, w))
	})

	t.Run("body over the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"`+strings.Repeat("a", 100)+`"}`))
		r.Body = http.MaxBytesReader(w, r.Body, 16)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		_, ok := DecodeJSON[loginBody](w, r, logger, context.Background(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Request body too large", message(t, w))
	})
}
