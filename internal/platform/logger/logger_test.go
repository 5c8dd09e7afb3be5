package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json is the default", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Options{Output: &buf})
		require.NoError(t, err)

		log.Debug("hidden")
		log.Info("login", "username", "alice")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "login", entry["msg"])
		assert.Equal(t, "alice", entry["username"])
	})

	t.Run("text at debug", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Options{Level: "debug", Format: "text", Output: &buf})
		require.NoError(t, err)

		log.Debug("visible")
		assert.Contains(t, buf.String(), "msg=visible")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(Options{Format: "xml"})
		require.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
