package output

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	sink := New(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	sink.Output(t.Context(), Success, "Successfully published Blog", slog.String("run_id", "r1"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "✅ Successfully published Blog", rec["msg"])
	assert.Equal(t, "r1", rec["run_id"])
}

func TestKindLevels(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Info.Level())
	assert.Equal(t, slog.LevelWarn, Warning.Level())
	assert.Equal(t, slog.LevelError, Error.Level())
	assert.Equal(t, slog.LevelInfo, Success.Level())
	assert.Equal(t, "warning", Warning.String())
}

func TestNewHandler(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatTint, ""} {
		h, err := NewHandler(&bytes.Buffer{}, format, "debug")
		require.NoError(t, err, format)
		assert.NotNil(t, h)
	}

	_, err := NewHandler(&bytes.Buffer{}, "xml", "info")
	require.Error(t, err)

	_, err = NewHandler(&bytes.Buffer{}, FormatText, "loud")
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	Discard{}.Output(t.Context(), Error, "ignored")
}
