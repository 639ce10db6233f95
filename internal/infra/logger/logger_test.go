package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var file, console bytes.Buffer
	l := NewWithWriter(&file, LevelInfo, &console)

	l.Debug("hidden %d", 1)
	l.Info("Page loaded: %s", "https://example.com")
	l.Warn("slow")

	assert.NotContains(t, file.String(), "hidden")
	assert.Contains(t, file.String(), "[INFO] Page loaded: https://example.com")
	assert.Contains(t, file.String(), "[WARN] slow")
	assert.Contains(t, console.String(), "[INFO] Page loaded")
}

func TestLogger_DebugStaysOutOfConsole(t *testing.T) {
	var file, console bytes.Buffer
	l := NewWithWriter(&file, LevelDebug, &console)

	l.Debug("request aborted")

	assert.Contains(t, file.String(), "[DEBUG] request aborted")
	assert.Empty(t, console.String())
}

func TestLogger_Write(t *testing.T) {
	var file bytes.Buffer
	l := NewWithWriter(&file, LevelInfo, nil)

	n, err := l.Write([]byte("GET /api/status 200\n"))

	require.NoError(t, err)
	assert.Equal(t, len("GET /api/status 200\n"), n)
	assert.Contains(t, file.String(), "[INFO] GET /api/status 200")
}

func TestNew_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamgrab.log")

	l, err := New(path, LevelInfo, false)
	require.NoError(t, err)
	l.Info("first")
	require.NoError(t, l.Close())

	assert.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}
