package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_TeesToFileAndConsole(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "nyay.log")

	logger, closeFn, err := New(Options{Level: "info", File: path, Console: &console})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Named("jobs").Info("job transition", zap.String("job_id", "j1"), zap.String("to", "processing"))
	require.NoError(t, closeFn())

	assert.Contains(t, console.String(), "job transition")
	assert.NotContains(t, console.String(), "hidden")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "job transition", entry["message"])
	assert.Equal(t, "jobs", entry["logger"])
	assert.Equal(t, "j1", entry["job_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Console: &console})
	require.NoError(t, err)
	logger.Debug("visible")
	require.NoError(t, closeFn())
	assert.Contains(t, console.String(), "visible")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
