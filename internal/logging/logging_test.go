package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestFor_TagsModuleInJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", "json")
	t.Cleanup(func() { InitWriter(&bytes.Buffer{}, "info", "text") })

	For("alerts").Info("alert created", "alert_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alerts", entry["module"])
	assert.Equal(t, "alert created", entry["msg"])
	assert.EqualValues(t, 7, entry["alert_id"])
}

func TestInitWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "text")
	t.Cleanup(func() { InitWriter(&bytes.Buffer{}, "info", "text") })

	For("auth").Info("hidden")
	assert.Empty(t, buf.String())

	For("auth").Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
