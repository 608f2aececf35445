package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledDiscards(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: false, Output: &out})
	Info("hello")
	assert.Zero(t, out.Len())
}

func TestInit_TextRespectsLevel(t *testing.T) {
	defer Init(Options{})
	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out, Level: slog.LevelWarn})

	Info("dropped")
	Warn("kept", "cycle", 3)

	assert.NotContains(t, out.String(), "dropped")
	assert.Contains(t, out.String(), "kept")
	assert.Contains(t, out.String(), "cycle=3")
}

func TestInit_JSON(t *testing.T) {
	defer Init(Options{})
	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out, JSON: true, Level: slog.LevelDebug})

	Debug("collect", "reclaimed", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "collect", rec["msg"])
	assert.InDelta(t, 2, rec["reclaimed"], 0)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
