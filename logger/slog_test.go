package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug must be filtered at info level")

	l.With("component", "ecusim").Info("started", "bitrate", 500)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, "ecusim", rec["component"])
	assert.EqualValues(t, 500, rec["bitrate"])
	assert.Contains(t, rec, "ts")
	assert.NotContains(t, rec, "time")
}

func TestSlogLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, ErrorLevel, false, false)
	assert.Equal(t, ErrorLevel, l.Level())

	child := l.With("k", "v")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level(), "child shares the parent level")

	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSlogLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, true)
	l.Warn("no pending transmission", "session", "0x7E8")

	out := buf.String()
	assert.Contains(t, out, "no pending transmission")
	assert.Contains(t, out, "0x7E8")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
	assert.Equal(t, "warn", WarnLevel.String())
}
