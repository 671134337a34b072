package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRFC3339Millis(t *testing.T) {
	ts := time.Date(2026, 3, 2, 7, 0, 0, 123_456_789, time.FixedZone("x", 3600))
	assert.Equal(t, "2026-03-02T06:00:00.123Z", formatRFC3339Millis(ts))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", false)
	l.Debug("hidden")
	l.Info("shown", "component", "test")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "test", rec["component"])
}

func TestNewTextDropsEmptyAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "text", true)
	l.Debug("hello", "empty", "", "component", "test")
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "component")
	assert.NotContains(t, out, "empty")
}
