package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSONWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	previous := Default()
	t.Cleanup(func() { defaultLogger = previous })

	Setup(&buf, "json", "info")
	WithRequestID("req-1").Info("hello", "path", "/blogs")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "/blogs", entry["path"])
}

func TestSetupTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	previous := Default()
	t.Cleanup(func() { defaultLogger = previous })

	Setup(&buf, "text", "warn")
	Default().Info("quiet")
	WithFields(slog.String("component", "mail")).Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "component=mail")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "<empty>", Snippet("   "))
	assert.Equal(t, "ok", Snippet(" ok "))

	long := strings.Repeat("界", maxSnippetRunes+5)
	got := Snippet(long)
	assert.True(t, strings.HasSuffix(got, "…(truncated)"))
	assert.Equal(t, maxSnippetRunes, len([]rune(strings.TrimSuffix(got, "…(truncated)"))))
}
