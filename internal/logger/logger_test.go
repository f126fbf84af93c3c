package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{" INFO ", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(FormatJSON, slog.LevelInfo, &buf)

	log.Debug("hidden")
	log.Error("login failed", "error", errors.New("invalid credentials"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "login failed", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "invalid credentials", rec["error"])
}

func TestPlainHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(FormatPlain, slog.LevelDebug, &buf).With("store", "localhaven-cms").WithGroup("asset")

	log.Debug("local store commit", "id", "a-1", slog.Group("meta", "size", 10))

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "DEBUG local store commit")
	assert.Contains(t, out, " store=localhaven-cms")
	assert.Contains(t, out, " asset.id=a-1")
	assert.Contains(t, out, " asset.meta.size=10")
}

func TestPrettyHandler_ColoursAndLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	log := slog.New(h)

	log.Debug("hidden")
	log.Warn("slow request", "error", "timeout")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "default level is info")
	assert.Contains(t, out, yellow+"WARN "+reset)
	assert.Contains(t, out, red+"error"+reset+"=timeout")
}
