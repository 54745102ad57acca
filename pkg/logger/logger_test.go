package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo})

	l.Debug("hidden")
	l.With(UserID("u1")).Info("node completed", RoadmapID("frontend_dev"), XPAmount(10), Err(errors.New("x")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "node completed", entry.Message)
	assert.Equal(t, "u1", entry.Fields["user_id"])
	assert.Equal(t, "frontend_dev", entry.Fields["roadmap_id"])
	assert.Equal(t, float64(10), entry.Fields["xp_amount"])
	assert.Equal(t, "x", entry.Fields["error"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelDebug, Format: ParseFormat("TEXT")})
	l.WithRequestID("req-1").Warn("slow", NodeID("css"))

	out := buf.String()
	assert.Contains(t, out, " WARN slow ")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "node_id=css")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))

	Nop().Error("dropped")
}
