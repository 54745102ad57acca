package eventhandler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/messaging"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestActivityLogger_LogsMilestonesAtInfo(t *testing.T) {
	var buf bytes.Buffer
	h := NewActivityLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	require.NoError(t, h.Register(bus))

	at := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	unlock := shared.NewAchievementUnlockedEvent("u1", "roadmap_master", "Roadmap Master", "🏆", 100, at)
	unlock.BaseEvent = unlock.BaseEvent.WithCorrelationID("req-1")

	require.NoError(t, bus.Publish(shared.NewNodeCompletedEvent("u1", "frontend_dev", "html", 20, at)))
	require.NoError(t, bus.Publish(unlock))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, 150, at)))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "achievement unlocked", lines[0]["msg"])
	assert.Equal(t, "roadmap_master", lines[0]["achievement_id"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "u1", lines[0]["user_id"])
	assert.Equal(t, "activity_logger", lines[0]["handler"])

	assert.Equal(t, "level up", lines[1]["msg"])
	assert.EqualValues(t, 2, lines[1]["new_level"])
	assert.NotContains(t, lines[1], "request_id")

	counts := h.Counts()
	assert.Equal(t, 1, counts[shared.EventNodeCompleted])
	assert.Equal(t, 1, counts[shared.EventAchievementUnlocked])
	assert.Equal(t, 1, counts[shared.EventLevelUp])
}

func TestActivityLogger_DebugEvents(t *testing.T) {
	var buf bytes.Buffer
	h := NewActivityLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	at := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.Handle(shared.NewXPGainedEvent("u1", 10, 40, "node:frontend_dev/html", at)))
	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("u1", 1, true, at)))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "xp gained", lines[0]["msg"])
	assert.Equal(t, "node:frontend_dev/html", lines[0]["source"])
	assert.Equal(t, "streak updated", lines[1]["msg"])
	assert.Equal(t, true, lines[1]["broken"])
}
