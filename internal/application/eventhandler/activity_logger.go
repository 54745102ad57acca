// Package eventhandler contains handlers for committed domain events.
package eventhandler

import (
	"log/slog"
	"sync"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ACTIVITY LOGGER
// Writes one structured line per committed event. Milestones (roadmap
// completed, level up, achievement) are logged at info, the rest at debug.
// Handlers run after commit, so nothing here may fail the completion.
// ═══════════════════════════════════════════════════════════════════════════

// ActivityLogger logs committed events and keeps per-type counts.
type ActivityLogger struct {
	logger *slog.Logger

	mu     sync.Mutex
	counts map[shared.EventType]int
}

// NewActivityLogger creates the handler. A nil logger means slog.Default().
func NewActivityLogger(logger *slog.Logger) *ActivityLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityLogger{
		logger: logger.With("handler", "activity_logger"),
		counts: make(map[shared.EventType]int),
	}
}

// Register subscribes the handler to every event of the bus.
func (h *ActivityLogger) Register(sub shared.EventSubscriber) error {
	return sub.SubscribeAll(h.Handle)
}

// Handle implements shared.EventHandler. It never returns an error.
func (h *ActivityLogger) Handle(event shared.Event) error {
	h.mu.Lock()
	h.counts[event.EventType()]++
	h.mu.Unlock()

	attrs := []any{
		"event_type", string(event.EventType()),
		"user_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	}
	if c, ok := event.(interface{ Correlation() string }); ok && c.Correlation() != "" {
		attrs = append(attrs, "request_id", c.Correlation())
	}

	switch e := event.(type) {
	case shared.NodeCompletedEvent:
		h.logger.Debug("node completed", append(attrs,
			"roadmap_id", e.RoadmapID,
			"node_id", e.NodeID,
			"progress_percentage", e.Percentage,
		)...)

	case shared.RoadmapCompletedEvent:
		h.logger.Info("roadmap completed", append(attrs,
			"roadmap_id", e.RoadmapID,
		)...)

	case shared.XPGainedEvent:
		h.logger.Debug("xp gained", append(attrs,
			"amount", e.Amount,
			"new_total", e.NewTotal,
			"source", e.Source,
		)...)

	case shared.LevelUpEvent:
		h.logger.Info("level up", append(attrs,
			"old_level", e.OldLevel,
			"new_level", e.NewLevel,
			"total_xp", e.TotalXP,
		)...)

	case shared.AchievementUnlockedEvent:
		h.logger.Info("achievement unlocked", append(attrs,
			"achievement_id", e.AchievementID,
			"name", e.Name,
			"xp_reward", e.XPReward,
		)...)

	case shared.StreakUpdatedEvent:
		h.logger.Debug("streak updated", append(attrs,
			"current_streak", e.CurrentStreak,
			"broken", e.Broken,
		)...)

	default:
		h.logger.Debug("event", attrs...)
	}

	return nil
}

// Counts returns a copy of the per-type counters.
func (h *ActivityLogger) Counts() map[shared.EventType]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[shared.EventType]int, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}
