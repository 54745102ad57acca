package query

import (
	"context"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// UnlockReader is the read side of the unlock store.
type UnlockReader interface {
	Unlocks() gamification.UnlockRepository
}

// GetUserAchievementsQuery asks for the unlocks of one user.
type GetUserAchievementsQuery struct {
	UserID string
}

// Validate checks the query parameters.
func (q GetUserAchievementsQuery) Validate() error {
	_, err := shared.NewUserID(q.UserID)
	return err
}

// GetUserAchievementsResult lists unlocks in the order they were earned.
type GetUserAchievementsResult struct {
	Achievements []gamification.UnlockView `json:"achievements"`
}

// AchievementsHandler serves the definition list and user unlocks.
type AchievementsHandler struct {
	registry *gamification.Registry
	store    UnlockReader
}

// NewAchievementsHandler creates the handler.
func NewAchievementsHandler(registry *gamification.Registry, store UnlockReader) *AchievementsHandler {
	return &AchievementsHandler{registry: registry, store: store}
}

// Definitions returns every registered achievement, external ones included.
func (h *AchievementsHandler) Definitions() []gamification.DefinitionView {
	defs := h.registry.All()
	out := make([]gamification.DefinitionView, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.View())
	}
	return out
}

// HandleUser returns the user's unlocks joined with their definitions.
func (h *AchievementsHandler) HandleUser(ctx context.Context, q GetUserAchievementsQuery) (*GetUserAchievementsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	unlocks, err := h.store.Unlocks().ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	return &GetUserAchievementsResult{
		Achievements: gamification.JoinUnlocks(unlocks, h.registry),
	}, nil
}
