package query

import (
	"context"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/pkg/timeutil"
)

// GameStateReader is the read side of the game state store.
type GameStateReader interface {
	GameStates() gamification.GameStateRepository
}

// GetGameStateQuery asks for the ledger of one user.
type GetGameStateQuery struct {
	UserID string
}

// Validate checks the query parameters.
func (q GetGameStateQuery) Validate() error {
	_, err := shared.NewUserID(q.UserID)
	return err
}

// GetGameStateHandler handles GetGameStateQuery.
type GetGameStateHandler struct {
	store GameStateReader
	clock timeutil.Clock
}

// NewGetGameStateHandler creates the handler. A nil clock means the
// system clock.
func NewGetGameStateHandler(store GameStateReader, clock timeutil.Clock) *GetGameStateHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetGameStateHandler{store: store, clock: clock}
}

// Handle returns the user's ledger. A user without activity gets the
// initial state (0 XP, level 1); nothing is written.
func (h *GetGameStateHandler) Handle(ctx context.Context, q GetGameStateQuery) (gamification.View, error) {
	if err := q.Validate(); err != nil {
		return gamification.View{}, err
	}

	st, err := h.store.GameStates().Get(ctx, q.UserID)
	switch {
	case shared.IsNotFound(err):
		st = gamification.NewGameState(q.UserID, h.clock.Now())
	case err != nil:
		return gamification.View{}, err
	}
	return gamification.ViewOf(st), nil
}
