package gamification

import "context"

// GameStateRepository persists one GameState per user.
type GameStateRepository interface {
	// Get returns the user's state.
	// Returns ErrGameStateNotFound if the user has no state yet.
	Get(ctx context.Context, userID string) (*GameState, error)

	// Save inserts or replaces the user's state.
	Save(ctx context.Context, state *GameState) error
}

// UnlockRepository persists unlock records, unique per (user, achievement).
type UnlockRepository interface {
	// Insert records the unlock unless the pair already exists.
	// Returns false when the achievement was already unlocked.
	Insert(ctx context.Context, u Unlock) (bool, error)

	// ListByUser returns the user's unlocks ordered by earned_at.
	ListByUser(ctx context.Context, userID string) ([]Unlock, error)
}
