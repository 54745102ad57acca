package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAME STATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GameStateRepository implements gamification.GameStateRepository.
type GameStateRepository struct {
	q Querier
}

// NewGameStateRepository creates a repository over a pool or a transaction.
func NewGameStateRepository(q Querier) *GameStateRepository {
	return &GameStateRepository{q: q}
}

// Get returns the user's state.
func (r *GameStateRepository) Get(ctx context.Context, userID string) (*gamification.GameState, error) {
	query := `
		SELECT user_id, xp, current_streak, longest_streak, last_active_at, created_at, updated_at
		FROM user_game_state
		WHERE user_id = $1
	`

	var (
		st         gamification.GameState
		xp         int
		lastActive *time.Time
	)
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&st.UserID, &xp, &st.CurrentStreak, &st.LongestStreak, &lastActive, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGameStateNotFound
		}
		return nil, fmt.Errorf("failed to get game state: %w", translateError(err))
	}
	st.XP = shared.XP(xp)
	if lastActive != nil {
		st.LastActiveAt = *lastActive
	}
	return &st, nil
}

// Save upserts the user's state.
func (r *GameStateRepository) Save(ctx context.Context, st *gamification.GameState) error {
	query := `
		INSERT INTO user_game_state (user_id, xp, current_streak, longest_streak, last_active_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			xp = EXCLUDED.xp,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_active_at = EXCLUDED.last_active_at,
			updated_at = EXCLUDED.updated_at
	`

	var lastActive *time.Time
	if !st.LastActiveAt.IsZero() {
		t := st.LastActiveAt.UTC()
		lastActive = &t
	}

	_, err := r.q.Exec(ctx, query,
		st.UserID,
		st.XP.Int(),
		st.CurrentStreak,
		st.LongestStreak,
		lastActive,
		st.CreatedAt.UTC(),
		st.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save game state: %w", translateError(err))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UnlockRepository implements gamification.UnlockRepository.
type UnlockRepository struct {
	q Querier
}

// NewUnlockRepository creates a repository over a pool or a transaction.
func NewUnlockRepository(q Querier) *UnlockRepository {
	return &UnlockRepository{q: q}
}

// Insert records the unlock unless the (user, achievement) pair exists.
func (r *UnlockRepository) Insert(ctx context.Context, u gamification.Unlock) (bool, error) {
	query := `
		INSERT INTO user_achievements (unlock_id, user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, u.ID, u.UserID, u.AchievementID, u.EarnedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert unlock: %w", translateError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns the user's unlocks ordered by earned_at.
func (r *UnlockRepository) ListByUser(ctx context.Context, userID string) ([]gamification.Unlock, error) {
	query := `
		SELECT unlock_id, user_id, achievement_id, earned_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at, achievement_id
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", translateError(err))
	}

	unlocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (gamification.Unlock, error) {
		var u gamification.Unlock
		err := row.Scan(&u.ID, &u.UserID, &u.AchievementID, &u.EarnedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan unlocks: %w", translateError(err))
	}
	return unlocks, nil
}
