package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// Ledger applies XP deltas and activity to a user's game state. It trusts
// the caller that every delta stands for a distinct, deduplicated event.
type Ledger struct {
	repo GameStateRepository
}

// NewLedger creates a ledger over the repository. Inside a transaction,
// pass the transaction-scoped repository.
func NewLedger(repo GameStateRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Load returns the user's state, or a fresh one if none is stored.
func (l *Ledger) Load(ctx context.Context, userID string, now time.Time) (*GameState, error) {
	st, err := l.repo.Get(ctx, userID)
	if err == nil {
		return st, nil
	}
	if shared.IsNotFound(err) {
		return NewGameState(userID, now), nil
	}
	return nil, fmt.Errorf("ledger: load %s: %w", userID, err)
}

// ApplyXP adds delta to the user's XP and recomputes the level.
//
// Errors: ErrNegativeXPDelta; storage errors are passed through.
func (l *Ledger) ApplyXP(ctx context.Context, userID string, delta int, now time.Time) (LedgerResult, error) {
	if delta < 0 {
		return LedgerResult{}, shared.ErrNegativeXPDelta
	}
	st, err := l.Load(ctx, userID, now)
	if err != nil {
		return LedgerResult{}, err
	}
	res, err := st.ApplyXP(delta, now)
	if err != nil {
		return LedgerResult{}, err
	}
	if err := l.repo.Save(ctx, st); err != nil {
		return LedgerResult{}, fmt.Errorf("ledger: save %s: %w", userID, err)
	}
	return res, nil
}

// RecordActivity updates the daily streak for a first-time completion.
func (l *Ledger) RecordActivity(ctx context.Context, userID string, at time.Time, loc *time.Location) (StreakChange, error) {
	st, err := l.Load(ctx, userID, at)
	if err != nil {
		return StreakChange{}, err
	}
	change := st.RecordActivity(at, loc)
	if err := l.repo.Save(ctx, st); err != nil {
		return StreakChange{}, fmt.Errorf("ledger: save %s: %w", userID, err)
	}
	return change, nil
}
