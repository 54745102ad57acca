// Package gamification contains the XP/level ledger, daily streaks and the
// achievement evaluator.
//
// The only persisted facts are cumulative XP, streak counters, the last
// activity instant and unlock records. Levels are always derived from XP.
package gamification

import (
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/pkg/timeutil"
)

// GameState is the per-user ledger row.
type GameState struct {
	UserID        string
	XP            shared.XP
	CurrentStreak int
	LongestStreak int
	LastActiveAt  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewGameState returns the initial state of a user: 0 XP, level 1.
func NewGameState(userID string, now time.Time) *GameState {
	return &GameState{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Level derives the level from XP.
func (s *GameState) Level() shared.Level {
	return s.XP.Level()
}

// LedgerResult is the outcome of one XP application.
type LedgerResult struct {
	XP            shared.XP
	Level         shared.Level
	PreviousLevel shared.Level
	LeveledUp     bool
}

// ApplyXP adds a non-negative delta and recomputes the level.
//
// Errors: ErrNegativeXPDelta.
func (s *GameState) ApplyXP(delta int, now time.Time) (LedgerResult, error) {
	before := s.Level()
	xp, err := s.XP.Add(delta)
	if err != nil {
		return LedgerResult{}, err
	}
	s.XP = xp
	s.UpdatedAt = now
	after := s.Level()
	return LedgerResult{
		XP:            s.XP,
		Level:         after,
		PreviousLevel: before,
		LeveledUp:     after > before,
	}, nil
}

// StreakChange describes what RecordActivity did to the streak.
type StreakChange struct {
	Current  int
	Extended bool
	Broken   bool
}

// RecordActivity registers a first-time completion at the given instant.
// The same calendar day leaves the streak alone, the next day extends it,
// any longer gap restarts it at 1.
func (s *GameState) RecordActivity(at time.Time, loc *time.Location) StreakChange {
	var change StreakChange

	switch {
	case s.LastActiveAt.IsZero():
		s.CurrentStreak = 1
		change.Extended = true
	default:
		switch days := timeutil.DaysBetween(s.LastActiveAt, at, loc); {
		case days <= 0:
			// same day, or a late-arriving earlier instant
		case days == 1:
			s.CurrentStreak++
			change.Extended = true
		default:
			change.Broken = s.CurrentStreak > 1
			s.CurrentStreak = 1
		}
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	if at.After(s.LastActiveAt) {
		s.LastActiveAt = at
	}
	s.UpdatedAt = at
	change.Current = s.CurrentStreak
	return change
}

// View is the read model of a game state.
type View struct {
	UserID        string     `json:"user_id"`
	XP            int        `json:"xp"`
	Level         int        `json:"level"`
	LevelTitle    string     `json:"level_title"`
	XPIntoLevel   int        `json:"xp_into_level"`
	XPToNextLevel int        `json:"xp_to_next_level"`
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
}

// ViewOf builds the read model.
func ViewOf(s *GameState) View {
	v := View{
		UserID:        s.UserID,
		XP:            s.XP.Int(),
		Level:         s.Level().Int(),
		LevelTitle:    s.Level().Title(),
		XPIntoLevel:   s.XP.IntoLevel(),
		XPToNextLevel: s.XP.ToNextLevel(),
		CurrentStreak: s.CurrentStreak,
		LongestStreak: s.LongestStreak,
	}
	if !s.LastActiveAt.IsZero() {
		t := s.LastActiveAt
		v.LastActiveAt = &t
	}
	return v
}
