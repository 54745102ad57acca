package gamification

import "time"

// Unlock records that a user earned an achievement. Append-only.
type Unlock struct {
	ID            string
	UserID        string
	AchievementID string
	EarnedAt      time.Time
}

// UnlockView is an unlock joined with its definition.
type UnlockView struct {
	DefinitionView
	UnlockID string    `json:"unlock_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// JoinUnlocks joins unlocks with their definitions. Unlocks whose
// definition is no longer registered are skipped.
func JoinUnlocks(unlocks []Unlock, registry *Registry) []UnlockView {
	out := make([]UnlockView, 0, len(unlocks))
	for _, u := range unlocks {
		d, ok := registry.Get(u.AchievementID)
		if !ok {
			continue
		}
		out = append(out, UnlockView{
			DefinitionView: d.View(),
			UnlockID:       u.ID,
			EarnedAt:       u.EarnedAt,
		})
	}
	return out
}

// UnlockedSet returns the achievement ids of the unlocks.
func UnlockedSet(unlocks []Unlock) map[string]struct{} {
	s := make(map[string]struct{}, len(unlocks))
	for _, u := range unlocks {
		s[u.AchievementID] = struct{}{}
	}
	return s
}
