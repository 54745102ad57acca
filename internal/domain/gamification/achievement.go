package gamification

import (
	"fmt"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// The aggregate state predicates are evaluated against.
// ══════════════════════════════════════════════════════════════════════════════

// RoadmapProgress is one progress record reduced to counts.
type RoadmapProgress struct {
	RoadmapID string
	Completed int
	Total     int
}

// IsComplete reports whether every node of the roadmap is completed.
func (p RoadmapProgress) IsComplete() bool {
	return p.Total > 0 && p.Completed >= p.Total
}

// IsStarted reports whether at least one node is completed.
func (p RoadmapProgress) IsStarted() bool {
	return p.Completed > 0
}

// Snapshot is the input of every predicate.
type Snapshot struct {
	Roadmaps []RoadmapProgress
	State    GameState
	Location *time.Location
}

// TotalCompleted sums completed nodes across roadmaps.
func (s Snapshot) TotalCompleted() int {
	n := 0
	for _, r := range s.Roadmaps {
		n += r.Completed
	}
	return n
}

// CompletedRoadmaps counts roadmaps in COMPLETE state.
func (s Snapshot) CompletedRoadmaps() int {
	n := 0
	for _, r := range s.Roadmaps {
		if r.IsComplete() {
			n++
		}
	}
	return n
}

// StartedRoadmaps counts roadmaps with at least one completion.
func (s Snapshot) StartedRoadmaps() int {
	n := 0
	for _, r := range s.Roadmaps {
		if r.IsStarted() {
			n++
		}
	}
	return n
}

// ActiveHour returns the local hour of the last activity, or -1.
func (s Snapshot) ActiveHour() int {
	if s.State.LastActiveAt.IsZero() {
		return -1
	}
	return timeutil.HourIn(s.State.LastActiveAt, s.Location)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Predicate decides whether an achievement qualifies. Must be pure.
type Predicate func(Snapshot) bool

// Definition is a static, externally authored achievement.
// A nil Predicate marks an achievement granted by another collaborator;
// the evaluator never unlocks it.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	XPReward    int
	Predicate   Predicate
}

// External reports whether the achievement is granted outside this engine.
func (d Definition) External() bool {
	return d.Predicate == nil
}

// DefinitionView is the JSON shape of a definition.
type DefinitionView struct {
	ID          string `json:"achievement_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	XPReward    int    `json:"xp_reward"`
}

// View returns the JSON shape.
func (d Definition) View() DefinitionView {
	return DefinitionView{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		XPReward:    d.XPReward,
	}
}

// Achievement ids of the default set.
const (
	AchievementFirstStep       = "first_step"
	AchievementRoadmapRookie   = "roadmap_rookie"
	AchievementNodeCollector   = "node_collector"
	AchievementRoadmapMaster   = "roadmap_master"
	AchievementLevelFive       = "level_five"
	AchievementWeekWarrior     = "week_warrior"
	AchievementNightOwl        = "night_owl"
	AchievementEarlyBird       = "early_bird"
	AchievementProblemSolver   = "problem_solver"
	AchievementCommunityMember = "community_member"
)

// DefaultDefinitions returns the built-in achievement set.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID: AchievementFirstStep, Name: "First Step", Icon: "🎮", XPReward: 10,
			Description: "Welcome to Pixel Coders! Completed your first node",
			Predicate:   func(s Snapshot) bool { return s.TotalCompleted() >= 1 },
		},
		{
			ID: AchievementRoadmapRookie, Name: "Roadmap Rookie", Icon: "🗺️", XPReward: 20,
			Description: "Started your first roadmap",
			Predicate:   func(s Snapshot) bool { return s.StartedRoadmaps() >= 1 },
		},
		{
			ID: AchievementNodeCollector, Name: "Node Collector", Icon: "🧩", XPReward: 25,
			Description: "Completed 5 nodes across any roadmaps",
			Predicate:   func(s Snapshot) bool { return s.TotalCompleted() >= 5 },
		},
		{
			ID: AchievementRoadmapMaster, Name: "Roadmap Master", Icon: "🏆", XPReward: 100,
			Description: "Completed an entire roadmap",
			Predicate:   func(s Snapshot) bool { return s.CompletedRoadmaps() >= 1 },
		},
		{
			ID: AchievementLevelFive, Name: "High Five", Icon: "⭐", XPReward: 50,
			Description: "Reached level 5",
			Predicate:   func(s Snapshot) bool { return s.State.Level() >= 5 },
		},
		{
			ID: AchievementWeekWarrior, Name: "Week Warrior", Icon: "🔥", XPReward: 50,
			Description: "7-day learning streak",
			Predicate:   func(s Snapshot) bool { return s.State.CurrentStreak >= 7 },
		},
		{
			ID: AchievementNightOwl, Name: "Night Owl", Icon: "🦉", XPReward: 30,
			Description: "Studied after midnight",
			Predicate: func(s Snapshot) bool {
				h := s.ActiveHour()
				return h >= 0 && h < 4
			},
		},
		{
			ID: AchievementEarlyBird, Name: "Early Bird", Icon: "🌅", XPReward: 30,
			Description: "Studied before 6 AM",
			Predicate: func(s Snapshot) bool {
				h := s.ActiveHour()
				return h >= 4 && h < 6
			},
		},
		{
			ID: AchievementProblemSolver, Name: "Problem Solver", Icon: "💡", XPReward: 15,
			Description: "Solved your first challenge",
		},
		{
			ID: AchievementCommunityMember, Name: "Community Member", Icon: "👥", XPReward: 25,
			Description: "Made your first forum post",
		},
	}
}

// Registry is an ordered, validated set of definitions.
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry validates ids and rewards.
//
// Errors: ErrAchievementDuplicate, ErrNegativeValue for a negative reward.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, shared.NewDomainError("gamification", "NewRegistry", shared.ErrEmptyValue, "achievement id is empty")
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, fmt.Errorf("achievement %q: %w", d.ID, shared.ErrAchievementDuplicate)
		}
		if d.XPReward < 0 {
			return nil, shared.WrapError("gamification", "NewRegistry", shared.ErrNegativeValue,
				"achievement reward cannot be negative", fmt.Errorf("achievement %q", d.ID))
		}
		r.index[d.ID] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// MustDefaultRegistry returns the registry of DefaultDefinitions.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDefinitions()...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns definitions in registration order.
func (r *Registry) All() []Definition {
	return append([]Definition(nil), r.defs...)
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (Definition, bool) {
	i, ok := r.index[id]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}
