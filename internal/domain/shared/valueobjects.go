package shared

import (
	"math"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Identifiers for users, roadmaps, nodes and achievements share one format:
// an opaque token supplied by a collaborator (auth provider, catalog author).
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]{0,127}$`)

// UserID identifies the user resolved by the authentication collaborator.
type UserID string

// IsValid checks if the user ID is well formed.
func (u UserID) IsValid() bool {
	return idRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// RoadmapID identifies a roadmap in the catalog.
type RoadmapID string

// IsValid checks if the roadmap ID is well formed.
func (r RoadmapID) IsValid() bool {
	return idRegex.MatchString(string(r))
}

// String returns the string representation.
func (r RoadmapID) String() string {
	return string(r)
}

// NewRoadmapID creates a new RoadmapID with validation.
func NewRoadmapID(id string) (RoadmapID, error) {
	rid := RoadmapID(strings.TrimSpace(id))
	if !rid.IsValid() {
		return "", ErrInvalidRoadmapID
	}
	return rid, nil
}

// NodeID identifies a node inside a roadmap.
type NodeID string

// IsValid checks if the node ID is well formed.
func (n NodeID) IsValid() bool {
	return idRegex.MatchString(string(n))
}

// String returns the string representation.
func (n NodeID) String() string {
	return string(n)
}

// NewNodeID creates a new NodeID with validation.
func NewNodeID(id string) (NodeID, error) {
	nid := NodeID(strings.TrimSpace(id))
	if !nid.IsValid() {
		return "", ErrInvalidNodeID
	}
	return nid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XPPerLevel is the width of every level on the fixed curve.
const XPPerLevel = 100

// XP represents cumulative experience points. Never negative.
type XP int

// MinXP is the floor for every XP total.
const MinXP XP = 0

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds a non-negative delta, saturating instead of overflowing.
func (x XP) Add(delta int) (XP, error) {
	if delta < 0 {
		return x, ErrNegativeXPDelta
	}
	if int(x) > math.MaxInt-delta {
		return XP(math.MaxInt), nil
	}
	return XP(int(x) + delta), nil
}

// Level derives the level from XP: floor(xp / 100) + 1.
func (x XP) Level() Level {
	if x <= 0 {
		return MinLevel
	}
	return Level(int(x)/XPPerLevel) + 1
}

// IntoLevel returns the XP earned inside the current level.
func (x XP) IntoLevel() int {
	if x <= 0 {
		return 0
	}
	return int(x) % XPPerLevel
}

// ToNextLevel returns the XP still missing for the next level.
func (x XP) ToNextLevel() int {
	return XPPerLevel - x.IntoLevel()
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level. Always derived from XP.
type Level int

// MinLevel is the level of a user with zero XP.
const MinLevel Level = 1

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP required to reach this level.
func (l Level) RequiredXP() int {
	if l <= MinLevel {
		return 0
	}
	return (int(l) - 1) * XPPerLevel
}

// Title returns a human-readable title for the level.
func (l Level) Title() string {
	switch {
	case l < 3:
		return "Pixel Rookie"
	case l < 5:
		return "Apprentice"
	case l < 10:
		return "Coder"
	case l < 20:
		return "Builder"
	case l < 35:
		return "Architect"
	default:
		return "Legend"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage
// ═══════════════════════════════════════════════════════════════════════════

// Percentage returns 100*completed/total, or 0 for an empty total.
// The result is exact; rounding is a presentation concern.
func Percentage(completed, total int) float64 {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return float64(completed) * 100 / float64(total)
}

// RoundPercentage rounds a percentage to one decimal place for display.
func RoundPercentage(p float64) float64 {
	return math.Round(p*10) / 10
}
