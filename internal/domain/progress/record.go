// Package progress holds per-user, per-roadmap completion records.
//
// A Record stores only the authoritative fact, the set of completed node
// ids. Percentage and status are always derived from that set and the
// roadmap's node count.
package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// Status is the lifecycle position of a record. Transitions only move forward.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusComplete   Status = "COMPLETE"
)

// StatusFor derives the status from completed and total node counts.
func StatusFor(completed, total int) Status {
	switch {
	case completed <= 0 || total <= 0:
		return StatusNotStarted
	case completed >= total:
		return StatusComplete
	default:
		return StatusInProgress
	}
}

// Record is the completion state of one user on one roadmap.
type Record struct {
	ID          string
	UserID      string
	RoadmapID   string
	StartedAt   time.Time
	LastUpdated time.Time

	completed []string
	index     map[string]struct{}
}

// NewRecord returns the empty record for a pair that was never started.
func NewRecord(userID, roadmapID string) *Record {
	return &Record{
		UserID:    userID,
		RoadmapID: roadmapID,
		completed: []string{},
		index:     map[string]struct{}{},
	}
}

// RestoreParams carries persisted fields back into a Record.
type RestoreParams struct {
	ID             string
	UserID         string
	RoadmapID      string
	CompletedNodes []string
	StartedAt      time.Time
	LastUpdated    time.Time
}

// Restore rebuilds a Record from storage, dropping duplicate ids.
func Restore(p RestoreParams) *Record {
	r := NewRecord(p.UserID, p.RoadmapID)
	r.ID = p.ID
	r.StartedAt = p.StartedAt
	r.LastUpdated = p.LastUpdated
	for _, id := range p.CompletedNodes {
		if _, dup := r.index[id]; dup {
			continue
		}
		r.index[id] = struct{}{}
		r.completed = append(r.completed, id)
	}
	return r
}

// IsPersisted reports whether the record exists in the store.
func (r *Record) IsPersisted() bool {
	return r.ID != ""
}

// Has reports whether nodeID is completed.
func (r *Record) Has(nodeID string) bool {
	_, ok := r.index[nodeID]
	return ok
}

// Count returns the number of completed nodes.
func (r *Record) Count() int {
	return len(r.completed)
}

// CompletedNodes returns completed node ids in completion order.
func (r *Record) CompletedNodes() []string {
	out := make([]string, len(r.completed))
	copy(out, r.completed)
	return out
}

// CompletedSet returns a copy of the completed ids as a set.
func (r *Record) CompletedSet() map[string]struct{} {
	s := make(map[string]struct{}, len(r.index))
	for id := range r.index {
		s[id] = struct{}{}
	}
	return s
}

// Complete adds nodeID to the completed set. It returns false without
// changing anything when the node was already completed.
//
// Errors: ErrNodeNotInRoadmap when nodeID is not a node of g, or g is a
// different roadmap.
func (r *Record) Complete(g *roadmap.Graph, nodeID string, at time.Time) (bool, error) {
	if g.ID != r.RoadmapID || !g.HasNode(nodeID) {
		return false, fmt.Errorf("roadmap %q node %q: %w", r.RoadmapID, nodeID, shared.ErrNodeNotInRoadmap)
	}
	if r.Has(nodeID) {
		return false, nil
	}
	r.index[nodeID] = struct{}{}
	r.completed = append(r.completed, nodeID)
	if r.StartedAt.IsZero() {
		r.StartedAt = at
	}
	r.LastUpdated = at
	return true, nil
}

// Revoke is the extension point for undoing a completion. Completion is
// monotonic, so it always fails.
func (r *Record) Revoke(nodeID string) error {
	return fmt.Errorf("roadmap %q node %q: %w", r.RoadmapID, nodeID, shared.ErrRevocationBlocked)
}

// Percentage returns 100*|completed|/total, counting only ids that are
// still part of the roadmap.
func (r *Record) Percentage(g *roadmap.Graph) float64 {
	return shared.Percentage(r.CompletedIn(g), g.TotalNodes())
}

// Status derives the lifecycle state against g.
func (r *Record) Status(g *roadmap.Graph) Status {
	return StatusFor(r.CompletedIn(g), g.TotalNodes())
}

// CompletedIn counts completed ids that are still nodes of g.
func (r *Record) CompletedIn(g *roadmap.Graph) int {
	n := 0
	for _, id := range r.completed {
		if g.HasNode(id) {
			n++
		}
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW
// ══════════════════════════════════════════════════════════════════════════════

// View is the read model of a record joined with its roadmap.
type View struct {
	ProgressID     string     `json:"progress_id,omitempty"`
	UserID         string     `json:"user_id"`
	RoadmapID      string     `json:"roadmap_id"`
	CompletedNodes []string   `json:"completed_nodes"`
	TotalNodes     int        `json:"total_nodes"`
	Percentage     float64    `json:"progress_percentage"`
	Status         Status     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
}

// ViewOf builds the read model. The percentage is rounded for display.
func ViewOf(r *Record, g *roadmap.Graph) View {
	v := View{
		ProgressID:     r.ID,
		UserID:         r.UserID,
		RoadmapID:      r.RoadmapID,
		CompletedNodes: r.CompletedNodes(),
		TotalNodes:     g.TotalNodes(),
		Percentage:     shared.RoundPercentage(r.Percentage(g)),
		Status:         r.Status(g),
	}
	if !r.StartedAt.IsZero() {
		t := r.StartedAt
		v.StartedAt = &t
	}
	if !r.LastUpdated.IsZero() {
		t := r.LastUpdated
		v.LastUpdated = &t
	}
	return v
}

// SortByRoadmap orders records by roadmap id.
func SortByRoadmap(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].RoadmapID < records[j].RoadmapID
	})
}
