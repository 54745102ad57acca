package progress

import (
	"context"
	"time"
)

// AppendParams describes one conditional "add node to set" write.
type AppendParams struct {
	// ProgressID is used only when the record does not exist yet.
	ProgressID string
	UserID     string
	RoadmapID  string
	NodeID     string
	At         time.Time
}

// Repository persists completion records, one per (user, roadmap).
type Repository interface {
	// Get returns the record for the pair.
	// Returns ErrProgressNotFound if the user never started the roadmap.
	Get(ctx context.Context, userID, roadmapID string) (*Record, error)

	// ListByUser returns every record of the user, ordered by roadmap id.
	ListByUser(ctx context.Context, userID string) ([]*Record, error)

	// AppendNode atomically adds the node to the record, creating the
	// record if needed. Returns false if the node was already present.
	// Returns ErrConflict on transient contention and ErrUnavailable when
	// the store cannot be reached.
	AppendNode(ctx context.Context, p AppendParams) (bool, error)
}
