// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Lists every progress record of a user joined with its roadmap. The list
// is served from the read cache when one is configured. Cached lists are
// keyed by the user's generation, which every completion bumps, and
// concurrent misses share one store read only within a generation.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains parameters for the progress list.
type GetProgressQuery struct {
	UserID string
}

// Validate checks the query parameters.
func (q GetProgressQuery) Validate() error {
	_, err := shared.NewUserID(q.UserID)
	return err
}

// GetProgressResult contains the user's records, ordered by roadmap id.
type GetProgressResult struct {
	Progress []progress.View `json:"progress"`

	// FromCache is true when the list was served by the read cache.
	FromCache bool `json:"-"`
}

// ProgressViewCache caches the progress list of a user per generation. A
// list must only be stored under the generation read before it was loaded.
// A miss or a cache failure reports ok=false; SetViews is best effort.
type ProgressViewCache interface {
	Generation(ctx context.Context, userID string) (int64, bool)
	GetViews(ctx context.Context, userID string, gen int64) ([]progress.View, bool)
	SetViews(ctx context.Context, userID string, gen int64, views []progress.View)
}

// CacheFlags decides per user whether the cache may be used.
type CacheFlags interface {
	CacheEnabled(userID string) bool
}

// ProgressReader is the read side of the progress store.
type ProgressReader interface {
	Progress() progress.Repository
}

// GetProgressHandler handles GetProgressQuery and GetRoadmapProgressQuery.
type GetProgressHandler struct {
	catalog roadmap.Catalog
	store   ProgressReader
	cache   ProgressViewCache
	flags   CacheFlags
	group   singleflight.Group
}

// NewGetProgressHandler creates the handler. cache and flags may be nil.
func NewGetProgressHandler(catalog roadmap.Catalog, store ProgressReader, cache ProgressViewCache, flags CacheFlags) *GetProgressHandler {
	return &GetProgressHandler{
		catalog: catalog,
		store:   store,
		cache:   cache,
		flags:   flags,
	}
}

// Handle returns the progress list of the user.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*GetProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		gen int64
		ok  bool
	)
	if h.cacheEnabled(q.UserID) {
		gen, ok = h.cache.Generation(ctx, q.UserID)
	}
	if !ok {
		views, err := h.load(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		return &GetProgressResult{Progress: views}, nil
	}
	if views, ok := h.cache.GetViews(ctx, q.UserID, gen); ok {
		return &GetProgressResult{Progress: views, FromCache: true}, nil
	}

	key := q.UserID + "@" + strconv.FormatInt(gen, 10)
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		views, err := h.load(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		h.cache.SetViews(ctx, q.UserID, gen, views)
		return views, nil
	})
	if err != nil {
		return nil, err
	}

	return &GetProgressResult{Progress: slices.Clone(v.([]progress.View))}, nil
}

func (h *GetProgressHandler) cacheEnabled(userID string) bool {
	if h.cache == nil {
		return false
	}
	return h.flags == nil || h.flags.CacheEnabled(userID)
}

// load reads the records and joins them with the catalog. Records of
// roadmaps no longer published are omitted.
func (h *GetProgressHandler) load(ctx context.Context, userID string) ([]progress.View, error) {
	records, err := h.store.Progress().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress.SortByRoadmap(records)

	views := make([]progress.View, 0, len(records))
	for _, rec := range records {
		g, err := h.catalog.Get(ctx, rec.RoadmapID)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		views = append(views, progress.ViewOf(rec, g))
	}
	return views, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET ROADMAP PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetRoadmapProgressQuery asks for one record.
type GetRoadmapProgressQuery struct {
	UserID    string
	RoadmapID string
}

// Validate checks the query parameters.
func (q GetRoadmapProgressQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	if _, err := shared.NewRoadmapID(q.RoadmapID); err != nil {
		return fmt.Errorf("roadmap %q: %w", q.RoadmapID, shared.ErrRoadmapNotFound)
	}
	return nil
}

// RoadmapProgressResult is a record plus the nodes the user can take next.
type RoadmapProgressResult struct {
	progress.View

	// AvailableNodes have every prerequisite complete and are not
	// completed themselves.
	AvailableNodes []roadmap.Node `json:"available_nodes"`
}

// HandleRoadmap returns one record. A roadmap the user never started
// yields an empty NOT_STARTED record.
func (h *GetProgressHandler) HandleRoadmap(ctx context.Context, q GetRoadmapProgressQuery) (*RoadmapProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	g, err := h.catalog.Get(ctx, q.RoadmapID)
	if err != nil {
		return nil, err
	}

	rec, err := h.store.Progress().Get(ctx, q.UserID, q.RoadmapID)
	switch {
	case shared.IsNotFound(err):
		rec = progress.NewRecord(q.UserID, q.RoadmapID)
	case err != nil:
		return nil, err
	}

	return &RoadmapProgressResult{
		View:           progress.ViewOf(rec, g),
		AvailableNodes: g.Available(rec.CompletedSet()),
	}, nil
}
