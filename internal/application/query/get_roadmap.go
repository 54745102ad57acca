package query

import (
	"context"
	"fmt"

	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// RoadmapsHandler serves catalog reads.
type RoadmapsHandler struct {
	catalog roadmap.Catalog
}

// NewRoadmapsHandler creates the handler.
func NewRoadmapsHandler(catalog roadmap.Catalog) *RoadmapsHandler {
	return &RoadmapsHandler{catalog: catalog}
}

// List returns summaries of every published roadmap.
func (h *RoadmapsHandler) List(ctx context.Context) ([]roadmap.Summary, error) {
	graphs, err := h.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]roadmap.Summary, 0, len(graphs))
	for _, g := range graphs {
		out = append(out, g.Summary())
	}
	return out, nil
}

// Get returns the full roadmap.
func (h *RoadmapsHandler) Get(ctx context.Context, roadmapID string) (*roadmap.Graph, error) {
	if _, err := shared.NewRoadmapID(roadmapID); err != nil {
		return nil, fmt.Errorf("roadmap %q: %w", roadmapID, shared.ErrRoadmapNotFound)
	}
	return h.catalog.Get(ctx, roadmapID)
}
