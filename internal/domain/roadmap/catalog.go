package roadmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// Catalog supplies published roadmaps by id. Implementations are read-only
// for the lifetime of the process.
type Catalog interface {
	// Get returns the roadmap with the given id.
	// Returns ErrRoadmapNotFound if the id is unknown.
	Get(ctx context.Context, roadmapID string) (*Graph, error)

	// List returns every roadmap in a stable order.
	List(ctx context.Context) ([]*Graph, error)
}

// StaticCatalog is an in-memory Catalog built once from validated graphs.
type StaticCatalog struct {
	graphs map[string]*Graph
	order  []string
}

// NewStaticCatalog builds a catalog. Roadmap ids must be unique.
func NewStaticCatalog(graphs ...*Graph) (*StaticCatalog, error) {
	c := &StaticCatalog{
		graphs: make(map[string]*Graph, len(graphs)),
		order:  make([]string, 0, len(graphs)),
	}
	for _, g := range graphs {
		if _, dup := c.graphs[g.ID]; dup {
			return nil, fmt.Errorf("roadmap %q: %w", g.ID, shared.ErrDuplicateRoadmap)
		}
		c.graphs[g.ID] = g
		c.order = append(c.order, g.ID)
	}
	return c, nil
}

// Get implements Catalog.
func (c *StaticCatalog) Get(_ context.Context, roadmapID string) (*Graph, error) {
	g, ok := c.graphs[roadmapID]
	if !ok {
		return nil, fmt.Errorf("roadmap %q: %w", roadmapID, shared.ErrRoadmapNotFound)
	}
	return g, nil
}

// List implements Catalog.
func (c *StaticCatalog) List(_ context.Context) ([]*Graph, error) {
	out := make([]*Graph, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.graphs[id])
	}
	return out, nil
}

// Len returns the number of roadmaps.
func (c *StaticCatalog) Len() int {
	return len(c.order)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION FILES
// ══════════════════════════════════════════════════════════════════════════════

// Definition is the authored JSON shape of one roadmap.
type Definition struct {
	ID            string    `json:"roadmap_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Difficulty    string    `json:"difficulty"`
	EstimatedTime string    `json:"estimated_time"`
	Nodes         []Node    `json:"nodes"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefinitionFile is the top-level shape of a catalog file.
type DefinitionFile struct {
	Roadmaps []Definition `json:"roadmaps"`
}

// ParseDefinitions decodes a catalog file and validates every roadmap.
// All validation problems are reported, sorted by roadmap id.
func ParseDefinitions(r io.Reader) ([]*Graph, error) {
	var file DefinitionFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, shared.WrapError("roadmap", "ParseDefinitions", shared.ErrInvalidInput,
			"malformed catalog file", err)
	}

	graphs := make([]*Graph, 0, len(file.Roadmaps))
	var problems []error
	for _, d := range file.Roadmaps {
		g, err := NewGraph(NewGraphParams{
			ID:            d.ID,
			Title:         d.Title,
			Description:   d.Description,
			Difficulty:    d.Difficulty,
			EstimatedTime: d.EstimatedTime,
			Nodes:         d.Nodes,
			CreatedAt:     d.CreatedAt,
		})
		if err != nil {
			problems = append(problems, err)
			continue
		}
		graphs = append(graphs, g)
	}

	if len(problems) > 0 {
		sort.Slice(problems, func(i, j int) bool {
			return problems[i].Error() < problems[j].Error()
		})
		return nil, errors.Join(problems...)
	}
	return graphs, nil
}
