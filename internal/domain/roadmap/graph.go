// Package roadmap models learning roadmaps as immutable graphs of nodes.
//
// A roadmap is an ordered set of nodes plus a prerequisite relation between
// them. When no node of a roadmap declares prerequisites, the nodes form a
// linear chain in authored order. Graphs are validated once when they enter
// the catalog and never change afterwards.
package roadmap

import (
	"fmt"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NODES & RESOURCES
// ══════════════════════════════════════════════════════════════════════════════

// ResourceType categorizes learning material attached to a node.
type ResourceType string

const (
	ResourceArticle ResourceType = "article"
	ResourceVideo   ResourceType = "video"
	ResourceCourse  ResourceType = "course"
	ResourceDocs    ResourceType = "docs"
)

// Resource is a link to learning material.
type Resource struct {
	Type  ResourceType `json:"type"`
	URL   string       `json:"url"`
	Title string       `json:"title"`
}

// Node is a single topic within a roadmap.
type Node struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	Description   string     `json:"description"`
	Resources     []Resource `json:"resources"`
	Prerequisites []string   `json:"prerequisites,omitempty"`
}

// Edge is a directed prerequisite edge: From must be completed before To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GRAPH
// ══════════════════════════════════════════════════════════════════════════════

// Graph is a published roadmap. Values returned by the catalog must be
// treated as read-only.
type Graph struct {
	ID            string    `json:"roadmap_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Difficulty    string    `json:"difficulty"`
	EstimatedTime string    `json:"estimated_time"`
	Nodes         []Node    `json:"nodes"`
	Edges         []Edge    `json:"edges"`
	CreatedAt     time.Time `json:"created_at"`

	index   map[string]int
	prereqs map[string][]string
}

// Summary is the list view of a roadmap.
type Summary struct {
	ID            string `json:"roadmap_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Difficulty    string `json:"difficulty"`
	EstimatedTime string `json:"estimated_time"`
	NodeCount     int    `json:"node_count"`
}

// NewGraphParams holds the authored fields of a roadmap.
type NewGraphParams struct {
	ID            string
	Title         string
	Description   string
	Difficulty    string
	EstimatedTime string
	Nodes         []Node
	CreatedAt     time.Time
}

// NewGraph validates the authored definition and builds the edge list.
//
// Errors: ErrInvalidRoadmapID, ErrEmptyRoadmap, ErrInvalidNodeID,
// ErrDuplicateNode, ErrUnknownPrerequisite, ErrPrerequisiteCycle.
func NewGraph(p NewGraphParams) (*Graph, error) {
	if _, err := shared.NewRoadmapID(p.ID); err != nil {
		return nil, err
	}
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("roadmap %q: %w", p.ID, shared.ErrEmptyRoadmap)
	}

	g := &Graph{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Difficulty:    p.Difficulty,
		EstimatedTime: p.EstimatedTime,
		Nodes:         make([]Node, len(p.Nodes)),
		CreatedAt:     p.CreatedAt,
		index:         make(map[string]int, len(p.Nodes)),
		prereqs:       make(map[string][]string, len(p.Nodes)),
	}

	explicit := false
	for i, n := range p.Nodes {
		if _, err := shared.NewNodeID(n.ID); err != nil {
			return nil, fmt.Errorf("roadmap %q node %q: %w", p.ID, n.ID, shared.ErrInvalidNodeID)
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("roadmap %q node %q: %w", p.ID, n.ID, shared.ErrDuplicateNode)
		}
		g.index[n.ID] = i

		node := n
		node.Resources = append([]Resource(nil), n.Resources...)
		node.Prerequisites = append([]string(nil), n.Prerequisites...)
		if node.Resources == nil {
			node.Resources = []Resource{}
		}
		g.Nodes[i] = node

		if len(n.Prerequisites) > 0 {
			explicit = true
		}
	}

	for i, n := range g.Nodes {
		switch {
		case explicit:
			for _, pre := range n.Prerequisites {
				if _, ok := g.index[pre]; !ok {
					return nil, fmt.Errorf("roadmap %q node %q requires %q: %w",
						p.ID, n.ID, pre, shared.ErrUnknownPrerequisite)
				}
				g.prereqs[n.ID] = append(g.prereqs[n.ID], pre)
				g.Edges = append(g.Edges, Edge{From: pre, To: n.ID})
			}
		case i > 0:
			prev := g.Nodes[i-1].ID
			g.prereqs[n.ID] = []string{prev}
			g.Edges = append(g.Edges, Edge{From: prev, To: n.ID})
		}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}

	if explicit {
		if cycleAt, ok := g.findCycle(); ok {
			return nil, fmt.Errorf("roadmap %q at node %q: %w", p.ID, cycleAt, shared.ErrPrerequisiteCycle)
		}
	}

	return g, nil
}

// findCycle runs a three-color DFS over the prerequisite relation.
func (g *Graph) findCycle() (string, bool) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.Nodes))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		color[id] = grey
		for _, pre := range g.prereqs[id] {
			switch color[pre] {
			case grey:
				return pre, true
			case white:
				if at, ok := visit(pre); ok {
					return at, true
				}
			}
		}
		color[id] = black
		return "", false
	}

	for _, n := range g.Nodes {
		if color[n.ID] == white {
			if at, ok := visit(n.ID); ok {
				return at, true
			}
		}
	}
	return "", false
}

// TotalNodes returns the number of nodes in the roadmap.
func (g *Graph) TotalNodes() int {
	return len(g.Nodes)
}

// HasNode reports whether nodeID belongs to the roadmap.
func (g *Graph) HasNode(nodeID string) bool {
	_, ok := g.index[nodeID]
	return ok
}

// Node returns the node with the given id.
func (g *Graph) Node(nodeID string) (Node, bool) {
	i, ok := g.index[nodeID]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// NodeIDs returns node ids in authored order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Prerequisites returns the effective prerequisites of a node.
func (g *Graph) Prerequisites(nodeID string) []string {
	return append([]string(nil), g.prereqs[nodeID]...)
}

// PrerequisitesMet reports whether every prerequisite of nodeID is in completed.
func (g *Graph) PrerequisitesMet(nodeID string, completed map[string]struct{}) bool {
	for _, pre := range g.prereqs[nodeID] {
		if _, ok := completed[pre]; !ok {
			return false
		}
	}
	return true
}

// Available returns, in authored order, the nodes that are not completed
// and whose prerequisites all are.
func (g *Graph) Available(completed map[string]struct{}) []Node {
	out := make([]Node, 0)
	for _, n := range g.Nodes {
		if _, done := completed[n.ID]; done {
			continue
		}
		if g.PrerequisitesMet(n.ID, completed) {
			out = append(out, n)
		}
	}
	return out
}

// Summary returns the list view of the roadmap.
func (g *Graph) Summary() Summary {
	return Summary{
		ID:            g.ID,
		Title:         g.Title,
		Description:   g.Description,
		Difficulty:    g.Difficulty,
		EstimatedTime: g.EstimatedTime,
		NodeCount:     len(g.Nodes),
	}
}
