package roadmap

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

func linearNodes(ids ...string) []Node {
	nodes := make([]Node, len(ids))
	for i, id := range ids {
		nodes[i] = Node{ID: id, Label: strings.ToUpper(id)}
	}
	return nodes
}

func set(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func TestNewGraph_LinearByDefault(t *testing.T) {
	g, err := NewGraph(NewGraphParams{ID: "frontend_dev", Nodes: linearNodes("a", "b", "c")})
	require.NoError(t, err)

	assert.Equal(t, 3, g.TotalNodes())
	assert.Equal(t, []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}}, g.Edges)
	assert.Empty(t, g.Prerequisites("a"))
	assert.Equal(t, []string{"b"}, g.Prerequisites("c"))

	assert.True(t, g.HasNode("b"))
	assert.False(t, g.HasNode("z"))
	assert.Equal(t, []string{"a", "b", "c"}, g.NodeIDs())
	assert.NotNil(t, g.Nodes[0].Resources)
}

func TestNewGraph_ExplicitPrerequisites(t *testing.T) {
	g, err := NewGraph(NewGraphParams{
		ID: "fullstack",
		Nodes: []Node{
			{ID: "fe"},
			{ID: "be"},
			{ID: "api", Prerequisites: []string{"fe", "be"}},
			{ID: "ops", Prerequisites: []string{"api"}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, g.Edges, 3)
	assert.Empty(t, g.Prerequisites("be"))

	avail := g.Available(set())
	require.Len(t, avail, 2)
	assert.Equal(t, "fe", avail[0].ID)
	assert.Equal(t, "be", avail[1].ID)

	assert.False(t, g.PrerequisitesMet("api", set("fe")))
	assert.True(t, g.PrerequisitesMet("api", set("fe", "be")))

	avail = g.Available(set("fe", "be"))
	require.Len(t, avail, 1)
	assert.Equal(t, "api", avail[0].ID)

	assert.Empty(t, g.Available(set("fe", "be", "api", "ops")))
}

func TestNewGraph_Validation(t *testing.T) {
	_, err := NewGraph(NewGraphParams{ID: "", Nodes: linearNodes("a")})
	assert.ErrorIs(t, err, shared.ErrInvalidRoadmapID)

	_, err = NewGraph(NewGraphParams{ID: "empty"})
	assert.ErrorIs(t, err, shared.ErrEmptyRoadmap)

	_, err = NewGraph(NewGraphParams{ID: "dup", Nodes: linearNodes("a", "a")})
	assert.ErrorIs(t, err, shared.ErrDuplicateNode)
	assert.True(t, shared.IsValidation(err))

	_, err = NewGraph(NewGraphParams{ID: "bad", Nodes: []Node{{ID: "a b"}}})
	assert.ErrorIs(t, err, shared.ErrInvalidNodeID)

	_, err = NewGraph(NewGraphParams{ID: "unknown", Nodes: []Node{{ID: "a", Prerequisites: []string{"x"}}}})
	assert.ErrorIs(t, err, shared.ErrUnknownPrerequisite)

	_, err = NewGraph(NewGraphParams{ID: "cycle", Nodes: []Node{
		{ID: "a", Prerequisites: []string{"c"}},
		{ID: "b", Prerequisites: []string{"a"}},
		{ID: "c", Prerequisites: []string{"b"}},
	}})
	assert.ErrorIs(t, err, shared.ErrPrerequisiteCycle)
}

func TestNewGraph_CopiesInput(t *testing.T) {
	nodes := []Node{{ID: "a", Resources: []Resource{{Type: ResourceArticle, URL: "https://example.com"}}}}
	g, err := NewGraph(NewGraphParams{ID: "copy", Nodes: nodes})
	require.NoError(t, err)

	nodes[0].Resources[0].URL = "changed"
	nodes[0].ID = "changed"
	assert.Equal(t, "a", g.Nodes[0].ID)
	assert.Equal(t, "https://example.com", g.Nodes[0].Resources[0].URL)
}

func TestStaticCatalog(t *testing.T) {
	a, err := NewGraph(NewGraphParams{ID: "a", Title: "A", Nodes: linearNodes("x")})
	require.NoError(t, err)
	b, err := NewGraph(NewGraphParams{ID: "b", Title: "B", Nodes: linearNodes("y", "z")})
	require.NoError(t, err)

	cat, err := NewStaticCatalog(a, b)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := cat.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Summary().NodeCount)

	_, err = cat.Get(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))

	list, err := cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	_, err = NewStaticCatalog(a, a)
	assert.ErrorIs(t, err, shared.ErrDuplicateRoadmap)
}

func TestParseDefinitions(t *testing.T) {
	body := `{"roadmaps":[
		{"roadmap_id":"ok","title":"OK","nodes":[{"id":"n1","label":"N1"}]},
		{"roadmap_id":"broken","title":"Broken","nodes":[]}
	]}`
	_, err := ParseDefinitions(strings.NewReader(body))
	assert.ErrorIs(t, err, shared.ErrEmptyRoadmap)

	_, err = ParseDefinitions(strings.NewReader(`{"roadmaps":[{"unknown_field":1}]}`))
	assert.True(t, shared.IsValidation(err))

	graphs, err := ParseDefinitions(strings.NewReader(`{"roadmaps":[{"roadmap_id":"ok","nodes":[{"id":"n1"}]}]}`))
	require.NoError(t, err)
	require.Len(t, graphs, 1)
	assert.Equal(t, "ok", graphs[0].ID)
}
