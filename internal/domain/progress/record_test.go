package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

func frontend(t *testing.T) *roadmap.Graph {
	t.Helper()
	g, err := roadmap.NewGraph(roadmap.NewGraphParams{
		ID: "frontend_dev",
		Nodes: []roadmap.Node{
			{ID: "html"}, {ID: "css"}, {ID: "js"}, {ID: "react"}, {ID: "testing"},
		},
	})
	require.NoError(t, err)
	return g
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusNotStarted, StatusFor(0, 5))
	assert.Equal(t, StatusInProgress, StatusFor(1, 5))
	assert.Equal(t, StatusInProgress, StatusFor(4, 5))
	assert.Equal(t, StatusComplete, StatusFor(5, 5))
	assert.Equal(t, StatusNotStarted, StatusFor(0, 0))
}

func TestRecord_Complete(t *testing.T) {
	g := frontend(t)
	r := NewRecord("u1", "frontend_dev")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, StatusNotStarted, r.Status(g))
	assert.Zero(t, r.Percentage(g))

	added, err := r.Complete(g, "html", at)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, at, r.StartedAt)

	added, err = r.Complete(g, "html", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, at, r.LastUpdated, "no-op completion must not touch the record")

	for _, id := range []string{"css", "js"} {
		_, err = r.Complete(g, id, at)
		require.NoError(t, err)
	}
	assert.InDelta(t, 60.0, r.Percentage(g), 1e-9)
	assert.Equal(t, StatusInProgress, r.Status(g))

	_, err = r.Complete(g, "graphql", at)
	assert.ErrorIs(t, err, shared.ErrNodeNotInRoadmap)
	assert.True(t, shared.IsInvalidNode(err))
	assert.Equal(t, 3, r.Count())

	for _, id := range []string{"react", "testing"} {
		_, err = r.Complete(g, id, at)
		require.NoError(t, err)
	}
	assert.Equal(t, 100.0, r.Percentage(g))
	assert.Equal(t, StatusComplete, r.Status(g))
	assert.Equal(t, []string{"html", "css", "js", "react", "testing"}, r.CompletedNodes())
}

func TestRecord_WrongRoadmap(t *testing.T) {
	g := frontend(t)
	r := NewRecord("u1", "backend_dev")
	_, err := r.Complete(g, "html", time.Now())
	assert.True(t, shared.IsInvalidNode(err))
}

func TestRestore_DropsDuplicates(t *testing.T) {
	r := Restore(RestoreParams{
		ID:             "progress_abc",
		UserID:         "u1",
		RoadmapID:      "frontend_dev",
		CompletedNodes: []string{"html", "css", "html"},
	})
	assert.True(t, r.IsPersisted())
	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Has("css"))
	assert.False(t, NewRecord("u1", "x").IsPersisted())
}

func TestRecord_PercentageIgnoresRetiredNodes(t *testing.T) {
	g := frontend(t)
	r := Restore(RestoreParams{UserID: "u1", RoadmapID: "frontend_dev", CompletedNodes: []string{"html", "jquery"}})
	assert.InDelta(t, 20.0, r.Percentage(g), 1e-9)
}

func TestRecord_Revoke(t *testing.T) {
	r := NewRecord("u1", "frontend_dev")
	assert.ErrorIs(t, r.Revoke("html"), shared.ErrRevocationBlocked)
}

func TestViewOf(t *testing.T) {
	g := frontend(t)
	r := NewRecord("u1", "frontend_dev")
	v := ViewOf(r, g)
	assert.Equal(t, StatusNotStarted, v.Status)
	assert.Equal(t, 5, v.TotalNodes)
	assert.NotNil(t, v.CompletedNodes)
	assert.Nil(t, v.StartedAt)

	_, _ = r.Complete(g, "html", time.Now())
	v = ViewOf(r, g)
	assert.Equal(t, 20.0, v.Percentage)
	assert.NotNil(t, v.LastUpdated)
}
