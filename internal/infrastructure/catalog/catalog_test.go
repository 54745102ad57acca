package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

func TestSeed(t *testing.T) {
	cat, err := Seed()
	require.NoError(t, err)
	assert.Equal(t, 5, cat.Len())

	ctx := context.Background()
	for _, id := range []string{"frontend_dev", "backend_dev", "fullstack_dev", "python_dev", "data_science"} {
		g, err := cat.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, 8, g.TotalNodes(), id)
	}

	fe, err := cat.Get(ctx, "frontend_dev")
	require.NoError(t, err)
	assert.Equal(t, "html_basics", fe.Nodes[0].ID)
	assert.Equal(t, []string{"html_basics"}, fe.Prerequisites("css_fundamentals"))
	assert.Len(t, fe.Edges, 7)

	fs, err := cat.Get(ctx, "fullstack_dev")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"frontend_skills", "backend_skills"}, fs.Prerequisites("api_architecture"))
	assert.Empty(t, fs.Prerequisites("frontend_skills"))
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	body := `{"roadmaps":[{"roadmap_id":"go_dev","title":"Go","nodes":[{"id":"syntax","label":"Syntax"},{"id":"concurrency","label":"Concurrency"}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())

	_, err = cat.Get(context.Background(), "frontend_dev")
	assert.True(t, shared.IsNotFound(err))
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	body := `{"roadmaps":[{"roadmap_id":"loop","title":"Loop","nodes":[{"id":"a","label":"A","prerequisites":["b"]},{"id":"b","label":"B","prerequisites":["a"]}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPrerequisiteCycle)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
