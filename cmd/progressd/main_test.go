package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCatalogValidate_Seed(t *testing.T) {
	out, err := execute(t, "catalog", "validate")
	require.NoError(t, err)

	for _, id := range []string{"frontend_dev", "backend_dev", "fullstack_dev", "python_dev", "data_science"} {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "catalog OK: 5 roadmap(s)")
}

func TestCatalogValidate_RejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roadmaps.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"roadmaps": [`), 0o600))

	_, err := execute(t, "catalog", "validate", "--path", path)
	assert.Error(t, err)
}

func TestCatalogValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "catalog", "validate", "--path", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	cat, err := loadCatalog(context.Background(), "", log)
	require.NoError(t, err)
	assert.Equal(t, 5, cat.Len())
	assert.Contains(t, logs.String(), "frontend_dev")

	_, err = loadCatalog(context.Background(), filepath.Join(t.TempDir(), "nope.json"), log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROGRESSD_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PROGRESSD_TEST_VALUE") })

	require.NoError(t, loadEnvFile(path, true))
	assert.Equal(t, "from-file", os.Getenv("PROGRESSD_TEST_VALUE"))

	missing := filepath.Join(dir, "missing.env")
	assert.NoError(t, loadEnvFile(missing, false))
	assert.Error(t, loadEnvFile(missing, true))
	assert.NoError(t, loadEnvFile("", true))
}

func TestMigrate_MemoryDriverHasNoSchema(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("APP_ENV", "development")

	_, err := execute(t, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema to migrate")
}

func TestMigrate_SQLiteUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("APP_ENV", "development")

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	_, err = execute(t, "migrate", "down")
	assert.Error(t, err)
}
