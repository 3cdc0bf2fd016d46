package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrtdsii/githierarchy/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "no-such-file.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "githierarchy.toml")
	content := "committer_name = \"ops\"\nlog_level = \"debug\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.CommitterName)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Values the file does not name keep their defaults.
	assert.Equal(t, config.Default().CommitterEmail, cfg.CommitterEmail)
	assert.Equal(t, config.Default().RepositoryPath, cfg.RepositoryPath)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "githierarchy.toml")
	require.NoError(t, os.WriteFile(path, []byte("committer_name = \"ops\"\n"), 0o644))
	t.Setenv("GITHIER_COMMITTER_NAME", "env-wins")
	t.Setenv("GITHIER_REPOSITORY_PATH", "/srv/repo")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-wins", cfg.CommitterName)
	assert.Equal(t, "/srv/repo", cfg.RepositoryPath)
}

func TestWrite_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "githierarchy.toml")
	cfg := config.Default()
	cfg.CommitterName = "round-trip"
	require.NoError(t, config.Write(path, cfg))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
