package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_UsesLocalEmbedder(t *testing.T) {
	cfg := Default()
	require.Equal(t, EmbedderLocal, cfg.Embedder)
	require.NotEmpty(t, cfg.GlobalHome)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, EmbedderLocal, cfg.Embedder)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: openai\nembedder_model: text-embedding-3-large\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EmbedderKind("openai"), cfg.Embedder)
	require.Equal(t, "text-embedding-3-large", cfg.EmbedderModel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: openai\n"), 0o644))

	t.Setenv("OMNI_CORTEX_EMBED", "off")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EmbedderOff, cfg.Embedder)
}

func TestLoad_HomeEnvOverride(t *testing.T) {
	t.Setenv("OMNI_CORTEX_HOME", "/tmp/custom-cortex-home")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-cortex-home", cfg.GlobalHome)
	require.Equal(t, filepath.Join("/tmp/custom-cortex-home", "global.db"), cfg.GlobalCatalogPath())
}

func TestLoad_NegativeQueueDepthRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broadcast_queue_depth: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestProjectCatalogPath(t *testing.T) {
	require.Equal(t, filepath.Join("/srv/app", ".omni-cortex", "cortex.db"), ProjectCatalogPath("/srv/app"))
}
