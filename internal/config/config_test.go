package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Len(t, cfg.Dandisets, 1)
	assert.Equal(t, "000939", cfg.Dandisets[0].ID)
	assert.Equal(t, 20, cfg.Limits.MaxConsecutiveNonNWB)
	assert.Equal(t, 20, cfg.Limits.MaxConsecutiveMissing)
	assert.Equal(t, 100, cfg.Limits.MaxAssets)
	assert.Equal(t, 86400, cfg.Job.TimeSec)
	assert.NoError(t, cfg.Validate(false))
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("DENDRO_PROJECT_ID", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Dendro.ProjectID, cfg.Dendro.ProjectID)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	t.Setenv("DENDRO_PROJECT_ID", "")
	path := filepath.Join(t.TempDir(), "dandi-batch.yaml")
	content := `
dandisets:
  - id: "000026"
  - id: "000409"
    version: draft
limits:
  max_assets: 5
dendro:
  project_id: abc123
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Dandisets, 2)
	assert.Equal(t, "000026", cfg.Dandisets[0].ID)
	assert.Equal(t, "draft", cfg.Dandisets[1].Version)
	assert.Equal(t, 5, cfg.Limits.MaxAssets)
	// Los campos no mencionados conservan el valor por defecto
	assert.Equal(t, 20, cfg.Limits.MaxConsecutiveMissing)
	assert.Equal(t, "abc123", cfg.Dendro.ProjectID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits: [1, 2"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Concurrency = 3
	cfg.Job.MemoryGB = 32

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Concurrency)
	assert.Equal(t, 32, loaded.Job.MemoryGB)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DENDRO_API_KEY", "secret")
	t.Setenv("DENDRO_PROJECT_ID", "p-1")
	t.Setenv("DANDI_API_URL", "http://archive.local/api")
	t.Setenv("LINDI_BASE_URL", "http://lindi.local")
	t.Setenv("DENDRO_API_URL", "http://dendro.local")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "secret", cfg.Dendro.APIKey)
	assert.Equal(t, "p-1", cfg.Dendro.ProjectID)
	assert.Equal(t, "http://archive.local/api", cfg.Archive.BaseURL)
	assert.Equal(t, "http://lindi.local", cfg.Lindi.BaseURL)
	assert.Equal(t, "http://dendro.local", cfg.Dendro.BaseURL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		submit  bool
		wantErr bool
	}{
		{name: "defaults plan", mutate: func(c *Config) {}},
		{name: "submit sin api key", mutate: func(c *Config) { c.Dendro.APIKey = "" }, submit: true, wantErr: true},
		{name: "submit completo", mutate: func(c *Config) { c.Dendro.APIKey = "k" }, submit: true},
		{name: "sin dandisets", mutate: func(c *Config) { c.Dandisets = nil }, wantErr: true},
		{name: "dandiset sin id", mutate: func(c *Config) { c.Dandisets = []DandisetConfig{{}} }, wantErr: true},
		{name: "limite negativo", mutate: func(c *Config) { c.Limits.MaxAssets = -1 }, wantErr: true},
		{name: "limite cero desactiva", mutate: func(c *Config) { c.Limits.MaxAssets = 0 }},
		{name: "run method desconocido", mutate: func(c *Config) { c.Job.RunMethod = "cloud" }, wantErr: true},
		{name: "concurrency cero", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "processor vacio", mutate: func(c *Config) { c.Dendro.APIKey = "k"; c.Job.Processor = "" }, submit: true, wantErr: true},
		{name: "memoria cero", mutate: func(c *Config) { c.Job.MemoryGB = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate(tt.submit)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.ArchiveTimeout())

	cfg.Lindi.Timeout = "garbage"
	assert.Equal(t, 15*time.Second, cfg.LindiTimeout())

	cfg.Dendro.Timeout = "2m"
	assert.Equal(t, 2*time.Minute, cfg.DendroTimeout())
}
