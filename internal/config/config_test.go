package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Version)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 16, cfg.Metadata.CacheSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_RoundTrip(t *testing.T) {
	// Given: a saved config with two index types
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.IndexTypes = []IndexTypeConfig{
		{
			Name:        "docs",
			DataDir:     "/srv/kb/docs",
			StoragePath: "/srv/kb/docs.index",
			Engine:      EngineConfig{Command: "kb-engine", Args: []string{"--type", "docs"}},
		},
		{
			Name:        "code",
			DataDir:     "/srv/kb/code",
			StoragePath: "/srv/kb/code.index",
		},
	}
	require.NoError(t, cfg.Save(path))

	// When: loading it back
	loaded, err := Load(path)
	require.NoError(t, err)

	// Then: index types and defaults survive
	assert.Equal(t, []string{"docs", "code"}, loaded.TypeNames())
	it, err := loaded.IndexType("docs")
	require.NoError(t, err)
	assert.Equal(t, "kb-engine", it.Engine.Command)
}

func TestLoad_EnvOverrides(t *testing.T) {
	// Given: a saved config and socket/log-level env overrides
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Default().Save(path))
	t.Setenv("KBINDEX_SOCKET", "/run/kb/alt.sock")
	t.Setenv("KBINDEX_LOG_LEVEL", "debug")

	// When: loading
	loaded, err := Load(path)
	require.NoError(t, err)

	// Then: the environment wins over the file
	assert.Equal(t, "/run/kb/alt.sock", loaded.Server.SocketPath)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Equal(t, kberr.ErrCodeConfigNotFound, kberr.GetCode(err))
}

func TestLoadOrDefault_FallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "bad version",
			mutate: func(c *Config) {
				c.Version = 7
			},
			wantErr: true,
		},
		{
			name: "empty type name",
			mutate: func(c *Config) {
				c.IndexTypes = []IndexTypeConfig{{DataDir: "/d", StoragePath: "/s"}}
			},
			wantErr: true,
		},
		{
			name: "duplicate type",
			mutate: func(c *Config) {
				c.IndexTypes = []IndexTypeConfig{
					{Name: "docs", DataDir: "/d", StoragePath: "/s"},
					{Name: "docs", DataDir: "/d2", StoragePath: "/s2"},
				}
			},
			wantErr: true,
		},
		{
			name: "missing data dir",
			mutate: func(c *Config) {
				c.IndexTypes = []IndexTypeConfig{{Name: "docs", StoragePath: "/s"}}
			},
			wantErr: true,
		},
		{
			name: "missing storage path",
			mutate: func(c *Config) {
				c.IndexTypes = []IndexTypeConfig{{Name: "docs", DataDir: "/d"}}
			},
			wantErr: true,
		},
		{
			name: "bad debounce",
			mutate: func(c *Config) {
				c.Watch.Debounce = "soonish"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndexType_Unknown(t *testing.T) {
	cfg := Default()

	_, err := cfg.IndexType("nope")
	assert.Equal(t, kberr.ErrCodeUnknownIndexType, kberr.GetCode(err))
}

func TestDebounceWindow(t *testing.T) {
	cfg := Default()
	cfg.Watch.Debounce = "250ms"

	window, err := cfg.DebounceWindow()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, window)

	cfg.Watch.Debounce = ""
	window, err = cfg.DebounceWindow()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, window)
}

func TestHomeDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KBINDEX_HOME", dir)

	assert.Equal(t, dir, HomeDir())
	assert.Equal(t, filepath.Join(dir, DefaultFileName), DefaultPath())

	// Sanity: without the override we get a real path
	os.Unsetenv("KBINDEX_HOME")
	assert.NotEmpty(t, HomeDir())
}
