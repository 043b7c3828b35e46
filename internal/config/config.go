// Package config loads and validates the kbindex configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	kberr "github.com/mwestra/kbindex/internal/errors"
)

// DefaultFileName is the config file name looked up in the kbindex home.
const DefaultFileName = "config.yaml"

// Config represents the complete kbindex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	IndexTypes []IndexTypeConfig `yaml:"index_types" json:"index_types"`
	Metadata   MetadataConfig   `yaml:"metadata" json:"metadata"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// IndexTypeConfig describes one index type: where its raw documents live
// and where the derived searchable artifact is written.
type IndexTypeConfig struct {
	// Name is the index type identifier (e.g., "docs", "code", "notes").
	Name string `yaml:"name" json:"name"`

	// DataDir is the folder of raw documents for this type.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StoragePath is the derived artifact produced by the indexing engine.
	StoragePath string `yaml:"storage_path" json:"storage_path"`

	// Engine is the external indexing engine command for this type.
	Engine EngineConfig `yaml:"engine" json:"engine"`
}

// EngineConfig configures the external indexing engine subprocess.
type EngineConfig struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args"`
	Dir     string   `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// MetadataConfig configures the metadata store.
type MetadataConfig struct {
	// Path is the SQLite database file for metadata records.
	Path string `yaml:"path" json:"path"`

	// CacheSize is the number of records held in the in-memory read cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ServerConfig configures the daemon server.
type ServerConfig struct {
	// SocketPath is the Unix socket the daemon listens on.
	SocketPath string `yaml:"socket_path" json:"socket_path"`
}

// WatchConfig configures data folder watching.
type WatchConfig struct {
	// Enabled enables fsnotify watching of data folders (default: true).
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Debounce is the event coalescing window (e.g., "500ms").
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the default configuration rooted at ~/.kbindex.
func Default() *Config {
	home := HomeDir()
	return &Config{
		Version: 1,
		Metadata: MetadataConfig{
			Path:      filepath.Join(home, "metadata.db"),
			CacheSize: 16,
		},
		Server: ServerConfig{
			SocketPath: filepath.Join(home, "kbindex.sock"),
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HomeDir returns the kbindex home directory (~/.kbindex).
// Overridable via KBINDEX_HOME for tests and multi-profile setups.
func HomeDir() string {
	if dir := os.Getenv("KBINDEX_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kbindex")
	}
	return filepath.Join(home, ".kbindex")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(HomeDir(), DefaultFileName)
}

// Load reads a config file, fills defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, kberr.New(kberr.ErrCodeConfigNotFound,
			fmt.Sprintf("config file not found: %s", path), err).
			WithSuggestion("run 'kbindex init' to create one")
	}
	if err != nil {
		return nil, kberr.Wrap(kberr.ErrCodeConfigInvalid, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, kberr.ConfigError("failed to parse config", err)
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets deployments move the daemon socket and log
// level without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KBINDEX_SOCKET"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("KBINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// LoadOrDefault loads the config at path, falling back to defaults
// when no file exists.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if kberr.GetCode(err) == kberr.ErrCodeConfigNotFound {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kberr.ConfigError("failed to create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return kberr.ConfigError("failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return kberr.ConfigError("failed to write config", err)
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return kberr.ConfigError(fmt.Sprintf("unsupported config version %d", c.Version), nil)
	}

	seen := make(map[string]bool, len(c.IndexTypes))
	for _, it := range c.IndexTypes {
		if it.Name == "" {
			return kberr.ConfigError("index type with empty name", nil)
		}
		if seen[it.Name] {
			return kberr.ConfigError(fmt.Sprintf("duplicate index type %q", it.Name), nil)
		}
		seen[it.Name] = true

		if it.DataDir == "" {
			return kberr.ConfigError(fmt.Sprintf("index type %q has no data_dir", it.Name), nil)
		}
		if it.StoragePath == "" {
			return kberr.ConfigError(fmt.Sprintf("index type %q has no storage_path", it.Name), nil)
		}
	}

	if c.Metadata.CacheSize < 0 {
		return kberr.ConfigError("metadata cache_size cannot be negative", nil)
	}

	if _, err := c.DebounceWindow(); err != nil {
		return kberr.ConfigError("invalid watch debounce", err)
	}

	return nil
}

// IndexType returns the configuration for a named index type.
func (c *Config) IndexType(name string) (IndexTypeConfig, error) {
	for _, it := range c.IndexTypes {
		if it.Name == name {
			return it, nil
		}
	}
	return IndexTypeConfig{}, kberr.New(kberr.ErrCodeUnknownIndexType,
		fmt.Sprintf("unknown index type %q", name), nil).
		WithSuggestion("add it to the index_types section of the config")
}

// TypeNames returns the configured index type names in config order.
func (c *Config) TypeNames() []string {
	names := make([]string, len(c.IndexTypes))
	for i, it := range c.IndexTypes {
		names[i] = it.Name
	}
	return names
}

// DebounceWindow parses the watch debounce duration (default 500ms).
func (c *Config) DebounceWindow() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 500 * time.Millisecond, nil
	}
	return time.ParseDuration(c.Watch.Debounce)
}
