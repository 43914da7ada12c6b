package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for archive data.
type Paths struct {
	ArchiveDir string `toml:"archive_dir"`
	LogDir     string `toml:"log_dir"`
	DataDir    string `toml:"data_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Ingest contains tunables for the ingest pipeline.
type Ingest struct {
	WorkerCount     int      `toml:"worker_count"`
	QueueCapacity   int      `toml:"queue_capacity"`
	ThumbnailPx     int      `toml:"thumbnail_px"`
	DerivativeSizes []int    `toml:"derivative_sizes"`
	TilePx          int      `toml:"tile_px"`
	MediaExtensions []string `toml:"media_extensions"`
	ActivityLogSize int      `toml:"activity_log_size"`
}

// Vault contains tunables for the in-memory entity store.
type Vault struct {
	HistoryLimit int `toml:"history_limit"`
}

// Checkpoints contains retention policy for resumable ingest state.
type Checkpoints struct {
	RetentionDays int `toml:"retention_days"`
	MaxCount      int `toml:"max_count"`
}

// Notifications configures optional ntfy delivery of ingest events.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config is the root configuration structure persisted as TOML.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Logging     Logging     `toml:"logging"`
	Ingest      Ingest      `toml:"ingest"`
	Vault       Vault       `toml:"vault"`
	Checkpoints Checkpoints `toml:"checkpoints"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "folio", "config.toml"), nil
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. An empty path uses DefaultConfigPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	path = expandPath(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates all configured directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArchiveDir, c.Paths.LogDir, c.Paths.DataDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Paths.ArchiveDir = expandPath(c.Paths.ArchiveDir)
	c.Paths.LogDir = expandPath(c.Paths.LogDir)
	c.Paths.DataDir = expandPath(c.Paths.DataDir)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	for i, ext := range c.Ingest.MediaExtensions {
		c.Ingest.MediaExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
