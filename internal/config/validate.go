package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateVault(); err != nil {
		return err
	}
	return c.validateCheckpoints()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.WorkerCount < 1 {
		return errors.New("ingest.worker_count must be at least 1")
	}
	if c.Ingest.QueueCapacity < 1 {
		return errors.New("ingest.queue_capacity must be at least 1")
	}
	if c.Ingest.ThumbnailPx < 16 {
		return errors.New("ingest.thumbnail_px must be at least 16")
	}
	if c.Ingest.TilePx < 64 {
		return errors.New("ingest.tile_px must be at least 64")
	}
	for _, size := range c.Ingest.DerivativeSizes {
		if size < c.Ingest.ThumbnailPx {
			return fmt.Errorf("ingest.derivative_sizes entry %d is smaller than thumbnail_px", size)
		}
	}
	if c.Ingest.ActivityLogSize < 1 {
		return errors.New("ingest.activity_log_size must be at least 1")
	}
	return nil
}

func (c *Config) validateVault() error {
	if c.Vault.HistoryLimit < 1 {
		return errors.New("vault.history_limit must be at least 1")
	}
	return nil
}

func (c *Config) validateCheckpoints() error {
	if c.Checkpoints.RetentionDays < 1 {
		return errors.New("checkpoints.retention_days must be at least 1")
	}
	if c.Checkpoints.MaxCount < 1 {
		return errors.New("checkpoints.max_count must be at least 1")
	}
	return nil
}
