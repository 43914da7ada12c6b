package config

const (
	defaultArchiveDir      = "~/archives"
	defaultLogDir          = "~/.local/share/folio/logs"
	defaultDataDir         = "~/.local/share/folio/data"
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultWorkerCount     = 4
	defaultQueueCapacity   = 64
	defaultThumbnailPx     = 256
	defaultTilePx          = 512
	defaultActivityLogSize = 200
	defaultHistoryLimit    = 50
	defaultRetentionDays   = 30
	defaultCheckpointCap   = 20
	defaultNtfyTimeoutSecs = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveDir: defaultArchiveDir,
			LogDir:     defaultLogDir,
			DataDir:    defaultDataDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Ingest: Ingest{
			WorkerCount:     defaultWorkerCount,
			QueueCapacity:   defaultQueueCapacity,
			ThumbnailPx:     defaultThumbnailPx,
			DerivativeSizes: []int{512, 1024, 2048},
			TilePx:          defaultTilePx,
			MediaExtensions: []string{"jpg", "jpeg", "png", "gif", "tif", "tiff", "bmp", "webp", "pdf"},
			ActivityLogSize: defaultActivityLogSize,
		},
		Vault: Vault{
			HistoryLimit: defaultHistoryLimit,
		},
		Checkpoints: Checkpoints{
			RetentionDays: defaultRetentionDays,
			MaxCount:      defaultCheckpointCap,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSecs,
		},
	}
}
