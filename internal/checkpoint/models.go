package checkpoint

import (
	"strings"
	"time"
)

// Status is the lifecycle of a checkpoint.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusInProgress,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Checkpoint is the persisted resume-state for one ingest run.
type Checkpoint struct {
	ID             string
	SourceName     string
	TotalFiles     int
	ProcessedFiles int
	Progress       float64
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Resumable reports whether an interrupted run can pick this checkpoint up.
func (c *Checkpoint) Resumable() bool {
	switch c.Status {
	case StatusInProgress, StatusPaused, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
