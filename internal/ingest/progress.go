package ingest

import (
	"fmt"
	"sync"
	"time"
)

// Stage is the ingest state machine position.
type Stage string

const (
	StageScanning    Stage = "scanning"
	StageProcessing  Stage = "processing"
	StageSaving      Stage = "saving"
	StageDerivatives Stage = "derivatives"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
	StageCancelled   Stage = "cancelled"
)

// Terminal reports whether no further transitions can occur.
func (s Stage) Terminal() bool {
	switch s {
	case StageComplete, StageError, StageCancelled:
		return true
	default:
		return false
	}
}

// FileStatus is the per-file lifecycle within a run.
type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileSkipped    FileStatus = "skipped"
	FileError      FileStatus = "error"
)

// FileRecord tracks one file through the run.
type FileRecord struct {
	ID         string
	Name       string
	Size       int64
	MIME       string
	Status     FileStatus
	Percent    float64
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// Progress is an immutable snapshot of a run. Every field is copied on
// Snapshot, so callers may hold it indefinitely.
type Progress struct {
	OperationID string
	Stage       Stage
	Files       []FileRecord

	TotalFiles     int
	ProcessedFiles int
	CompletedFiles int
	SkippedFiles   int
	ErroredFiles   int
	BytesProcessed int64

	SpeedBps    float64
	ETA         time.Duration
	ActivityLog []string

	IsPaused    bool
	IsCancelled bool
	StartedAt   time.Time
}

// Percent is overall completion in [0,100].
func (p Progress) Percent() float64 {
	if p.TotalFiles == 0 {
		return 0
	}
	return 100 * float64(p.ProcessedFiles) / float64(p.TotalFiles)
}

// ProgressFunc receives a fresh snapshot after every meaningful change.
type ProgressFunc func(Progress)

// LegacyProgress adapts the old (message, percent) callback shape.
func LegacyProgress(fn func(message string, percent float64)) ProgressFunc {
	return func(p Progress) {
		message := string(p.Stage)
		if n := len(p.ActivityLog); n > 0 {
			message = p.ActivityLog[n-1]
		}
		fn(message, p.Percent())
	}
}

// tracker owns the mutable progress state for one run. All mutation goes
// through its methods; each emits one immutable snapshot to the callback.
// Snapshots are taken under the lock and emitted after it is released, so
// the callback may call back into the tracker or the orchestrator.
type tracker struct {
	mu       sync.Mutex
	progress Progress
	byID     map[string]int
	logCap   int
	emit     ProgressFunc
}

func newTracker(operationID string, logCap int, emit ProgressFunc) *tracker {
	if logCap < 1 {
		logCap = 1
	}
	return &tracker{
		progress: Progress{
			OperationID: operationID,
			Stage:       StageScanning,
			StartedAt:   time.Now(),
		},
		byID:   make(map[string]int),
		logCap: logCap,
		emit:   emit,
	}
}

// Snapshot returns a deep copy of the current progress.
func (t *tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *tracker) snapshotLocked() Progress {
	cp := t.progress
	cp.Files = append([]FileRecord(nil), t.progress.Files...)
	cp.ActivityLog = append([]string(nil), t.progress.ActivityLog...)

	elapsed := time.Since(t.progress.StartedAt)
	if elapsed > 0 && t.progress.BytesProcessed > 0 {
		cp.SpeedBps = float64(t.progress.BytesProcessed) / elapsed.Seconds()
	}
	if t.progress.ProcessedFiles > 0 && t.progress.TotalFiles > t.progress.ProcessedFiles {
		perFile := elapsed / time.Duration(t.progress.ProcessedFiles)
		cp.ETA = perFile * time.Duration(t.progress.TotalFiles-t.progress.ProcessedFiles)
	}
	return cp
}

// publish emits a snapshot already detached from the tracker. It must be
// called without holding t.mu.
func (t *tracker) publish(snapshot Progress) {
	if t.emit != nil {
		t.emit(snapshot)
	}
}

func (t *tracker) setStage(stage Stage) {
	t.mu.Lock()
	t.progress.Stage = stage
	if stage == StageCancelled {
		t.progress.IsCancelled = true
	}
	t.appendLogLocked(fmt.Sprintf("stage: %s", stage))
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) setTotal(total int) {
	t.mu.Lock()
	t.progress.TotalFiles = total
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) setPaused(paused bool) {
	t.mu.Lock()
	t.progress.IsPaused = paused
	if paused {
		t.appendLogLocked("paused")
	} else {
		t.appendLogLocked("resumed")
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) addFile(id, name string, size int64, mime string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[id] = len(t.progress.Files)
	t.progress.Files = append(t.progress.Files, FileRecord{
		ID:     id,
		Name:   name,
		Size:   size,
		MIME:   mime,
		Status: FilePending,
	})
}

func (t *tracker) fileProcessing(id string) {
	t.mu.Lock()
	if record := t.recordLocked(id); record != nil {
		record.Status = FileProcessing
		record.StartedAt = time.Now()
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) fileCompleted(id string) {
	t.mu.Lock()
	if record := t.recordLocked(id); record != nil {
		record.Status = FileCompleted
		record.Percent = 100
		record.FinishedAt = time.Now()
		t.progress.ProcessedFiles++
		t.progress.CompletedFiles++
		t.progress.BytesProcessed += record.Size
		t.appendLogLocked("completed " + record.Name)
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) fileSkipped(id, reason string) {
	t.mu.Lock()
	if record := t.recordLocked(id); record != nil {
		record.Status = FileSkipped
		record.Percent = 100
		record.FinishedAt = time.Now()
		t.progress.ProcessedFiles++
		t.progress.SkippedFiles++
		t.appendLogLocked("skipped " + record.Name + ": " + reason)
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) fileErrored(id string, err error) {
	t.mu.Lock()
	if record := t.recordLocked(id); record != nil {
		record.Status = FileError
		record.FinishedAt = time.Now()
		record.Error = err.Error()
		t.progress.ProcessedFiles++
		t.progress.ErroredFiles++
		t.appendLogLocked("error " + record.Name + ": " + err.Error())
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

func (t *tracker) log(message string) {
	t.mu.Lock()
	t.appendLogLocked(message)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

// appendLogLocked appends to the bounded activity log.
func (t *tracker) appendLogLocked(message string) {
	t.progress.ActivityLog = append(t.progress.ActivityLog, message)
	if len(t.progress.ActivityLog) > t.logCap {
		t.progress.ActivityLog = t.progress.ActivityLog[len(t.progress.ActivityLog)-t.logCap:]
	}
}

func (t *tracker) recordLocked(id string) *FileRecord {
	index, ok := t.byID[id]
	if !ok {
		return nil
	}
	return &t.progress.Files[index]
}
