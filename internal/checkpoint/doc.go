// Package checkpoint persists resumable ingest state in SQLite.
//
// A checkpoint is created when a run starts, updated after every completed
// file, and deleted on success; interruption leaves it in_progress, paused,
// failed, or cancelled so a later session against the same source can skip
// files already marked completed. Old checkpoints are pruned by retention
// window and count cap.
package checkpoint
