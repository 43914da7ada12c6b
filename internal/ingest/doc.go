// Package ingest coordinates the import pipeline from a scanned source
// tree to a persisted archive: classification, sequence ordering, content
// dedup, asset persistence, canvas construction, and checkpointed resume.
//
// A run moves through scanning, processing, saving, and derivatives before
// reaching complete; cancellation and failure are reachable from any
// non-terminal stage. Progress is published as immutable snapshots, so
// consumers never observe a half-updated state.
package ingest
