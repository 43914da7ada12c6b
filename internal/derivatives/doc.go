// Package derivatives renders resized and re-encoded versions of original
// assets (thumbnails, preview sizes, tile pyramids) on a bounded worker pool.
//
// Concurrency is capped at a fixed worker count; excess requests queue on a
// bounded channel so submitters feel backpressure rather than the process
// growing unbounded work. Foreground requests are served ahead of queued
// background work, and every operation is independently cancelable by id.
// A synchronous Thumbnail fast path exists for first paint.
package derivatives
