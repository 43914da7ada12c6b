// Package logging assembles structured slog loggers used across folio
// components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes typed attribute helpers plus stable field names so component
// code emits data with a consistent shape. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
