// Package logging assembles structured slog loggers used across coverdex.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so workflow code automatically tags log
// lines with item IDs, stages, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
