// Package logging supplies the slog loggers used across labtrace.
//
// It builds console or JSON handlers from configuration, exposes attr helper
// aliases so call sites avoid importing log/slog directly, and derives
// standardized fields (workflow ID, stage, correlation ID) from context so
// every record emitted while driving a workflow is attributable.
package logging
