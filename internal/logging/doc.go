// Package logging builds the slog loggers used across byline.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for ingestion. Loggers carry a component
// attribute so every line can be traced back to the subsystem that
// emitted it, and helpers exist to derive per-article loggers from
// context annotations.
package logging
