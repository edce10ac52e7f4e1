// Package services defines shared utilities consumed by the enrichment
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp post IDs, cycle IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (quota, transient, malformed response) so callers can decide between
//     credential failover, backoff, and giving up.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
