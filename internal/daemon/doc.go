// Package daemon coordinates the long-running Byline process.
//
// It wires configuration, the enrichment ledger, the cycle runner, and the
// credential pool into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon schedules cycles on a fixed interval
// (skipping ticks while a cycle is still in flight), probes upstream
// dependencies at startup, and serves the local HTTP API used by the CLI.
//
// Keep orchestration logic here: the enrichment steps themselves live in
// their respective packages while the daemon focuses on startup, shutdown,
// and scheduling.
package daemon
