// Package notifications delivers enrichment events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-category toggles let operators mute cycle chatter while
// keeping credential exhaustion alerts.
//
// Extend this package if you need alternative transports; cycle code depends
// only on the simple Service interface via the Bridge adapter.
package notifications
