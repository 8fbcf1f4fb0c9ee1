// Package audit emits RFC5424-formatted security events for gate
// decisions, role resolutions, and simulated-role changes, with optional
// database persistence.
package audit
