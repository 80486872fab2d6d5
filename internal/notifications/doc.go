// Package notifications pushes job lifecycle events to ntfy.
//
// When no topic is configured NewService returns a no-op so the workflow can
// publish unconditionally.
package notifications
