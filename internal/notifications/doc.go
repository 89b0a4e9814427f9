// Package notifications pushes job lifecycle events to ntfy.
//
// NewService inspects the configuration once: with a topic set it returns an
// HTTP-backed notifier, without one a no-op, and callers never check which
// they got. Individual events can be silenced through the [notifications]
// switches while leaving the rest active.
//
// The pipeline and watcher depend only on the Service interface, so another
// transport can replace ntfy without touching them.
package notifications
