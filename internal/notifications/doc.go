// Package notifications delivers workflow milestones via ntfy push messages,
// degrading to a no-op when no topic is configured. Per-event toggles in the
// config decide which milestones are sent.
package notifications
