// Package workflow coordinates job processing. The manager admits queued
// jobs oldest first up to the concurrency cap, runs each admitted job
// through the configured stage sequence in its own goroutine, and persists
// every status change so the dashboard always reflects the database.
package workflow
