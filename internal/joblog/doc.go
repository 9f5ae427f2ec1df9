// Package joblog records the append-only event feed shown in the dashboard's
// logs view. Entries are separate from the daemon's structured log output.
package joblog
