// Package daemon hosts the long-running trendclipd process: the HTTP API for
// the dashboard and CLI, the workflow manager, the websocket event stream,
// and the nightly retention schedule. A file lock keeps execution to a single
// instance per log directory.
package daemon
