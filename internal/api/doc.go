// Package api defines the wire types shared by the daemon's HTTP handlers,
// the websocket event stream, and the CLI client.
package api
