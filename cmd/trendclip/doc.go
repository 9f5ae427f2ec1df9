// Command trendclip is the CLI companion to trendclipd. It talks to the
// daemon's HTTP API to manage the queue, browse clips, and change settings.
package main
