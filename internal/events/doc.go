// Package events pushes job lifecycle updates to dashboard clients over
// websockets so they do not have to rely on polling alone.
package events
