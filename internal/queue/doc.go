// Package queue persists jobs and enforces the job lifecycle state machine.
//
// A job moves queued → downloading → transcribing → clipping → rendering →
// completed, may fail from any active stage, may be cancelled from queued or
// any active stage, and returns from failed to queued only through an
// explicit retry. Every transition is a conditional update keyed on the
// expected current status, so concurrent requests against the same job are
// serialized and stale writers observe ErrConflict instead of clobbering
// state.
package queue
