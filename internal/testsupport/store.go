package testsupport

import (
	"context"
	"testing"

	"trendclip/internal/config"
	"trendclip/internal/queue"
	"trendclip/internal/sources"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued YouTube job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, sourceURL string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		SourceURL:  sourceURL,
		SourceType: sources.TypeYouTubeVideo,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// AdvanceTo walks a job from queued through the state machine until it
// reaches the target active status.
func AdvanceTo(t testing.TB, store *queue.Store, id string, target queue.Status) *queue.Job {
	t.Helper()

	path := []queue.Status{
		queue.StatusQueued,
		queue.StatusDownloading,
		queue.StatusTranscribing,
		queue.StatusClipping,
		queue.StatusRendering,
	}
	ctx := context.Background()
	var job *queue.Job
	for i := 0; i+1 < len(path); i++ {
		if path[i+1] == target {
			var err error
			job, err = store.Transition(ctx, id, path[i], path[i+1])
			if err != nil {
				t.Fatalf("Transition %s -> %s: %v", path[i], path[i+1], err)
			}
			return job
		}
		var err error
		job, err = store.Transition(ctx, id, path[i], path[i+1])
		if err != nil {
			t.Fatalf("Transition %s -> %s: %v", path[i], path[i+1], err)
		}
	}
	return job
}
