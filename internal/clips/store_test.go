package clips_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"trendclip/internal/clips"
	"trendclip/internal/queue"
	"trendclip/internal/testsupport"
)

func insertClip(t *testing.T, store *queue.Store, jobID string, params clips.NewClipParams) string {
	t.Helper()

	params.JobID = jobID
	testsupport.AdvanceTo(t, store, jobID, queue.StatusRendering)
	var clipID string
	_, err := store.Complete(context.Background(), jobID, func(tx *sql.Tx) error {
		var err error
		clipID, err = clips.InsertTx(context.Background(), tx, params)
		return err
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	return clipID
}

func TestInsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	queueStore := testsupport.MustOpenStore(t, cfg)
	clipStore := clips.NewStore(queueStore.DB())
	ctx := context.Background()

	job := testsupport.NewJob(t, queueStore, "https://youtube.com/watch?v=abc")
	clipID := insertClip(t, queueStore, job.ID, clips.NewClipParams{
		Title:       "Best Moment Compilation",
		Description: "Highlights from the stream",
		Duration:    42.5,
		FilePath:    "/srv/output/best-moment.mp4",
		SourceTitle: "Full Stream VOD",
		SourceURL:   "https://youtube.com/watch?v=abc",
		Hashtags:    []string{"#gaming", "#highlights"},
	})

	clip, err := clipStore.Get(ctx, clipID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if clip.JobID != job.ID {
		t.Fatalf("unexpected job reference: %s", clip.JobID)
	}
	if clip.Status != clips.StatusReady {
		t.Fatalf("new clips must start ready, got %s", clip.Status)
	}
	if len(clip.Hashtags) != 2 || clip.Hashtags[0] != "#gaming" || clip.Hashtags[1] != "#highlights" {
		t.Fatalf("hashtag order must be preserved: %v", clip.Hashtags)
	}
	if len(clip.UploadedTo) != 0 {
		t.Fatalf("new clips must have no uploads: %v", clip.UploadedTo)
	}

	if _, err := clipStore.Get(ctx, "missing"); !errors.Is(err, clips.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	queueStore := testsupport.MustOpenStore(t, cfg)
	clipStore := clips.NewStore(queueStore.DB())
	ctx := context.Background()

	jobA := testsupport.NewJob(t, queueStore, "https://youtube.com/watch?v=a")
	insertClip(t, queueStore, jobA.ID, clips.NewClipParams{
		Title:    "Cooking Fails",
		FilePath: "/srv/output/cooking.mp4",
		Hashtags: []string{"#kitchen"},
	})
	time.Sleep(2 * time.Millisecond)
	jobB := testsupport.NewJob(t, queueStore, "https://youtube.com/watch?v=b")
	insertClip(t, queueStore, jobB.ID, clips.NewClipParams{
		Title:       "Speedrun Record",
		Description: "World record attempt in the kitchen level",
		FilePath:    "/srv/output/speedrun.mp4",
		Hashtags:    []string{"#gaming"},
	})

	all, err := clipStore.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(all))
	}
	if all[0].Title != "Speedrun Record" {
		t.Fatalf("expected newest first, got %q", all[0].Title)
	}

	cases := []struct {
		filter string
		want   int
	}{
		{"cooking", 1},
		{"KITCHEN", 2},
		{"#gaming", 1},
		{"nothing matches this", 0},
	}
	for _, tc := range cases {
		got, err := clipStore.List(ctx, tc.filter)
		if err != nil {
			t.Fatalf("List(%q) failed: %v", tc.filter, err)
		}
		if len(got) != tc.want {
			t.Errorf("List(%q) returned %d clips, want %d", tc.filter, len(got), tc.want)
		}
	}
}

func TestUploadFlow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	queueStore := testsupport.MustOpenStore(t, cfg)
	clipStore := clips.NewStore(queueStore.DB())
	ctx := context.Background()

	job := testsupport.NewJob(t, queueStore, "https://youtube.com/watch?v=abc")
	clipID := insertClip(t, queueStore, job.ID, clips.NewClipParams{
		Title:    "Upload Me",
		FilePath: "/srv/output/upload.mp4",
	})

	clip, err := clipStore.MarkUploading(ctx, clipID)
	if err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}
	if clip.Status != clips.StatusUploading {
		t.Fatalf("unexpected status: %s", clip.Status)
	}

	clip, err = clipStore.MarkUploaded(ctx, clipID, clips.PlatformTikTok)
	if err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}
	if clip.Status != clips.StatusUploaded {
		t.Fatalf("unexpected status: %s", clip.Status)
	}
	if len(clip.UploadedTo) != 1 || clip.UploadedTo[0] != clips.PlatformTikTok {
		t.Fatalf("unexpected platforms: %v", clip.UploadedTo)
	}

	// Repeating the same platform must not duplicate it.
	clip, err = clipStore.MarkUploaded(ctx, clipID, clips.PlatformTikTok)
	if err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}
	if len(clip.UploadedTo) != 1 {
		t.Fatalf("uploadedTo must be a set: %v", clip.UploadedTo)
	}

	clip, err = clipStore.MarkUploaded(ctx, clipID, clips.PlatformYouTube)
	if err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}
	if len(clip.UploadedTo) != 2 || clip.UploadedTo[1] != clips.PlatformYouTube {
		t.Fatalf("platforms must append in order: %v", clip.UploadedTo)
	}

	if _, err := clipStore.MarkUploaded(ctx, clipID, "myspace"); err == nil {
		t.Fatal("expected unknown platform to be rejected")
	}
}

func TestClipsRequireCompletedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	queueStore := testsupport.MustOpenStore(t, cfg)
	clipStore := clips.NewStore(queueStore.DB())
	ctx := context.Background()

	job := testsupport.NewJob(t, queueStore, "https://youtube.com/watch?v=abc")
	testsupport.AdvanceTo(t, queueStore, job.ID, queue.StatusRendering)

	// A failed completion rolls back the clip insert along with the status
	// change, so no clip ever references a non-completed job.
	boom := errors.New("render output missing")
	_, err := queueStore.Complete(ctx, job.ID, func(tx *sql.Tx) error {
		if _, err := clips.InsertTx(ctx, tx, clips.NewClipParams{
			JobID:    job.ID,
			Title:    "Ghost Clip",
			FilePath: "/srv/output/ghost.mp4",
		}); err != nil {
			return err
		}
		return boom
	})
	if err == nil {
		t.Fatal("expected Complete to fail")
	}

	count, err := clipStore.CountByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("CountByJob failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled-back completion must leave no clips, have %d", count)
	}

	fetched, err := queueStore.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusRendering {
		t.Fatalf("job must stay rendering after rollback, got %s", fetched.Status)
	}
}

func TestParsePlatform(t *testing.T) {
	if platform, ok := clips.ParsePlatform(" TikTok "); !ok || platform != clips.PlatformTikTok {
		t.Fatalf("ParsePlatform: %v %v", platform, ok)
	}
	if _, ok := clips.ParsePlatform("vimeo"); ok {
		t.Fatal("expected unknown platform to fail")
	}
}
