package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trendclip/internal/clips"
	"trendclip/internal/config"
	"trendclip/internal/joblog"
	"trendclip/internal/pipeline"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/sources"
	"trendclip/internal/stage"
	"trendclip/internal/testsupport"
	"trendclip/internal/workflow"
)

type stubHandler struct {
	name    string
	execute func(ctx context.Context, env *stage.Env) error
}

func (s *stubHandler) Execute(ctx context.Context, env *stage.Env) error {
	if s.execute != nil {
		return s.execute(ctx, env)
	}
	return nil
}

func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

var stageOrder = []struct {
	name   string
	status queue.Status
}{
	{"download", queue.StatusDownloading},
	{"transcribe", queue.StatusTranscribing},
	{"clip", queue.StatusClipping},
	{"render", queue.StatusRendering},
}

// stubStages builds the four-stage sequence with overrides keyed by status.
// Stages without an override succeed immediately.
func stubStages(overrides map[queue.Status]func(ctx context.Context, env *stage.Env) error) []workflow.PipelineStage {
	stages := make([]workflow.PipelineStage, 0, len(stageOrder))
	for _, entry := range stageOrder {
		stages = append(stages, workflow.PipelineStage{
			Name:    entry.name,
			Status:  entry.status,
			Handler: &stubHandler{name: entry.name, execute: overrides[entry.status]},
		})
	}
	return stages
}

type testEnv struct {
	cfg       *config.Config
	store     *queue.Store
	clipStore *clips.Store
	logStore  *joblog.Store
	settings  *settings.Store
	manager   *workflow.Manager
}

func newTestEnv(t *testing.T, maxConcurrent int, overrides map[queue.Status]func(ctx context.Context, env *stage.Env) error) *testEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	clipStore := clips.NewStore(store.DB())
	logStore := joblog.NewStore(store.DB())
	settingsStore := settings.NewStore(store.DB(), settings.Default(cfg.Paths.LibraryDir, cfg.Paths.OutputDir))

	current, err := settingsStore.Load(context.Background())
	if err != nil {
		t.Fatalf("settings.Load: %v", err)
	}
	current.MaxConcurrentJobs = maxConcurrent
	if _, err := settingsStore.Save(context.Background(), current); err != nil {
		t.Fatalf("settings.Save: %v", err)
	}

	manager := workflow.NewManager(workflow.Deps{
		Config:       cfg,
		Store:        store,
		Clips:        clipStore,
		Logs:         logStore,
		Settings:     settingsStore,
		Stages:       stubStages(overrides),
		PollInterval: 10 * time.Millisecond,
		CancelGrace:  time.Second,
	})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("manager.Start: %v", err)
	}
	t.Cleanup(manager.Stop)

	return &testEnv{
		cfg:       cfg,
		store:     store,
		clipStore: clipStore,
		logStore:  logStore,
		settings:  settingsStore,
		manager:   manager,
	}
}

func (e *testEnv) submit(t *testing.T, url string) *queue.Job {
	t.Helper()
	job, err := e.manager.Submit(context.Background(), url, sources.TypeYouTubeVideo)
	if err != nil {
		t.Fatalf("Submit(%s): %v", url, err)
	}
	return job
}

func (e *testEnv) waitForStatus(t *testing.T, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := e.store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID(%s): %v", id, err)
		}
		if job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %s, want %s", id, job.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConcurrencyCapHoldsSecondJob(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusDownloading: func(ctx context.Context, _ *stage.Env) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	first := env.submit(t, "https://youtube.com/watch?v=cap-first")
	second := env.submit(t, "https://youtube.com/watch?v=cap-second")

	env.waitForStatus(t, first.ID, queue.StatusDownloading)

	// Give the admission loop several polls to misbehave.
	time.Sleep(60 * time.Millisecond)
	held, err := env.store.GetByID(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if held.Status != queue.StatusQueued {
		t.Fatalf("second job admitted past the cap: status %s", held.Status)
	}

	close(release)
	env.waitForStatus(t, first.ID, queue.StatusCompleted)
	env.waitForStatus(t, second.ID, queue.StatusCompleted)
}

func TestJobsAdmittedOldestFirst(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusDownloading: func(_ context.Context, env *stage.Env) error {
			mu.Lock()
			order = append(order, env.Job.SourceURL)
			mu.Unlock()
			return nil
		},
	})

	urls := []string{
		"https://youtube.com/watch?v=fifo-1",
		"https://youtube.com/watch?v=fifo-2",
		"https://youtube.com/watch?v=fifo-3",
	}
	jobs := make([]*queue.Job, 0, len(urls))
	for _, url := range urls {
		jobs = append(jobs, env.submit(t, url))
	}
	for _, job := range jobs {
		env.waitForStatus(t, job.ID, queue.StatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(urls) {
		t.Fatalf("expected %d admissions, got %d", len(urls), len(order))
	}
	for i, url := range urls {
		if order[i] != url {
			t.Fatalf("admission order %v, want %v", order, urls)
		}
	}
}

func TestStageFailureMarksJobFailedAndRetryResets(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusTranscribing: func(_ context.Context, _ *stage.Env) error {
			mu.Lock()
			attempts++
			first := attempts == 1
			mu.Unlock()
			if first {
				return pipeline.Wrap(pipeline.ErrExternalTool, "transcribe", "whisper", "model crashed", errors.New("exit status 1"))
			}
			return nil
		},
	})

	job := env.submit(t, "https://youtube.com/watch?v=retry-me")
	failed := env.waitForStatus(t, job.ID, queue.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Fatal("expected a failure reason")
	}
	if failed.Progress != 0 || failed.CurrentTask != "" {
		t.Fatalf("failure should clear progress, got %d%% %q", failed.Progress, failed.CurrentTask)
	}

	retried, err := env.manager.Retry(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Status != queue.StatusQueued {
		t.Fatalf("retried job status = %s, want queued", retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Fatalf("retryCount = %d, want 1", retried.RetryCount)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("retry should clear the error, got %q", retried.ErrorMessage)
	}

	env.waitForStatus(t, job.ID, queue.StatusCompleted)
}

func TestCancelActiveJobLeavesNoClips(t *testing.T) {
	started := make(chan struct{})
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusRendering: func(ctx context.Context, env *stage.Env) error {
			env.Clips = append(env.Clips, clips.NewClipParams{
				JobID: env.Job.ID, Title: "should never exist", Duration: 30, FilePath: "/tmp/never.mp4",
			})
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})

	job := env.submit(t, "https://youtube.com/watch?v=cancel-me")
	<-started

	if err := env.manager.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	env.waitForStatus(t, job.ID, queue.StatusCancelled)

	count, err := env.clipStore.CountByJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("CountByJob: %v", err)
	}
	if count != 0 {
		t.Fatalf("cancelled job has %d clips, want 0", count)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusDownloading: func(ctx context.Context, _ *stage.Env) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	blocker := env.submit(t, "https://youtube.com/watch?v=blocker")
	env.waitForStatus(t, blocker.ID, queue.StatusDownloading)

	waiting := env.submit(t, "https://youtube.com/watch?v=still-queued")
	if err := env.manager.Cancel(context.Background(), waiting.ID); err != nil {
		t.Fatalf("Cancel queued job: %v", err)
	}
	env.waitForStatus(t, waiting.ID, queue.StatusCancelled)

	if err := env.manager.Cancel(context.Background(), waiting.ID); !errors.Is(err, queue.ErrNotCancellable) {
		t.Fatalf("cancelling a cancelled job: err = %v, want ErrNotCancellable", err)
	}
}

func TestCompletionPublishesClipsAtomically(t *testing.T) {
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusRendering: func(_ context.Context, env *stage.Env) error {
			env.Clips = append(env.Clips,
				clips.NewClipParams{JobID: env.Job.ID, Title: "First Highlight", Duration: 42, FilePath: "/tmp/first.mp4", Hashtags: []string{"#shorts"}},
				clips.NewClipParams{JobID: env.Job.ID, Title: "Second Highlight", Duration: 31, FilePath: "/tmp/second.mp4"},
			)
			return nil
		},
	})

	job := env.submit(t, "https://youtube.com/watch?v=clips-please")
	env.waitForStatus(t, job.ID, queue.StatusCompleted)

	recorded, err := env.clipStore.ListByJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("completed job has %d clips, want 2", len(recorded))
	}
	for _, clip := range recorded {
		if clip.Status != clips.StatusReady {
			t.Fatalf("clip %s status = %s, want ready", clip.ID, clip.Status)
		}
	}

	stats, err := env.manager.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalProcessed != 1 || stats.TotalClips != 2 {
		t.Fatalf("stats = %+v, want 1 processed and 2 clips", stats)
	}
}

func TestSettingsSnapshotCapturedAtAdmission(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		seen settings.WhisperModel
	)
	env := newTestEnv(t, 1, map[queue.Status]func(ctx context.Context, env *stage.Env) error{
		queue.StatusDownloading: func(ctx context.Context, _ *stage.Env) error {
			close(started)
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		queue.StatusTranscribing: func(_ context.Context, env *stage.Env) error {
			mu.Lock()
			seen = env.Settings.WhisperModel
			mu.Unlock()
			return nil
		},
	})

	ctx := context.Background()
	before, err := env.settings.Load(ctx)
	if err != nil {
		t.Fatalf("settings.Load: %v", err)
	}
	before.WhisperModel = settings.ModelSmall
	if _, err := env.settings.Save(ctx, before); err != nil {
		t.Fatalf("settings.Save: %v", err)
	}

	job := env.submit(t, "https://youtube.com/watch?v=snapshot")
	<-started

	changed, err := env.settings.Load(ctx)
	if err != nil {
		t.Fatalf("settings.Load: %v", err)
	}
	changed.WhisperModel = settings.ModelLarge
	if _, err := env.settings.Save(ctx, changed); err != nil {
		t.Fatalf("settings.Save: %v", err)
	}

	close(release)
	env.waitForStatus(t, job.ID, queue.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	if seen != settings.ModelSmall {
		t.Fatalf("transcribe stage saw model %q, want the admission snapshot %q", seen, settings.ModelSmall)
	}
}
