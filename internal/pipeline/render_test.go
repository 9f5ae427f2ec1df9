package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trendclip/internal/config"
	"trendclip/internal/pipeline"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/stage"
	"trendclip/internal/testsupport"
)

func rendererEnv(t *testing.T, cfg *config.Config) *stage.Env {
	t.Helper()
	workdir := t.TempDir()
	record := settings.Default(cfg.Paths.LibraryDir, cfg.Paths.OutputDir)
	record.DeleteRawAfterProcessing = false
	return &stage.Env{
		Job:      &queue.Job{ID: "job-1", SourceURL: "https://youtube.com/watch?v=abc"},
		Settings: record,
		Workdir:  workdir,
		Media: &stage.MediaFile{
			Path:     filepath.Join(workdir, "source.mp4"),
			Title:    "Full Stream VOD",
			Duration: 300,
		},
		Plans: []stage.ClipPlan{
			{Title: "Insane Finish", Description: "the last lap", Start: 40, End: 75, Hashtags: []string{"#insane", "#shorts"}},
			{Title: "Crowd Goes Wild", Start: 120, End: 150, Hashtags: []string{"#shorts"}},
		},
	}
}

func TestRendererProducesClipRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, func(ctx context.Context) bool { return false })

	env := rendererEnv(t, cfg)
	var commands [][]string
	renderer.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		commands = append(commands, args)
		return "", nil
	})

	if err := renderer.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(env.Clips) != 2 {
		t.Fatalf("expected 2 clip records, got %d", len(env.Clips))
	}
	// Each plan costs one cut and one thumbnail grab.
	if len(commands) != 4 {
		t.Fatalf("expected 4 ffmpeg invocations, got %d", len(commands))
	}

	first := env.Clips[0]
	if first.JobID != "job-1" {
		t.Fatalf("unexpected job reference %q", first.JobID)
	}
	if first.Title != "Insane Finish" || first.Duration != 35 {
		t.Fatalf("unexpected clip record: %+v", first)
	}
	if first.SourceTitle != "Full Stream VOD" || first.SourceURL != env.Job.SourceURL {
		t.Fatalf("clip must carry source attribution: %+v", first)
	}
	if !strings.HasSuffix(first.FilePath, "insane-finish-01.mp4") {
		t.Fatalf("unexpected file path %q", first.FilePath)
	}
	if !strings.HasSuffix(first.Thumbnail, "insane-finish-01.jpg") {
		t.Fatalf("unexpected thumbnail %q", first.Thumbnail)
	}

	cut := commands[0]
	joined := strings.Join(cut, " ")
	if !strings.Contains(joined, "-c:v libx264") {
		t.Fatalf("expected CPU encoder without GPU, got %v", cut)
	}
	if !strings.Contains(joined, "-ss 40.000") || !strings.Contains(joined, "-to 75.000") {
		t.Fatalf("expected plan window in cut args, got %v", cut)
	}
}

func TestRendererUsesGPUEncoder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, func(ctx context.Context) bool { return true })

	env := rendererEnv(t, cfg)
	env.Plans = env.Plans[:1]
	var sawNvenc bool
	renderer.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		if strings.Contains(strings.Join(args, " "), "h264_nvenc") {
			sawNvenc = true
		}
		return "", nil
	})

	if err := renderer.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !sawNvenc {
		t.Fatal("expected nvenc encoder with GPU available")
	}
}

func TestRendererGPUDisabledBySettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, func(ctx context.Context) bool { return true })

	env := rendererEnv(t, cfg)
	env.Settings.GPUAutoDetect = false
	env.Plans = env.Plans[:1]
	var sawNvenc bool
	renderer.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		if strings.Contains(strings.Join(args, " "), "h264_nvenc") {
			sawNvenc = true
		}
		return "", nil
	})

	if err := renderer.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if sawNvenc {
		t.Fatal("GPU disabled in settings must force the CPU encoder")
	}
}

func TestRendererDeletesRawDownload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, nil)

	env := rendererEnv(t, cfg)
	env.Settings.DeleteRawAfterProcessing = true
	env.Plans = env.Plans[:1]
	if err := os.WriteFile(env.Media.Path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	renderer.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "", nil
	})

	if err := renderer.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := os.Stat(env.Media.Path); !os.IsNotExist(err) {
		t.Fatal("raw download should be deleted after rendering")
	}
}

func TestRendererKeepsLocalSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, nil)

	env := rendererEnv(t, cfg)
	env.Settings.DeleteRawAfterProcessing = true
	env.Plans = env.Plans[:1]

	// Source outside the workdir belongs to the user.
	source := filepath.Join(t.TempDir(), "recording.mp4")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	env.Media.Path = source

	renderer.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "", nil
	})

	if err := renderer.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("local source must never be deleted: %v", err)
	}
}

func TestRendererToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, nil)

	env := rendererEnv(t, cfg)
	renderer.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("unknown encoder")
	})

	err := renderer.Execute(context.Background(), env)
	if !errors.Is(err, pipeline.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if len(env.Clips) != 0 {
		t.Fatal("failed render must not emit clip records")
	}
}

func TestRendererRequiresPlans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := pipeline.NewRenderer(cfg, nil)

	err := renderer.Execute(context.Background(), &stage.Env{Job: &queue.Job{ID: "job-1"}})
	if !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
