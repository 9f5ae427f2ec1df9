package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"trendclip/internal/pipeline"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/stage"
	"trendclip/internal/testsupport"
)

func TestParseSegmentEnd(t *testing.T) {
	cases := []struct {
		line string
		end  float64
		ok   bool
	}{
		{"[00:12.480 --> 00:15.200]  hello there", 15.2, true},
		{"[01:00.000 --> 01:30.500] a minute in", 90.5, true},
		{"Detecting language using up to 30 seconds", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		end, ok := pipeline.ParseSegmentEnd(tc.line)
		if ok != tc.ok || end != tc.end {
			t.Errorf("ParseSegmentEnd(%q) = %v, %v; want %v, %v", tc.line, end, ok, tc.end, tc.ok)
		}
	}
}

func transcriberEnv(t *testing.T) *stage.Env {
	t.Helper()
	workdir := t.TempDir()
	return &stage.Env{
		Job:      &queue.Job{ID: "job-1", SourceURL: "https://youtube.com/watch?v=abc"},
		Settings: settings.Default("/srv/library", "/srv/output"),
		Workdir:  workdir,
		Media: &stage.MediaFile{
			Path:     filepath.Join(workdir, "source.mp4"),
			Title:    "Source",
			Duration: 120,
		},
	}
}

func TestTranscriberExecute(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transcriber := pipeline.NewTranscriber(cfg, func(ctx context.Context) bool { return false })

	env := transcriberEnv(t)
	var sawModel bool
	transcriber.SetCommandRunner(func(ctx context.Context, name string, args []string, onLine func(string)) error {
		for i, arg := range args {
			if arg == "--model" && i+1 < len(args) && args[i+1] == "medium" {
				sawModel = true
			}
		}
		onLine("[00:10.000 --> 00:14.000] partial output")
		transcript := `{"language":"en","segments":[
            {"start":0,"end":4.5,"text":" welcome back everyone"},
            {"start":4.5,"end":9.0,"text":" today is a special day"},
            {"start":9.0,"end":12.0,"text":"   "}
        ]}`
		return os.WriteFile(filepath.Join(env.Workdir, "source.json"), []byte(transcript), 0o644)
	})

	if err := transcriber.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !sawModel {
		t.Error("expected whisper to be invoked with the snapshot's model")
	}
	if env.Transcript == nil || len(env.Transcript.Segments) != 2 {
		t.Fatalf("expected 2 non-empty segments, got %+v", env.Transcript)
	}
	if env.Transcript.Language != "en" {
		t.Fatalf("unexpected language %q", env.Transcript.Language)
	}
	if env.Transcript.Segments[0].Text != "welcome back everyone" {
		t.Fatalf("segment text must be trimmed, got %q", env.Transcript.Segments[0].Text)
	}
}

func TestTranscriberEmptyTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transcriber := pipeline.NewTranscriber(cfg, nil)

	env := transcriberEnv(t)
	transcriber.SetCommandRunner(func(ctx context.Context, name string, args []string, onLine func(string)) error {
		return os.WriteFile(filepath.Join(env.Workdir, "source.json"), []byte(`{"language":"en","segments":[]}`), 0o644)
	})

	err := transcriber.Execute(context.Background(), env)
	if !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error for silent media, got %v", err)
	}
}

func TestTranscriberToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transcriber := pipeline.NewTranscriber(cfg, nil)

	env := transcriberEnv(t)
	transcriber.SetCommandRunner(func(ctx context.Context, name string, args []string, onLine func(string)) error {
		return errors.New("CUDA out of memory")
	})

	err := transcriber.Execute(context.Background(), env)
	if !errors.Is(err, pipeline.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestTranscriberRequiresMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transcriber := pipeline.NewTranscriber(cfg, nil)

	err := transcriber.Execute(context.Background(), &stage.Env{Job: &queue.Job{ID: "job-1"}})
	if !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
