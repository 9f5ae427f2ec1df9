package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"trendclip/internal/pipeline"
	"trendclip/internal/testsupport"
)

func TestProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	prober := pipeline.NewProber(cfg)

	var gotURL string
	prober.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		gotURL = args[len(args)-1]
		return `{"title":"How To Bake Bread","thumbnail":"https://i.ytimg.com/vi/abc/hq720.jpg","duration":634.2,"uploader":"Baker"}`, nil
	})

	meta, err := prober.Probe(context.Background(), "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if gotURL != "https://youtube.com/watch?v=abc" {
		t.Fatalf("expected URL as final argument, got %q", gotURL)
	}
	if meta.Title != "How To Bake Bread" || meta.Duration != 634.2 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestProbeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	prober := pipeline.NewProber(cfg)

	prober.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("ERROR: Video unavailable")
	})

	if _, err := prober.Probe(context.Background(), "https://youtube.com/watch?v=gone"); !errors.Is(err, pipeline.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	prober.SetCommandRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "not json", nil
	})
	if _, err := prober.Probe(context.Background(), "https://youtube.com/watch?v=abc"); !errors.Is(err, pipeline.ErrExternalTool) {
		t.Fatalf("expected external tool error for bad output, got %v", err)
	}
}
