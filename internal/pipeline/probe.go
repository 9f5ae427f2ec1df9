package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"trendclip/internal/config"
)

// Metadata is the probe result for a source URL.
type Metadata struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Uploader  string  `json:"uploader,omitempty"`
}

// Prober fetches source metadata without downloading media. The dashboard
// uses it to preview a URL before submission.
type Prober struct {
	ytDlpBinary   string
	commandRunner func(ctx context.Context, name string, args ...string) (string, error)
}

// NewProber constructs a metadata prober using the configured yt-dlp binary.
func NewProber(cfg *config.Config) *Prober {
	return &Prober{ytDlpBinary: cfg.Tools.YtDlp}
}

// SetCommandRunner overrides command execution for tests.
func (p *Prober) SetCommandRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	p.commandRunner = runner
}

// Probe fetches title, thumbnail, and duration for a source URL.
func (p *Prober) Probe(ctx context.Context, sourceURL string) (Metadata, error) {
	args := []string{
		"--dump-json",
		"--no-download",
		"--no-playlist",
		sourceURL,
	}

	run := p.commandRunner
	if run == nil {
		run = runCommand
	}
	output, err := run(ctx, p.ytDlpBinary, args...)
	if err != nil {
		return Metadata{}, Wrap(ErrExternalTool, "probe", "fetch metadata", "yt-dlp probe failed", err)
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(output), &meta); err != nil {
		return Metadata{}, Wrap(ErrExternalTool, "probe", "decode metadata", fmt.Sprintf("unparseable yt-dlp output for %s", sourceURL), err)
	}
	return meta, nil
}
