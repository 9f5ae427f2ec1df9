package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"trendclip/internal/config"
	"trendclip/internal/sources"
	"trendclip/internal/stage"
)

// downloadProgressRE matches yt-dlp's "--newline" progress output, e.g.
// "[download]  42.3% of 120.5MiB at 4.2MiB/s".
var downloadProgressRE = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// Downloader fetches the source media into the job workdir. YouTube sources
// go through yt-dlp; local files are probed in place and never copied.
type Downloader struct {
	ytDlpBinary   string
	ffprobeBinary string

	streamRunner  func(ctx context.Context, name string, args []string, onLine func(string)) error
	commandRunner func(ctx context.Context, name string, args ...string) (string, error)
}

// NewDownloader constructs the download stage from configured tool paths.
func NewDownloader(cfg *config.Config) *Downloader {
	return &Downloader{
		ytDlpBinary:   cfg.Tools.YtDlp,
		ffprobeBinary: cfg.Tools.FFprobe,
	}
}

// SetRunners overrides command execution for tests.
func (d *Downloader) SetRunners(
	stream func(ctx context.Context, name string, args []string, onLine func(string)) error,
	run func(ctx context.Context, name string, args ...string) (string, error),
) {
	d.streamRunner = stream
	d.commandRunner = run
}

func (d *Downloader) Execute(ctx context.Context, env *stage.Env) error {
	env.Progress(0, "Preparing download")

	if env.Job.SourceType == sources.TypeLocalFile {
		return d.adoptLocalFile(ctx, env)
	}
	return d.fetchRemote(ctx, env)
}

func (d *Downloader) adoptLocalFile(ctx context.Context, env *stage.Env) error {
	path := env.Job.SourceURL
	info, err := os.Stat(path)
	if err != nil {
		return Wrap(ErrValidation, "download", "stat local file", fmt.Sprintf("source file %s is not readable", path), err)
	}
	if info.IsDir() {
		return Wrap(ErrValidation, "download", "stat local file", fmt.Sprintf("source %s is a directory", path), nil)
	}

	duration, err := d.probeDuration(ctx, path)
	if err != nil {
		return err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	env.Media = &stage.MediaFile{
		Path:     path,
		Title:    title,
		Duration: duration,
	}
	env.Progress(100, "Source file ready")
	return nil
}

func (d *Downloader) fetchRemote(ctx context.Context, env *stage.Env) error {
	dest := filepath.Join(env.Workdir, "source.mp4")
	args := []string{
		"--newline",
		"--no-playlist",
		"-f", "bv*+ba/b",
		"--merge-output-format", "mp4",
		"-o", dest,
		env.Job.SourceURL,
	}

	run := d.streamRunner
	if run == nil {
		run = streamCommand
	}
	err := run(ctx, d.ytDlpBinary, args, func(line string) {
		if percent, ok := ParseDownloadProgress(line); ok {
			env.Progress(percent, "Downloading video")
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Wrap(ErrExternalTool, "download", "fetch media", "yt-dlp download failed", err)
	}

	if _, err := os.Stat(dest); err != nil {
		return Wrap(ErrExternalTool, "download", "verify output", fmt.Sprintf("expected download output %s missing", dest), err)
	}

	duration, err := d.probeDuration(ctx, dest)
	if err != nil {
		return err
	}

	title := env.Job.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(env.Job.SourceURL), filepath.Ext(env.Job.SourceURL))
	}
	env.Media = &stage.MediaFile{
		Path:     dest,
		Title:    title,
		Duration: duration,
	}
	env.Progress(100, "Download complete")
	return nil
}

func (d *Downloader) probeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	run := d.commandRunner
	if run == nil {
		run = runCommand
	}
	output, err := run(ctx, d.ffprobeBinary, args...)
	if err != nil {
		return 0, Wrap(ErrExternalTool, "download", "probe duration", fmt.Sprintf("ffprobe failed for %s", path), err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return 0, Wrap(ErrExternalTool, "download", "probe duration", fmt.Sprintf("unparseable ffprobe output %q", strings.TrimSpace(output)), err)
	}
	return duration, nil
}

func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(d.ytDlpBinary); err != nil {
		return stage.Unhealthy("download", fmt.Sprintf("yt-dlp not found: %v", err))
	}
	if _, err := exec.LookPath(d.ffprobeBinary); err != nil {
		return stage.Unhealthy("download", fmt.Sprintf("ffprobe not found: %v", err))
	}
	return stage.Healthy("download")
}

// ParseDownloadProgress extracts the percentage from a yt-dlp progress line.
func ParseDownloadProgress(line string) (int, bool) {
	match := downloadProgressRE.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return int(value), true
}
