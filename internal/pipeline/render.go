package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"trendclip/internal/clips"
	"trendclip/internal/config"
	"trendclip/internal/stage"
)

// Renderer cuts each planned highlight out of the source media with ffmpeg
// and produces the clip records handed to the library on completion.
type Renderer struct {
	ffmpegBinary string
	outputDir    string
	gpuAvailable func(ctx context.Context) bool

	commandRunner func(ctx context.Context, name string, args ...string) (string, error)
}

// NewRenderer constructs the rendering stage. Outputs land in the configured
// output directory, one file per planned clip.
func NewRenderer(cfg *config.Config, gpuAvailable func(ctx context.Context) bool) *Renderer {
	return &Renderer{
		ffmpegBinary: cfg.Tools.FFmpeg,
		outputDir:    cfg.Paths.OutputDir,
		gpuAvailable: gpuAvailable,
	}
}

// SetCommandRunner overrides command execution for tests.
func (r *Renderer) SetCommandRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	r.commandRunner = runner
}

func (r *Renderer) Execute(ctx context.Context, env *stage.Env) error {
	if env.Media == nil || len(env.Plans) == 0 {
		return Wrap(ErrValidation, "render", "check input", "no clip plans available", nil)
	}
	outputPath := env.Settings.OutputPath
	if outputPath == "" {
		outputPath = r.outputDir
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return Wrap(ErrConfiguration, "render", "ensure output dir", fmt.Sprintf("cannot create %s", outputPath), err)
	}

	encoder := "libx264"
	if env.Settings.GPUAutoDetect && r.gpuAvailable != nil && r.gpuAvailable(ctx) {
		encoder = "h264_nvenc"
	}

	run := r.commandRunner
	if run == nil {
		run = runCommand
	}

	for i, plan := range env.Plans {
		env.Progress(i*100/len(env.Plans), fmt.Sprintf("Rendering clip %d of %d", i+1, len(env.Plans)))

		baseName := fmt.Sprintf("%s-%02d", slugify(plan.Title), i+1)
		clipPath := filepath.Join(outputPath, baseName+".mp4")
		thumbPath := filepath.Join(outputPath, baseName+".jpg")

		cutArgs := []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-ss", fmt.Sprintf("%.3f", plan.Start),
			"-to", fmt.Sprintf("%.3f", plan.End),
			"-i", env.Media.Path,
			"-c:v", encoder,
			"-c:a", "aac",
			"-movflags", "+faststart",
			clipPath,
		}
		if _, err := run(ctx, r.ffmpegBinary, cutArgs...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return Wrap(ErrExternalTool, "render", "cut clip", fmt.Sprintf("ffmpeg failed for clip %d", i+1), err)
		}

		// Thumbnail from the midpoint of the clip.
		midpoint := plan.Start + plan.Duration()/2
		thumbArgs := []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-ss", fmt.Sprintf("%.3f", midpoint),
			"-i", env.Media.Path,
			"-frames:v", "1",
			"-q:v", "3",
			thumbPath,
		}
		if _, err := run(ctx, r.ffmpegBinary, thumbArgs...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return Wrap(ErrExternalTool, "render", "grab thumbnail", fmt.Sprintf("ffmpeg thumbnail failed for clip %d", i+1), err)
		}

		env.Clips = append(env.Clips, clips.NewClipParams{
			JobID:       env.Job.ID,
			Title:       plan.Title,
			Description: plan.Description,
			Thumbnail:   thumbPath,
			Duration:    plan.Duration(),
			FilePath:    clipPath,
			SourceTitle: env.Media.Title,
			SourceURL:   env.Job.SourceURL,
			Hashtags:    plan.Hashtags,
		})
	}

	// Raw downloads are disposable once clips exist; sources outside the
	// workdir belong to the user and stay put.
	if env.Settings.DeleteRawAfterProcessing && withinDir(env.Workdir, env.Media.Path) {
		_ = os.Remove(env.Media.Path)
	}

	env.Progress(100, "Rendering complete")
	return nil
}

func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(r.ffmpegBinary); err != nil {
		return stage.Unhealthy("render", fmt.Sprintf("ffmpeg not found: %v", err))
	}
	return stage.Healthy("render")
}

// slugify reduces a clip title to a safe filename fragment.
func slugify(title string) string {
	var builder strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(builder.String(), "-")
	if slug == "" {
		return "clip"
	}
	if len(slug) > 48 {
		slug = strings.Trim(slug[:48], "-")
	}
	return slug
}

func withinDir(dir, path string) bool {
	if dir == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
