package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"trendclip/internal/config"
	"trendclip/internal/stage"
)

// segmentLineRE matches whisper's live segment output, e.g.
// "[01:23.000 --> 01:27.500]  and that's when everything changed".
var segmentLineRE = regexp.MustCompile(`\[(\d+):(\d+(?:\.\d+)?)\s+-->\s+(\d+):(\d+(?:\.\d+)?)\]`)

// Transcriber produces a timed transcript of the downloaded media with the
// whisper CLI. The model size comes from the settings snapshot captured at
// admission, so a settings save never changes an in-flight job's model.
type Transcriber struct {
	whisperBinary string
	gpuAvailable  func(ctx context.Context) bool

	commandRunner func(ctx context.Context, name string, args []string, onLine func(string)) error
}

// NewTranscriber constructs the transcription stage. gpuAvailable reports
// whether CUDA acceleration can be used; it is only consulted when the
// settings snapshot has GPU auto-detection enabled.
func NewTranscriber(cfg *config.Config, gpuAvailable func(ctx context.Context) bool) *Transcriber {
	return &Transcriber{
		whisperBinary: cfg.Tools.Whisper,
		gpuAvailable:  gpuAvailable,
	}
}

// SetCommandRunner overrides command execution for tests.
func (t *Transcriber) SetCommandRunner(runner func(ctx context.Context, name string, args []string, onLine func(string)) error) {
	t.commandRunner = runner
}

func (t *Transcriber) Execute(ctx context.Context, env *stage.Env) error {
	if env.Media == nil {
		return Wrap(ErrValidation, "transcribe", "check input", "no downloaded media available", nil)
	}
	env.Progress(0, "Starting transcription")

	args := []string{
		env.Media.Path,
		"--model", string(env.Settings.WhisperModel),
		"--output_format", "json",
		"--output_dir", env.Workdir,
		"--verbose", "True",
	}
	if env.Settings.GPUAutoDetect && t.gpuAvailable != nil && t.gpuAvailable(ctx) {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu")
	}

	total := env.Media.Duration
	run := t.commandRunner
	if run == nil {
		run = streamCommand
	}
	err := run(ctx, t.whisperBinary, args, func(line string) {
		if end, ok := ParseSegmentEnd(line); ok && total > 0 {
			percent := int(end / total * 100)
			if percent > 99 {
				percent = 99
			}
			env.Progress(percent, "Transcribing audio")
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Wrap(ErrExternalTool, "transcribe", "run whisper", fmt.Sprintf("whisper %s model failed", env.Settings.WhisperModel), err)
	}

	transcript, err := loadTranscript(transcriptPath(env.Workdir, env.Media.Path))
	if err != nil {
		return err
	}
	if len(transcript.Segments) == 0 {
		return Wrap(ErrValidation, "transcribe", "check output", "no speech detected in source media", nil)
	}

	env.Transcript = transcript
	env.Progress(100, "Transcription complete")
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(t.whisperBinary); err != nil {
		return stage.Unhealthy("transcribe", fmt.Sprintf("whisper not found: %v", err))
	}
	return stage.Healthy("transcribe")
}

func transcriptPath(workdir, mediaPath string) string {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	return filepath.Join(workdir, base+".json")
}

type whisperOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func loadTranscript(path string) (*stage.Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Wrap(ErrExternalTool, "transcribe", "read output", fmt.Sprintf("transcript %s missing", path), err)
	}

	var decoded whisperOutput
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, Wrap(ErrExternalTool, "transcribe", "decode output", fmt.Sprintf("unparseable transcript %s", path), err)
	}

	transcript := &stage.Transcript{Language: decoded.Language}
	for _, segment := range decoded.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, stage.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  text,
		})
	}
	return transcript, nil
}

// ParseSegmentEnd extracts the end timestamp in seconds from a whisper live
// segment line.
func ParseSegmentEnd(line string) (float64, bool) {
	match := segmentLineRE.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(match[3], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[4], 64)
	if err != nil {
		return 0, false
	}
	return minutes*60 + seconds, true
}
