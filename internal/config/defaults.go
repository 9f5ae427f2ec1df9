package config

const (
	defaultLibraryDir         = "~/.local/share/trendclip/library"
	defaultOutputDir          = "~/.local/share/trendclip/output"
	defaultStagingDir         = "~/.local/share/trendclip/staging"
	defaultLogDir             = "~/.local/share/trendclip/logs"
	defaultAPIBind            = "127.0.0.1:8321"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultCancelGracePeriod  = 5
	defaultJobRetentionDays   = 30
	defaultLogRetentionDays   = 14
	defaultRetentionSchedule  = "0 3 * * *"
	defaultYtDlpBinary        = "yt-dlp"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultWhisperBinary      = "whisper"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			CancelGracePeriod:  defaultCancelGracePeriod,
		},
		Retention: Retention{
			JobDays:  defaultJobRetentionDays,
			LogDays:  defaultLogRetentionDays,
			Schedule: defaultRetentionSchedule,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			JobCompleted:   true,
			JobFailed:      true,
			QueueDrained:   true,
		},
		Tools: Tools{
			YtDlp:   defaultYtDlpBinary,
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
			Whisper: defaultWhisperBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
