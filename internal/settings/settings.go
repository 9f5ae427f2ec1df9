package settings

import (
	"fmt"
	"strings"
)

// WhisperModel selects the transcription model size. The choice is fixed per
// job at admission time.
type WhisperModel string

const (
	ModelTiny   WhisperModel = "tiny"
	ModelBase   WhisperModel = "base"
	ModelSmall  WhisperModel = "small"
	ModelMedium WhisperModel = "medium"
	ModelLarge  WhisperModel = "large"
)

var whisperModels = map[WhisperModel]struct{}{
	ModelTiny:   {},
	ModelBase:   {},
	ModelSmall:  {},
	ModelMedium: {},
	ModelLarge:  {},
}

// APIKeys holds per-platform credentials. Values are secrets and must never
// reach logs or API responses unmasked.
type APIKeys struct {
	OpenAI    string `json:"openai,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// AppSettings is the singleton configuration record consumed by the queue
// manager and pipeline executors. Executors receive a by-value snapshot at
// admission; later saves only affect jobs admitted afterwards.
type AppSettings struct {
	APIKeys                  APIKeys      `json:"apiKeys"`
	GPUAutoDetect            bool         `json:"gpuAutoDetect"`
	DeleteRawAfterProcessing bool         `json:"deleteRawAfterProcessing"`
	LibraryPath              string       `json:"libraryPath"`
	OutputPath               string       `json:"outputPath"`
	WhisperModel             WhisperModel `json:"whisperModel"`
	MaxConcurrentJobs        int          `json:"maxConcurrentJobs"`
}

// Default returns the settings applied before the user has saved anything.
func Default(libraryPath, outputPath string) AppSettings {
	return AppSettings{
		GPUAutoDetect:            true,
		DeleteRawAfterProcessing: true,
		LibraryPath:              libraryPath,
		OutputPath:               outputPath,
		WhisperModel:             ModelMedium,
		MaxConcurrentJobs:        2,
	}
}

// Validate rejects records that would break queue admission or the pipeline.
func (s AppSettings) Validate() error {
	if s.MaxConcurrentJobs < 1 {
		return fmt.Errorf("maxConcurrentJobs must be at least 1, have %d", s.MaxConcurrentJobs)
	}
	if _, ok := whisperModels[s.WhisperModel]; !ok {
		return fmt.Errorf("unknown whisper model %q", s.WhisperModel)
	}
	if strings.TrimSpace(s.LibraryPath) == "" {
		return fmt.Errorf("libraryPath must not be empty")
	}
	if strings.TrimSpace(s.OutputPath) == "" {
		return fmt.Errorf("outputPath must not be empty")
	}
	return nil
}

// MaskKey renders a credential for display: first and last four characters
// with the middle elided. Short keys are fully elided.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Masked returns a copy safe for display surfaces. Every credential in the
// copy is passed through MaskKey.
func (s AppSettings) Masked() AppSettings {
	masked := s
	masked.APIKeys = APIKeys{
		OpenAI:    MaskKey(s.APIKeys.OpenAI),
		TikTok:    MaskKey(s.APIKeys.TikTok),
		YouTube:   MaskKey(s.APIKeys.YouTube),
		Instagram: MaskKey(s.APIKeys.Instagram),
	}
	return masked
}

// PreserveMasked merges a save request against the stored record. Clients
// that round-trip the masked view send elided credentials back unchanged, so
// any key containing the mask character keeps its stored value.
func PreserveMasked(incoming, current AppSettings) AppSettings {
	merged := incoming
	merged.APIKeys.OpenAI = preserveKey(incoming.APIKeys.OpenAI, current.APIKeys.OpenAI)
	merged.APIKeys.TikTok = preserveKey(incoming.APIKeys.TikTok, current.APIKeys.TikTok)
	merged.APIKeys.YouTube = preserveKey(incoming.APIKeys.YouTube, current.APIKeys.YouTube)
	merged.APIKeys.Instagram = preserveKey(incoming.APIKeys.Instagram, current.APIKeys.Instagram)
	return merged
}

func preserveKey(incoming, current string) string {
	if strings.Contains(incoming, "*") {
		return current
	}
	return incoming
}
