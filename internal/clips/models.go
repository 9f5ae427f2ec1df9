package clips

import (
	"strings"
	"time"
)

// Status tracks a clip through the upload flow.
type Status string

const (
	StatusReady     Status = "ready"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
)

// Platform identifies an upload destination.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
)

var platformSet = map[Platform]struct{}{
	PlatformTikTok:    {},
	PlatformYouTube:   {},
	PlatformInstagram: {},
}

// ParsePlatform normalizes user input into a known platform identifier.
func ParsePlatform(value string) (Platform, bool) {
	platform := Platform(strings.ToLower(strings.TrimSpace(value)))
	_, ok := platformSet[platform]
	return platform, ok
}

// ProcessedClip is a finished artifact in the library. Everything except
// Status and UploadedTo is immutable after creation; UploadedTo only grows.
type ProcessedClip struct {
	ID          string
	JobID       string
	Title       string
	Description string
	Thumbnail   string
	Duration    float64
	FilePath    string
	SourceTitle string
	SourceURL   string
	Hashtags    []string
	Status      Status
	UploadedTo  []Platform
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Uploaded reports whether the clip has already landed on the platform.
func (c *ProcessedClip) Uploaded(platform Platform) bool {
	for _, existing := range c.UploadedTo {
		if existing == platform {
			return true
		}
	}
	return false
}

// matchesFilter implements the library view's substring search over title,
// description, and hashtags. The empty filter matches everything.
func (c *ProcessedClip) matchesFilter(filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	if strings.Contains(strings.ToLower(c.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Description), needle) {
		return true
	}
	for _, tag := range c.Hashtags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
