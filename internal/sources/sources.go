package sources

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Type classifies where a job's source media comes from.
type Type string

const (
	TypeYouTubeVideo    Type = "youtube_video"
	TypeYouTubePlaylist Type = "youtube_playlist"
	TypeYouTubeChannel  Type = "youtube_channel"
	TypeLocalFile       Type = "local_file"
)

var allTypes = []Type{
	TypeYouTubeVideo,
	TypeYouTubePlaylist,
	TypeYouTubeChannel,
	TypeLocalFile,
}

// AllTypes returns the ordered list of known source types.
func AllTypes() []Type {
	cp := make([]Type, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// InvalidSourceError reports a source URL or path rejected before queuing.
type InvalidSourceError struct {
	Source string
	Type   Type
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid %s source %q: %s", e.Type, e.Source, e.Reason)
}

func invalid(source string, sourceType Type, reason string) error {
	return &InvalidSourceError{Source: source, Type: sourceType, Reason: reason}
}

var youtubeHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"m.youtube.com":   {},
	"youtu.be":        {},
}

// Validate checks that source matches the declared type: a recognizable
// YouTube URL shape for the YouTube types, an absolute filesystem path for
// local files. It returns an *InvalidSourceError on rejection.
func Validate(source string, sourceType Type) error {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return invalid(source, sourceType, "source must not be empty")
	}

	switch sourceType {
	case TypeLocalFile:
		if !filepath.IsAbs(trimmed) {
			return invalid(source, sourceType, "path must be absolute")
		}
		return nil
	case TypeYouTubeVideo, TypeYouTubePlaylist, TypeYouTubeChannel:
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return invalid(source, sourceType, "not a parseable URL")
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return invalid(source, sourceType, "URL scheme must be http or https")
		}
		host := strings.ToLower(parsed.Hostname())
		if _, ok := youtubeHosts[host]; !ok {
			return invalid(source, sourceType, "not a YouTube host")
		}
		return validateYouTubeShape(trimmed, parsed, sourceType)
	default:
		return invalid(source, sourceType, "unknown source type")
	}
}

func validateYouTubeShape(source string, parsed *url.URL, sourceType Type) error {
	host := strings.ToLower(parsed.Hostname())
	path := parsed.EscapedPath()

	switch sourceType {
	case TypeYouTubeVideo:
		if host == "youtu.be" {
			if strings.Trim(path, "/") == "" {
				return invalid(source, sourceType, "missing video id")
			}
			return nil
		}
		if strings.HasPrefix(path, "/shorts/") && strings.TrimPrefix(path, "/shorts/") != "" {
			return nil
		}
		if path == "/watch" && parsed.Query().Get("v") != "" {
			return nil
		}
		return invalid(source, sourceType, "expected a watch URL with a video id")
	case TypeYouTubePlaylist:
		if path == "/playlist" && parsed.Query().Get("list") != "" {
			return nil
		}
		if parsed.Query().Get("list") != "" {
			return nil
		}
		return invalid(source, sourceType, "expected a playlist URL with a list id")
	case TypeYouTubeChannel:
		trimmedPath := strings.Trim(path, "/")
		if strings.HasPrefix(trimmedPath, "@") && len(trimmedPath) > 1 {
			return nil
		}
		if strings.HasPrefix(trimmedPath, "channel/") || strings.HasPrefix(trimmedPath, "c/") || strings.HasPrefix(trimmedPath, "user/") {
			return nil
		}
		return invalid(source, sourceType, "expected a channel handle or channel path")
	}
	return invalid(source, sourceType, "unknown source type")
}

// Detect infers a source type from a raw URL or path, mirroring the
// heuristics the dashboard uses in its add-source form. Filesystem paths map
// to local_file; YouTube URLs are classified by shape, defaulting to a single
// video.
func Detect(source string) Type {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return TypeYouTubeVideo
	}
	if filepath.IsAbs(trimmed) {
		return TypeLocalFile
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "playlist") || strings.Contains(lower, "list=") {
		return TypeYouTubePlaylist
	}
	if strings.Contains(lower, "/@") || strings.Contains(lower, "/c/") || strings.Contains(lower, "/channel/") || strings.Contains(lower, "/user/") {
		return TypeYouTubeChannel
	}
	return TypeYouTubeVideo
}
