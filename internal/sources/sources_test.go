package sources_test

import (
	"errors"
	"testing"

	"trendclip/internal/sources"
)

func TestValidateAcceptsKnownShapes(t *testing.T) {
	cases := []struct {
		name       string
		source     string
		sourceType sources.Type
	}{
		{"watch url", "https://youtube.com/watch?v=abc123", sources.TypeYouTubeVideo},
		{"www watch url", "https://www.youtube.com/watch?v=abc123", sources.TypeYouTubeVideo},
		{"short link", "https://youtu.be/abc123", sources.TypeYouTubeVideo},
		{"shorts url", "https://youtube.com/shorts/abc123", sources.TypeYouTubeVideo},
		{"playlist", "https://youtube.com/playlist?list=PL123", sources.TypeYouTubePlaylist},
		{"watch with list", "https://youtube.com/watch?v=abc&list=PL123", sources.TypeYouTubePlaylist},
		{"handle", "https://youtube.com/@somecreator", sources.TypeYouTubeChannel},
		{"channel path", "https://youtube.com/channel/UC123", sources.TypeYouTubeChannel},
		{"legacy c path", "https://youtube.com/c/SomeCreator", sources.TypeYouTubeChannel},
		{"local file", "/videos/talk.mp4", sources.TypeLocalFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := sources.Validate(tc.source, tc.sourceType); err != nil {
				t.Fatalf("Validate(%q, %s) = %v", tc.source, tc.sourceType, err)
			}
		})
	}
}

func TestValidateRejectsBadSources(t *testing.T) {
	cases := []struct {
		name       string
		source     string
		sourceType sources.Type
	}{
		{"empty", "", sources.TypeYouTubeVideo},
		{"wrong host", "https://vimeo.com/12345", sources.TypeYouTubeVideo},
		{"missing video id", "https://youtube.com/watch", sources.TypeYouTubeVideo},
		{"bad scheme", "ftp://youtube.com/watch?v=abc", sources.TypeYouTubeVideo},
		{"playlist without list", "https://youtube.com/watch?v=abc", sources.TypeYouTubePlaylist},
		{"channel without handle", "https://youtube.com/watch?v=abc", sources.TypeYouTubeChannel},
		{"relative local path", "videos/talk.mp4", sources.TypeLocalFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := sources.Validate(tc.source, tc.sourceType)
			if err == nil {
				t.Fatalf("expected error for %q as %s", tc.source, tc.sourceType)
			}
			var invalid *sources.InvalidSourceError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidSourceError, got %T", err)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		source string
		want   sources.Type
	}{
		{"https://youtube.com/watch?v=abc", sources.TypeYouTubeVideo},
		{"https://youtube.com/playlist?list=PL1", sources.TypeYouTubePlaylist},
		{"https://youtube.com/@creator", sources.TypeYouTubeChannel},
		{"https://youtube.com/channel/UC1", sources.TypeYouTubeChannel},
		{"/data/input.mkv", sources.TypeLocalFile},
	}
	for _, tc := range cases {
		if got := sources.Detect(tc.source); got != tc.want {
			t.Fatalf("Detect(%q) = %s, want %s", tc.source, got, tc.want)
		}
	}
}

func TestParseType(t *testing.T) {
	if got, ok := sources.ParseType(" YouTube_Video "); !ok || got != sources.TypeYouTubeVideo {
		t.Fatalf("ParseType normalized lookup failed: %v %v", got, ok)
	}
	if _, ok := sources.ParseType("vimeo"); ok {
		t.Fatal("expected unknown type to fail")
	}
}
