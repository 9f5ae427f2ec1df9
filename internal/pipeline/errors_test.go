package pipeline

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("exit status 1")
	err := Wrap(ErrExternalTool, "download", "fetch media", "yt-dlp download failed", inner)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected inner error to survive wrapping: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "render", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := Wrap(ErrValidation, "clip", "select highlights", "source too short to produce a clip", nil)
	want := "clip: select highlights: source too short to produce a clip"
	if got := Message(err); got != want {
		t.Fatalf("Message = %q, want %q", got, want)
	}
	if Message(nil) != "" {
		t.Fatal("Message(nil) must be empty")
	}
	plain := errors.New("plain failure")
	if Message(plain) != "plain failure" {
		t.Fatalf("unexpected message for untagged error: %q", Message(plain))
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Insane Finish", "insane-finish"},
		{"What?! No Way...", "what-no-way"},
		{"", "clip"},
		{"---", "clip"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWithinDir(t *testing.T) {
	if !withinDir("/tmp/work", "/tmp/work/source.mp4") {
		t.Fatal("expected path inside dir")
	}
	if withinDir("/tmp/work", "/home/user/video.mp4") {
		t.Fatal("expected path outside dir")
	}
}
