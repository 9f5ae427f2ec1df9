package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trendclip/internal/api"
	"trendclip/internal/queue"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	if got := truncate("a very long title indeed", 10); got != "a very ..." {
		t.Fatalf("truncate long = %q", got)
	}
}

func TestFormatClipDuration(t *testing.T) {
	cases := map[float64]string{
		0:    "-",
		42.4: "0:42",
		61:   "1:01",
		3600: "60:00",
	}
	for seconds, want := range cases {
		if got := formatClipDuration(seconds); got != want {
			t.Fatalf("formatClipDuration(%v) = %q, want %q", seconds, got, want)
		}
	}
}

func TestBuildJobRowsFallsBackToURL(t *testing.T) {
	rows := buildJobRows([]api.Job{
		{ID: "a", SourceURL: "https://youtube.com/watch?v=x", Status: queue.StatusQueued, Progress: 0},
		{ID: "b", Title: "Named", Status: queue.StatusCompleted, Progress: 100, CreatedAt: time.Now()},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "https://youtube.com/watch?v=x" {
		t.Fatalf("untitled job should show its URL, got %q", rows[0][1])
	}
	if rows[1][3] != "-" {
		t.Fatalf("terminal job should not show a percentage, got %q", rows[1][3])
	}
}

func TestQueueListJSONAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]api.Job{{ID: "job-1", Status: queue.StatusQueued}})
	}))
	t.Cleanup(server.Close)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"queue", "list", "--json", "--address", server.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `"id": "job-1"`) {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
