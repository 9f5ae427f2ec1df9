package joblog_test

import (
	"context"
	"testing"
	"time"

	"trendclip/internal/joblog"
	"trendclip/internal/testsupport"
)

func newStore(t *testing.T) *joblog.Store {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	queueStore := testsupport.MustOpenStore(t, cfg)
	return joblog.NewStore(queueStore.DB())
}

func TestAppendAndListOrdering(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	messages := []string{"daemon started", "job admitted", "download finished"}
	for _, msg := range messages {
		if _, err := store.Append(ctx, joblog.LevelInfo, msg, "", ""); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := store.List(ctx, joblog.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "download finished" || entries[2].Message != "daemon started" {
		t.Fatalf("expected newest first, got %q ... %q", entries[0].Message, entries[2].Message)
	}
}

func TestAppendRejectsBadInput(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, "verbose", "msg", "", ""); err == nil {
		t.Fatal("expected unknown level to be rejected")
	}
	if _, err := store.Append(ctx, joblog.LevelInfo, "", "", ""); err == nil {
		t.Fatal("expected empty message to be rejected")
	}
}

func TestListFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seed := []struct {
		level   joblog.Level
		message string
		details string
	}{
		{joblog.LevelInfo, "queue drained", ""},
		{joblog.LevelError, "download failed", "network timeout after 3 attempts"},
		{joblog.LevelSuccess, "job completed", "2 clips rendered"},
		{joblog.LevelWarning, "GPU not detected", "falling back to CPU"},
	}
	for _, entry := range seed {
		if _, err := store.Append(ctx, entry.level, entry.message, entry.details, ""); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	cases := []struct {
		name   string
		filter joblog.Filter
		want   int
	}{
		{"by level", joblog.Filter{Level: joblog.LevelError}, 1},
		{"by message search", joblog.Filter{Search: "DRAINED"}, 1},
		{"by details search", joblog.Filter{Search: "timeout"}, 1},
		{"level and search", joblog.Filter{Level: joblog.LevelSuccess, Search: "clips"}, 1},
		{"level excludes search match", joblog.Filter{Level: joblog.LevelInfo, Search: "timeout"}, 0},
		{"no match", joblog.Filter{Search: "nonsense"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := store.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(entries) != tc.want {
				t.Fatalf("got %d entries, want %d", len(entries), tc.want)
			}
		})
	}
}

func TestListByJobEmissionOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	jobID := "job-123"
	for _, msg := range []string{"admitted", "downloading", "transcribing"} {
		if _, err := store.Append(ctx, joblog.LevelInfo, msg, "", jobID); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := store.Append(ctx, joblog.LevelInfo, "unrelated", "", "job-other"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := store.ListByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("ListByJob failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"admitted", "downloading", "transcribing"} {
		if entries[i].Message != want {
			t.Fatalf("entry %d = %q, want %q", i, entries[i].Message, want)
		}
	}
}

func TestPrune(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, joblog.LevelInfo, "old entry", "", ""); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	if _, err := store.Append(ctx, joblog.LevelInfo, "new entry", "", ""); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	pruned, err := store.Prune(ctx, cutoff)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", pruned)
	}

	entries, err := store.List(ctx, joblog.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "new entry" {
		t.Fatalf("unexpected survivors: %v", entries)
	}
}

func TestParseLevel(t *testing.T) {
	if level, ok := joblog.ParseLevel(" Error "); !ok || level != joblog.LevelError {
		t.Fatalf("ParseLevel: %v %v", level, ok)
	}
	if _, ok := joblog.ParseLevel("debug"); ok {
		t.Fatal("expected unknown level to fail")
	}
}
