package queue_test

import (
	"testing"

	"trendclip/internal/queue"
)

func TestCanTransitionCoversStateMachine(t *testing.T) {
	allowed := []struct{ from, to queue.Status }{
		{queue.StatusQueued, queue.StatusDownloading},
		{queue.StatusQueued, queue.StatusCancelled},
		{queue.StatusDownloading, queue.StatusTranscribing},
		{queue.StatusTranscribing, queue.StatusClipping},
		{queue.StatusClipping, queue.StatusRendering},
		{queue.StatusRendering, queue.StatusCompleted},
		{queue.StatusDownloading, queue.StatusFailed},
		{queue.StatusTranscribing, queue.StatusFailed},
		{queue.StatusClipping, queue.StatusFailed},
		{queue.StatusRendering, queue.StatusFailed},
		{queue.StatusDownloading, queue.StatusCancelled},
		{queue.StatusTranscribing, queue.StatusCancelled},
		{queue.StatusClipping, queue.StatusCancelled},
		{queue.StatusRendering, queue.StatusCancelled},
		{queue.StatusFailed, queue.StatusQueued},
	}
	for _, edge := range allowed {
		if !queue.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be allowed", edge.from, edge.to)
		}
	}

	denied := []struct{ from, to queue.Status }{
		{queue.StatusQueued, queue.StatusTranscribing},
		{queue.StatusQueued, queue.StatusCompleted},
		{queue.StatusQueued, queue.StatusFailed},
		{queue.StatusDownloading, queue.StatusCompleted},
		{queue.StatusCompleted, queue.StatusQueued},
		{queue.StatusCancelled, queue.StatusQueued},
		{queue.StatusCancelled, queue.StatusDownloading},
		{queue.StatusFailed, queue.StatusDownloading},
		{queue.StatusCompleted, queue.StatusCancelled},
	}
	for _, edge := range denied {
		if queue.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be rejected", edge.from, edge.to)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	for _, status := range queue.ActiveStatuses() {
		if !queue.IsActiveStatus(status) {
			t.Errorf("expected %s active", status)
		}
		if queue.IsTerminalStatus(status) {
			t.Errorf("did not expect %s terminal", status)
		}
	}
	for _, status := range []queue.Status{queue.StatusCompleted, queue.StatusFailed, queue.StatusCancelled} {
		if !queue.IsTerminalStatus(status) {
			t.Errorf("expected %s terminal", status)
		}
	}
	if queue.IsTerminalStatus(queue.StatusQueued) || queue.IsActiveStatus(queue.StatusQueued) {
		t.Error("queued should be neither active nor terminal")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Rendering "); !ok || status != queue.StatusRendering {
		t.Fatalf("ParseStatus: %v %v", status, ok)
	}
	if _, ok := queue.ParseStatus("encoding"); ok {
		t.Fatal("expected unknown status to fail")
	}
}
