package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatsWorkerCountsEvents(t *testing.T) {
	ch := make(chan VoteEvent, 4)
	w := NewStatsWorker(ch, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	compID := uuid.New()
	last := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if !Publish(ch, VoteEvent{CompetitionID: compID, OptionID: uuid.New(), At: last.Add(-time.Duration(i) * time.Minute)}) {
			t.Fatal("publish should not drop with free capacity")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, at := w.Activity(compID)
		if n == 3 {
			if !at.Equal(last) {
				t.Fatalf("expected last vote %s, got %s", last, at)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 events, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	ch := make(chan VoteEvent, 1)
	if !Publish(ch, VoteEvent{}) {
		t.Fatal("first publish should succeed")
	}
	if Publish(ch, VoteEvent{}) {
		t.Fatal("second publish should be dropped")
	}
	if Publish(nil, VoteEvent{}) {
		t.Fatal("publish to nil channel should report drop")
	}
}

func TestRunStopsOnClosedQueue(t *testing.T) {
	ch := make(chan VoteEvent)
	w := NewStatsWorker(ch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	close(ch)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on closed queue")
	}
}
