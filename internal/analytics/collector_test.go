package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmfrees/zombodb/pkg/kafka"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (f *fakePublisher) Publish(ctx context.Context, event kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestCollectorPublishesTrackedEvents(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10)
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Track(QueryEvent{Index: "idx", DocCount: i})
	}
	c.Close()

	if got := pub.count(); got != 5 {
		t.Fatalf("published %d events, want 5", got)
	}
}

func TestCollectorDropsWhenBufferFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1)
	// Not started: the buffer can only hold one event.
	c.Track(QueryEvent{Index: "a"})
	c.Track(QueryEvent{Index: "b"}) // dropped, must not block

	c.Start(context.Background())
	c.Close()
	if got := pub.count(); got != 1 {
		t.Fatalf("published %d events, want 1", got)
	}
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10)
	ctx, cancel := context.WithCancel(context.Background())

	c.Track(QueryEvent{Index: "a"})
	c.Track(QueryEvent{Index: "b"})
	c.Start(ctx)
	cancel()

	deadline := time.After(time.Second)
	for pub.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d events drained before deadline", pub.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
