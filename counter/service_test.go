package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"counter-pipeline/domain"
	"counter-pipeline/queue"
)

type memStore struct {
	mu  sync.Mutex
	v   int64
	err error
}

func (m *memStore) Increment(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.v++
	return m.v, nil
}

func (m *memStore) Current(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.IncrementEvent
	fail   bool
}

func (f *fakePublisher) Publish(ctx context.Context, ev domain.IncrementEvent) queue.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.fail {
		return queue.Outcome{Err: errors.New("queue unavailable")}
	}
	return queue.Outcome{Published: true, MessageID: "m"}
}

func TestIncrementPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(&memStore{}, pub)
	fixed := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	v, err := svc.Increment(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("expected 1, got %d %v", v, err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.EventType != domain.CounterIncrement || !ev.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Metadata["source"] != "counter-api" || ev.Metadata["version"] != "1.0" {
		t.Fatalf("unexpected metadata %v", ev.Metadata)
	}
}

func TestIncrementSucceedsWhenPublishFails(t *testing.T) {
	pub := &fakePublisher{fail: true}
	svc := NewService(&memStore{}, pub)
	for i := int64(1); i <= 3; i++ {
		v, err := svc.Increment(context.Background())
		if err != nil || v != i {
			t.Fatalf("expected %d, got %d %v", i, v, err)
		}
	}
	if v, _ := svc.Current(context.Background()); v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
}

func TestIncrementStoreFailureSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(&memStore{err: errors.New("down")}, pub)
	if _, err := svc.Increment(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event should be published for a failed increment")
	}
}

func TestConcurrentIncrementsEmitOneEventEach(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(&memStore{}, pub)
	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Increment(context.Background()); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()
	if v, _ := svc.Current(context.Background()); v != n {
		t.Fatalf("expected %d, got %d", n, v)
	}
	if len(pub.events) != n {
		t.Fatalf("expected %d events, got %d", n, len(pub.events))
	}
}
