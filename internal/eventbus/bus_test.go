package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := New()
	defer bus.Close()

	received := make(chan Event, 10)
	bus.Subscribe(EventJobQueued, received)

	bus.Publish(Event{
		Type:      EventJobQueued,
		JobID:     "8c7b7f2e",
		Timestamp: time.Now(),
		Data:      map[string]string{"status": "Queued"},
	})

	select {
	case evt := <-received:
		if evt.Type != EventJobQueued {
			t.Errorf("expected %s, got %s", EventJobQueued, evt.Type)
		}
		if evt.JobID != "8c7b7f2e" {
			t.Errorf("expected job 8c7b7f2e, got %s", evt.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch1 := make(chan Event, 10)
	ch2 := make(chan Event, 10)
	bus.Subscribe(EventJobFinished, ch1)
	bus.Subscribe(EventJobFinished, ch2)

	bus.Publish(Event{Type: EventJobFinished, JobID: "a"})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := New()
	defer bus.Close()

	progressCh := make(chan Event, 10)
	savedCh := make(chan Event, 10)
	bus.Subscribe(EventJobProgress, progressCh)
	bus.Subscribe(EventListingSaved, savedCh)

	bus.Publish(Event{Type: EventJobProgress, JobID: "a"})

	select {
	case <-progressCh:
	case <-time.After(time.Second):
		t.Fatal("progress subscriber did not receive event")
	}

	select {
	case <-savedCh:
		t.Fatal("listing subscriber should NOT receive job.progress event")
	case <-time.After(50 * time.Millisecond):
		// good
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := New()
	defer bus.Close()

	received := make(chan Event, 10)
	bus.SubscribeAll(received)

	for _, eventType := range AllTypes {
		bus.Publish(Event{Type: eventType, JobID: "a"})
	}

	for range AllTypes {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("subscriber missed an event type")
		}
	}
}

func TestBus_PublishBatch(t *testing.T) {
	bus := New()
	defer bus.Close()

	received := make(chan Event, 100)
	bus.Subscribe(EventListingSaved, received)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bus.Publish(Event{Type: EventListingSaved, JobID: fmt.Sprintf("job-%d", n)})
		}(i)
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)
	if len(received) != 50 {
		t.Errorf("expected 50 events, got %d", len(received))
	}
}
