package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"proximityd/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventPresenceChanged, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventPresenceChanged {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
	bus.Close() // drain
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestTypedSubscriptionIgnoresOtherEvents(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventPairSucceeded, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
	bus.Publish(context.Background(), newEvent(domain.EventRegistryReloaded))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected 0, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
	bus.Publish(context.Background(), newEvent(domain.EventPairSucceeded))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventPresenceChanged, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsub()

	bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected 0 after unsubscribe, got %d", got.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventPresenceChanged, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventPresenceChanged, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventPresenceChanged, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected surviving handler to run, got %d", got.Load())
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Close()
	bus.Publish(context.Background(), newEvent(domain.EventPresenceChanged))
	bus.Close() // idempotent

	if got.Load() != 0 {
		t.Fatalf("expected 0 after close, got %d", got.Load())
	}
}
