package event

import (
	"testing"
)

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe("turn.started", func(e Event) {
		got = append(got, e.EventType())
	})

	bus.Publish(NewTurnStartedEvent("s1", "p1", 1))
	bus.Publish(NewSessionPausedEvent("s1", "manual"))
	bus.Publish(NewTurnStartedEvent("s1", "p2", 1))

	if len(got) != 2 {
		t.Fatalf("handler called %d times, want 2", len(got))
	}
	for _, typ := range got {
		if typ != "turn.started" {
			t.Errorf("handler received %q, want turn.started", typ)
		}
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.SubscribeAll(func(e Event) {
		got = append(got, e.EventType())
	})

	bus.Publish(NewTurnStartedEvent("s1", "p1", 1))
	bus.Publish(NewSessionPausedEvent("s1", "manual"))

	want := []string{"turn.started", "session.paused"}
	if len(got) != len(want) {
		t.Fatalf("wildcard handler called %d times, want %d", len(got), len(want))
	}
	for i, typ := range want {
		if got[i] != typ {
			t.Errorf("event %d = %q, want %q", i, got[i], typ)
		}
	}
}

func TestBusDispatchOrder(t *testing.T) {
	// Specific handlers fire before wildcard handlers, each group in
	// registration order.
	bus := NewBus()
	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wild") })
	bus.Subscribe("turn.started", func(Event) { order = append(order, "first") })
	bus.Subscribe("turn.started", func(Event) { order = append(order, "second") })

	bus.Publish(NewTurnStartedEvent("s1", "p1", 1))

	want := []string{"first", "second", "wild"}
	for i, name := range want {
		if i >= len(order) || order[i] != name {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	id := bus.Subscribe("turn.started", func(Event) { calls++ })

	bus.Publish(NewTurnStartedEvent("s1", "p1", 1))
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for a live subscription")
	}
	bus.Publish(NewTurnStartedEvent("s1", "p1", 2))

	if calls != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", calls)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for an already-removed subscription")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBusPanickingHandler(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("turn.started", func(Event) { panic("boom") })
	called := false
	bus.Subscribe("turn.started", func(Event) { called = true })

	bus.Publish(NewTurnStartedEvent("s1", "p1", 1))

	if !called {
		t.Error("panic in one handler blocked delivery to the next")
	}
}

func TestBusSubscriptionCount(t *testing.T) {
	bus := NewBus()
	if bus.SubscriptionCount() != 0 {
		t.Fatalf("new bus SubscriptionCount = %d, want 0", bus.SubscriptionCount())
	}
	bus.Subscribe("turn.started", func(Event) {})
	bus.Subscribe("session.paused", func(Event) {})
	bus.SubscribeAll(func(Event) {})
	if bus.SubscriptionCount() != 3 {
		t.Errorf("SubscriptionCount = %d, want 3", bus.SubscriptionCount())
	}
}
