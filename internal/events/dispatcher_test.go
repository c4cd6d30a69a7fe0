package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventSLAAlertRaised, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("first failed")
	})
	d.Subscribe(EventSLAAlertRaised, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventSessionAssigned, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSLAAlertRaised, TicketID: "TKT-1"})
	if err == nil || err.Error() != "first failed" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected calls %v", calls)
	}

	if err := d.Publish(context.Background(), Event{Type: EventSessionQueued}); err != nil {
		t.Fatalf("publish without listeners: %v", err)
	}
}

func TestDispatcherRecoversListenerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	reached := false
	d.Subscribe(EventSessionAssigned, func(context.Context, Event) error {
		panic("boom")
	})
	d.Subscribe(EventSessionAssigned, func(context.Context, Event) error {
		reached = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSessionAssigned})
	if err == nil || err.Error() != "session_assigned listener panicked: boom" {
		t.Fatalf("unexpected error %v", err)
	}
	if !reached {
		t.Fatal("second listener skipped")
	}
}

func TestDispatcherStopsOnCancelledContext(t *testing.T) {
	d := NewInMemoryDispatcher()
	called := false
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Publish(ctx, Event{Type: EventTicketStatusChanged}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("listener ran after cancellation")
	}
}
