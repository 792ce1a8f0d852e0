package events

import (
	"testing"
	"time"
)

func TestBus_SubscribeAndEmit(t *testing.T) {
	b := NewBus()
	var got []Event
	unsub := b.Subscribe(func(ev Event) { got = append(got, ev) })

	b.Emit(Event{Type: TaskStarted, TaskID: "a"})
	unsub()
	b.Emit(Event{Type: TaskCompleted, TaskID: "a"})

	if len(got) != 1 {
		t.Fatalf("expected 1 event after unsubscribe, got %d", len(got))
	}
	if got[0].Type != TaskStarted {
		t.Errorf("Type = %q, want %q", got[0].Type, TaskStarted)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Emit should stamp the event")
	}
}

func TestBus_NilIsSafe(t *testing.T) {
	var b *Bus
	b.Emit(Event{Type: Progress})
	unsub := b.Subscribe(func(Event) {})
	unsub()
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var order []int
	unsubs := make([]func(), 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		unsubs = append(unsubs, b.Subscribe(func(Event) { order = append(order, i) }))
	}
	unsubs[3]()

	b.Emit(Event{Type: Progress})

	want := []int{0, 1, 2, 4, 5, 6, 7}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChannel_DeliversAndCloses(t *testing.T) {
	b := NewBus()
	c := NewChannel(b, 4, nil)

	b.Emit(Event{Type: MaskChanged, Tool: "file_read"})

	select {
	case ev := <-c.Events():
		if ev.Tool != "file_read" {
			t.Errorf("Tool = %q, want file_read", ev.Tool)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	c.Close()
	c.Close()
	if _, ok := <-c.Events(); ok {
		t.Error("channel should be closed")
	}

	// Emitting after Close must not panic: the channel is unsubscribed.
	b.Emit(Event{Type: MaskChanged})
}

func TestChannel_DropsWhenFull(t *testing.T) {
	b := NewBus()
	c := NewChannel(b, 1, nil)
	defer c.Close()

	b.Emit(Event{Type: Progress})
	b.Emit(Event{Type: Progress})

	if c.DroppedCount() != 1 {
		t.Errorf("DroppedCount() = %d, want 1", c.DroppedCount())
	}
}
