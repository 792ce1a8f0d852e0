package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Listener receives events synchronously on the emitting goroutine.
type Listener func(Event)

// Bus fans events out to registered listeners in subscription order.
// A nil *Bus is valid and drops everything.
type Bus struct {
	mu        sync.RWMutex
	listeners []subscription
	nextID    uint64
}

type subscription struct {
	id uint64
	fn Listener
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.listeners {
			if s.id == id {
				// Copy so an Emit iterating the old slice is unaffected.
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit stamps the event and delivers it to every listener.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := b.listeners
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Channel adapts a bus subscription to a buffered channel.
// If the channel is full, delivery waits briefly before dropping the event.
type Channel struct {
	events       chan Event
	droppedCount atomic.Uint64
	unsubscribe  func()
	closeOnce    sync.Once
	logger       *slog.Logger
}

// NewChannel subscribes a buffered channel of the given size to b.
func NewChannel(b *Bus, bufferSize int, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Channel{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
	c.unsubscribe = b.Subscribe(c.send)
	return c
}

func (c *Channel) send(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}

	select {
	case c.events <- ev:
	case <-time.After(100 * time.Millisecond):
		count := c.droppedCount.Add(1)
		if count%10 == 1 {
			c.logger.Warn("event channel full, dropping event", "type", ev.Type, "dropped_total", count)
		}
	}
}

// Events returns the receive side of the channel.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// DroppedCount returns the total number of events that have been dropped.
func (c *Channel) DroppedCount() uint64 {
	return c.droppedCount.Load()
}

// Close unsubscribes from the bus and closes the channel.
// Emitters must be finished before Close is called.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.unsubscribe()
		close(c.events)
	})
}
