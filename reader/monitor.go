package reader

import (
	"bytes"
	"context"
	"log"
	"time"
)

// EventType enumerates the normalized events a Monitor emits.
type EventType int

const (
	// TagPresented reports a tag whose UID differs from the last one seen.
	TagPresented EventType = iota
	// TagRemoved reports that the previously present tag is gone.
	TagRemoved
	// ReaderLost reports a device-level failure. It is the final event;
	// the monitor stops polling and closes its channel.
	ReaderLost
)

// Event is a normalized reader event.
type Event struct {
	Type EventType
	Tag  *Tag // set for TagPresented
}

// Monitor polls a Device at a fixed interval and turns raw presence into
// an event stream. The stream ends (channel closed) when the context is
// cancelled or the device fails; a monitor is not restartable.
type Monitor struct {
	dev      Device
	interval time.Duration
	events   chan Event
}

// NewMonitor creates a Monitor for dev. Run must be called to start
// polling.
func NewMonitor(dev Device, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	return &Monitor{
		dev:      dev,
		interval: interval,
		events:   make(chan Event, 8),
	}
}

// Events returns the event stream. Closed when the monitor stops.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Run drives the poll loop. It blocks until the context is cancelled or
// the device errors, so it is normally called as a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.events)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var last []byte // UID of the last reported present tag

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tag, err := m.dev.Status()
		if err != nil {
			log.Printf("Reader failed: %v", err)
			m.emit(ctx, Event{Type: ReaderLost})
			return
		}

		switch {
		case tag != nil && !bytes.Equal(tag.UID, last):
			last = append([]byte(nil), tag.UID...)
			m.emit(ctx, Event{Type: TagPresented, Tag: tag})
		case tag == nil && last != nil:
			last = nil
			m.emit(ctx, Event{Type: TagRemoved})
		}
	}
}

func (m *Monitor) emit(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
