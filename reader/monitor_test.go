package reader

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptDevice replays a fixed sequence of Status results, then repeats
// the final one.
type scriptDevice struct {
	steps []scriptStep
	pos   int
}

type scriptStep struct {
	tag *Tag
	err error
}

func (d *scriptDevice) Status() (*Tag, error) {
	step := d.steps[d.pos]
	if d.pos < len(d.steps)-1 {
		d.pos++
	}
	return step.tag, step.err
}

func (d *scriptDevice) Close() error { return nil }

func collect(t *testing.T, m *Monitor, n int) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-m.Events():
			if !ok {
				t.Fatalf("Event stream closed after %d events, want %d", len(events), n)
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("Timed out after %d events, want %d", len(events), n)
		}
	}
	return events
}

func TestMonitorEmitsPresenceTransitions(t *testing.T) {
	tagA := &Tag{UID: []byte("A"), Payload: "89631139"}
	tagB := &Tag{UID: []byte("B"), Payload: "46986414"}

	dev := &scriptDevice{steps: []scriptStep{
		{nil, nil},
		{tagA, nil},
		{tagA, nil}, // unchanged, no event
		{nil, nil},
		{nil, nil}, // still empty, no event
		{tagB, nil},
		{nil, errors.New("reader unplugged")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(dev, time.Millisecond)
	go m.Run(ctx)

	events := collect(t, m, 4)

	want := []EventType{TagPresented, TagRemoved, TagPresented, ReaderLost}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("Event %d: got type %v, want %v", i, ev.Type, want[i])
		}
	}
	if string(events[0].Tag.UID) != "A" {
		t.Errorf("First presentation UID = %q, want A", events[0].Tag.UID)
	}
	if string(events[2].Tag.UID) != "B" {
		t.Errorf("Second presentation UID = %q, want B", events[2].Tag.UID)
	}

	// ReaderLost is final: the stream must close.
	select {
	case _, ok := <-m.Events():
		if ok {
			t.Error("Expected closed stream after ReaderLost")
		}
	case <-time.After(time.Second):
		t.Error("Stream not closed after ReaderLost")
	}
}

func TestMonitorTagSwapWithoutRemoval(t *testing.T) {
	tagA := &Tag{UID: []byte("A")}
	tagB := &Tag{UID: []byte("B")}

	dev := &scriptDevice{steps: []scriptStep{
		{tagA, nil},
		{tagB, nil},
		{tagB, nil},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(dev, time.Millisecond)
	go m.Run(ctx)

	events := collect(t, m, 2)
	if events[0].Type != TagPresented || events[1].Type != TagPresented {
		t.Fatalf("Expected two presentations, got %v, %v", events[0].Type, events[1].Type)
	}
	if string(events[1].Tag.UID) != "B" {
		t.Errorf("Swap UID = %q, want B", events[1].Tag.UID)
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	dev := &scriptDevice{steps: []scriptStep{{nil, nil}}}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(dev, time.Millisecond)
	go m.Run(ctx)

	cancel()

	select {
	case _, ok := <-m.Events():
		if ok {
			t.Error("Expected no events before close")
		}
	case <-time.After(time.Second):
		t.Error("Stream not closed after cancel")
	}
}
