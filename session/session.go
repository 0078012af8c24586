// Package session owns the "what is on the reader right now" state. The
// Tracker is the only writer; everyone else sees the state through
// snapshots or change notifications.
package session

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"

	"cardbridge/carddb"
	"cardbridge/reader"
	"cardbridge/tagcode"
)

// Phase is the coarse session state.
type Phase int

const (
	// Idle means no tag is on the reader.
	Idle Phase = iota
	// TagPresent means a tag is on the reader; the State carries its
	// resolution.
	TagPresent
	// ReaderUnavailable means the reader device is lost. Events are
	// ignored until Reset.
	ReaderUnavailable
)

// State is a snapshot of the session.
type State struct {
	Phase Phase

	// Set while TagPresent.
	UID          []byte
	Payload      string       // raw tag payload as read
	Passcode     string       // decoded passcode, empty if the payload was unreadable
	Card         *carddb.Card // resolved record, nil when not found
	LookupFailed bool         // the resolver errored (vs. a clean miss)
}

// Resolver maps a decoded card code to a card record. carddb.Store
// implements it.
type Resolver interface {
	Lookup(ctx context.Context, code tagcode.Card) (*carddb.Card, error)
}

// Sink receives one call per externally visible state change.
type Sink interface {
	StateChanged(State)
}

// Tracker consumes reader events and maintains the session state.
type Tracker struct {
	mu       sync.Mutex
	resolver Resolver
	sink     Sink
	state    State
}

// New creates a Tracker in the Idle state. No notification is emitted
// for the initial state.
func New(resolver Resolver, sink Sink) *Tracker {
	return &Tracker{resolver: resolver, sink: sink}
}

// State returns a snapshot of the current session state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Handle applies one reader event. Transitions that change the visible
// record notify the sink exactly once; all others are silent.
func (t *Tracker) Handle(ctx context.Context, ev reader.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case reader.ReaderLost:
		if t.state.Phase == ReaderUnavailable {
			return
		}
		t.set(State{Phase: ReaderUnavailable})

	case reader.TagPresented:
		if t.state.Phase == ReaderUnavailable {
			return
		}
		// Repeated presentation of the same tag: no lookup, no notify.
		if t.state.Phase == TagPresent && bytes.Equal(t.state.UID, ev.Tag.UID) {
			return
		}
		t.set(t.resolve(ctx, ev.Tag))

	case reader.TagRemoved:
		if t.state.Phase != TagPresent {
			return
		}
		t.set(State{Phase: Idle})
	}
}

// Reset re-seeds the Idle state after the reader has been reopened. A
// no-op unless the session was ReaderUnavailable.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Phase != ReaderUnavailable {
		return
	}
	t.set(State{Phase: Idle})
}

func (t *Tracker) set(s State) {
	t.state = s
	if t.sink != nil {
		t.sink.StateChanged(s)
	}
}

// resolve builds the TagPresent state for a newly presented tag:
// payload decode, then resolver lookup. Lookup faults degrade to
// not-found with the failure flagged.
func (t *Tracker) resolve(ctx context.Context, tag *reader.Tag) State {
	st := State{
		Phase:   TagPresent,
		UID:     append([]byte(nil), tag.UID...),
		Payload: tag.Payload,
	}

	code, err := tagcode.Parse(tag.Payload)
	if err != nil {
		log.Printf("Tag %x: %v", tag.UID, err)
		return st
	}
	st.Passcode = code.Passcode

	card, err := t.resolver.Lookup(ctx, code)
	switch {
	case errors.Is(err, carddb.ErrNotFound):
		log.Printf("Card %s not found", code.Passcode)
	case err != nil:
		log.Printf("Lookup %s: %v", code.Passcode, err)
		st.LookupFailed = true
	default:
		st.Card = card
	}
	return st
}
