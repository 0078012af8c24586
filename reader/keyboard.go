package reader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kenshaw/evdev"
)

// Keyboard implements Device for USB keyboard-wedge readers that type
// the card id followed by Enter. Like Serial, presence is scan-and-hold:
// a completed line marks the tag present for the hold window.
type Keyboard struct {
	device *evdev.Evdev
	cancel context.CancelFunc
	ch     <-chan *evdev.EventEnvelope
	hold   time.Duration

	strbuf string
	last   *Tag
	seen   time.Time
}

// NewKeyboard creates a new keyboard reader on the specified input device.
func NewKeyboard(device string, hold time.Duration) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Printf("Opened keyboard device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	ctx, cancel := context.WithCancel(context.Background())
	return &Keyboard{
		device: dev,
		cancel: cancel,
		ch:     dev.Poll(ctx),
		hold:   hold,
	}, nil
}

// Status implements Device.Status. Drains any pending key events without
// blocking, then reports the held scan if still within the hold window.
func (k *Keyboard) Status() (*Tag, error) {
drain:
	for {
		select {
		case event := <-k.ch:
			if event == nil {
				return nil, fmt.Errorf("keyboard device closed")
			}
			k.handleKey(event)
		default:
			break drain
		}
	}

	if k.last != nil && time.Since(k.seen) > k.hold {
		k.last = nil
	}
	return k.last, nil
}

func (k *Keyboard) handleKey(event *evdev.EventEnvelope) {
	switch event.Type.(type) {
	case evdev.KeyType:
		if event.Value != 1 {
			return
		}

		if event.Type == evdev.KeyEnter {
			if k.strbuf == "" {
				return
			}
			log.Printf("Keyboard scan: %s", k.strbuf)
			k.last = &Tag{UID: []byte(k.strbuf), Payload: k.strbuf}
			k.seen = time.Now()
			k.strbuf = ""
			return
		}

		k.strbuf += evdev.KeyType(event.Code).String()
	}
}

// Close implements Device.Close.
func (k *Keyboard) Close() error {
	k.cancel()
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}
