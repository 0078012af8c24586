package reader

import (
	"fmt"
	"time"
)

// Tag is a physical tag observed on the reader.
type Tag struct {
	// UID uniquely identifies the tag while it sits on the reader.
	// Compared by exact byte equality, never normalized.
	UID []byte

	// Payload is the raw card code read from the tag, or the scanned
	// string for wedge-style readers. Empty when the tag carried no
	// readable data.
	Payload string
}

// Device is the interface for all tag reader implementations. Status is
// polled by a Monitor from a single goroutine.
type Device interface {
	// Status reports the tag currently on the reader, or nil when the
	// reader is empty. An error means the device itself failed (unplugged,
	// I/O fault) and the device should be reopened.
	Status() (*Tag, error)

	// Close releases any resources held by the device.
	Close() error
}

// Config holds common configuration for reader implementations.
type Config struct {
	Type   string `yaml:"type"`    // "pcsc", "serial", "keyboard"
	Device string `yaml:"device"`  // pcsc: reader name substring; otherwise device path
	Baud   int    `yaml:"baud"`    // baud rate for serial devices
	PollMS int    `yaml:"poll_ms"` // poll cadence, default 150ms
	HoldMS int    `yaml:"hold_ms"` // scan-and-hold window for wedge readers, default 1500ms
}

// PollInterval returns the configured poll cadence.
func (c Config) PollInterval() time.Duration {
	if c.PollMS <= 0 {
		return 150 * time.Millisecond
	}
	return time.Duration(c.PollMS) * time.Millisecond
}

// HoldWindow returns how long a wedge-style scan counts as "present".
func (c Config) HoldWindow() time.Duration {
	if c.HoldMS <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.HoldMS) * time.Millisecond
}

// New creates a Device based on the provided configuration.
func New(cfg Config) (Device, error) {
	switch cfg.Type {
	case "", "pcsc":
		return NewPCSC(cfg.Device)
	case "serial":
		return NewSerial(cfg.Device, cfg.Baud, cfg.HoldWindow())
	case "keyboard", "10h-kbd":
		return NewKeyboard(cfg.Device, cfg.HoldWindow())
	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}
