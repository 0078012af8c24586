// Package indicator drives optional status LEDs on appliance-style
// deployments of the bridge (e.g. a Raspberry Pi next to the reader).
package indicator

// Indicator is the interface for status indicator implementations.
type Indicator interface {
	// Idle sets the indicator to the no-card state.
	Idle()

	// Card reports a presented tag; found is whether it resolved to a
	// known card.
	Card(found bool)

	// ReaderLost reports that the reader device is gone.
	ReaderLost()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO chip device, e.g. "gpiochip0". Empty disables the indicator.
	Chip string `yaml:"chip"`

	// Line offsets for the LEDs (nil = not wired).
	GreenLine *int `yaml:"green_line"`
	RedLine   *int `yaml:"red_line"`
}

// New creates an Indicator based on the provided configuration. An
// empty configuration yields a no-op indicator.
func New(cfg Config) (Indicator, error) {
	if cfg.Chip == "" || (cfg.GreenLine == nil && cfg.RedLine == nil) {
		return &Noop{}, nil
	}
	return NewGPIO(cfg)
}
