package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO implements Indicator using discrete LED lines on a GPIO
// character device. Green = card resolved, red = unknown card, both =
// reader lost.
type GPIO struct {
	green *gpiocdev.Line
	red   *gpiocdev.Line
}

// NewGPIO requests the configured LED lines as outputs, starting off.
func NewGPIO(cfg Config) (*GPIO, error) {
	g := &GPIO{}

	if cfg.GreenLine != nil {
		line, err := gpiocdev.RequestLine(cfg.Chip, *cfg.GreenLine, gpiocdev.AsOutput(0))
		if err != nil {
			return nil, fmt.Errorf("request green line %d: %w", *cfg.GreenLine, err)
		}
		g.green = line
	}
	if cfg.RedLine != nil {
		line, err := gpiocdev.RequestLine(cfg.Chip, *cfg.RedLine, gpiocdev.AsOutput(0))
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("request red line %d: %w", *cfg.RedLine, err)
		}
		g.red = line
	}

	return g, nil
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() {
	g.set(g.green, 0)
	g.set(g.red, 0)
}

// Card implements Indicator.Card.
func (g *GPIO) Card(found bool) {
	if found {
		g.set(g.green, 1)
		g.set(g.red, 0)
	} else {
		g.set(g.green, 0)
		g.set(g.red, 1)
	}
}

// ReaderLost implements Indicator.ReaderLost.
func (g *GPIO) ReaderLost() {
	g.set(g.green, 1)
	g.set(g.red, 1)
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.Idle()
	if g.green != nil {
		g.green.Close()
		g.green = nil
	}
	if g.red != nil {
		g.red.Close()
		g.red = nil
	}
	return nil
}

func (g *GPIO) set(line *gpiocdev.Line, value int) {
	if line == nil {
		return
	}
	if err := line.SetValue(value); err != nil {
		// LED faults are cosmetic, never fatal.
		return
	}
}
