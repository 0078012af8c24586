package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"cardbridge/indicator"
	"cardbridge/mqtt"
	"cardbridge/reader"
)

// defaultDB is picked up from the working directory when no database is
// given explicitly.
const defaultDB = "cards.db"

// Config is the main configuration structure for cardbridge. Everything
// has a sensible default; a config file is only needed for non-PC/SC
// readers, MQTT or LED wiring.
type Config struct {
	// Card database
	DB string `yaml:"db"`

	// Delivery listener
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	// Reader configuration
	Reader reader.Config `yaml:"reader"`

	// Optional MQTT status publishing
	MQTT mqtt.Config `yaml:"mqtt"`

	// Optional status LEDs
	Indicator indicator.Config `yaml:"indicator"`

	// General settings
	ClientID   string `yaml:"client_id"`
	SkipBanner bool   `yaml:"skip_banner"`
}

// loadConfig reads the YAML config file when path is non-empty, then
// fills in defaults. An empty path yields a pure-defaults config.
func loadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if cfg.Address == "" {
		cfg.Address = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 41112
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "cardbridge"
	}

	return &cfg, nil
}
