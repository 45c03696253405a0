// Package config loads the YAML wiring file: which GPIO backend and lines
// the gate is connected to, which displays to drive, and the optional
// MQTT broker. Timing is not configurable here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sweeney/gate-controller/internal/display"
	"github.com/sweeney/gate-controller/internal/gpio"
	"gopkg.in/yaml.v2"
)

// Config is the top-level wiring file.
type Config struct {
	GPIO    gpio.Config    `yaml:"gpio"`
	Display display.Config `yaml:"display"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
}

// MQTTConfig holds the telemetry broker settings. An empty broker
// disables telemetry.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// Default returns the wiring of the reference board with telemetry off.
func Default() Config {
	return Config{
		GPIO:    gpio.DefaultConfig(),
		Display: display.DefaultConfig(),
	}
}

// Load reads and validates the wiring file at path. An empty path
// returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over Default(), so a file only needs the keys that
// differ from the reference wiring, and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.SetStrict(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the GPIO wiring and the display selection.
func (c Config) Validate() error {
	if err := c.GPIO.Validate(); err != nil {
		return err
	}
	return c.Display.Validate()
}
