package dice

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/diceroll/internal/config"
)

// Config holds emission loop configuration.
type Config struct {
	// Interval between rolls. Independent of the export interval.
	Interval  config.Duration `koanf:"interval"`
	MeterName string          `koanf:"meter_name"`
	Gauge     GaugeConfig     `koanf:"gauge"`
	// Seed fixes the die sequence. Zero draws a random seed.
	Seed uint64 `koanf:"seed"`
}

// GaugeConfig names the instrument the loop records into.
type GaugeConfig struct {
	Name        string `koanf:"name"`
	Description string `koanf:"description"`
	Unit        string `koanf:"unit"`
}

// NewDefaultConfig returns the stock dice_roll gauge rolled every 3 seconds.
func NewDefaultConfig() *Config {
	return &Config{
		Interval:  config.Duration(3 * time.Second),
		MeterName: "ponix-gateway",
		Gauge: GaugeConfig{
			Name:        "dice_roll",
			Description: "the value of a dice roll",
			Unit:        "side",
		},
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Interval.Duration() <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.MeterName == "" {
		return fmt.Errorf("meter_name is required")
	}
	if c.Gauge.Name == "" {
		return fmt.Errorf("gauge.name is required")
	}
	return nil
}
