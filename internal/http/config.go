package http

import "fmt"

// Config holds status server configuration.
type Config struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// NewDefaultConfig returns a disabled server bound to localhost:9090.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Host:      "localhost",
		Port:      9090,
		RateLimit: 20,
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	return nil
}
