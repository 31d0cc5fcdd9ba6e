package main

import (
	"fmt"

	"github.com/fyrsmithlabs/diceroll/internal/dice"
	apphttp "github.com/fyrsmithlabs/diceroll/internal/http"
	"github.com/fyrsmithlabs/diceroll/internal/logging"
	"github.com/fyrsmithlabs/diceroll/internal/telemetry"
)

// appConfig is the full configuration tree loaded from YAML and DICEROLL_* variables.
type appConfig struct {
	Telemetry telemetry.Config `koanf:"telemetry"`
	Roller    dice.Config      `koanf:"roller"`
	Logging   logging.Config   `koanf:"logging"`
	Server    apphttp.Config   `koanf:"server"`
}

func newDefaultConfig() *appConfig {
	return &appConfig{
		Telemetry: *telemetry.NewDefaultConfig(),
		Roller:    *dice.NewDefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
		Server:    *apphttp.NewDefaultConfig(),
	}
}

// Validate checks every section.
func (c *appConfig) Validate() error {
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Roller.Validate(); err != nil {
		return fmt.Errorf("roller: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
