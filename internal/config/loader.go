// Package config provides configuration loading for diceroll.
package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "DICEROLL_"

	// envNestingSeparator separates config sections in environment variable names.
	envNestingSeparator = "__"
)

// Validator is implemented by configuration structs that can check themselves.
type Validator interface {
	Validate() error
}

// Load fills target from a YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DICEROLL_TELEMETRY__ENDPOINT, DICEROLL_ROLLER__INTERVAL, ...)
//  2. YAML config file at configPath (skipped when configPath is empty)
//  3. Whatever target already holds, normally the defaults
//
// target must be a pointer to a struct with koanf tags. Keys absent from
// every source keep their pre-populated value.
//
// # Environment Variable Mapping
//
// The prefix is stripped, the rest is lowercased, and a double underscore
// separates sections so field names keep their single underscores:
//
//	DICEROLL_TELEMETRY__SERVICE_NAME             -> telemetry.service_name
//	DICEROLL_TELEMETRY__METRICS__EXPORT_INTERVAL -> telemetry.metrics.export_interval
//
// # File Checks
//
// The file must not be world-writable and must be smaller than 1MB.
// A configPath that does not exist is an error.
func Load(configPath string, target Validator) error {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", EnvKey), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := target.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// EnvKey maps an environment variable name to a dotted koanf key.
// Variables without the prefix map to the empty string and are ignored.
func EnvKey(s string) string {
	if !strings.HasPrefix(s, EnvPrefix) {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, envNestingSeparator, ".")
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o002 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be world-writable)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
