package telemetry

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/diceroll/internal/config"
)

// Export protocols accepted by Config.Protocol.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	ServiceName    string                   `koanf:"service_name"`
	ServiceVersion string                   `koanf:"service_version"`
	Endpoint       string                   `koanf:"endpoint"` // empty: exporter library default
	Protocol       string                   `koanf:"protocol"`
	Insecure       bool                     `koanf:"insecure"` // plaintext; only allowed for loopback endpoints
	TLSSkipVerify  bool                     `koanf:"tls_skip_verify"`
	Headers        map[string]config.Secret `koanf:"headers"`
	Metrics        MetricsConfig            `koanf:"metrics"`
	Traces         TracesConfig             `koanf:"traces"`
	Logs           LogsConfig               `koanf:"logs"`
	Shutdown       ShutdownConfig           `koanf:"shutdown"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	ExportInterval config.Duration  `koanf:"export_interval"`
	ExportTimeout  config.Duration  `koanf:"export_timeout"`
	Prometheus     PrometheusConfig `koanf:"prometheus"`
}

// PrometheusConfig adds a pull reader next to the push exporter.
type PrometheusConfig struct {
	Enabled bool `koanf:"enabled"`
}

// TracesConfig controls span export for roll iterations.
type TracesConfig struct {
	Enabled      bool    `koanf:"enabled"`
	SamplingRate float64 `koanf:"sampling_rate"` // 0.0-1.0
}

// LogsConfig controls log export through the zap bridge.
type LogsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"` // OTLP/HTTP, empty: exporter library default
}

// ShutdownConfig bounds the drain on exit.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns defaults matching a local collector on the
// standard OTLP gRPC port with a one second flush.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:    "dice_roll_service",
		ServiceVersion: "0.1.0",
		Protocol:       ProtocolGRPC,
		Insecure:       true, // Insecure by default for local dev; set false for production TLS
		Metrics: MetricsConfig{
			ExportInterval: config.Duration(time.Second),
			ExportTimeout:  config.Duration(30 * time.Second),
		},
		Traces: TracesConfig{
			Enabled:      false,
			SamplingRate: 1.0,
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks configuration for errors.
//
// The service name is not checked: an empty name is carried as-is.
func (c *Config) Validate() error {
	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTPProtobuf:
	default:
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTPProtobuf, c.Protocol)
	}

	if c.Endpoint != "" {
		if err := validateEndpoint(c.Endpoint); err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		// Security: Prevent insecure connections to remote endpoints
		if c.Insecure && !isLocalEndpoint(c.Endpoint) {
			return fmt.Errorf("insecure connections to remote endpoints are not allowed: %q needs TLS, set insecure=false (DICEROLL_TELEMETRY__INSECURE=false) or use a local endpoint (localhost/127.0.0.1)", c.Endpoint)
		}
	}

	if c.Logs.Endpoint != "" {
		if err := validateEndpoint(c.Logs.Endpoint); err != nil {
			return fmt.Errorf("invalid logs endpoint: %w", err)
		}
	}

	if c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive")
	}

	if c.Metrics.ExportTimeout.Duration() < 0 {
		return fmt.Errorf("metrics.export_timeout cannot be negative")
	}

	if c.Traces.SamplingRate < 0 || c.Traces.SamplingRate > 1 {
		return fmt.Errorf("traces.sampling_rate must be between 0 and 1, got %f", c.Traces.SamplingRate)
	}

	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}

	for k := range c.Headers {
		if k == "" {
			return fmt.Errorf("header name cannot be empty")
		}
	}

	return nil
}

// validateEndpoint requires host:port, optionally prefixed with a scheme.
func validateEndpoint(endpoint string) error {
	host, port, err := net.SplitHostPort(stripScheme(endpoint))
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", endpoint)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// isLocalEndpoint checks if the endpoint is a local address.
func isLocalEndpoint(endpoint string) bool {
	host, _, err := net.SplitHostPort(stripScheme(endpoint))
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https:// from an endpoint URL.
// The OTLP exporters expect just host:port, not full URLs.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}

// headerValues unwraps secret headers for the exporter options.
func (c *Config) headerValues() map[string]string {
	if len(c.Headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		out[k] = v.Value()
	}
	return out
}
