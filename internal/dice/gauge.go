package dice

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// NewGauge creates the float64 gauge described by cfg on meter.
func NewGauge(meter metric.Meter, cfg GaugeConfig) (metric.Float64Gauge, error) {
	opts := []metric.Float64GaugeOption{}
	if cfg.Description != "" {
		opts = append(opts, metric.WithDescription(cfg.Description))
	}
	if cfg.Unit != "" {
		opts = append(opts, metric.WithUnit(cfg.Unit))
	}

	g, err := meter.Float64Gauge(cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gauge %s: %w", cfg.Name, err)
	}
	return g, nil
}
