package http

import (
	"github.com/fyrsmithlabs/diceroll/internal/dice"
	"github.com/fyrsmithlabs/diceroll/internal/telemetry"
)

// Health states reported by GET /health.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
	Rolls     uint64                  `json:"rolls"`
	LastRoll  *dice.Roll              `json:"last_roll,omitempty"`
}
