package models

import (
	"fmt"
	"time"
)

// AttackRun statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Attack speeds.
const (
	SpeedSlow    = "slow"
	SpeedNormal  = "normal"
	SpeedFast    = "fast"
	SpeedInstant = "instant"
)

// AttackConfig is the configuration message that starts a simulation run.
type AttackConfig struct {
	Total    int     `json:"total"`
	FraudPct float64 `json:"fraud_pct"`
	Speed    string  `json:"speed"` // slow | normal | fast | instant
}

// Validate applies defaults for zero values and rejects out-of-range
// configurations before any run state is touched.
func (c *AttackConfig) Validate() error {
	if c.Total == 0 {
		c.Total = 500
	}
	if c.FraudPct == 0 {
		c.FraudPct = 0.05
	}
	if c.Speed == "" {
		c.Speed = SpeedNormal
	}
	if c.Total < 10 || c.Total > 10000 {
		return fmt.Errorf("total must be between 10 and 10000, got %d", c.Total)
	}
	if c.FraudPct < 0.01 || c.FraudPct > 0.5 {
		return fmt.Errorf("fraud_pct must be between 0.01 and 0.5, got %g", c.FraudPct)
	}
	switch c.Speed {
	case SpeedSlow, SpeedNormal, SpeedFast, SpeedInstant:
	default:
		return fmt.Errorf("speed must be one of slow|normal|fast|instant, got %q", c.Speed)
	}
	return nil
}

// Delay is the per-transaction pacing for live consumption. Presentation
// only; "instant" is the non-interactive mode used by the REST path and tests.
func (c AttackConfig) Delay() time.Duration {
	switch c.Speed {
	case SpeedSlow:
		return 150 * time.Millisecond
	case SpeedFast:
		return 5 * time.Millisecond
	case SpeedInstant:
		return 0
	default:
		return 40 * time.Millisecond
	}
}

// AttackRun is the persisted record of one simulation run: the requested
// configuration plus the final stats snapshot.
type AttackRun struct {
	ID        int64   `json:"id"`
	TotalTxns int     `json:"total_txns"`
	FraudPct  float64 `json:"fraud_pct"`
	Speed     string  `json:"speed"`
	Mode      string  `json:"mode,omitempty"` // LIVE | SIMULATION

	StatsSnapshot

	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
