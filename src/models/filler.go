package models

import "fmt"

// FillerConfig controls the continuous background transaction filler.
type FillerConfig struct {
	MinInterval float64 `json:"min_interval"` // seconds between transactions, lower bound
	MaxInterval float64 `json:"max_interval"` // seconds between transactions, upper bound
	FraudRatio  float64 `json:"fraud_ratio"`  // fraction of generated transactions that are fraud
}

// Validate applies defaults for zero values and rejects out-of-range
// configurations.
func (c *FillerConfig) Validate() error {
	if c.MinInterval == 0 {
		c.MinInterval = 2.0
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 5.0
	}
	if c.MinInterval < 0.5 || c.MinInterval > 30 {
		return fmt.Errorf("min_interval must be between 0.5 and 30, got %g", c.MinInterval)
	}
	if c.MaxInterval < 1 || c.MaxInterval > 60 {
		return fmt.Errorf("max_interval must be between 1 and 60, got %g", c.MaxInterval)
	}
	if c.MaxInterval < c.MinInterval {
		return fmt.Errorf("max_interval (%g) must not be below min_interval (%g)", c.MaxInterval, c.MinInterval)
	}
	if c.FraudRatio < 0 || c.FraudRatio > 0.5 {
		return fmt.Errorf("fraud_ratio must be between 0 and 0.5, got %g", c.FraudRatio)
	}
	return nil
}

// FillerStatus is the externally visible state of the filler. Ephemeral;
// reset on process restart.
type FillerStatus struct {
	IsRunning     bool       `json:"is_running"`
	TotalInserted int64      `json:"total_inserted"`
	StartedAt     string     `json:"started_at,omitempty"`
	LastTxnAt     string     `json:"last_txn_at,omitempty"`
	IntervalRange [2]float64 `json:"interval_range"`
	FraudRatio    float64    `json:"fraud_ratio"`
}
