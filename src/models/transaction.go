package models

import "time"

// Fraud archetype labels attached to synthetic fraud transactions.
const (
	FraudVelocity  = "velocity_attack"
	FraudCardTest  = "card_testing"
	FraudCollusion = "collusion_ring"
	FraudGeo       = "geo_anomaly"
	FraudAmount    = "amount_anomaly"
)

// TimestampLayout is the wire format for transaction timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// SyntheticTransaction is a generated transaction before scoring.
// Immutable once produced by the generator.
type SyntheticTransaction struct {
	TxnID         string  `json:"txn_id"`
	Timestamp     string  `json:"timestamp"` // TimestampLayout
	Payer         string  `json:"payer"`     // hashed payer id, 10 hex chars
	Issuer        string  `json:"issuer"`
	Country       string  `json:"country"`
	Merchant      string  `json:"merchant"`
	City          string  `json:"city"`
	AmountIDR     int64   `json:"amount_idr"`
	AmountForeign float64 `json:"amount_foreign"`
	Currency      string  `json:"currency"`
	IsFraud       bool    `json:"is_fraud"`
	FraudType     string  `json:"fraud_type,omitempty"`    // empty for normal transactions
	AttackDetail  string  `json:"attack_detail,omitempty"` // human-readable attack narrative
}

// XAIFeature is one feature-importance entry from the model's explainer.
type XAIFeature struct {
	Feature     string  `json:"feature"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// ScoredTransaction is a SyntheticTransaction after risk scoring.
// XAIReasons is empty unless the transaction was flagged and the
// explainer answered.
type ScoredTransaction struct {
	SyntheticTransaction
	RiskScore  float64      `json:"risk_score"`
	IsFlagged  bool         `json:"is_flagged"`
	XAIReasons []XAIFeature `json:"xai_reasons"`
}

// StoredTransaction is a scored transaction as persisted, including the
// analyst-review columns.
type StoredTransaction struct {
	ScoredTransaction
	ID           int64      `json:"id"`
	ReviewStatus string     `json:"review_status,omitempty"` // confirmed_fraud | false_positive | pending
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote   string     `json:"review_note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
