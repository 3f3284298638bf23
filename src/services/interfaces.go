package services

import (
	"context"

	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/models"
)

// ScoreRequest identifies one transaction for the model to score. The ground
// truth travels along because the demo model (and the local fallback) keys
// its synthetic risk off it.
type ScoreRequest struct {
	TxnID     string `json:"txn_id"`
	IsFraud   bool   `json:"is_fraud"`
	FraudType string `json:"fraud_type,omitempty"`
}

// ScoreResult is the model's verdict on one transaction.
type ScoreResult struct {
	TxnID     string  `json:"txn_id"`
	RiskScore float64 `json:"risk_score"`
	IsFlagged bool    `json:"is_flagged"`
}

// ScoreResponse is the full answer to a score call.
type ScoreResponse struct {
	Results   []ScoreResult `json:"results"`
	Threshold float64       `json:"threshold"`
	Mode      string        `json:"mode"`
}

// ExplainRequest asks the model for XAI feature importances on one scored
// transaction.
type ExplainRequest struct {
	TxnID     string  `json:"txn_id"`
	RiskScore float64 `json:"risk_score"`
	IsFraud   bool    `json:"is_fraud"`
	FraudType string  `json:"fraud_type,omitempty"`
}

// ModelInfo is the metadata the model service reports about itself.
type ModelInfo struct {
	Status       string  `json:"status"`
	Mode         string  `json:"mode"`
	Threshold    float64 `json:"threshold"`
	Architecture string  `json:"architecture,omitempty"`
}

// AegisClient is the narrow RPC-like contract with the aegis-ai model
// service. The core never assumes anything about the model beyond it.
type AegisClient interface {
	ModelInfo(ctx context.Context) (*ModelInfo, error)
	ScoreTransactions(ctx context.Context, txns []ScoreRequest) (*ScoreResponse, error)
	ExplainTransaction(ctx context.Context, req ExplainRequest) ([]models.XAIFeature, error)
	HealthCheck(ctx context.Context) bool
}

// Scorer is what the orchestrator and the filler consume: scoring that never
// fails (local fallback) and explanation that degrades to an empty result.
type Scorer interface {
	// Score returns a risk score in [0,1] and the flag verdict. It never
	// errors; upstream failure falls back to the local synthetic model using
	// the given threshold.
	Score(ctx context.Context, txn models.SyntheticTransaction, threshold float64) (float64, bool)
	// Explain returns XAI feature importances, or an empty slice when the
	// explainer is unavailable. Only called for flagged transactions.
	Explain(ctx context.Context, txn models.SyntheticTransaction, riskScore float64) []models.XAIFeature
	// ExplainCached reports the cached explanation for a txn id without
	// touching the model.
	ExplainCached(txnID string) ([]models.XAIFeature, bool)
	ModelInfo(ctx context.Context) (*ModelInfo, error)
	HealthCheck(ctx context.Context) bool
}

// TransactionStore is the persistence collaborator the simulation services
// write through.
type TransactionStore interface {
	CreateAttackRun(run *models.AttackRun) (int64, error)
	SetAttackRunMode(id int64, mode string) error
	CompleteAttackRun(id int64, stats models.StatsSnapshot) error
	FailAttackRun(id int64) error
	Begin() (database.Batch, error)
	SaveTransaction(txn models.ScoredTransaction) error
}
