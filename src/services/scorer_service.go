package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultThreshold is used to flag fallback scores when no model threshold
// has been observed.
const DefaultThreshold = 0.5

// ScorerService wraps the aegis-ai client with the local fallback model and
// a TTL cache for XAI explanations, so the per-transaction loop never stops
// on an unreachable upstream.
type ScorerService struct {
	client      AegisClient
	reasonCache *cache.Cache
}

// NewScorerService creates the scorer. cacheTTL bounds how long cached
// explanations are served before asking the model again.
func NewScorerService(client AegisClient, cacheTTL time.Duration) *ScorerService {
	return &ScorerService{
		client:      client,
		reasonCache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

// Score asks aegis-ai for a risk score; on any transport or protocol failure
// it falls back to the local synthetic model, so every transaction gets a
// verdict.
func (s *ScorerService) Score(ctx context.Context, txn models.SyntheticTransaction, threshold float64) (float64, bool) {
	resp, err := s.client.ScoreTransactions(ctx, []ScoreRequest{{
		TxnID:     txn.TxnID,
		IsFraud:   txn.IsFraud,
		FraudType: txn.FraudType,
	}})
	if err != nil {
		logger.L.Warn("aegis-ai scoring failed, using local fallback", "txnId", txn.TxnID, "error", err)
		return FallbackScore(txn.IsFraud, threshold)
	}
	result := resp.Results[0]
	return result.RiskScore, result.IsFlagged
}

// Explain fetches XAI feature importances for a flagged transaction.
// Failures degrade to an empty slice; results are cached per txn_id so the
// REST reasoning lookups don't re-hit the model.
func (s *ScorerService) Explain(ctx context.Context, txn models.SyntheticTransaction, riskScore float64) []models.XAIFeature {
	if cached, found := s.reasonCache.Get(txn.TxnID); found {
		return cached.([]models.XAIFeature)
	}
	features, err := s.client.ExplainTransaction(ctx, ExplainRequest{
		TxnID:     txn.TxnID,
		RiskScore: riskScore,
		IsFraud:   txn.IsFraud,
		FraudType: txn.FraudType,
	})
	if err != nil {
		logger.L.Debug("aegis-ai explain failed, returning empty features", "txnId", txn.TxnID, "error", err)
		return []models.XAIFeature{}
	}
	s.reasonCache.Set(txn.TxnID, features, cache.DefaultExpiration)
	return features
}

// ExplainCached returns the explanation cached for a txn id, if any.
func (s *ScorerService) ExplainCached(txnID string) ([]models.XAIFeature, bool) {
	if cached, found := s.reasonCache.Get(txnID); found {
		return cached.([]models.XAIFeature), true
	}
	return nil, false
}

func (s *ScorerService) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	return s.client.ModelInfo(ctx)
}

func (s *ScorerService) HealthCheck(ctx context.Context) bool {
	return s.client.HealthCheck(ctx)
}

// FallbackScore draws a synthetic risk score: Beta(5,2) for ground-truth
// fraud (skewed high), Beta(1,8) for normal traffic (skewed low). The
// distributions overlap, so the fallback produces occasional misses and
// false alarms like a real model would.
func FallbackScore(isFraud bool, threshold float64) (float64, bool) {
	var score float64
	if isFraud {
		score = distuv.Beta{Alpha: 5, Beta: 2}.Rand()
	} else {
		score = distuv.Beta{Alpha: 1, Beta: 8}.Rand()
	}
	score = models.Round4(score)
	return score, score >= threshold
}
