package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/aegisnode/backend/src/config"
	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
	"github.com/username/aegisnode/backend/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{AllowedOrigin: "http://localhost:3000"}
	os.Exit(m.Run())
}

// testScorer flags exactly the ground-truth fraud and remembers every
// explanation it hands out, like the real scorer's TTL cache does.
type testScorer struct {
	infoErr bool

	mu           sync.Mutex
	explainCalls int
	explained    map[string][]models.XAIFeature
}

func (s *testScorer) Score(ctx context.Context, txn models.SyntheticTransaction, threshold float64) (float64, bool) {
	if txn.IsFraud {
		return 0.9, true
	}
	return 0.1, false
}

func (s *testScorer) Explain(ctx context.Context, txn models.SyntheticTransaction, riskScore float64) []models.XAIFeature {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explainCalls++
	features := []models.XAIFeature{{Feature: "velocity_1h", DisplayName: "Velocity (1h)", Importance: 0.8}}
	if s.explained == nil {
		s.explained = map[string][]models.XAIFeature{}
	}
	s.explained[txn.TxnID] = features
	return features
}

func (s *testScorer) ExplainCached(txnID string) ([]models.XAIFeature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	features, found := s.explained[txnID]
	return features, found
}

func (s *testScorer) ModelInfo(ctx context.Context) (*services.ModelInfo, error) {
	if s.infoErr {
		return nil, fmt.Errorf("connection refused")
	}
	return &services.ModelInfo{Status: "healthy", Mode: "LIVE", Threshold: 0.5, Architecture: "HTGNN"}, nil
}

func (s *testScorer) HealthCheck(ctx context.Context) bool { return !s.infoErr }

type testEnv struct {
	srv   *httptest.Server
	store *database.Store
}

func newTestEnv(t *testing.T, scorer services.Scorer) *testEnv {
	t.Helper()
	store, err := database.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := services.NewDashboardHub()
	attackService := services.NewAttackService(scorer, store, hub)
	fillerService := services.NewFillerService(scorer, store)

	attackHandler := NewAttackHandler(attackService, store)
	dashboardHandler := NewDashboardHandler(hub, attackService, store)
	fillerHandler := NewFillerHandler(fillerService)
	txHandler := NewTransactionHandler(store, scorer)
	systemHandler := NewSystemHandler(scorer)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/attack/start", attackHandler.StartAttack)
	mux.HandleFunc("GET /api/v1/attack/history", attackHandler.ListAttackHistory)
	mux.HandleFunc("GET /api/v1/stats", dashboardHandler.GetStats)
	mux.HandleFunc("GET /api/v1/dashboard/counts", dashboardHandler.GetDashboardCounts)
	mux.HandleFunc("POST /api/v1/filler/start", fillerHandler.StartFiller)
	mux.HandleFunc("POST /api/v1/filler/stop", fillerHandler.StopFiller)
	mux.HandleFunc("GET /api/v1/filler/status", fillerHandler.GetFillerStatus)
	mux.HandleFunc("GET /api/v1/transactions", txHandler.ListTransactions)
	mux.HandleFunc("GET /api/v1/transactions/{txn_id}", txHandler.GetTransaction)
	mux.HandleFunc("GET /api/v1/transactions/{txn_id}/reason", txHandler.GetTransactionReason)
	mux.HandleFunc("POST /api/v1/transactions/{txn_id}/review", txHandler.ReviewTransaction)
	mux.HandleFunc("GET /api/v1/model/status", systemHandler.GetModelStatus)
	mux.HandleFunc("GET /health", systemHandler.HealthCheck)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) getJSON(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) postJSON(t *testing.T, path string, body, out interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, &testScorer{})
	var body map[string]string
	require.Equal(t, http.StatusOK, env.getJSON(t, "/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestModelStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, &testScorer{})
	var body modelStatusResponse
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/model/status", &body))
	assert.Equal(t, "LIVE", body.Mode)
	assert.True(t, body.AegisAIReachable)

	env = newTestEnv(t, &testScorer{infoErr: true})
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/model/status", &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "SIMULATION", body.Mode)
	assert.Equal(t, 0.5, body.Threshold)
	assert.False(t, body.AegisAIReachable)
}

func TestStartAttackEndpoint(t *testing.T) {
	env := newTestEnv(t, &testScorer{})

	var result attackRunResult
	status := env.postJSON(t, "/api/v1/attack/start",
		map[string]interface{}{"total": 30, "fraud_pct": 0.1, "speed": "slow"}, &result)
	require.Equal(t, http.StatusOK, status)

	// The REST path ignores the requested speed and runs instantly.
	require.NotNil(t, result.Stats)
	assert.Equal(t, len(result.Transactions), result.TotalTransactions)
	assert.Equal(t, result.Stats.Total, result.TotalTransactions)
	assert.GreaterOrEqual(t, result.Stats.TP, 10, "fraud floor with a perfect stub scorer")
	assert.Equal(t, 1.0, result.Stats.Recall)

	var runs []models.AttackRun
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/attack/history", &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, result.Stats.Total, runs[0].Total)

	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/attack/history?status=failed", &runs))
	assert.Empty(t, runs)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, env.getJSON(t, "/api/v1/attack/history?limit=0", &errBody))
}

func TestStartAttackRejectsBadConfig(t *testing.T) {
	env := newTestEnv(t, &testScorer{})
	var errBody map[string]string
	status := env.postJSON(t, "/api/v1/attack/start", map[string]interface{}{"total": 5}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, errBody["error"])
}

func TestStartAttackPersistFailureReturns500(t *testing.T) {
	env := newTestEnv(t, &testScorer{})
	require.NoError(t, env.store.Close())

	var errBody map[string]string
	status := env.postJSON(t, "/api/v1/attack/start",
		map[string]interface{}{"total": 30, "fraud_pct": 0.1}, &errBody)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, errBody["error"])
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, &testScorer{})
	var stats models.StatsSnapshot
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/stats", &stats))
	assert.Equal(t, 0, stats.Total)

	env.postJSON(t, "/api/v1/attack/start", map[string]interface{}{"total": 30, "fraud_pct": 0.1}, nil)
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/stats", &stats))
	assert.Greater(t, stats.Total, 0)
}

func TestTransactionEndpoints(t *testing.T) {
	env := newTestEnv(t, &testScorer{})
	for i := 0; i < 5; i++ {
		txn := models.ScoredTransaction{
			SyntheticTransaction: models.SyntheticTransaction{
				TxnID:     fmt.Sprintf("TXN-test-%06d", i),
				Timestamp: "2026-02-25 14:00:00",
				Payer:     "aaaaaaaaaa",
				Issuer:    "Alipay_CN",
				Country:   "CN",
				Merchant:  "Bali Beach Resort",
				City:      "Bali",
				AmountIDR: 250_000,
				Currency:  "CNY",
				IsFraud:   i < 2,
			},
			RiskScore:  float64(i) / 10,
			IsFlagged:  i < 2,
			XAIReasons: []models.XAIFeature{},
		}
		require.NoError(t, env.store.SaveTransaction(txn))
	}

	var page PaginatedTransactions
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/transactions?page_size=2", &page))
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Len(t, page.Items, 2)

	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/transactions?is_flagged=true", &page))
	assert.Equal(t, 2, page.Total)

	assert.Equal(t, http.StatusBadRequest, env.getJSON(t, "/api/v1/transactions?is_flagged=banana", nil))
	assert.Equal(t, http.StatusBadRequest, env.getJSON(t, "/api/v1/transactions?page=-1", nil))

	var txn models.StoredTransaction
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/transactions/TXN-test-000001", &txn))
	assert.Equal(t, "TXN-test-000001", txn.TxnID)
	assert.Equal(t, http.StatusNotFound, env.getJSON(t, "/api/v1/transactions/TXN-none-000000", nil))

	status := env.postJSON(t, "/api/v1/transactions/TXN-test-000001/review",
		map[string]string{"status": "confirmed_fraud", "note": "verified"}, &txn)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed_fraud", txn.ReviewStatus)
	assert.Equal(t, "verified", txn.ReviewNote)
	require.NotNil(t, txn.ReviewedAt)

	status = env.postJSON(t, "/api/v1/transactions/TXN-test-000001/review",
		map[string]string{"status": "maybe"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status = env.postJSON(t, "/api/v1/transactions/TXN-none-000000/review",
		map[string]string{"status": "false_positive"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	var counts database.DashboardCounts
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/dashboard/counts", &counts))
	assert.Equal(t, 5, counts.Total)
	assert.Equal(t, 2, counts.Flagged)
	assert.Equal(t, 1, counts.Reviewed)
}

func TestTransactionReasonEndpoint(t *testing.T) {
	scorer := &testScorer{}
	env := newTestEnv(t, scorer)
	txn := models.ScoredTransaction{
		SyntheticTransaction: models.SyntheticTransaction{
			TxnID:     "TXN-test-000001",
			Timestamp: "2026-02-25 14:00:00",
			Payer:     "aaaaaaaaaa",
			Issuer:    "Alipay_CN",
			Country:   "CN",
			Merchant:  "Bali Beach Resort",
			City:      "Bali",
			AmountIDR: 250_000,
			Currency:  "CNY",
			IsFraud:   true,
			FraudType: models.FraudVelocity,
		},
		RiskScore:  0.9,
		IsFlagged:  true,
		XAIReasons: []models.XAIFeature{},
	}
	require.NoError(t, env.store.SaveTransaction(txn))

	var reason transactionReason
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/transactions/TXN-test-000001/reason", &reason))
	assert.Equal(t, "TXN-test-000001", reason.TxnID)
	assert.Equal(t, 0.9, reason.RiskScore)
	assert.Equal(t, models.FraudVelocity, reason.FraudType)
	assert.False(t, reason.Cached)
	require.NotEmpty(t, reason.XAIReasons)
	assert.Equal(t, "velocity_1h", reason.XAIReasons[0].Feature)

	// The repeat lookup is answered from the explanation cache.
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/transactions/TXN-test-000001/reason", &reason))
	assert.True(t, reason.Cached)
	assert.Equal(t, "velocity_1h", reason.XAIReasons[0].Feature)
	assert.Equal(t, 1, scorer.explainCalls)

	assert.Equal(t, http.StatusNotFound, env.getJSON(t, "/api/v1/transactions/TXN-none-000000/reason", nil))
}

func TestFillerEndpoints(t *testing.T) {
	env := newTestEnv(t, &testScorer{})

	var startResp struct {
		Started bool                `json:"started"`
		Message string              `json:"message"`
		Status  models.FillerStatus `json:"status"`
	}
	require.Equal(t, http.StatusOK, env.postJSON(t, "/api/v1/filler/start",
		map[string]interface{}{"min_interval": 1, "max_interval": 2, "fraud_ratio": 0.1}, &startResp))
	assert.True(t, startResp.Started)
	assert.True(t, startResp.Status.IsRunning)

	require.Equal(t, http.StatusOK, env.postJSON(t, "/api/v1/filler/start", map[string]interface{}{}, &startResp))
	assert.False(t, startResp.Started)
	assert.Equal(t, "Filler is already running. Stop it first.", startResp.Message)

	var status models.FillerStatus
	require.Equal(t, http.StatusOK, env.getJSON(t, "/api/v1/filler/status", &status))
	assert.True(t, status.IsRunning)
	assert.Equal(t, [2]float64{1, 2}, status.IntervalRange)

	var stopResp struct {
		Stopped bool                `json:"stopped"`
		Message string              `json:"message"`
		Status  models.FillerStatus `json:"status"`
	}
	require.Equal(t, http.StatusOK, env.postJSON(t, "/api/v1/filler/stop", nil, &stopResp))
	assert.True(t, stopResp.Stopped)
	assert.False(t, stopResp.Status.IsRunning)

	require.Equal(t, http.StatusOK, env.postJSON(t, "/api/v1/filler/stop", nil, &stopResp))
	assert.False(t, stopResp.Stopped)
	assert.Equal(t, "Filler is not running.", stopResp.Message)

	assert.Equal(t, http.StatusBadRequest, env.postJSON(t, "/api/v1/filler/start",
		map[string]interface{}{"min_interval": 0.1}, nil))
}
