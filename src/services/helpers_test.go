package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// stubScorer flags exactly the ground-truth fraud unless overridden, so a
// run's confusion matrix is fully predictable.
type stubScorer struct {
	scoreFn   func(txn models.SyntheticTransaction, threshold float64) (float64, bool)
	explainFn func(txn models.SyntheticTransaction) []models.XAIFeature
	healthy   bool
	info      *ModelInfo
	gate      chan struct{} // when set, Score blocks until closed
}

func newStubScorer() *stubScorer {
	return &stubScorer{
		healthy: true,
		info:    &ModelInfo{Status: "healthy", Mode: "SIMULATION", Threshold: 0.5},
	}
}

func (s *stubScorer) Score(ctx context.Context, txn models.SyntheticTransaction, threshold float64) (float64, bool) {
	if s.gate != nil {
		<-s.gate
	}
	if s.scoreFn != nil {
		return s.scoreFn(txn, threshold)
	}
	if txn.IsFraud {
		return 0.9, true
	}
	return 0.1, false
}

func (s *stubScorer) Explain(ctx context.Context, txn models.SyntheticTransaction, riskScore float64) []models.XAIFeature {
	if s.explainFn != nil {
		return s.explainFn(txn)
	}
	return []models.XAIFeature{{Feature: "velocity_1h", DisplayName: "Velocity (1h)", Importance: 0.8}}
}

func (s *stubScorer) ExplainCached(txnID string) ([]models.XAIFeature, bool) {
	return nil, false
}

func (s *stubScorer) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	if s.info == nil {
		return nil, fmt.Errorf("model info unavailable")
	}
	return s.info, nil
}

func (s *stubScorer) HealthCheck(ctx context.Context) bool { return s.healthy }

type savedRow struct {
	txn   models.ScoredTransaction
	runID int64
}

// fakeStore is an in-memory TransactionStore that records everything the
// services write.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	runs      map[int64]*models.AttackRun
	rows      []savedRow // committed simulated transactions
	saved     []models.ScoredTransaction
	begins    int
	commits   int
	rollbacks int
	createErr error
	addErr    error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[int64]*models.AttackRun{}}
}

func (f *fakeStore) CreateAttackRun(run *models.AttackRun) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	run.ID = f.nextID
	cp := *run
	f.runs[run.ID] = &cp
	return run.ID, nil
}

func (f *fakeStore) SetAttackRunMode(id int64, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Mode = mode
	return nil
}

func (f *fakeStore) CompleteAttackRun(id int64, stats models.StatsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.runs[id]
	run.StatsSnapshot = stats
	run.Status = models.RunStatusCompleted
	return nil
}

func (f *fakeStore) FailAttackRun(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Status = models.RunStatusFailed
	return nil
}

func (f *fakeStore) Begin() (database.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	return &fakeBatch{store: f}, nil
}

func (f *fakeStore) SaveTransaction(txn models.ScoredTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, txn)
	return nil
}

func (f *fakeStore) run(id int64) models.AttackRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.runs[id]
}

func (f *fakeStore) committedRows() []savedRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]savedRow, len(f.rows))
	copy(out, f.rows)
	return out
}

func (f *fakeStore) savedTxns() []models.ScoredTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ScoredTransaction, len(f.saved))
	copy(out, f.saved)
	return out
}

type fakeBatch struct {
	store   *fakeStore
	pending []savedRow
}

func (b *fakeBatch) Add(txn models.ScoredTransaction, runID int64) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.addErr != nil {
		return b.store.addErr
	}
	b.pending = append(b.pending, savedRow{txn: txn, runID: runID})
	return nil
}

func (b *fakeBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.commits++
	b.store.rows = append(b.store.rows, b.pending...)
	b.pending = nil
	return nil
}

func (b *fakeBatch) Rollback() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	b.store.rollbacks++
	b.pending = nil
	return nil
}

// fixedBatch builds a deterministic generated batch: nNormal normal
// transactions followed by nFraud velocity-type frauds.
func fixedBatch(nNormal, nFraud int) []models.SyntheticTransaction {
	var out []models.SyntheticTransaction
	for i := 0; i < nNormal; i++ {
		out = append(out, models.SyntheticTransaction{
			TxnID:     fmt.Sprintf("TXN-test-%06d", i+1),
			Timestamp: "2026-02-25 14:00:00",
			Payer:     "aaaaaaaaaa",
			AmountIDR: 250_000,
		})
	}
	for i := 0; i < nFraud; i++ {
		out = append(out, models.SyntheticTransaction{
			TxnID:     fmt.Sprintf("TXN-test-%06d", nNormal+i+1),
			Timestamp: "2026-02-25 14:01:00",
			Payer:     "bbbbbbbbbb",
			AmountIDR: 400_000,
			IsFraud:   true,
			FraudType: models.FraudVelocity,
		})
	}
	return out
}
