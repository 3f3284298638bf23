// backend/src/services/filler_service.go
package services

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/username/aegisnode/backend/src/generator"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
)

// groupGenerators picks a random fraud archetype for single-transaction
// generation. Only the first transaction of the archetype's group is used.
var groupGenerators = []func(*mathrand.Rand, int, time.Time, string) []models.SyntheticTransaction{
	generator.GenVelocity,
	generator.GenCardTesting,
	generator.GenCollusion,
	generator.GenGeo,
	generator.GenAmount,
}

// FillerService continuously generates, scores and inserts single
// transactions at random intervals, simulating live traffic for the
// dashboard. Fully independent of attack runs: no shared stats, its own
// lifecycle.
type FillerService struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status models.FillerStatus
	scorer Scorer
	store  TransactionStore
}

func NewFillerService(scorer Scorer, store TransactionStore) *FillerService {
	return &FillerService{scorer: scorer, store: store}
}

// Start launches the background loop. Returns false (and changes nothing)
// if the filler is already running.
func (f *FillerService) Start(cfg models.FillerConfig) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.IsRunning {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.status = models.FillerStatus{
		IsRunning:     true,
		StartedAt:     time.Now().UTC().Format(time.RFC3339),
		IntervalRange: [2]float64{cfg.MinInterval, cfg.MaxInterval},
		FraudRatio:    cfg.FraudRatio,
	}

	go f.loop(ctx, cfg)
	logger.L.Info("Data filler started", "minInterval", cfg.MinInterval, "maxInterval", cfg.MaxInterval, "fraudRatio", cfg.FraudRatio)
	return true
}

// Stop cancels the loop. Returns false if the filler is not running. The
// in-flight iteration finishes its commit-or-nothing insert before the loop
// exits, so no partial row is left behind.
func (f *FillerService) Stop() bool {
	f.mu.Lock()
	if !f.status.IsRunning || f.cancel == nil {
		f.mu.Unlock()
		return false
	}
	cancel := f.cancel
	done := f.done
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	<-done

	f.mu.Lock()
	f.status.IsRunning = false
	total := f.status.TotalInserted
	f.mu.Unlock()
	logger.L.Info("Data filler stopped", "totalInserted", total)
	return true
}

// Status returns a copy of the current filler state.
func (f *FillerService) Status() models.FillerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *FillerService) loop(ctx context.Context, cfg models.FillerConfig) {
	defer close(f.done)
	rng := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	txnCounter := int(time.Now().Unix() % 1_000_000)

	for {
		txnCounter++
		txn := f.generateSingle(rng, txnCounter, cfg.FraudRatio)
		if err := f.insertScored(ctx, txn); err != nil {
			// Per-iteration failures never kill the loop; only Stop does.
			logger.L.Error("Filler iteration failed", "txnId", txn.TxnID, "error", err)
		} else {
			f.mu.Lock()
			f.status.TotalInserted++
			f.status.LastTxnAt = time.Now().UTC().Format(time.RFC3339)
			f.mu.Unlock()
		}

		interval := cfg.MinInterval + rng.Float64()*(cfg.MaxInterval-cfg.MinInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(interval * float64(time.Second))):
		}
	}
}

// generateSingle produces one transaction: fraud with the configured
// probability (first transaction of a random archetype group), normal
// otherwise.
func (f *FillerService) generateSingle(rng *mathrand.Rand, counter int, fraudRatio float64) models.SyntheticTransaction {
	baseTime := time.Now().UTC()
	prefix := generator.RandomRunPrefix()
	if rng.Float64() < fraudRatio {
		gen := groupGenerators[rng.Intn(len(groupGenerators))]
		return gen(rng, counter, baseTime, prefix)[0]
	}
	return generator.GenNormal(rng, counter, baseTime, prefix)
}

func (f *FillerService) insertScored(ctx context.Context, txn models.SyntheticTransaction) error {
	score, flagged := f.scorer.Score(ctx, txn, DefaultThreshold)
	scored := models.ScoredTransaction{
		SyntheticTransaction: txn,
		RiskScore:            score,
		IsFlagged:            flagged,
		XAIReasons:           []models.XAIFeature{},
	}
	if flagged {
		scored.XAIReasons = f.scorer.Explain(ctx, txn, score)
	}
	if err := f.store.SaveTransaction(scored); err != nil {
		return err
	}
	logger.L.Debug("Filler inserted transaction",
		"txnId", txn.TxnID, "score", score, "flagged", flagged, "fraud", txn.IsFraud, "fraudType", txn.FraudType)
	return nil
}
