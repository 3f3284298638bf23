// backend/src/services/attack_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/username/aegisnode/backend/src/generator"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
)

// commitEvery is the persistence batch size. A crash mid-batch loses at most
// commitEvery-1 scored-but-uncommitted rows; accepted durability boundary
// for a demo system.
const commitEvery = 50

// defaultSeed makes every run generate the same transaction content (modulo
// the random txn-id prefix), which keeps demo runs comparable.
const defaultSeed = 42

// BatchFunc generates the full transaction batch for a run.
type BatchFunc func(total int, fraudPct float64, seed int64) []models.SyntheticTransaction

// AttackService drives attack simulation runs: generate, score, persist,
// aggregate and stream. One instance owns the single-run-at-a-time guard and
// the live stats snapshot; a process hosting several independent simulators
// would hold several instances.
type AttackService struct {
	mu      sync.Mutex
	running bool
	stats   *models.StatsSnapshot

	scorer   Scorer
	store    TransactionStore
	hub      *DashboardHub
	generate BatchFunc
	seed     int64
}

// NewAttackService wires the orchestrator. hub may be nil (no passive
// observers, e.g. in tests).
func NewAttackService(scorer Scorer, store TransactionStore, hub *DashboardHub) *AttackService {
	return &AttackService{
		scorer:   scorer,
		store:    store,
		hub:      hub,
		generate: generator.GenerateAttackBatch,
		seed:     defaultSeed,
		stats:    models.NewStatsSnapshot(),
	}
}

// IsRunning reports whether a run is in progress.
func (a *AttackService) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Stats returns a copy of the current (or last finished) run's stats.
func (a *AttackService) Stats() models.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.Clone()
}

// Run executes one attack simulation. Every event is broadcast to dashboard
// subscribers and handed to send (the triggering client), in generation
// order. Returns ErrRunActive without touching any state when a run is
// already in progress.
func (a *AttackService) Run(ctx context.Context, cfg models.AttackConfig, send func(models.Event)) (err error) {
	emit := func(ev models.Event) {
		if a.hub != nil {
			a.hub.Broadcast(ev)
		}
		if send != nil {
			send(ev)
		}
	}

	if err := cfg.Validate(); err != nil {
		emit(models.ErrorEvent{Text: err.Error()})
		return fmt.Errorf("invalid attack config: %w", err)
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		emit(models.ErrorEvent{Text: "Attack already running!"})
		return ErrRunActive
	}
	a.running = true
	stats := models.NewStatsSnapshot()
	a.stats = stats
	a.mu.Unlock()

	// Release the single-run guard on every exit path.
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	run := &models.AttackRun{
		TotalTxns: cfg.Total,
		FraudPct:  cfg.FraudPct,
		Speed:     cfg.Speed,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	runID, err := a.store.CreateAttackRun(run)
	if err != nil {
		emit(models.ErrorEvent{Text: "Failed to start attack run"})
		return fmt.Errorf("persist attack run header: %w", err)
	}

	// Orchestrator boundary: any failure past this point marks the run
	// failed before propagating, and a panic is converted into an error so
	// the guard above still releases.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attack run panicked: %v", r)
		}
		if err != nil {
			emit(models.ErrorEvent{Text: err.Error()})
			if failErr := a.store.FailAttackRun(runID); failErr != nil {
				logger.L.Error("Failed to mark attack run as failed", "runId", runID, "error", failErr)
			}
			logger.L.Error("Attack run failed", "runId", runID, "error", err)
		}
	}()

	// 1. Reachability probe + model info. Informational only; scoring
	// degrades per-transaction regardless of the answer here.
	emit(models.LogEvent{Level: models.LogInfo, Text: "[AegisNode] Connecting to ML model service..."})
	if !a.scorer.HealthCheck(ctx) {
		emit(models.LogEvent{Level: models.LogWarning, Text: "[AegisNode] aegis-ai unreachable, using simulation mode"})
	}

	mode := "SIMULATION"
	threshold := DefaultThreshold
	if info, infoErr := a.scorer.ModelInfo(ctx); infoErr == nil {
		if info.Mode != "" {
			mode = info.Mode
		}
		if info.Threshold > 0 {
			threshold = info.Threshold
		}
	}
	emit(models.LogEvent{Level: models.LogInfo, Text: fmt.Sprintf("[AegisNode] Mode: %s | Threshold: %.3f", mode, threshold)})
	if err := a.store.SetAttackRunMode(runID, mode); err != nil {
		return fmt.Errorf("persist attack run mode: %w", err)
	}

	// 2. Generate the full batch up front.
	emit(models.LogEvent{Level: models.LogInfo, Text: fmt.Sprintf("[AegisNode] Generating %d transactions (%.0f%% fraud)...", cfg.Total, cfg.FraudPct*100)})
	batch := a.generate(cfg.Total, cfg.FraudPct, a.seed)
	nFraud := 0
	for _, txn := range batch {
		if txn.IsFraud {
			nFraud++
		}
	}
	emit(models.LogEvent{Level: models.LogInfo, Text: fmt.Sprintf("[AegisNode] Ready: %d txns (%d fraud). Streaming...", len(batch), nFraud)})
	emit(models.AttackStartEvent{Total: len(batch), Fraud: nFraud})

	// 3. Score, persist, aggregate and stream each transaction in order.
	delay := cfg.Delay()
	writer, err := a.store.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction batch: %w", err)
	}
	// An open batch holds the store's single connection. Roll it back on any
	// exit that did not commit it, or the deferred FailAttackRun above blocks
	// forever waiting for a connection.
	defer func() {
		if writer == nil {
			return
		}
		if rbErr := writer.Rollback(); rbErr != nil {
			logger.L.Error("Failed to roll back transaction batch", "runId", runID, "error", rbErr)
		}
	}()
	for i, txn := range batch {
		score, flagged := a.scorer.Score(ctx, txn, threshold)
		scored := models.ScoredTransaction{
			SyntheticTransaction: txn,
			RiskScore:            score,
			IsFlagged:            flagged,
			XAIReasons:           []models.XAIFeature{},
		}
		if flagged {
			// Flagging gates the explain call; uninteresting transactions
			// never cost an upstream round-trip.
			scored.XAIReasons = a.scorer.Explain(ctx, txn, score)
		}

		if err := writer.Add(scored, runID); err != nil {
			return fmt.Errorf("persist transaction %s: %w", txn.TxnID, err)
		}
		if (i+1)%commitEvery == 0 {
			if err := writer.Commit(); err != nil {
				return fmt.Errorf("commit transaction batch: %w", err)
			}
			if writer, err = a.store.Begin(); err != nil {
				return fmt.Errorf("begin transaction batch: %w", err)
			}
		}

		a.mu.Lock()
		stats.Update(txn.IsFraud, flagged, txn.FraudType)
		snapshot := stats.Clone()
		a.mu.Unlock()

		emit(models.TransactionEvent{Txn: scored})
		if i%10 == 0 || i == len(batch)-1 {
			emit(models.StatsUpdateEvent{Stats: snapshot})
		}

		if delay > 0 {
			time.Sleep(delay)
		}
	}
	if err := writer.Commit(); err != nil {
		return fmt.Errorf("commit final transaction batch: %w", err)
	}
	writer = nil

	// 4. Finalize the run record and close the stream.
	a.mu.Lock()
	final := stats.Clone()
	a.mu.Unlock()
	if err := a.store.CompleteAttackRun(runID, final); err != nil {
		return fmt.Errorf("finalize attack run: %w", err)
	}

	emit(models.LogEvent{
		Level: models.LogSuccess,
		Text: fmt.Sprintf("[AegisNode] Attack complete! %d txns processed. Recall: %.1f%%, Precision: %.1f%%, F1: %.4f",
			final.Total, final.Recall*100, final.Precision*100, final.F1),
	})
	emit(models.AttackEndEvent{Stats: final})
	logger.L.Info("Attack run completed", "runId", runID, "total", final.Total, "recall", final.Recall, "precision", final.Precision)
	return nil
}
