package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	txn_id TEXT NOT NULL UNIQUE,
	timestamp TEXT NOT NULL,
	payer TEXT NOT NULL,
	issuer TEXT NOT NULL,
	country TEXT NOT NULL,
	merchant TEXT NOT NULL,
	city TEXT NOT NULL,
	amount_idr INTEGER NOT NULL,
	amount_foreign REAL NOT NULL,
	currency TEXT NOT NULL,
	risk_score REAL NOT NULL,
	is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
	is_fraud BOOLEAN NOT NULL DEFAULT FALSE,
	fraud_type TEXT,
	attack_detail TEXT,
	xai_reasons TEXT,
	review_status TEXT,
	reviewed_at TIMESTAMP,
	review_note TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS simulated_transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	txn_id TEXT NOT NULL UNIQUE,
	timestamp TEXT NOT NULL,
	payer TEXT NOT NULL,
	issuer TEXT NOT NULL,
	country TEXT NOT NULL,
	merchant TEXT NOT NULL,
	city TEXT NOT NULL,
	amount_idr INTEGER NOT NULL,
	amount_foreign REAL NOT NULL,
	currency TEXT NOT NULL,
	risk_score REAL NOT NULL,
	is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
	is_fraud BOOLEAN NOT NULL DEFAULT FALSE,
	fraud_type TEXT,
	attack_detail TEXT,
	xai_reasons TEXT,
	attack_run_id INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(attack_run_id) REFERENCES attack_runs(id)
);

CREATE TABLE IF NOT EXISTS attack_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	total_txns INTEGER NOT NULL,
	fraud_pct REAL NOT NULL,
	speed TEXT NOT NULL,
	mode TEXT,
	total INTEGER DEFAULT 0,
	approved INTEGER DEFAULT 0,
	flagged INTEGER DEFAULT 0,
	tp INTEGER DEFAULT 0,
	fp INTEGER DEFAULT 0,
	tn INTEGER DEFAULT 0,
	fn INTEGER DEFAULT 0,
	recall REAL DEFAULT 0,
	precision REAL DEFAULT 0,
	f1 REAL DEFAULT 0,
	fpr REAL DEFAULT 0,
	roi_saved INTEGER DEFAULT 0,
	per_type TEXT,
	per_type_total TEXT,
	status TEXT DEFAULT 'running',
	started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_txn_txn_id ON transactions(txn_id);
CREATE INDEX IF NOT EXISTS idx_txn_payer ON transactions(payer);
CREATE INDEX IF NOT EXISTS idx_txn_risk ON transactions(risk_score);
CREATE INDEX IF NOT EXISTS idx_txn_review ON transactions(review_status);
CREATE INDEX IF NOT EXISTS idx_sim_run ON simulated_transactions(attack_run_id);
CREATE INDEX IF NOT EXISTS idx_run_status ON attack_runs(status);
`

// Store is the persistence layer: scored transactions (live + simulated)
// and attack run records, backed by SQLite.
type Store struct {
	db *sql.DB
}

// InitDB opens (or creates) the database at the given path and applies the
// schema.
func InitDB(databasePath string) (*Store, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("database.InitDB: open %q: %w", databasePath, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("database.InitDB: apply schema: %w", err)
	}
	if logger.L != nil {
		logger.L.Info("Database initialized", "databasePath", databasePath)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ── Attack runs ─────────────────────────────────────────────────────────────

// CreateAttackRun inserts the run header (status=running) before processing
// begins and returns the new run id.
func (s *Store) CreateAttackRun(run *models.AttackRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO attack_runs (total_txns, fraud_pct, speed, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.TotalTxns, run.FraudPct, run.Speed, models.RunStatusRunning, run.StartedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("create attack run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create attack run: last insert id: %w", err)
	}
	run.ID = id
	return id, nil
}

func (s *Store) SetAttackRunMode(id int64, mode string) error {
	_, err := s.db.Exec(`UPDATE attack_runs SET mode = ? WHERE id = ?`, mode, id)
	if err != nil {
		return fmt.Errorf("set attack run mode: %w", err)
	}
	return nil
}

// CompleteAttackRun finalizes a run with its final stats snapshot.
func (s *Store) CompleteAttackRun(id int64, stats models.StatsSnapshot) error {
	perType, err := json.Marshal(stats.PerType)
	if err != nil {
		return fmt.Errorf("complete attack run: marshal per_type: %w", err)
	}
	perTypeTotal, err := json.Marshal(stats.PerTypeTotal)
	if err != nil {
		return fmt.Errorf("complete attack run: marshal per_type_total: %w", err)
	}
	_, err = s.db.Exec(`
		UPDATE attack_runs SET
			total = ?, approved = ?, flagged = ?,
			tp = ?, fp = ?, tn = ?, fn = ?,
			recall = ?, precision = ?, f1 = ?, fpr = ?, roi_saved = ?,
			per_type = ?, per_type_total = ?,
			status = ?, completed_at = ?
		WHERE id = ?`,
		stats.Total, stats.Approved, stats.Flagged,
		stats.TP, stats.FP, stats.TN, stats.FN,
		stats.Recall, stats.Precision, stats.F1, stats.FPR, stats.ROISaved,
		string(perType), string(perTypeTotal),
		models.RunStatusCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete attack run: %w", err)
	}
	return nil
}

// FailAttackRun marks a run failed, leaving whatever stats were already
// committed in place.
func (s *Store) FailAttackRun(id int64) error {
	_, err := s.db.Exec(`UPDATE attack_runs SET status = ? WHERE id = ?`, models.RunStatusFailed, id)
	if err != nil {
		return fmt.Errorf("fail attack run: %w", err)
	}
	return nil
}

// ListAttackRuns returns past runs, most recent first.
func (s *Store) ListAttackRuns(limit int, status string) ([]models.AttackRun, error) {
	query := `
		SELECT id, total_txns, fraud_pct, speed, COALESCE(mode, ''),
			total, approved, flagged, tp, fp, tn, fn,
			recall, precision, f1, fpr, roi_saved,
			COALESCE(per_type, '{}'), COALESCE(per_type_total, '{}'),
			status, started_at, completed_at
		FROM attack_runs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attack runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AttackRun
	for rows.Next() {
		var r models.AttackRun
		var perType, perTypeTotal string
		var completedAt sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.TotalTxns, &r.FraudPct, &r.Speed, &r.Mode,
			&r.Total, &r.Approved, &r.Flagged, &r.TP, &r.FP, &r.TN, &r.FN,
			&r.Recall, &r.Precision, &r.F1, &r.FPR, &r.ROISaved,
			&perType, &perTypeTotal,
			&r.Status, &r.StartedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("list attack runs: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(perType), &r.PerType); err != nil {
			r.PerType = map[string]int{}
		}
		if err := json.Unmarshal([]byte(perTypeTotal), &r.PerTypeTotal); err != nil {
			r.PerTypeTotal = map[string]int{}
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attack runs: %w", err)
	}
	if runs == nil {
		runs = []models.AttackRun{}
	}
	return runs, nil
}

// ── Simulated transactions (batched) ────────────────────────────────────────

// Batch is an open write batch of simulated transactions. The orchestrator
// commits every N rows; rows in an uncommitted batch are lost on crash,
// which is the accepted durability boundary for a demo system. An open batch
// holds the store's single connection, so a batch that will not be committed
// must be rolled back.
type Batch interface {
	Add(txn models.ScoredTransaction, runID int64) error
	Commit() error
	Rollback() error
}

type sqlBatch struct {
	tx *sql.Tx
}

// Begin opens a new write batch for simulated transactions.
func (s *Store) Begin() (Batch, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &sqlBatch{tx: tx}, nil
}

func (b *sqlBatch) Add(txn models.ScoredTransaction, runID int64) error {
	xai, err := json.Marshal(txn.XAIReasons)
	if err != nil {
		return fmt.Errorf("batch add: marshal xai_reasons: %w", err)
	}
	_, err = b.tx.Exec(`
		INSERT INTO simulated_transactions (
			txn_id, timestamp, payer, issuer, country, merchant, city,
			amount_idr, amount_foreign, currency,
			risk_score, is_flagged, is_fraud, fraud_type, attack_detail,
			xai_reasons, attack_run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.TxnID, txn.Timestamp, txn.Payer, txn.Issuer, txn.Country, txn.Merchant, txn.City,
		txn.AmountIDR, txn.AmountForeign, txn.Currency,
		txn.RiskScore, txn.IsFlagged, txn.IsFraud, nullIfEmpty(txn.FraudType), nullIfEmpty(txn.AttackDetail),
		string(xai), runID)
	if err != nil {
		return fmt.Errorf("batch add %s: %w", txn.TxnID, err)
	}
	return nil
}

func (b *sqlBatch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("batch commit: %w", err)
	}
	return nil
}

// Rollback discards the batch and releases its connection. Rolling back a
// batch whose commit already failed is a no-op.
func (b *sqlBatch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("batch rollback: %w", err)
	}
	return nil
}

// ── Live transactions (filler) ──────────────────────────────────────────────

// SaveTransaction persists one scored transaction commit-or-nothing, used by
// the continuous filler.
func (s *Store) SaveTransaction(txn models.ScoredTransaction) error {
	xai, err := json.Marshal(txn.XAIReasons)
	if err != nil {
		return fmt.Errorf("save transaction: marshal xai_reasons: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO transactions (
			txn_id, timestamp, payer, issuer, country, merchant, city,
			amount_idr, amount_foreign, currency,
			risk_score, is_flagged, is_fraud, fraud_type, attack_detail, xai_reasons
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.TxnID, txn.Timestamp, txn.Payer, txn.Issuer, txn.Country, txn.Merchant, txn.City,
		txn.AmountIDR, txn.AmountForeign, txn.Currency,
		txn.RiskScore, txn.IsFlagged, txn.IsFraud, nullIfEmpty(txn.FraudType), nullIfEmpty(txn.AttackDetail),
		string(xai))
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", txn.TxnID, err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
