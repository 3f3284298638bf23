package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/aegisnode/backend/src/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// TxnFilter describes the dashboard table query: filters, sorting and
// pagination over the transactions table.
type TxnFilter struct {
	Page     int
	PageSize int

	IsFlagged    *bool
	IsFraud      *bool
	FraudType    string
	ReviewStatus string
	MinRisk      *float64
	MaxRisk      *float64
	Payer        string
	Merchant     string
	Search       string // matches txn_id, payer or merchant

	SortBy    string // whitelisted column, default created_at
	SortOrder string // asc | desc
}

var sortableColumns = map[string]bool{
	"created_at": true,
	"timestamp":  true,
	"risk_score": true,
	"amount_idr": true,
	"txn_id":     true,
	"merchant":   true,
}

func (f *TxnFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.IsFlagged != nil {
		conds = append(conds, "is_flagged = ?")
		args = append(args, *f.IsFlagged)
	}
	if f.IsFraud != nil {
		conds = append(conds, "is_fraud = ?")
		args = append(args, *f.IsFraud)
	}
	if f.FraudType != "" {
		conds = append(conds, "fraud_type = ?")
		args = append(args, f.FraudType)
	}
	if f.ReviewStatus != "" {
		conds = append(conds, "review_status = ?")
		args = append(args, f.ReviewStatus)
	}
	if f.MinRisk != nil {
		conds = append(conds, "risk_score >= ?")
		args = append(args, *f.MinRisk)
	}
	if f.MaxRisk != nil {
		conds = append(conds, "risk_score <= ?")
		args = append(args, *f.MaxRisk)
	}
	if f.Payer != "" {
		conds = append(conds, "payer = ?")
		args = append(args, f.Payer)
	}
	if f.Merchant != "" {
		conds = append(conds, "merchant LIKE ?")
		args = append(args, "%"+f.Merchant+"%")
	}
	if f.Search != "" {
		conds = append(conds, "(txn_id LIKE ? OR payer LIKE ? OR merchant LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTransactions returns one page of transactions matching the filter plus
// the total match count.
func (s *Store) ListTransactions(f TxnFilter) ([]models.StoredTransaction, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	sortBy := f.SortBy
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	where, args := f.where()

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list transactions: count: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, txn_id, timestamp, payer, issuer, country, merchant, city,
			amount_idr, amount_foreign, currency,
			risk_score, is_flagged, is_fraud,
			COALESCE(fraud_type, ''), COALESCE(attack_detail, ''), COALESCE(xai_reasons, '[]'),
			COALESCE(review_status, ''), reviewed_at, COALESCE(review_note, ''), created_at
		FROM transactions%s
		ORDER BY %s %s, id %s
		LIMIT ? OFFSET ?`, where, sortBy, order, order)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var items []models.StoredTransaction
	for rows.Next() {
		txn, err := scanStoredTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list transactions: %w", err)
		}
		items = append(items, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	if items == nil {
		items = []models.StoredTransaction{}
	}
	return items, total, nil
}

// GetTransaction looks up one transaction by its txn_id.
func (s *Store) GetTransaction(txnID string) (*models.StoredTransaction, error) {
	row := s.db.QueryRow(`
		SELECT id, txn_id, timestamp, payer, issuer, country, merchant, city,
			amount_idr, amount_foreign, currency,
			risk_score, is_flagged, is_fraud,
			COALESCE(fraud_type, ''), COALESCE(attack_detail, ''), COALESCE(xai_reasons, '[]'),
			COALESCE(review_status, ''), reviewed_at, COALESCE(review_note, ''), created_at
		FROM transactions WHERE txn_id = ?`, txnID)
	txn, err := scanStoredTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", txnID, err)
	}
	return &txn, nil
}

// ReviewTransaction records an analyst verdict on a flagged transaction.
// A "pending" verdict clears the row back to the unreviewed state.
func (s *Store) ReviewTransaction(txnID, status, note string) error {
	var res sql.Result
	var err error
	if status == "pending" {
		res, err = s.db.Exec(`
			UPDATE transactions
			SET review_status = NULL, review_note = NULL, reviewed_at = NULL
			WHERE txn_id = ?`, txnID)
	} else {
		res, err = s.db.Exec(`
			UPDATE transactions
			SET review_status = ?, review_note = ?, reviewed_at = ?
			WHERE txn_id = ?`,
			status, nullIfEmpty(note), time.Now().UTC(), txnID)
	}
	if err != nil {
		return fmt.Errorf("review transaction %s: %w", txnID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review transaction %s: %w", txnID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DashboardCounts are global counts over the whole transactions table, not
// page-local.
type DashboardCounts struct {
	Total         int `json:"total"`
	Flagged       int `json:"flagged"`
	Fraud         int `json:"fraud"`
	PendingReview int `json:"pending_review"`
	Reviewed      int `json:"reviewed"`
}

func (s *Store) GetDashboardCounts() (DashboardCounts, error) {
	var c DashboardCounts
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN is_flagged THEN 1 END),
			COUNT(CASE WHEN review_status = 'confirmed_fraud' THEN 1 END),
			COUNT(CASE WHEN is_flagged AND review_status IS NULL THEN 1 END),
			COUNT(CASE WHEN review_status IS NOT NULL THEN 1 END)
		FROM transactions`).Scan(
		&c.Total, &c.Flagged, &c.Fraud, &c.PendingReview, &c.Reviewed)
	if err != nil {
		return c, fmt.Errorf("dashboard counts: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStoredTransaction(row rowScanner) (models.StoredTransaction, error) {
	var txn models.StoredTransaction
	var xai string
	var reviewedAt sql.NullTime
	err := row.Scan(
		&txn.ID, &txn.TxnID, &txn.Timestamp, &txn.Payer, &txn.Issuer, &txn.Country,
		&txn.Merchant, &txn.City, &txn.AmountIDR, &txn.AmountForeign, &txn.Currency,
		&txn.RiskScore, &txn.IsFlagged, &txn.IsFraud,
		&txn.FraudType, &txn.AttackDetail, &xai,
		&txn.ReviewStatus, &reviewedAt, &txn.ReviewNote, &txn.CreatedAt,
	)
	if err != nil {
		return txn, err
	}
	if err := json.Unmarshal([]byte(xai), &txn.XAIReasons); err != nil {
		txn.XAIReasons = nil
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		txn.ReviewedAt = &t
	}
	return txn, nil
}
