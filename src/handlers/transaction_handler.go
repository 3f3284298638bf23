package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
	"github.com/username/aegisnode/backend/src/services"
	"github.com/username/aegisnode/backend/src/utils"
)

type TransactionHandler struct {
	store  *database.Store
	scorer services.Scorer
}

func NewTransactionHandler(store *database.Store, scorer services.Scorer) *TransactionHandler {
	return &TransactionHandler{store: store, scorer: scorer}
}

type PaginatedTransactions struct {
	Items    []models.StoredTransaction `json:"items"`
	Total    int                        `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
	Pages    int                        `json:"pages"`
}

// ListTransactions serves the dashboard table: filterable, sortable,
// paginated.
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := database.TxnFilter{
		Page:         1,
		PageSize:     20,
		FraudType:    q.Get("fraud_type"),
		ReviewStatus: q.Get("review_status"),
		Payer:        q.Get("payer"),
		Merchant:     q.Get("merchant"),
		Search:       q.Get("search"),
		SortBy:       q.Get("sort_by"),
		SortOrder:    q.Get("sort_order"),
	}

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			utils.SendJSONError(w, "page must be a positive integer", http.StatusBadRequest)
			return
		}
		f.Page = v
	}
	if raw := q.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			utils.SendJSONError(w, "page_size must be between 1 and 100", http.StatusBadRequest)
			return
		}
		f.PageSize = v
	}
	var perr error
	f.IsFlagged, perr = parseBoolParam(q.Get("is_flagged"))
	if perr != nil {
		utils.SendJSONError(w, "is_flagged must be true or false", http.StatusBadRequest)
		return
	}
	f.IsFraud, perr = parseBoolParam(q.Get("is_fraud"))
	if perr != nil {
		utils.SendJSONError(w, "is_fraud must be true or false", http.StatusBadRequest)
		return
	}
	f.MinRisk, perr = parseFloatParam(q.Get("min_risk"))
	if perr != nil {
		utils.SendJSONError(w, "min_risk must be a number", http.StatusBadRequest)
		return
	}
	f.MaxRisk, perr = parseFloatParam(q.Get("max_risk"))
	if perr != nil {
		utils.SendJSONError(w, "max_risk must be a number", http.StatusBadRequest)
		return
	}

	items, total, err := h.store.ListTransactions(f)
	if err != nil {
		logger.L.Error("Failed to list transactions", "error", err)
		utils.SendJSONError(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	pages := total / f.PageSize
	if total%f.PageSize != 0 {
		pages++
	}
	utils.SendJSON(w, PaginatedTransactions{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		Pages:    pages,
	}, http.StatusOK)
}

// GetTransaction returns one transaction by its txn_id.
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txnID := r.PathValue("txn_id")
	txn, err := h.store.GetTransaction(txnID)
	if errors.Is(err, database.ErrNotFound) {
		utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to load transaction", "txnID", txnID, "error", err)
		utils.SendJSONError(w, "Failed to load transaction", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, txn, http.StatusOK)
}

type transactionReason struct {
	TxnID      string              `json:"txn_id"`
	RiskScore  float64             `json:"risk_score"`
	FraudType  string              `json:"fraud_type,omitempty"`
	XAIReasons []models.XAIFeature `json:"xai_reasons"`
	Cached     bool                `json:"cached"`
}

// GetTransactionReason serves the XAI explanation for a stored transaction.
// Cached explanations answer without an upstream call; a miss asks the model
// and caches the answer for the next lookup.
func (h *TransactionHandler) GetTransactionReason(w http.ResponseWriter, r *http.Request) {
	txnID := r.PathValue("txn_id")
	txn, err := h.store.GetTransaction(txnID)
	if errors.Is(err, database.ErrNotFound) {
		utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to load transaction", "txnID", txnID, "error", err)
		utils.SendJSONError(w, "Failed to load transaction", http.StatusInternalServerError)
		return
	}

	reasons, cached := h.scorer.ExplainCached(txnID)
	if !cached {
		reasons = h.scorer.Explain(r.Context(), txn.SyntheticTransaction, txn.RiskScore)
	}
	if reasons == nil {
		reasons = []models.XAIFeature{}
	}
	utils.SendJSON(w, transactionReason{
		TxnID:      txn.TxnID,
		RiskScore:  txn.RiskScore,
		FraudType:  txn.FraudType,
		XAIReasons: reasons,
		Cached:     cached,
	}, http.StatusOK)
}

type reviewRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// ReviewTransaction records an analyst verdict. "pending" clears a previous
// verdict back to the unreviewed state.
func (h *TransactionHandler) ReviewTransaction(w http.ResponseWriter, r *http.Request) {
	txnID := r.PathValue("txn_id")

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case "confirmed_fraud", "false_positive", "pending":
	default:
		utils.SendJSONError(w, "status must be one of confirmed_fraud|false_positive|pending", http.StatusBadRequest)
		return
	}

	err := h.store.ReviewTransaction(txnID, req.Status, req.Note)
	if errors.Is(err, database.ErrNotFound) {
		utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to review transaction", "txnID", txnID, "error", err)
		utils.SendJSONError(w, "Failed to review transaction", http.StatusInternalServerError)
		return
	}

	txn, err := h.store.GetTransaction(txnID)
	if err != nil {
		logger.L.Error("Failed to reload reviewed transaction", "txnID", txnID, "error", err)
		utils.SendJSONError(w, "Failed to reload transaction", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, txn, http.StatusOK)
}

func parseBoolParam(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseFloatParam(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
