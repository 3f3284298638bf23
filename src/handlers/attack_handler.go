package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/username/aegisnode/backend/src/config"
	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
	"github.com/username/aegisnode/backend/src/services"
	"github.com/username/aegisnode/backend/src/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == config.Cfg.AllowedOrigin
	},
}

type AttackHandler struct {
	attackService *services.AttackService
	store         *database.Store
}

func NewAttackHandler(attackService *services.AttackService, store *database.Store) *AttackHandler {
	return &AttackHandler{attackService: attackService, store: store}
}

// HandleAttackSocket drives one simulation over a WebSocket. The client's
// first message is the attack config; every pipeline event is written back
// as a JSON text frame. The connection closes when the run ends.
func (h *AttackHandler) HandleAttackSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade attack websocket", "error", err, "remoteAddr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	var cfg models.AttackConfig
	if err := conn.ReadJSON(&cfg); err != nil {
		logger.L.Warn("Invalid attack config frame", "error", err, "remoteAddr", r.RemoteAddr)
		conn.WriteJSON(models.ErrorEvent{Text: "invalid config payload"})
		return
	}

	send := func(ev models.Event) {
		if err := conn.WriteJSON(ev); err != nil {
			logger.L.Debug("Attack socket write failed, client likely gone", "error", err)
		}
	}

	if err := h.attackService.Run(r.Context(), cfg, send); err != nil {
		logger.L.Warn("Attack run over websocket ended with error", "error", err)
	}
}

type attackRunResult struct {
	Stats             *models.StatsSnapshot      `json:"stats"`
	Transactions      []models.ScoredTransaction `json:"transactions"`
	TotalTransactions int                        `json:"total_transactions"`
}

// StartAttack runs a full simulation synchronously and returns the final
// stats plus every scored transaction. Delays are skipped regardless of the
// requested speed.
func (h *AttackHandler) StartAttack(w http.ResponseWriter, r *http.Request) {
	var cfg models.AttackConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cfg.Speed = models.SpeedInstant
	if err := cfg.Validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := attackRunResult{Transactions: []models.ScoredTransaction{}}
	collect := func(ev models.Event) {
		switch e := ev.(type) {
		case models.TransactionEvent:
			result.Transactions = append(result.Transactions, e.Txn)
		case models.AttackEndEvent:
			result.Stats = &e.Stats
		}
	}

	// The config was validated above, so any remaining run error is a
	// server-side fault, not a bad request.
	if err := h.attackService.Run(r.Context(), cfg, collect); err != nil {
		if errors.Is(err, services.ErrRunActive) {
			utils.SendJSONError(w, "Attack already running!", http.StatusConflict)
			return
		}
		logger.L.Error("Attack run over REST failed", "error", err)
		utils.SendJSONError(w, "Attack run failed", http.StatusInternalServerError)
		return
	}

	result.TotalTransactions = len(result.Transactions)
	utils.SendJSON(w, result, http.StatusOK)
}

// ListAttackHistory returns past runs, newest first.
func (h *AttackHandler) ListAttackHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			utils.SendJSONError(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = v
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
	default:
		utils.SendJSONError(w, "Invalid status filter", http.StatusBadRequest)
		return
	}

	runs, err := h.store.ListAttackRuns(limit, status)
	if err != nil {
		logger.L.Error("Failed to list attack runs", "error", err)
		utils.SendJSONError(w, "Failed to list attack runs", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, runs, http.StatusOK)
}
