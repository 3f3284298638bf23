package handlers

import (
	"net/http"

	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
	"github.com/username/aegisnode/backend/src/services"
	"github.com/username/aegisnode/backend/src/utils"
)

type DashboardHandler struct {
	hub           *services.DashboardHub
	attackService *services.AttackService
	store         *database.Store
}

func NewDashboardHandler(hub *services.DashboardHub, attackService *services.AttackService, store *database.Store) *DashboardHandler {
	return &DashboardHandler{hub: hub, attackService: attackService, store: store}
}

// HandleDashboardSocket attaches a passive observer to the event stream. The
// subscriber gets the current stats snapshot on connect, then every event of
// every subsequent run. A reader goroutine detects client disconnects.
func (h *DashboardHandler) HandleDashboardSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade dashboard websocket", "error", err, "remoteAddr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	id, events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(id)
	logger.L.Info("Dashboard subscriber connected", "subscriberID", id, "remoteAddr", r.RemoteAddr)

	if err := conn.WriteJSON(models.SnapshotEvent{Stats: h.attackService.Stats()}); err != nil {
		return
	}

	// Clients never send meaningful frames; the read pump only surfaces
	// close and network errors.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.L.Debug("Dashboard socket write failed", "subscriberID", id, "error", err)
				return
			}
		case <-gone:
			logger.L.Info("Dashboard subscriber disconnected", "subscriberID", id)
			return
		}
	}
}

// GetStats returns the stats snapshot of the latest run.
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.attackService.Stats(), http.StatusOK)
}

// GetDashboardCounts returns persisted aggregate counters for the dashboard
// header.
func (h *DashboardHandler) GetDashboardCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.GetDashboardCounts()
	if err != nil {
		logger.L.Error("Failed to load dashboard counts", "error", err)
		utils.SendJSONError(w, "Failed to load dashboard counts", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, counts, http.StatusOK)
}
