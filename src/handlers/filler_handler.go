package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/username/aegisnode/backend/src/models"
	"github.com/username/aegisnode/backend/src/services"
	"github.com/username/aegisnode/backend/src/utils"
)

type FillerHandler struct {
	fillerService *services.FillerService
}

func NewFillerHandler(fillerService *services.FillerService) *FillerHandler {
	return &FillerHandler{fillerService: fillerService}
}

// StartFiller launches the background filler. Omitted fields take the
// defaults below; an empty body starts the filler with all defaults.
func (h *FillerHandler) StartFiller(w http.ResponseWriter, r *http.Request) {
	cfg := models.FillerConfig{MinInterval: 2.0, MaxInterval: 5.0, FraudRatio: 0.08}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.fillerService.Start(cfg) {
		utils.SendJSON(w, map[string]interface{}{
			"started": false,
			"message": "Filler is already running. Stop it first.",
			"status":  h.fillerService.Status(),
		}, http.StatusOK)
		return
	}
	utils.SendJSON(w, map[string]interface{}{
		"started": true,
		"status":  h.fillerService.Status(),
	}, http.StatusOK)
}

// StopFiller stops the background filler and waits for the loop to exit.
func (h *FillerHandler) StopFiller(w http.ResponseWriter, r *http.Request) {
	if !h.fillerService.Stop() {
		utils.SendJSON(w, map[string]interface{}{
			"stopped": false,
			"message": "Filler is not running.",
			"status":  h.fillerService.Status(),
		}, http.StatusOK)
		return
	}
	utils.SendJSON(w, map[string]interface{}{
		"stopped": true,
		"status":  h.fillerService.Status(),
	}, http.StatusOK)
}

// GetFillerStatus reports the current filler state.
func (h *FillerHandler) GetFillerStatus(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.fillerService.Status(), http.StatusOK)
}
