package handlers

import (
	"net/http"

	"github.com/username/aegisnode/backend/src/services"
	"github.com/username/aegisnode/backend/src/utils"
)

type SystemHandler struct {
	scorer services.Scorer
}

func NewSystemHandler(scorer services.Scorer) *SystemHandler {
	return &SystemHandler{scorer: scorer}
}

// HealthCheck is the liveness probe.
func (h *SystemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type modelStatusResponse struct {
	Status           string  `json:"status"`
	Mode             string  `json:"mode"`
	Threshold        float64 `json:"threshold"`
	Architecture     string  `json:"architecture,omitempty"`
	AegisAIReachable bool    `json:"aegis_ai_reachable"`
}

// GetModelStatus proxies the model service's self-description. An unreachable
// model service is reported, not treated as an error: scoring still works via
// the local fallback.
func (h *SystemHandler) GetModelStatus(w http.ResponseWriter, r *http.Request) {
	info, err := h.scorer.ModelInfo(r.Context())
	if err != nil {
		utils.SendJSON(w, modelStatusResponse{
			Status:           "unavailable",
			Mode:             "SIMULATION",
			Threshold:        services.DefaultThreshold,
			Architecture:     "HTGNN",
			AegisAIReachable: false,
		}, http.StatusOK)
		return
	}
	utils.SendJSON(w, modelStatusResponse{
		Status:           info.Status,
		Mode:             info.Mode,
		Threshold:        info.Threshold,
		Architecture:     info.Architecture,
		AegisAIReachable: true,
	}, http.StatusOK)
}
