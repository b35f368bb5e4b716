package handlers

import (
	"context"
	"net/http"

	"tradeengine/internal/bot"
	"tradeengine/internal/models"
)

// AdminEngine is the surface AdminHandler depends on (§6, CLI/admin
// surface: toggle kill, trigger bulk exit, save/list/delete alert
// configs, reconciliation).
type AdminEngine interface {
	SetKillSwitch(ctx context.Context, enabled bool) error
	IsKillSwitch(ctx context.Context) (bool, error)
	TriggerBulkSquareOff(ctx context.Context)
	SaveAlertConfig(ctx context.Context, name string, cfg *models.AlertConfig) error
	ListAlertConfigs(ctx context.Context) (map[string]*models.AlertConfig, error)
	DeleteAlertConfig(ctx context.Context, name string) error
	Reconcile(ctx context.Context) ([]bot.Drift, error)
}

// AdminHandler exposes the minimal operator surface: kill switch,
// bulk square-off, and alert config CRUD. Every route here sits behind
// middleware.NewAdminAuth.
type AdminHandler struct {
	engine AdminEngine
}

func NewAdminHandler(engine AdminEngine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

type killSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

type killSwitchResponse struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminHandler) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.engine.IsKillSwitch(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, killSwitchResponse{Enabled: enabled})
}

func (h *AdminHandler) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.engine.SetKillSwitch(r.Context(), req.Enabled); err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, killSwitchResponse{Enabled: req.Enabled})
}

// BulkSquareOff triggers an immediate end-of-day-style square-off of
// every open position (§4.7 Bulk square-off), asynchronously.
func (h *AdminHandler) BulkSquareOff(w http.ResponseWriter, r *http.Request) {
	go h.engine.TriggerBulkSquareOff(context.Background())
	respondJSON(w, http.StatusAccepted, SuccessResponse{Message: "bulk square-off triggered"})
}

type alertConfigRequest struct {
	Name   string              `json:"name"`
	Config *models.AlertConfig `json:"config"`
}

func (h *AdminHandler) ListAlertConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.engine.ListAlertConfigs(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (h *AdminHandler) SaveAlertConfig(w http.ResponseWriter, r *http.Request) {
	var req alertConfigRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Config == nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.engine.SaveAlertConfig(r.Context(), req.Name, req.Config); err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "alert config saved"})
}

func (h *AdminHandler) DeleteAlertConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "name is required"})
		return
	}
	if err := h.engine.DeleteAlertConfig(r.Context(), name); err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "alert config deleted"})
}

// Reconcile runs the read-only store-vs-broker drift check and
// returns every mismatch found; an empty list means no drift.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.engine.Reconcile(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, drifts)
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
