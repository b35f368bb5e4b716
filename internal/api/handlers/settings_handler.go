package handlers

import (
	"errors"
	"net/http"

	"tradeengine/internal/service"
)

// SettingsHandler manages the engine's global admin-configurable
// settings.
//
// Endpoints:
// - GET /api/v1/settings
// - PATCH /api/v1/settings
//
// Settings cover:
// - max_concurrent_trades: cap on simultaneously open positions (null = unlimited)
// - consider_funding: reserved for a future funding-aware sizing feature
// - notification_prefs: which event types surface on the notification channel
type SettingsHandler struct {
	settingsService service.SettingsServiceInterface
}

// NewSettingsHandler wires a SettingsHandler to its service dependency.
func NewSettingsHandler(settingsService service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// GetSettings returns the current global settings.
//
// GET /api/v1/settings
//
// Response 200 OK:
//
//	{
//	  "id": 1,
//	  "consider_funding": false,
//	  "max_concurrent_trades": null,
//	  "notification_prefs": {
//	    "open": true,
//	    "close": true,
//	    "stop_loss": true,
//	    "liquidation": true,
//	    "api_error": true,
//	    "margin": true,
//	    "pause": true,
//	    "second_leg_fail": true
//	  },
//	  "updated_at": "2025-12-01T12:00:00Z"
//	}
//
// Response 500 Internal Server Error:
//
//	{"error": "failed to get settings", "details": "..."}
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.settingsService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "settings service not initialized",
		})
		return
	}

	settings, err := h.settingsService.GetSettings()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get settings",
			"details": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(settings)
}

// UpdateSettingsRequest is the request body for a settings update.
// Every field is optional; only the fields present are applied.
type UpdateSettingsRequest struct {
	ConsiderFunding          *bool                    `json:"consider_funding,omitempty"`
	MaxConcurrentTrades      *int                     `json:"max_concurrent_trades,omitempty"`
	NotificationPrefs        *NotificationPrefsUpdate `json:"notification_prefs,omitempty"`
	ClearMaxConcurrentTrades *bool                    `json:"clear_max_concurrent_trades,omitempty"`
}

// NotificationPrefsUpdate is a partial update over NotificationPreferences.
type NotificationPrefsUpdate struct {
	Open          *bool `json:"open,omitempty"`
	Close         *bool `json:"close,omitempty"`
	StopLoss      *bool `json:"stop_loss,omitempty"`
	Liquidation   *bool `json:"liquidation,omitempty"`
	APIError      *bool `json:"api_error,omitempty"`
	Margin        *bool `json:"margin,omitempty"`
	Pause         *bool `json:"pause,omitempty"`
	SecondLegFail *bool `json:"second_leg_fail,omitempty"`
}

// UpdateSettings applies a partial update to the global settings.
//
// PATCH /api/v1/settings
//
// Request Body (every field optional):
//
//	{
//	  "consider_funding": true,
//	  "max_concurrent_trades": 5,
//	  "notification_prefs": {
//	    "open": true,
//	    "close": false
//	  },
//	  "clear_max_concurrent_trades": false
//	}
//
// Notes:
// - Only fields present in the body are applied
// - To reset max_concurrent_trades to null, send "clear_max_concurrent_trades": true
// - notification_prefs supports a partial update (only the listed types change)
//
// Response 200 OK:
//
//	{
//	  "id": 1,
//	  "consider_funding": true,
//	  "max_concurrent_trades": 5,
//	  "notification_prefs": { ... },
//	  "updated_at": "2025-12-01T12:30:00Z"
//	}
//
// Response 400 Bad Request:
//
//	{"error": "invalid request body", "details": "..."}
//	{"error": "validation error", "details": "max_concurrent_trades must be >= 1 or null"}
//
// Response 500 Internal Server Error:
//
//	{"error": "failed to update settings", "details": "..."}
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.settingsService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "settings service not initialized",
		})
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.ConsiderFunding == nil &&
		req.MaxConcurrentTrades == nil &&
		req.NotificationPrefs == nil &&
		(req.ClearMaxConcurrentTrades == nil || !*req.ClearMaxConcurrentTrades) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "no fields to update",
			"details": "at least one field must be provided",
		})
		return
	}

	currentSettings, err := h.settingsService.GetSettings()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get current settings",
			"details": err.Error(),
		})
		return
	}

	updateReq := &service.UpdateSettingsRequest{
		ConsiderFunding:     req.ConsiderFunding,
		MaxConcurrentTrades: req.MaxConcurrentTrades,
	}

	if req.ClearMaxConcurrentTrades != nil && *req.ClearMaxConcurrentTrades {
		updateReq.ClearMaxConcurrentTrades = true
	}

	if req.NotificationPrefs != nil {
		prefs := currentSettings.NotificationPrefs

		if req.NotificationPrefs.Open != nil {
			prefs.Open = *req.NotificationPrefs.Open
		}
		if req.NotificationPrefs.Close != nil {
			prefs.Close = *req.NotificationPrefs.Close
		}
		if req.NotificationPrefs.StopLoss != nil {
			prefs.StopLoss = *req.NotificationPrefs.StopLoss
		}
		if req.NotificationPrefs.Liquidation != nil {
			prefs.Liquidation = *req.NotificationPrefs.Liquidation
		}
		if req.NotificationPrefs.APIError != nil {
			prefs.APIError = *req.NotificationPrefs.APIError
		}
		if req.NotificationPrefs.Margin != nil {
			prefs.Margin = *req.NotificationPrefs.Margin
		}
		if req.NotificationPrefs.Pause != nil {
			prefs.Pause = *req.NotificationPrefs.Pause
		}
		if req.NotificationPrefs.SecondLegFail != nil {
			prefs.SecondLegFail = *req.NotificationPrefs.SecondLegFail
		}

		updateReq.NotificationPrefs = &prefs
	}

	updatedSettings, err := h.settingsService.UpdateSettings(updateReq)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMaxConcurrentTrades) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "validation error",
				"details": err.Error(),
			})
			return
		}

		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to update settings",
			"details": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(updatedSettings)
}
