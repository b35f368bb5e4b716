package service

import (
	"errors"

	"tradeengine/internal/models"
	"tradeengine/internal/repository"
)

// ErrInvalidMaxConcurrentTrades is returned when max_concurrent_trades is
// set to a value below 1.
var ErrInvalidMaxConcurrentTrades = errors.New("max_concurrent_trades must be >= 1 or null")

// SettingsService is the business logic layer over the global,
// admin-configurable engine settings: notification preferences, the
// global concurrent-trade cap, and funding consideration.
type SettingsService struct {
	settingsRepo *repository.SettingsRepository
}

// NewSettingsService builds a SettingsService.
func NewSettingsService(settingsRepo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo}
}

// GetSettings returns the current settings, creating a default row if
// none exists.
func (s *SettingsService) GetSettings() (*models.Settings, error) {
	return s.settingsRepo.Get()
}

// UpdateSettingsRequest is a partial update: only non-nil fields change.
type UpdateSettingsRequest struct {
	ConsiderFunding     *bool                            `json:"consider_funding,omitempty"`
	MaxConcurrentTrades *int                             `json:"max_concurrent_trades,omitempty"`
	NotificationPrefs   *models.NotificationPreferences `json:"notification_prefs,omitempty"`
	// ClearMaxConcurrentTrades explicitly resets the cap to nil (unlimited).
	ClearMaxConcurrentTrades bool `json:"clear_max_concurrent_trades,omitempty"`
}

// UpdateSettings applies req's non-nil fields on top of the current
// settings and persists the result.
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error) {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return nil, err
	}

	if req.ConsiderFunding != nil {
		settings.ConsiderFunding = *req.ConsiderFunding
	}

	if req.ClearMaxConcurrentTrades {
		settings.MaxConcurrentTrades = nil
	} else if req.MaxConcurrentTrades != nil {
		if *req.MaxConcurrentTrades < 1 {
			return nil, ErrInvalidMaxConcurrentTrades
		}
		settings.MaxConcurrentTrades = req.MaxConcurrentTrades
	}

	if req.NotificationPrefs != nil {
		settings.NotificationPrefs = *req.NotificationPrefs
	}

	if err := s.settingsRepo.Update(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateNotificationPrefs replaces the notification preferences.
func (s *SettingsService) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	return s.settingsRepo.UpdateNotificationPrefs(prefs)
}

// UpdateMaxConcurrentTrades sets the global concurrent-trade cap.
// Pass nil to remove the limit; a non-nil value must be >= 1.
func (s *SettingsService) UpdateMaxConcurrentTrades(maxTrades *int) error {
	if maxTrades != nil && *maxTrades < 1 {
		return ErrInvalidMaxConcurrentTrades
	}
	return s.settingsRepo.UpdateMaxConcurrentTrades(maxTrades)
}

// UpdateConsiderFunding toggles whether funding cost is considered.
func (s *SettingsService) UpdateConsiderFunding(consider bool) error {
	return s.settingsRepo.UpdateConsiderFunding(consider)
}

// GetNotificationPrefs returns only the notification preferences.
func (s *SettingsService) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	return s.settingsRepo.GetNotificationPrefs()
}

// GetMaxConcurrentTrades returns the current cap, or nil if unlimited.
func (s *SettingsService) GetMaxConcurrentTrades() (*int, error) {
	return s.settingsRepo.GetMaxConcurrentTrades()
}

// ResetToDefaults restores every setting to its default value.
func (s *SettingsService) ResetToDefaults() error {
	return s.settingsRepo.ResetToDefaults()
}
