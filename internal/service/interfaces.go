package service

import (
	"tradeengine/internal/models"
	"tradeengine/internal/repository"
)

// SettingsRepositoryInterface is the settings data-access surface,
// narrow enough to fake in tests. SettingsService itself holds the
// concrete *repository.SettingsRepository.
type SettingsRepositoryInterface interface {
	Get() (*models.Settings, error)
	Update(settings *models.Settings) error
	UpdateNotificationPrefs(prefs models.NotificationPreferences) error
	UpdateConsiderFunding(consider bool) error
	UpdateMaxConcurrentTrades(maxTrades *int) error
	GetNotificationPrefs() (*models.NotificationPreferences, error)
	GetMaxConcurrentTrades() (*int, error)
	ResetToDefaults() error
}

// ExchangeRepositoryInterface is the data-access surface ExchangeService
// depends on for the broker connection record.
type ExchangeRepositoryInterface interface {
	Create(account *models.ExchangeAccount) error
	GetByName(name string) (*models.ExchangeAccount, error)
	GetByID(id int) (*models.ExchangeAccount, error)
	GetAll() ([]*models.ExchangeAccount, error)
	GetConnected() ([]*models.ExchangeAccount, error)
	Update(account *models.ExchangeAccount) error
	Delete(id int) error
	UpdateBalance(id int, balance float64) error
	SetLastError(id int, errMsg string) error
	CountConnected() (int, error)
}

var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)
var _ ExchangeRepositoryInterface = (*repository.ExchangeRepository)(nil)

// SettingsServiceInterface is the surface SettingsHandler depends on, so
// it can be faked in handler tests without a real repository.
type SettingsServiceInterface interface {
	GetSettings() (*models.Settings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error)
	UpdateNotificationPrefs(prefs models.NotificationPreferences) error
	UpdateMaxConcurrentTrades(maxTrades *int) error
	UpdateConsiderFunding(consider bool) error
	GetNotificationPrefs() (*models.NotificationPreferences, error)
	GetMaxConcurrentTrades() (*int, error)
	ResetToDefaults() error
}

var _ SettingsServiceInterface = (*SettingsService)(nil)
