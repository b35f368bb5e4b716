package handlers

import (
	"errors"
	"sync"
	"time"

	"tradeengine/internal/models"
	"tradeengine/internal/service"
)

// ErrMockDatabase is injected by tests to simulate a repository-layer
// failure bubbling up through a service call.
var ErrMockDatabase = errors.New("mock database error")

// MockSettingsService is a hand-rolled SettingsServiceInterface double
// for handler tests, avoiding a real repository/database.
type MockSettingsService struct {
	settings  *models.Settings
	getErr    error
	updateErr error
	mu        sync.RWMutex
}

// NewMockSettingsService returns a double seeded with default settings
// (all notification preferences enabled).
func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{
		settings: &models.Settings{
			ID:              1,
			ConsiderFunding: false,
			NotificationPrefs: models.NotificationPreferences{
				Open:          true,
				Close:         true,
				StopLoss:      true,
				Liquidation:   true,
				APIError:      true,
				Margin:        true,
				Pause:         true,
				SecondLegFail: true,
			},
			UpdatedAt: time.Now(),
		},
	}
}

func (m *MockSettingsService) GetSettings() (*models.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings, nil
}

func (m *MockSettingsService) UpdateSettings(req *service.UpdateSettingsRequest) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}

	if req.ConsiderFunding != nil {
		m.settings.ConsiderFunding = *req.ConsiderFunding
	}
	if req.MaxConcurrentTrades != nil {
		m.settings.MaxConcurrentTrades = req.MaxConcurrentTrades
	}
	if req.ClearMaxConcurrentTrades {
		m.settings.MaxConcurrentTrades = nil
	}
	if req.NotificationPrefs != nil {
		m.settings.NotificationPrefs = *req.NotificationPrefs
	}
	m.settings.UpdatedAt = time.Now()

	return m.settings, nil
}

func (m *MockSettingsService) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.NotificationPrefs = prefs
	return nil
}

func (m *MockSettingsService) UpdateMaxConcurrentTrades(maxTrades *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.MaxConcurrentTrades = maxTrades
	return nil
}

func (m *MockSettingsService) UpdateConsiderFunding(consider bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.ConsiderFunding = consider
	return nil
}

func (m *MockSettingsService) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return &m.settings.NotificationPrefs, nil
}

func (m *MockSettingsService) GetMaxConcurrentTrades() (*int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings.MaxConcurrentTrades, nil
}

func (m *MockSettingsService) ResetToDefaults() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	m.settings = &models.Settings{
		ID:              1,
		ConsiderFunding: false,
		NotificationPrefs: models.NotificationPreferences{
			Open:          true,
			Close:         true,
			StopLoss:      true,
			Liquidation:   true,
			APIError:      true,
			Margin:        true,
			Pause:         true,
			SecondLegFail: true,
		},
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *MockSettingsService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "get":
		m.getErr = err
	case "update":
		m.updateErr = err
	}
}

var _ service.SettingsServiceInterface = (*MockSettingsService)(nil)
