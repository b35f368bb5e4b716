package service

import (
	"time"

	"tradeengine/internal/models"
	"tradeengine/internal/repository"
)

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	settings  *models.Settings
	getErr    error
	updateErr error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		settings: &models.Settings{
			ID:                  1,
			ConsiderFunding:     false,
			MaxConcurrentTrades: nil,
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

func (m *MockSettingsRepository) Get() (*models.Settings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings, nil
}

func (m *MockSettingsRepository) Update(settings *models.Settings) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings = settings
	m.settings.UpdatedAt = time.Now()
	return nil
}

func (m *MockSettingsRepository) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.NotificationPrefs = prefs
	m.settings.UpdatedAt = time.Now()
	return nil
}

func (m *MockSettingsRepository) UpdateConsiderFunding(consider bool) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.ConsiderFunding = consider
	m.settings.UpdatedAt = time.Now()
	return nil
}

func (m *MockSettingsRepository) UpdateMaxConcurrentTrades(maxTrades *int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.settings.MaxConcurrentTrades = maxTrades
	m.settings.UpdatedAt = time.Now()
	return nil
}

func (m *MockSettingsRepository) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &m.settings.NotificationPrefs, nil
}

func (m *MockSettingsRepository) GetMaxConcurrentTrades() (*int, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings.MaxConcurrentTrades, nil
}

func (m *MockSettingsRepository) ResetToDefaults() error {
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

// ============ Mock ExchangeRepository ============

type MockExchangeRepository struct {
	accounts  map[string]*models.ExchangeAccount
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	nextID    int
}

func NewMockExchangeRepository() *MockExchangeRepository {
	return &MockExchangeRepository{
		accounts: make(map[string]*models.ExchangeAccount),
		nextID:   1,
	}
}

func (m *MockExchangeRepository) Create(account *models.ExchangeAccount) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.accounts[account.Name]; exists {
		return repository.ErrExchangeExists
	}
	account.ID = m.nextID
	m.nextID++
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	m.accounts[account.Name] = account
	return nil
}

func (m *MockExchangeRepository) GetByName(name string) (*models.ExchangeAccount, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if account, exists := m.accounts[name]; exists {
		return account, nil
	}
	return nil, repository.ErrExchangeNotFound
}

func (m *MockExchangeRepository) GetByID(id int) (*models.ExchangeAccount, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, account := range m.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, repository.ErrExchangeNotFound
}

func (m *MockExchangeRepository) GetAll() ([]*models.ExchangeAccount, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.ExchangeAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		result = append(result, a)
	}
	return result, nil
}

func (m *MockExchangeRepository) GetConnected() ([]*models.ExchangeAccount, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.ExchangeAccount
	for _, a := range m.accounts {
		if a.Connected {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockExchangeRepository) Update(account *models.ExchangeAccount) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.accounts[account.Name]; !exists {
		return repository.ErrExchangeNotFound
	}
	account.UpdatedAt = time.Now()
	m.accounts[account.Name] = account
	return nil
}

func (m *MockExchangeRepository) Delete(id int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for name, account := range m.accounts {
		if account.ID == id {
			delete(m.accounts, name)
			return nil
		}
	}
	return repository.ErrExchangeNotFound
}

func (m *MockExchangeRepository) UpdateBalance(id int, balance float64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, account := range m.accounts {
		if account.ID == id {
			account.Balance = balance
			account.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrExchangeNotFound
}

func (m *MockExchangeRepository) SetLastError(id int, errMsg string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, account := range m.accounts {
		if account.ID == id {
			account.LastError = errMsg
			account.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrExchangeNotFound
}

func (m *MockExchangeRepository) CountConnected() (int, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	count := 0
	for _, a := range m.accounts {
		if a.Connected {
			count++
		}
	}
	return count, nil
}
