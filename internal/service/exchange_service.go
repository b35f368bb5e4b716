package service

import (
	"context"
	"errors"

	"tradeengine/internal/broker"
	"tradeengine/internal/models"
	"tradeengine/internal/repository"
	"tradeengine/pkg/crypto"
)

// Errors returned by ExchangeService.
var (
	ErrBrokerAlreadyConnected = errors.New("broker is already connected")
	ErrBrokerNotConnected     = errors.New("broker is not connected")
	ErrInvalidCredentials     = errors.New("invalid API credentials")
	ErrConnectionFailed       = errors.New("failed to connect to broker")
)

// BalanceBroadcaster pushes margin-balance updates to connected UI
// clients; the real implementation is the WebSocket fan-out (out of
// scope here, injected as a narrow interface).
type BalanceBroadcaster interface {
	BroadcastBalanceUpdate(name string, balance float64)
}

// ExchangeService manages the broker connection record: encrypting and
// persisting credentials, validating connectivity against the Broker
// Adapter, and keeping the cached margin balance fresh. Only one
// broker account is expected in practice, but nothing here assumes it.
type ExchangeService struct {
	exchangeRepo  ExchangeRepositoryInterface
	encryptionKey []byte
	adapter       broker.Adapter

	wsHub BalanceBroadcaster
}

// NewExchangeService builds an ExchangeService. adapter is the process's
// single Broker Adapter instance, wired at startup.
func NewExchangeService(exchangeRepo ExchangeRepositoryInterface, adapter broker.Adapter, encryptionKey string) *ExchangeService {
	return &ExchangeService{
		exchangeRepo:  exchangeRepo,
		encryptionKey: []byte(encryptionKey),
		adapter:       adapter,
	}
}

// SetWebSocketHub installs the balance broadcaster, wired after the
// WebSocket hub is constructed in main.
func (s *ExchangeService) SetWebSocketHub(hub BalanceBroadcaster) {
	s.wsHub = hub
}

// Connect validates apiKey/secretKey/passphrase against the broker,
// encrypts them at rest, and persists (or updates) the account record.
func (s *ExchangeService) Connect(ctx context.Context, name, apiKey, secretKey, passphrase string) error {
	existing, err := s.exchangeRepo.GetByName(name)
	if err != nil && !errors.Is(err, repository.ErrExchangeNotFound) {
		return err
	}
	if existing != nil && existing.Connected {
		return ErrBrokerAlreadyConnected
	}

	if err := s.adapter.Connect(ctx, apiKey, secretKey, passphrase); err != nil {
		return errors.Join(ErrInvalidCredentials, err)
	}

	profile, err := s.adapter.Profile(ctx)
	if err != nil {
		_ = s.adapter.Close()
		return errors.Join(ErrConnectionFailed, err)
	}

	encAPIKey, err := crypto.Encrypt(apiKey, s.encryptionKey)
	if err != nil {
		return err
	}
	encSecretKey, err := crypto.Encrypt(secretKey, s.encryptionKey)
	if err != nil {
		return err
	}
	var encPassphrase string
	if passphrase != "" {
		encPassphrase, err = crypto.Encrypt(passphrase, s.encryptionKey)
		if err != nil {
			return err
		}
	}

	if existing != nil {
		existing.APIKey = encAPIKey
		existing.SecretKey = encSecretKey
		existing.Passphrase = encPassphrase
		existing.Connected = true
		existing.Balance = profile.AvailableMargin
		existing.LastError = ""
		if err := s.exchangeRepo.Update(existing); err != nil {
			return err
		}
	} else {
		account := &models.ExchangeAccount{
			Name:       name,
			APIKey:     encAPIKey,
			SecretKey:  encSecretKey,
			Passphrase: encPassphrase,
			Connected:  true,
			Balance:    profile.AvailableMargin,
		}
		if err := s.exchangeRepo.Create(account); err != nil {
			return err
		}
	}

	return nil
}

// Disconnect tears down the broker session and clears stored
// credentials, balance and last error, leaving only the account's name
// and timestamps.
func (s *ExchangeService) Disconnect(ctx context.Context) error {
	account, err := s.primaryAccount()
	if err != nil {
		return err
	}
	if !account.Connected {
		return ErrBrokerNotConnected
	}

	_ = s.adapter.Close()

	account.Connected = false
	account.APIKey = ""
	account.SecretKey = ""
	account.Passphrase = ""
	account.Balance = 0
	account.LastError = ""
	return s.exchangeRepo.Update(account)
}

// RefreshBalance re-fetches the margin balance from the broker,
// persists it, and broadcasts it to connected UI clients.
func (s *ExchangeService) RefreshBalance(ctx context.Context) (float64, error) {
	account, err := s.primaryAccount()
	if err != nil {
		return 0, err
	}
	if !account.Connected {
		return 0, ErrBrokerNotConnected
	}

	profile, err := s.adapter.Profile(ctx)
	if err != nil {
		_ = s.exchangeRepo.SetLastError(account.ID, err.Error())
		return 0, err
	}

	if err := s.exchangeRepo.UpdateBalance(account.ID, profile.AvailableMargin); err != nil {
		return profile.AvailableMargin, err
	}
	if account.LastError != "" {
		_ = s.exchangeRepo.SetLastError(account.ID, "")
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastBalanceUpdate(account.Name, profile.AvailableMargin)
	}
	return profile.AvailableMargin, nil
}

// GetAccount returns the broker account record with credentials
// stripped, or repository.ErrExchangeNotFound if none exists.
func (s *ExchangeService) GetAccount() (*models.ExchangeAccount, error) {
	account, err := s.primaryAccount()
	if err != nil {
		return nil, err
	}
	return safeCopy(account), nil
}

// IsConnected reports whether the broker account is currently marked
// connected.
func (s *ExchangeService) IsConnected() (bool, error) {
	account, err := s.primaryAccount()
	if errors.Is(err, repository.ErrExchangeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return account.Connected, nil
}

// primaryAccount returns the sole broker account row, since this
// deployment connects to exactly one broker.
func (s *ExchangeService) primaryAccount() (*models.ExchangeAccount, error) {
	accounts, err := s.exchangeRepo.GetAll()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, repository.ErrExchangeNotFound
	}
	return accounts[0], nil
}

func safeCopy(a *models.ExchangeAccount) *models.ExchangeAccount {
	return &models.ExchangeAccount{
		ID:        a.ID,
		Name:      a.Name,
		Connected: a.Connected,
		Balance:   a.Balance,
		LastError: a.LastError,
		UpdatedAt: a.UpdatedAt,
		CreatedAt: a.CreatedAt,
	}
}

// Close releases the broker session, called during graceful shutdown.
func (s *ExchangeService) Close() error {
	if s.adapter == nil {
		return nil
	}
	return s.adapter.Close()
}
