package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"tradeengine/internal/models"
)

// ErrExchangeExists is returned by Create when the broker name is already
// registered.
var ErrExchangeExists = errors.New("exchange account: already exists")

// ErrExchangeNotFound is returned when a lookup, update or delete
// addresses a row that doesn't exist.
var ErrExchangeNotFound = errors.New("exchange account: not found")

// ExchangeRepository is the data access layer for broker connection
// records: credential blobs, connection status and margin balance.
type ExchangeRepository struct {
	db *sql.DB
}

// NewExchangeRepository builds an ExchangeRepository over db.
func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// Create inserts a new broker account and sets its generated ID.
func (r *ExchangeRepository) Create(a *models.ExchangeAccount) error {
	now := time.Now()
	row := r.db.QueryRow(
		`INSERT INTO exchanges (name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		a.Name, a.APIKey, a.SecretKey, a.Passphrase, a.Connected, a.Balance, a.LastError, now, now,
	)

	var id int
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return ErrExchangeExists
		}
		return err
	}

	a.ID = id
	a.UpdatedAt = now
	a.CreatedAt = now
	return nil
}

func (r *ExchangeRepository) scanRow(row *sql.Row) (*models.ExchangeAccount, error) {
	var a models.ExchangeAccount
	err := row.Scan(&a.ID, &a.Name, &a.APIKey, &a.SecretKey, &a.Passphrase, &a.Connected, &a.Balance, &a.LastError, &a.UpdatedAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExchangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID fetches a broker account by its primary key.
func (r *ExchangeRepository) GetByID(id int) (*models.ExchangeAccount, error) {
	row := r.db.QueryRow(
		`SELECT id, name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at FROM exchanges WHERE id = $1`,
		id,
	)
	return r.scanRow(row)
}

// GetByName fetches a broker account by its name.
func (r *ExchangeRepository) GetByName(name string) (*models.ExchangeAccount, error) {
	row := r.db.QueryRow(
		`SELECT id, name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at FROM exchanges WHERE name = $1`,
		name,
	)
	return r.scanRow(row)
}

func (r *ExchangeRepository) queryAccounts(query string, args ...interface{}) ([]*models.ExchangeAccount, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*models.ExchangeAccount, 0)
	for rows.Next() {
		var a models.ExchangeAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.APIKey, &a.SecretKey, &a.Passphrase, &a.Connected, &a.Balance, &a.LastError, &a.UpdatedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAll returns every broker account, ordered by name.
func (r *ExchangeRepository) GetAll() ([]*models.ExchangeAccount, error) {
	return r.queryAccounts(`SELECT id, name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at FROM exchanges ORDER BY name`)
}

// GetConnected returns broker accounts currently marked connected.
func (r *ExchangeRepository) GetConnected() ([]*models.ExchangeAccount, error) {
	return r.queryAccounts(`SELECT id, name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at FROM exchanges WHERE connected = true ORDER BY name`)
}

// Update overwrites every mutable field of the account identified by a.ID.
func (r *ExchangeRepository) Update(a *models.ExchangeAccount) error {
	res, err := r.db.Exec(
		`UPDATE exchanges SET api_key = $1, secret_key = $2, passphrase = $3, connected = $4, balance = $5, last_error = $6, updated_at = $7 WHERE id = $8`,
		a.APIKey, a.SecretKey, a.Passphrase, a.Connected, a.Balance, a.LastError, time.Now(), a.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, ErrExchangeNotFound)
}

// Delete removes a broker account by ID.
func (r *ExchangeRepository) Delete(id int) error {
	res, err := r.db.Exec(`DELETE FROM exchanges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, ErrExchangeNotFound)
}

// DeleteByName removes a broker account by name.
func (r *ExchangeRepository) DeleteByName(name string) error {
	res, err := r.db.Exec(`DELETE FROM exchanges WHERE name = $1`, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, ErrExchangeNotFound)
}

// UpdateBalance sets the margin balance for the account identified by id.
func (r *ExchangeRepository) UpdateBalance(id int, balance float64) error {
	res, err := r.db.Exec(`UPDATE exchanges SET balance = $1, updated_at = $2 WHERE id = $3`, balance, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, ErrExchangeNotFound)
}

// UpdateBalanceByName sets the margin balance for the account by name.
func (r *ExchangeRepository) UpdateBalanceByName(name string, balance float64) error {
	_, err := r.db.Exec(`UPDATE exchanges SET balance = $1, updated_at = $2 WHERE name = $3`, balance, time.Now(), name)
	return err
}

// SetConnected flips the connection-status flag.
func (r *ExchangeRepository) SetConnected(id int, connected bool) error {
	res, err := r.db.Exec(`UPDATE exchanges SET connected = $1, updated_at = $2 WHERE id = $3`, connected, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, ErrExchangeNotFound)
}

// SetLastError records the most recent broker-side error string.
func (r *ExchangeRepository) SetLastError(id int, lastError string) error {
	_, err := r.db.Exec(`UPDATE exchanges SET last_error = $1, updated_at = $2 WHERE id = $3`, lastError, time.Now(), id)
	return err
}

// CountConnected returns the number of accounts currently connected.
func (r *ExchangeRepository) CountConnected() (int, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM exchanges WHERE connected = true`)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// isUniqueViolation reports whether err looks like a unique-constraint
// violation, covering both the driver-agnostic message text and
// postgres's SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
