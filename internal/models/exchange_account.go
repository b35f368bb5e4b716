package models

import "time"

// ExchangeAccount represents a broker connection: the opaque,
// encrypted-at-rest credential blob the Broker Adapter is handed at
// startup, plus the connection status and margin balance the admin
// surface displays. Only one row is expected in practice (a single
// primary broker per deployment), but the repository is not limited
// to that shape.
type ExchangeAccount struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"` // broker identifier, e.g. "zerodha"
	APIKey     string    `json:"-" db:"api_key"`
	SecretKey  string    `json:"-" db:"secret_key"`
	Passphrase string    `json:"-" db:"passphrase"`
	Connected  bool      `json:"connected" db:"connected"`
	Balance    float64   `json:"balance" db:"balance"` // available margin
	LastError  string    `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
