package models

import "time"

// Settings holds the global admin-configurable knobs for the engine.
// There is always exactly one row (id=1).
type Settings struct {
	ID                  int                     `json:"id" db:"id"`
	ConsiderFunding     bool                    `json:"consider_funding" db:"consider_funding"`
	MaxConcurrentTrades *int                    `json:"max_concurrent_trades" db:"max_concurrent_trades"` // nil = unlimited
	NotificationPrefs   NotificationPreferences `json:"notification_prefs" db:"notification_prefs"`       // stored as JSON
	UpdatedAt           time.Time               `json:"updated_at" db:"updated_at"`
}

// NotificationPreferences controls which observability events get surfaced
// to the admin-facing notification channel.
type NotificationPreferences struct {
	Open          bool `json:"open"`
	Close         bool `json:"close"`
	StopLoss      bool `json:"stop_loss"`
	Liquidation   bool `json:"liquidation"`
	APIError      bool `json:"api_error"`
	Margin        bool `json:"margin"`
	Pause         bool `json:"pause"`
	SecondLegFail bool `json:"second_leg_fail"`
}
