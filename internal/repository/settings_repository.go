package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tradeengine/internal/models"
)

// ErrSettingsNotFound is returned when an update affects zero rows.
var ErrSettingsNotFound = errors.New("settings: not found")

const settingsRowID = 1

// SettingsRepository is the data access layer for the single global
// settings row: the consider-funding flag, the concurrency cap and
// notification preferences.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository builds a SettingsRepository over db.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func defaultNotificationPrefs() models.NotificationPreferences {
	return models.NotificationPreferences{
		Open:          true,
		Close:         true,
		StopLoss:      true,
		Liquidation:   true,
		APIError:      true,
		Margin:        true,
		Pause:         true,
		SecondLegFail: true,
	}
}

// Get returns the settings row, creating a default one if it doesn't exist.
func (r *SettingsRepository) Get() (*models.Settings, error) {
	row := r.db.QueryRow(`SELECT id, consider_funding, max_concurrent_trades, notification_prefs, updated_at FROM settings WHERE id = 1`)

	var s models.Settings
	var prefsJSON []byte
	err := row.Scan(&s.ID, &s.ConsiderFunding, &s.MaxConcurrentTrades, &prefsJSON, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.createDefault()
	}
	if err != nil {
		return nil, err
	}

	if len(prefsJSON) == 0 {
		s.NotificationPrefs = defaultNotificationPrefs()
	} else if err := json.Unmarshal(prefsJSON, &s.NotificationPrefs); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) createDefault() (*models.Settings, error) {
	prefs := defaultNotificationPrefs()
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = r.db.Exec(
		`INSERT INTO settings (consider_funding, max_concurrent_trades, notification_prefs, updated_at) VALUES ($1, $2, $3, $4)`,
		false, (*int)(nil), prefsJSON, now,
	)
	if err != nil {
		return nil, err
	}

	return &models.Settings{
		ID:                settingsRowID,
		ConsiderFunding:   false,
		NotificationPrefs: prefs,
		UpdatedAt:         now,
	}, nil
}

// Update writes every field of settings back to the row.
func (r *SettingsRepository) Update(s *models.Settings) error {
	prefsJSON, err := json.Marshal(s.NotificationPrefs)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(
		`UPDATE settings SET consider_funding = $1, max_concurrent_trades = $2, notification_prefs = $3, updated_at = $4 WHERE id = 1`,
		s.ConsiderFunding, s.MaxConcurrentTrades, prefsJSON, time.Now(),
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, ErrSettingsNotFound)
}

// UpdateNotificationPrefs replaces the notification preferences only.
func (r *SettingsRepository) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`UPDATE settings SET notification_prefs = $1, updated_at = $2 WHERE id = 1`, prefsJSON, time.Now())
	return err
}

// UpdateConsiderFunding toggles the funding-consideration flag.
func (r *SettingsRepository) UpdateConsiderFunding(consider bool) error {
	_, err := r.db.Exec(`UPDATE settings SET consider_funding = $1, updated_at = $2 WHERE id = 1`, consider, time.Now())
	return err
}

// UpdateMaxConcurrentTrades sets (or clears, when nil) the concurrency cap.
func (r *SettingsRepository) UpdateMaxConcurrentTrades(max *int) error {
	_, err := r.db.Exec(`UPDATE settings SET max_concurrent_trades = $1, updated_at = $2 WHERE id = 1`, max, time.Now())
	return err
}

// GetNotificationPrefs reads just the notification preferences, falling
// back to the default set if the row or the column is empty.
func (r *SettingsRepository) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	row := r.db.QueryRow(`SELECT notification_prefs FROM settings WHERE id = 1`)

	var prefsJSON []byte
	err := row.Scan(&prefsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		prefs := defaultNotificationPrefs()
		return &prefs, nil
	}
	if err != nil {
		return nil, err
	}
	if len(prefsJSON) == 0 {
		prefs := defaultNotificationPrefs()
		return &prefs, nil
	}

	var prefs models.NotificationPreferences
	if err := json.Unmarshal(prefsJSON, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// GetMaxConcurrentTrades reads just the concurrency cap.
func (r *SettingsRepository) GetMaxConcurrentTrades() (*int, error) {
	row := r.db.QueryRow(`SELECT max_concurrent_trades FROM settings WHERE id = 1`)

	var max *int
	err := row.Scan(&max)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return max, nil
}

// ResetToDefaults restores factory settings.
func (r *SettingsRepository) ResetToDefaults() error {
	prefsJSON, err := json.Marshal(defaultNotificationPrefs())
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`UPDATE settings SET consider_funding = $1, max_concurrent_trades = $2, notification_prefs = $3, updated_at = $4 WHERE id = 1`,
		false, (*int)(nil), prefsJSON, time.Now(),
	)
	return err
}

func checkRowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
