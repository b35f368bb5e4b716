package models

import "time"

// Notification is an observability event surfaced to the admin-facing
// notification channel, gated by Settings.NotificationPrefs.
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`
	Severity  string                 `json:"severity" db:"severity"`
	TradeID   string                 `json:"trade_id,omitempty" db:"trade_id"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"`
}

// Notification types, one per NotificationPreferences field.
const (
	NotificationTypeOpen          = "OPEN"
	NotificationTypeClose         = "CLOSE"
	NotificationTypeStopLoss      = "STOP_LOSS"
	NotificationTypeLiquidation   = "LIQUIDATION"
	NotificationTypeAPIError      = "API_ERROR"
	NotificationTypeMargin        = "MARGIN"
	NotificationTypePause         = "PAUSE"
	NotificationTypeSecondLegFail = "SECOND_LEG_FAIL"
)

// Severity levels.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
