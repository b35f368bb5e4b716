package models

import "time"

// PositionStatus is the position's place in its state machine.
// Transitions are monotonic: OPEN -> EXIT_CONDITIONS_MET -> EXITING ->
// CLOSED, with OPEN -> ERROR and OPEN -> REJECTED as terminal dead
// ends. A status never regresses.
type PositionStatus string

const (
	StatusOpen               PositionStatus = "OPEN"
	StatusExitConditionsMet  PositionStatus = "EXIT_CONDITIONS_MET"
	StatusExiting            PositionStatus = "EXITING"
	StatusClosed             PositionStatus = "CLOSED"
	StatusRejected           PositionStatus = "REJECTED"
	StatusError              PositionStatus = "ERROR"
)

// Side is the broker transaction type for an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is a single symbol's open trade, keyed by (user, normalized
// symbol). At most one position with status in {OPEN,
// EXIT_CONDITIONS_MET, EXITING} may exist per (user, symbol); that
// invariant is enforced by the open-guard in the Shared Store, not by
// this struct.
type Position struct {
	TradeID   string    `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	AlertName string    `json:"alert_name"`
	AlertTime time.Time `json:"alert_time"`

	Side    Side    `json:"side"`
	Product Product `json:"product"`
	Qty     int     `json:"qty"`

	EntryPrice      float64 `json:"entry_price"`
	LTP             float64 `json:"ltp"`
	TargetPrice     float64 `json:"target_price"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TrailingStopPct float64 `json:"trailing_stop_pct"`
	RunningExtreme  float64 `json:"running_extreme"` // high-water for BUY, low-water for SELL

	Status PositionStatus `json:"status"`

	EntryOrderID string `json:"entry_order_id,omitempty"`
	ExitOrderID  string `json:"exit_order_id,omitempty"`

	ExitReason string  `json:"exit_reason,omitempty"`
	PnL        float64 `json:"pnl"`

	// Config echo, needed to recompute levels after entry-price
	// reconciliation without re-reading the AlertConfig.
	CfgTargetPct float64 `json:"cfg_target_pct"`
	CfgSLPct     float64 `json:"cfg_sl_pct"`
	CfgTSLPct    float64 `json:"cfg_tsl_pct"`

	Sector string `json:"sector,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	// ExitInflight is not read or set anywhere; the engine tracks
	// in-flight exits in its own per-symbol exitInflight map.
	ExitInflight bool `json:"-"`
}

// IsActive reports whether the position still occupies the
// at-most-one-active-position slot for its (user, symbol).
func (p *Position) IsActive() bool {
	switch p.Status {
	case StatusOpen, StatusExitConditionsMet, StatusExiting:
		return true
	default:
		return false
	}
}

// ExitSide is the transaction type opposite the entry side.
func (p *Position) ExitSide() Side {
	if p.Side == SideBuy {
		return SideSell
	}
	return SideBuy
}
