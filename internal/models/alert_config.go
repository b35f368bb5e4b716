package models

// Direction is the trade side an AlertConfig opens on a qualifying
// symbol.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Product is the broker product code a position is opened under.
type Product string

const (
	ProductIntraday Product = "INTRADAY"
	ProductDelivery Product = "DELIVERY"
)

// QtyMode selects how AlertConfig sizes an entry.
type QtyMode string

const (
	QtyModeFixedQty      QtyMode = "FIXED_QTY"
	QtyModeFixedCapital  QtyMode = "FIXED_CAPITAL"
)

// AlertConfig is the user-authored rule matched against every incoming
// webhook alert by its normalized name.
type AlertConfig struct {
	Enabled bool      `json:"enabled"`
	RawName string    `json:"raw_name"`

	Direction Direction `json:"direction"`
	Product   Product   `json:"product"`

	QtyMode QtyMode `json:"qty_mode"`
	Qty     int     `json:"qty"`
	Capital float64 `json:"capital"`

	TargetPct       float64 `json:"target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct"`

	TradeLimitPerDay int `json:"trade_limit_per_day"` // 0 = unlimited

	SectorFilterOn bool `json:"sector_filter_on"`
	TopNSector     int  `json:"top_n_sector"`

	EntryWindowStart string `json:"entry_window_start"` // "HH:MM", trading-venue local time
	EntryWindowEnd   string `json:"entry_window_end"`
}
