package bot

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"tradeengine/internal/broker"
	"tradeengine/internal/models"
	"tradeengine/internal/store"
)

// EntryResult is the outcome of one symbol's Entry Path invocation,
// shaped to populate the webhook response's per-symbol result row
// (§6).
type EntryResult struct {
	Symbol  string
	Status  string // REJECTED | SKIPPED | ENTERED | ERROR
	Reason  string
	OrderID string
	TradeID string
	Qty     int
	Side    string
	Product string
	LTP     float64
}

func rejected(symbol, reason string) EntryResult { return EntryResult{Symbol: symbol, Status: "REJECTED", Reason: reason} }
func skipped(symbol, reason string) EntryResult   { return EntryResult{Symbol: symbol, Status: "SKIPPED", Reason: reason} }
func entryError(symbol, reason string) EntryResult { return EntryResult{Symbol: symbol, Status: "ERROR", Reason: reason} }

// EnterPosition runs the Entry Path (§4.5) for one symbol under cfg.
// alertTime/alertName are carried onto the resulting Position so the
// alert-history row can later be located by (alert_name, time).
func (e *Engine) EnterPosition(ctx context.Context, symbol string, cfg *models.AlertConfig, alertName string, alertTime time.Time) (result EntryResult) {
	defer func() { recordEntryResult(result.Status, result.Reason) }()

	// 1. Sector gate.
	sector := e.sectors.Sector(symbol)
	if !e.sector.Gate(sector, cfg.Direction, cfg.TopNSector) && cfg.SectorFilterOn {
		return skipped(symbol, "SECTOR_FILTER")
	}

	// 2. In-memory duplicate.
	if e.hasOpenInMemory(symbol) {
		return skipped(symbol, "ALREADY_OPEN")
	}

	// 3. Cross-process duplicate.
	openTradeID, err := e.store.GetOpen(ctx, e.user, symbol)
	if err != nil {
		return entryError(symbol, fmt.Sprintf("ORDER_FAIL:%s", err.Error()))
	}
	if openTradeID != "" {
		return skipped(symbol, "ALREADY_OPEN_REDIS")
	}

	// 4. Entry lock.
	lockResult, err := e.store.AcquireLock(ctx, e.user, symbol, "entry", e.user, e.cfg.EntryLockTTL)
	if err != nil {
		return entryError(symbol, fmt.Sprintf("ORDER_FAIL:%s", err.Error()))
	}
	switch lockResult {
	case store.LockDenyKillSwitch:
		return rejected(symbol, "KILL_SWITCH")
	case store.LockBusy:
		return skipped(symbol, "ENTRY_LOCK_BUSY")
	}
	defer e.store.ReleaseLock(ctx, e.user, symbol, "entry")

	// 5. Broker readiness.
	if !e.brokerReady() {
		return entryError(symbol, "ZERODHA_NOT_CONNECTED")
	}

	// 6. Direction/product compatibility.
	if cfg.Direction == models.DirectionShort && cfg.Product == models.ProductDelivery {
		return rejected(symbol, "CNC_SHORT_NOT_ALLOWED")
	}

	// 7. Price discovery.
	ltp := e.waitForLTP(ctx, symbol, cfg.QtyMode)
	if cfg.QtyMode == models.QtyModeFixedCapital && ltp <= 0 {
		return skipped(symbol, "NO_LTP_FOR_CAPITAL_QTY")
	}

	// 8. Quantity.
	qty := computeQty(cfg, ltp)
	if qty <= 0 {
		return rejected(symbol, "BAD_QTY")
	}

	// 9. Per-alert daily capacity.
	yyyymmdd := time.Now().In(e.venueLocation()).Format("20060102")
	allowed, err := e.store.AllowAndIncrement(ctx, e.user, yyyymmdd, alertName, cfg.TradeLimitPerDay, ttlToNextTradingDay())
	if err != nil {
		return entryError(symbol, fmt.Sprintf("ORDER_FAIL:%s", err.Error()))
	}
	if !allowed {
		return skipped(symbol, "TRADE_LIMIT")
	}

	// 10. Submit order.
	side := broker.SideBuy
	if cfg.Direction == models.DirectionShort {
		side = broker.SideSell
	}
	placeStart := time.Now()
	orderID, err := e.order.PlaceOrder(ctx, broker.OrderRequest{
		Exchange:      e.cfg.Exchange,
		TradingSymbol: symbol,
		Side:          side,
		Quantity:      qty,
		Product:       broker.Product(cfg.Product),
	})
	OrderExecutionLatency.WithLabelValues(string(side), "entry").Observe(float64(time.Since(placeStart).Milliseconds()))
	if err != nil {
		// 12. Failure path: engage kill switch, no open-guard set.
		e.engageKillSwitch(ctx, "entry_order_fail", fmt.Sprintf("entry order failed for %s: %v", symbol, err))
		return entryError(symbol, fmt.Sprintf("ORDER_FAIL:%s", err.Error()))
	}

	// 11. Success path.
	tradeID := fmt.Sprintf("%s-%s-%d", e.user, symbol, time.Now().UnixNano())
	pos := &models.Position{
		TradeID:      tradeID,
		Symbol:       symbol,
		AlertName:    alertName,
		AlertTime:    alertTime,
		Side:         models.Side(side),
		Product:      cfg.Product,
		Qty:          qty,
		EntryPrice:   ltp,
		LTP:          ltp,
		Status:       models.StatusOpen,
		EntryOrderID: orderID,
		CfgTargetPct: cfg.TargetPct,
		CfgSLPct:     cfg.StopLossPct,
		CfgTSLPct:    cfg.TrailingStopPct,
		TrailingStopPct: cfg.TrailingStopPct,
		Sector:       sector,
		UpdatedAt:    time.Now(),
	}
	recomputeLevels(pos)

	if err := e.store.SetOpen(ctx, e.user, symbol, tradeID, e.cfg.EntryLockTTL*4); err != nil {
		e.logger.Warn("entry: failed to set open-guard", zap.String("symbol", symbol), zap.Error(err))
	}
	e.setPosition(symbol, pos)
	if err := e.upsertSnapshot(ctx, pos, true); err != nil {
		e.logger.Warn("entry: failed to persist snapshot", zap.String("symbol", symbol), zap.Error(err))
	}

	return EntryResult{
		Symbol:  symbol,
		Status:  "ENTERED",
		OrderID: orderID,
		TradeID: tradeID,
		Qty:     qty,
		Side:    string(side),
		Product: string(cfg.Product),
		LTP:     ltp,
	}
}

// brokerReady reports whether the broker adapter has a live session.
// A FakeAdapter/real adapter both expose this indirectly through
// Profile; a lightweight Connected-style check is preferable, so the
// adapter boundary carries no direct "IsConnected" method — callers
// probe with Profile since that is the cheapest authenticated call.
func (e *Engine) brokerReady() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := e.order.Profile(ctx)
	ready := err == nil
	if ready {
		BrokerConnectionStatus.Set(1)
	} else {
		BrokerConnectionStatus.Set(0)
	}
	return ready
}

// waitForLTP returns the cached LTP for symbol, polling up to
// LTPWaitTimeout at LTPPollInterval if it's still missing and the
// config needs it for FIXED_CAPITAL sizing (§4.5 step 7).
func (e *Engine) waitForLTP(ctx context.Context, symbol string, mode models.QtyMode) float64 {
	if ltp := e.cachedLTP(symbol); ltp > 0 {
		return ltp
	}
	if mode != models.QtyModeFixedCapital {
		return 0
	}

	deadline := time.Now().Add(e.cfg.LTPWaitTimeout)
	ticker := time.NewTicker(e.cfg.LTPPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
			if ltp := e.cachedLTP(symbol); ltp > 0 {
				return ltp
			}
		}
	}
	return 0
}

func (e *Engine) cachedLTP(symbol string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks[symbol].LTP
}

// computeQty applies the configured sizing mode (§4.5 step 8).
func computeQty(cfg *models.AlertConfig, ltp float64) int {
	switch cfg.QtyMode {
	case models.QtyModeFixedQty:
		if cfg.Qty > 1 {
			return cfg.Qty
		}
		return 1
	case models.QtyModeFixedCapital:
		if ltp <= 0 {
			return 0
		}
		q := int(math.Floor(cfg.Capital / ltp))
		if q < 1 {
			return 1
		}
		return q
	default:
		return 0
	}
}

// ttlToNextTradingDay mirrors the store's own trading-day-rollover TTL
// used for the daily per-alert counter (ttl_to_next_day + 6h grace).
func ttlToNextTradingDay() time.Duration {
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return nextMidnight.Sub(now) + 6*time.Hour
}
