package bot

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"tradeengine/internal/models"
)

// OnTick processes one market tick (§4.6). It never blocks: entry
// reconciliation and exit dispatch are fired as background goroutines,
// never run inline, so a slow broker call cannot stall the tick feed.
func (e *Engine) OnTick(ctx context.Context, symbol string, ltp, prevClose, sessionHigh, sessionLow float64, tbq, tsq int64) {
	if ltp <= 0 {
		return
	}

	e.mu.Lock()
	e.ticks[symbol] = tickSnapshot{LTP: ltp, PrevClose: prevClose, At: time.Now()}
	e.mu.Unlock()

	if prevClose > 0 {
		sector := e.sectors.Sector(symbol)
		e.sector.Update(sector, symbol, ltp, prevClose)
	}
	if e.sector.ShouldLogSummary(time.Now()) {
		e.logSectorSummary()
	}

	pos := e.getPosition(symbol)
	if pos == nil || pos.Status != models.StatusOpen {
		return
	}

	e.mu.Lock()
	pos.LTP = ltp
	if pos.EntryPrice > 0 {
		if pos.Side == models.SideBuy {
			pos.PnL = (ltp - pos.EntryPrice) * float64(pos.Qty)
		} else {
			pos.PnL = (pos.EntryPrice - ltp) * float64(pos.Qty)
		}
	} else {
		pos.PnL = 0
	}
	e.mu.Unlock()

	if pos.Product != models.ProductIntraday {
		return
	}

	if pos.EntryPrice <= 0 {
		e.reconcileFromBroker(ctx, symbol)
	}

	e.mu.Lock()
	if pos.Side == models.SideBuy {
		if ltp > pos.RunningExtreme {
			pos.RunningExtreme = ltp
		}
	} else {
		if pos.RunningExtreme <= 0 || ltp < pos.RunningExtreme {
			pos.RunningExtreme = ltp
		}
	}

	var trailingLine float64
	if pos.TrailingStopPct > 0 && pos.RunningExtreme > 0 {
		if pos.Side == models.SideBuy {
			trailingLine = pos.RunningExtreme * (1 - pos.TrailingStopPct/100)
		} else {
			trailingLine = pos.RunningExtreme * (1 + pos.TrailingStopPct/100)
		}
	}

	reason := evaluateExitPredicate(pos, ltp, trailingLine)
	e.mu.Unlock()

	e.maybeLogMonitoring(symbol, pos, ltp, trailingLine)

	if reason == "" {
		return
	}

	e.mu.Lock()
	if pos.Status == models.StatusOpen {
		_ = TransitionStatus(pos, models.StatusExitConditionsMet)
		pos.ExitReason = reason
	}
	alreadyInflight := e.exitInflight[symbol]
	if !alreadyInflight {
		e.exitInflight[symbol] = true
	}
	e.mu.Unlock()

	_ = e.upsertSnapshot(ctx, pos, true)

	if !alreadyInflight {
		go e.spawnExit(symbol, reason)
	}
}

// evaluateExitPredicate checks TARGET, STOP_LOSS, TRAILING_SL in that
// fixed order and returns the first match (P4). A zero level disables
// that check. Caller holds e.mu.
func evaluateExitPredicate(pos *models.Position, ltp, trailingLine float64) string {
	if pos.Side == models.SideBuy {
		if pos.TargetPrice > 0 && ltp >= pos.TargetPrice {
			return "TARGET"
		}
		if pos.StopLossPrice > 0 && ltp <= pos.StopLossPrice {
			return "STOP_LOSS"
		}
		if trailingLine > 0 && ltp <= trailingLine {
			return "TRAILING_SL"
		}
		return ""
	}

	if pos.TargetPrice > 0 && ltp <= pos.TargetPrice {
		return "TARGET"
	}
	if pos.StopLossPrice > 0 && ltp >= pos.StopLossPrice {
		return "STOP_LOSS"
	}
	if trailingLine > 0 && ltp >= trailingLine {
		return "TRAILING_SL"
	}
	return ""
}

// reconcileFromBroker fetches the broker's open-positions list and
// fills in entry_price from the matching row (§4.6 step 7). At most
// one invocation runs per symbol at a time.
func (e *Engine) reconcileFromBroker(ctx context.Context, symbol string) {
	e.mu.Lock()
	if e.reconcileInflight[symbol] {
		e.mu.Unlock()
		return
	}
	e.reconcileInflight[symbol] = true
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.reconcileInflight, symbol)
			e.mu.Unlock()
		}()

		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rows, err := e.order.Positions(rctx)
		if err != nil {
			e.logger.Warn("entry-price reconciliation: positions fetch failed", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		for _, row := range rows {
			if row.TradingSymbol != symbol || row.AveragePrice <= 0 {
				continue
			}
			pos := e.getPosition(symbol)
			if pos == nil {
				return
			}
			e.reconcileEntryPrice(rctx, pos, row.AveragePrice)
			return
		}
	}()
}

func (e *Engine) logSectorSummary() {
	ranked := e.sector.Rank()
	e.logger.Info("sector summary", zap.Any("ranked", ranked))
}

// maybeLogMonitoring emits a monitoring record at most once per
// MonitorLogThrottle per symbol (§4.6 Observability).
func (e *Engine) maybeLogMonitoring(symbol string, pos *models.Position, ltp, trailingLine float64) {
	e.mu.Lock()
	last, ok := e.lastMonitorLog[symbol]
	now := time.Now()
	if ok && now.Sub(last) < e.cfg.MonitorLogThrottle {
		e.mu.Unlock()
		return
	}
	e.lastMonitorLog[symbol] = now
	e.mu.Unlock()

	near := func(level float64) bool {
		if level <= 0 || ltp <= 0 {
			return false
		}
		return math.Abs((ltp-level)/level*100) <= 0.15
	}

	e.logger.Info("position monitor",
		zap.String("symbol", symbol),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("ltp", ltp),
		zap.Float64("pnl", pos.PnL),
		zap.Float64("target", pos.TargetPrice),
		zap.Float64("stop", pos.StopLossPrice),
		zap.Float64("trailing_line", trailingLine),
		zap.Bool("near_target", near(pos.TargetPrice)),
		zap.Bool("near_stop", near(pos.StopLossPrice)),
		zap.Bool("near_trailing", near(trailingLine)),
	)
}
