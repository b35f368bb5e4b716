package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradeengine/internal/broker"
	"tradeengine/internal/models"
	"tradeengine/internal/store"
)

// spawnExit runs the Exit Path for symbol with a background context,
// used from OnTick (fire-and-forget on predicate match). Callers
// needing the outcome synchronously, such as BulkSquareOff, call
// ExitPosition directly instead.
func (e *Engine) spawnExit(symbol, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.ExitPosition(ctx, symbol, reason); err != nil {
		e.logger.Error("exit path failed", zap.String("symbol", symbol), zap.String("reason", reason), zap.Error(err))
	}
}

// ExitPosition runs the Exit Path (§4.7) for symbol with the given
// reason (e.g. "TARGET", "STOP_LOSS", "TRAILING_SL", "MANUAL",
// "AUTO_SQ_OFF"). It always clears exit-inflight and releases the
// exit lock on every return path.
func (e *Engine) ExitPosition(ctx context.Context, symbol, reason string) error {
	defer func() {
		e.mu.Lock()
		delete(e.exitInflight, symbol)
		e.mu.Unlock()
	}()

	pos := e.getPosition(symbol)
	if pos == nil {
		return e.manualSquareOffFallback(ctx, symbol, reason)
	}

	switch pos.Status {
	case models.StatusOpen, models.StatusExitConditionsMet, models.StatusExiting:
	default:
		return nil
	}

	exitSide := pos.ExitSide()

	lockResult, err := e.store.AcquireLock(ctx, e.user, symbol, "exit", e.user, e.cfg.ExitLockTTL)
	if err != nil {
		return fmt.Errorf("exit: acquire lock: %w", err)
	}
	if lockResult != store.LockAcquired {
		return nil
	}
	defer e.store.ReleaseLock(ctx, e.user, symbol, "exit")

	e.mu.Lock()
	_ = TransitionStatus(pos, models.StatusExiting)
	e.mu.Unlock()
	if err := e.upsertSnapshot(ctx, pos, true); err != nil {
		e.logger.Warn("exit: snapshot write failed", zap.String("symbol", symbol), zap.Error(err))
	}

	placeStart := time.Now()
	orderID, err := e.order.PlaceOrder(ctx, broker.OrderRequest{
		Exchange:      e.cfg.Exchange,
		TradingSymbol: symbol,
		Side:          broker.Side(exitSide),
		Quantity:      pos.Qty,
		Product:       broker.Product(pos.Product),
	})
	OrderExecutionLatency.WithLabelValues(string(exitSide), "exit").Observe(float64(time.Since(placeStart).Milliseconds()))

	e.mu.Lock()
	if err != nil {
		pos.Status = models.StatusError
		pos.ExitReason = fmt.Sprintf("EXIT_ORDER_FAIL:%s", err.Error())
		e.mu.Unlock()
		if werr := e.upsertSnapshot(ctx, pos, true); werr != nil {
			e.logger.Error("exit: failed to persist error status", zap.String("symbol", symbol), zap.Error(werr))
		}
		e.broadcastPositionRefresh(symbol)
		return fmt.Errorf("exit: place order: %w", err)
	}

	pos.ExitOrderID = orderID
	pos.Status = models.StatusClosed
	pos.ExitReason = reason
	e.mu.Unlock()
	recordExit(reason)

	if err := e.upsertSnapshot(ctx, pos, true); err != nil {
		e.logger.Error("exit: failed to persist closed status", zap.String("symbol", symbol), zap.Error(err))
	}
	e.store.DeletePosition(ctx, e.user, symbol)
	e.store.ClearOpen(ctx, e.user, symbol)
	e.deletePosition(symbol)

	if err := e.store.UpdateAlertStatus(ctx, e.user, pos.AlertTime, pos.AlertName, symbol, string(models.StatusClosed), reason); err != nil {
		e.logger.Warn("exit: failed to update alert history", zap.String("symbol", symbol), zap.Error(err))
	}

	e.broadcastPositionRefresh(symbol)
	return nil
}

// manualSquareOffFallback handles manual square-off when no in-memory
// position exists: it consults the broker's live positions list,
// derives the exit side from the net quantity's sign, and places the
// reverse order directly (§4.7, Manual square-off).
func (e *Engine) manualSquareOffFallback(ctx context.Context, symbol, reason string) error {
	rows, err := e.order.Positions(ctx)
	if err != nil {
		return fmt.Errorf("manual square-off: positions fetch: %w", err)
	}

	for _, row := range rows {
		if row.TradingSymbol != symbol || row.Quantity == 0 {
			continue
		}
		side := broker.SideSell
		qty := row.Quantity
		if row.Quantity < 0 {
			side = broker.SideBuy
			qty = -row.Quantity
		}
		_, err := e.order.PlaceOrder(ctx, broker.OrderRequest{
			Exchange:      e.cfg.Exchange,
			TradingSymbol: symbol,
			Side:          side,
			Quantity:      qty,
			Product:       row.Product,
		})
		return err
	}
	return nil
}

// BulkSquareOff dispatches the Exit Path concurrently for every
// currently OPEN position, tagged with reason "AUTO_SQ_OFF" (§4.7,
// Bulk square-off / end-of-day).
func (e *Engine) BulkSquareOff(ctx context.Context) {
	e.mu.Lock()
	symbols := make([]string, 0, len(e.positions))
	for symbol, pos := range e.positions {
		if pos.Status == models.StatusOpen {
			symbols = append(symbols, symbol)
		}
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			if err := e.ExitPosition(ctx, symbol, "AUTO_SQ_OFF"); err != nil {
				e.logger.Error("bulk square-off failed", zap.String("symbol", symbol), zap.Error(err))
			}
		}(symbol)
	}
	wg.Wait()

	e.logger.Info("bulk square-off complete", zap.Int("positions", len(symbols)))
}

// broadcastPositionRefresh emits a position_refresh observability
// event. Out-of-process UI fan-out is a non-goal; this just logs.
func (e *Engine) broadcastPositionRefresh(symbol string) {
	e.logger.Info("position_refresh", zap.String("symbol", symbol))
}
