package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradeengine/internal/store"
)

// AlertResult is the full response shape for one dispatched webhook
// alert (§6): one history row, one EntryResult per input symbol.
type AlertResult struct {
	OK      bool
	Alert   string
	Symbols []string
	Result  []EntryResult
}

// DispatchAlert runs the Alert Dispatcher (§4.4) for one inbound
// webhook: normalize, record RECEIVED history, check the kill switch,
// resolve config by name with fallback variants, check the entry
// window, then run the Entry Path per symbol.
func (e *Engine) DispatchAlert(ctx context.Context, rawAlertName string, rawSymbols []string, alertTime time.Time) AlertResult {
	alertName := NormalizeAlertName(rawAlertName)
	symbols := NormalizeSymbols(rawSymbols)
	e.notifySymbolsSeen(symbols)

	record := store.AlertRecord{AlertName: alertName, Time: alertTime}
	for _, sym := range symbols {
		record.Symbols = append(record.Symbols, store.AlertStatus{Symbol: sym, Status: "RECEIVED"})
	}
	if err := e.store.SaveAlert(ctx, e.user, record); err != nil {
		e.logger.Warn("dispatcher: failed to record alert history", zap.String("alert", alertName), zap.Error(err))
	}

	AlertsDispatched.WithLabelValues(alertName).Inc()

	result, err := e.dispatchGuarded(ctx, alertName, rawAlertName, symbols, alertTime)
	if err != nil {
		e.engageKillSwitch(ctx, "dispatcher_fault", fmt.Sprintf("dispatcher fault for alert %s: %v", alertName, err))
		result = make([]EntryResult, len(symbols))
		for i, sym := range symbols {
			result[i] = entryError(sym, fmt.Sprintf("CRITICAL_FAIL:%s", err.Error()))
		}
	}

	e.finalizeAlertHistory(ctx, alertName, alertTime, result)

	return AlertResult{OK: true, Alert: alertName, Symbols: symbols, Result: result}
}

// dispatchGuarded implements steps 3-6 of the Alert Dispatcher. A
// per-symbol panic/fault inside EnterPosition must not be possible to
// propagate here as a Go panic (no exceptions-as-control-flow, per
// §9): every guard in entry.go returns a tagged EntryResult instead.
func (e *Engine) dispatchGuarded(ctx context.Context, alertName, rawAlertName string, symbols []string, alertTime time.Time) ([]EntryResult, error) {
	isKill, err := e.store.IsKill(ctx, e.user)
	if err != nil {
		return nil, fmt.Errorf("kill switch check: %w", err)
	}
	if isKill {
		results := make([]EntryResult, len(symbols))
		for i, sym := range symbols {
			results[i] = rejected(sym, "KILL_SWITCH")
		}
		return results, nil
	}

	cfg, err := e.store.GetAlertConfig(ctx, e.user, AlertNameVariants(rawAlertName))
	if err != nil {
		return nil, fmt.Errorf("load alert config: %w", err)
	}
	if cfg == nil {
		return fillAll(symbols, skipped, "NO_CONFIG"), nil
	}
	if !cfg.Enabled {
		return fillAll(symbols, skipped, "DISABLED"), nil
	}

	if !e.withinEntryWindow(cfg.EntryWindowStart, cfg.EntryWindowEnd) {
		return fillAll(symbols, rejected, "OUTSIDE_ENTRY_WINDOW"), nil
	}

	results := make([]EntryResult, len(symbols))
	for i, sym := range symbols {
		results[i] = e.EnterPosition(ctx, sym, cfg, alertName, alertTime)
	}
	return results, nil
}

func fillAll(symbols []string, build func(symbol, reason string) EntryResult, reason string) []EntryResult {
	out := make([]EntryResult, len(symbols))
	for i, sym := range symbols {
		out[i] = build(sym, reason)
	}
	return out
}

// withinEntryWindow reports whether now, in trading-venue local time,
// falls within [start, end] given as "HH:MM". An empty window is
// treated as unrestricted (always within).
func (e *Engine) withinEntryWindow(start, end string) bool {
	if start == "" || end == "" {
		return true
	}
	now := time.Now().In(e.venueLocation())
	startT, err1 := time.ParseInLocation("15:04", start, now.Location())
	endT, err2 := time.ParseInLocation("15:04", end, now.Location())
	if err1 != nil || err2 != nil {
		return true
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowStart := startOfDay.Add(time.Duration(startT.Hour())*time.Hour + time.Duration(startT.Minute())*time.Minute)
	windowEnd := startOfDay.Add(time.Duration(endT.Hour())*time.Hour + time.Duration(endT.Minute())*time.Minute)
	return !now.Before(windowStart) && !now.After(windowEnd)
}

// finalizeAlertHistory rewrites each symbol's history row with its
// final (status, reason) once the Entry Path has resolved (§4.4 step
// 6b).
func (e *Engine) finalizeAlertHistory(ctx context.Context, alertName string, alertTime time.Time, results []EntryResult) {
	for _, r := range results {
		if err := e.store.UpdateAlertStatus(ctx, e.user, alertTime, alertName, r.Symbol, r.Status, r.Reason); err != nil {
			e.logger.Warn("dispatcher: failed to finalize alert history", zap.String("symbol", r.Symbol), zap.Error(err))
		}
	}
}
