// Package bot implements the Trade Engine core: normalization, the
// Sector Ranker, the single-consumer Order Worker, the Alert
// Dispatcher, and the Entry/Exit Paths that move a Position through
// its state machine in response to webhook alerts and market ticks.
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

// SectorLookup resolves a trading symbol to its sector, the external
// collaborator feeding the Sector Ranker's gate. A real instrument
// master loads this from the broker's instrument dump; tests supply a
// static map.
type SectorLookup interface {
	Sector(symbol string) string
}

type staticSectorLookup map[string]string

func (m staticSectorLookup) Sector(symbol string) string { return m[symbol] }

// NewStaticSectorLookup wraps a fixed symbol->sector map.
func NewStaticSectorLookup(m map[string]string) SectorLookup {
	return staticSectorLookup(m)
}

// Config carries the engine's timing knobs, mirroring EngineConfig
// but scoped to what this package needs directly.
type Config struct {
	EntryLockTTL    time.Duration
	ExitLockTTL     time.Duration
	LTPWaitTimeout  time.Duration
	LTPPollInterval time.Duration

	SnapshotThrottle      time.Duration
	MonitorLogThrottle    time.Duration
	SectorSummaryThrottle time.Duration

	TradingVenueTimezone string
	Exchange             string // equity venue used for all order placement (§9 Ambiguity a)
}

// tickSnapshot is the last cached tick for a symbol.
type tickSnapshot struct {
	LTP       float64
	PrevClose float64
	At        time.Time
}

// Engine is the trading core (§5). Its mutable state (positions, tick
// cache, in-flight sets, throttle checkpoints) is guarded by mu, since
// OnTick/DispatchAlert/OnOrderUpdate and the exit goroutines started by
// spawnExit can run concurrently.
type Engine struct {
	user string

	store   store.Store
	adapter broker.Adapter
	order   *OrderWorker
	sector  *SectorRanker
	sectors SectorLookup
	cfg     Config
	logger  *zap.Logger

	mu                 sync.Mutex
	positions          map[string]*models.Position
	ticks              map[string]tickSnapshot
	exitInflight       map[string]bool
	reconcileInflight  map[string]bool
	lastSnapshotWrite  map[string]time.Time
	lastMonitorLog     map[string]time.Time

	onSymbolsSeen func(symbols []string)
}

// SetOnSymbolsSeen registers the hook fired, fire-and-forget, whenever
// this engine needs market-data flowing for a set of symbols it didn't
// necessarily have before: a freshly dispatched alert, or a rehydrated
// position resuming monitoring on restart (§9c). The external
// market-data subscriber (outside this package) is the hook's only
// consumer; a nil hook is a no-op.
func (e *Engine) SetOnSymbolsSeen(fn func(symbols []string)) {
	e.onSymbolsSeen = fn
}

func (e *Engine) notifySymbolsSeen(symbols []string) {
	if e.onSymbolsSeen == nil || len(symbols) == 0 {
		return
	}
	go e.onSymbolsSeen(symbols)
}

// NewEngine wires the engine's dependencies. user identifies the
// single operator whose keys are addressed in the Shared Store.
func NewEngine(user string, st store.Store, adapter broker.Adapter, order *OrderWorker, sectors SectorLookup, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		user:              user,
		store:             st,
		adapter:           adapter,
		order:             order,
		sector:            NewSectorRanker(cfg.SectorSummaryThrottle),
		sectors:           sectors,
		cfg:               cfg,
		logger:            logger,
		positions:         make(map[string]*models.Position),
		ticks:             make(map[string]tickSnapshot),
		exitInflight:      make(map[string]bool),
		reconcileInflight: make(map[string]bool),
		lastSnapshotWrite: make(map[string]time.Time),
		lastMonitorLog:    make(map[string]time.Time),
	}
}

func (e *Engine) venueLocation() *time.Location {
	loc, err := time.LoadLocation(e.cfg.TradingVenueTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getPosition returns the in-memory position for symbol, or nil.
func (e *Engine) getPosition(symbol string) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions[symbol]
}

func (e *Engine) setPosition(symbol string, pos *models.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[symbol] = pos
}

func (e *Engine) deletePosition(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.positions, symbol)
}

// hasOpenInMemory reports whether symbol already has an active
// position (P1, in-memory half of the duplicate guard).
func (e *Engine) hasOpenInMemory(symbol string) bool {
	pos := e.getPosition(symbol)
	return pos != nil && pos.IsActive()
}

// upsertSnapshot upserts pos to the store at most once per
// SnapshotThrottle per symbol, except when force is set (state
// transitions always write immediately).
func (e *Engine) upsertSnapshot(ctx context.Context, pos *models.Position, force bool) error {
	e.mu.Lock()
	last, ok := e.lastSnapshotWrite[pos.Symbol]
	now := time.Now()
	if !force && ok && now.Sub(last) < e.cfg.SnapshotThrottle {
		e.mu.Unlock()
		return nil
	}
	e.lastSnapshotWrite[pos.Symbol] = now
	e.mu.Unlock()

	pos.UpdatedAt = now
	return e.store.UpsertPosition(ctx, e.user, pos)
}

// engageKillSwitch flips the kill switch for this user, logging the
// cause. Called when entry placement fails or the dispatcher hits an
// unexpected fault (§7 propagation policy). category is a short,
// bounded-cardinality tag for the kill_switch_engagements_total
// metric; cause is the full free-text detail for the log line.
func (e *Engine) engageKillSwitch(ctx context.Context, category, cause string) {
	e.logger.Error("engaging kill switch", zap.String("category", category), zap.String("cause", cause))
	recordKillSwitchEngagement(category)
	if err := e.store.SetKill(ctx, e.user, true); err != nil {
		e.logger.Error("failed to persist kill switch", zap.Error(err))
	}
}

// OnOrderUpdate handles an asynchronous broker fill/status event
// (§4.8). Only COMPLETE events touching a tracked position's entry
// order trigger reconciliation; exit-order completions are logged
// only since the Exit Path already finalized state.
func (e *Engine) OnOrderUpdate(ctx context.Context, update broker.OrderUpdate) {
	if update.Status != "COMPLETE" {
		return
	}

	pos := e.getPosition(update.TradingSymbol)
	if pos == nil {
		return
	}

	switch update.OrderID {
	case pos.EntryOrderID:
		e.reconcileEntryPrice(ctx, pos, update.AveragePrice)
	case pos.ExitOrderID:
		e.logger.Info("exit order completed", zap.String("symbol", pos.Symbol), zap.String("order_id", update.OrderID))
	}
}

// reconcileEntryPrice applies an authoritative average price to pos
// and recomputes target/stop/extreme from the echoed config
// percentages (P6: idempotent under repeated identical updates).
func (e *Engine) reconcileEntryPrice(ctx context.Context, pos *models.Position, avgPrice float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if avgPrice <= 0 {
		return
	}
	pos.EntryPrice = avgPrice
	recomputeLevels(pos)
	pos.UpdatedAt = time.Now()
	if err := e.store.UpsertPosition(ctx, e.user, pos); err != nil {
		e.logger.Error("failed to persist reconciled entry price", zap.String("symbol", pos.Symbol), zap.Error(err))
	}
}

// recomputeLevels derives target/stop/running_extreme from the
// position's echoed config percentages and current entry price.
// INTRADAY only; DELIVERY positions are not monitored (§4.6 step 6).
func recomputeLevels(pos *models.Position) {
	if pos.Product != models.ProductIntraday {
		return
	}
	sign := 1.0
	if pos.Side == models.SideSell {
		sign = -1.0
	}
	pos.TargetPrice = pos.EntryPrice * (1 + sign*pos.CfgTargetPct/100)
	pos.StopLossPrice = pos.EntryPrice * (1 - sign*pos.CfgSLPct/100)
	pos.RunningExtreme = pos.EntryPrice
}

// Rehydrate reloads every active position from the store on startup
// (§4.9), coercing status back to OPEN so monitoring resumes. It
// returns the rehydrated symbols so the caller can arrange market-data
// resubscription (an external collaborator).
func (e *Engine) Rehydrate(ctx context.Context) ([]string, error) {
	positions, err := e.store.ListPositions(ctx, e.user)
	if err != nil {
		return nil, fmt.Errorf("rehydrate: list positions: %w", err)
	}

	var resubscribe []string
	for _, pos := range positions {
		switch pos.Status {
		case models.StatusOpen, models.StatusExitConditionsMet, models.StatusExiting:
		default:
			continue
		}
		pos.Status = models.StatusOpen
		if pos.EntryPrice > 0 && pos.RunningExtreme <= 0 {
			pos.RunningExtreme = pos.EntryPrice
		}
		e.setPosition(pos.Symbol, pos)
		resubscribe = append(resubscribe, pos.Symbol)
		e.logger.Info("rehydrated position", zap.String("symbol", pos.Symbol), zap.String("side", string(pos.Side)))
	}
	e.notifySymbolsSeen(resubscribe)
	return resubscribe, nil
}
