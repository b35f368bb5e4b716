package bot

import (
	"context"
	"fmt"

	"tradeengine/internal/models"
)

// Drift is one mismatch between the Shared Store's view of a position
// and the broker's live position list, surfaced by Reconcile. It is a
// read-only diagnostic: nothing here mutates state, matching
// original_source's reconcile_check.py, which only reports.
type Drift struct {
	Symbol      string
	StoreQty    int
	BrokerQty   int
	StoreSide   models.Side
	Description string
}

// Reconcile compares every OPEN position this engine tracks against
// the broker's live position list and reports drift: a symbol the
// store thinks is open but the broker reports flat or reversed, or a
// quantity mismatch. It is not wired into the hot path; it exists for
// the admin surface to call on demand or on a schedule.
func (e *Engine) Reconcile(ctx context.Context) ([]Drift, error) {
	stored, err := e.store.ListPositions(ctx, e.user)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list store positions: %w", err)
	}

	live, err := e.order.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list broker positions: %w", err)
	}
	brokerQtyBySymbol := make(map[string]int, len(live))
	for _, row := range live {
		brokerQtyBySymbol[row.TradingSymbol] = row.Quantity
	}

	var drifts []Drift
	for _, pos := range stored {
		if pos.Status != models.StatusOpen {
			continue
		}
		expectedQty := pos.Qty
		if pos.Side == models.SideSell {
			expectedQty = -pos.Qty
		}
		brokerQty, ok := brokerQtyBySymbol[pos.Symbol]
		if !ok || brokerQty == 0 {
			drifts = append(drifts, Drift{
				Symbol:      pos.Symbol,
				StoreQty:    expectedQty,
				BrokerQty:   0,
				StoreSide:   pos.Side,
				Description: "store reports open position, broker reports flat",
			})
			continue
		}
		if brokerQty != expectedQty {
			drifts = append(drifts, Drift{
				Symbol:      pos.Symbol,
				StoreQty:    expectedQty,
				BrokerQty:   brokerQty,
				StoreSide:   pos.Side,
				Description: "store and broker quantities disagree",
			})
		}
	}
	return drifts, nil
}
