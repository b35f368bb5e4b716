// Package broker defines the Broker Adapter boundary: a single
// synchronous, rate-limited broker connection wrapped behind the Order
// Worker so the hot tick loop never blocks on it.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by any Adapter method invoked before a
// successful Connect.
var ErrNotConnected = errors.New("broker: not connected")

// Side is the transaction direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Product is the broker product code.
type Product string

const (
	ProductIntraday Product = "INTRADAY"
	ProductDelivery Product = "DELIVERY"
)

// OrderRequest describes a MARKET order submission (§6, outbound broker
// calls). The engine only ever places MARKET, DAY-validity orders.
type OrderRequest struct {
	Exchange      string
	TradingSymbol string
	Side          Side
	Quantity      int
	Product       Product
}

// OrderUpdate is an asynchronous fill/status event pushed by the broker
// (§4.8).
type OrderUpdate struct {
	OrderID       string
	Status        string // e.g. COMPLETE, REJECTED, CANCELLED
	AveragePrice  float64
	TradingSymbol string
	Timestamp     time.Time
}

// Quote is a last-traded-price snapshot for a symbol.
type Quote struct {
	TradingSymbol string
	LastPrice     float64
	PrevClose     float64
}

// Position is one row of the broker's open-positions list (§6).
type Position struct {
	TradingSymbol string
	Quantity      int // signed: positive long, negative short
	AveragePrice  float64
	Product       Product
}

// Profile is the authenticated account's identity/margin snapshot.
type Profile struct {
	UserID         string
	AvailableMargin float64
}

// Adapter is the synchronous broker API surface the engine depends on.
// A concrete implementation wraps the real broker SDK; this package
// only defines the contract and an in-memory fake for tests.
type Adapter interface {
	// Connect exchanges credentials for a live session. Implementations
	// MUST be safe to call again to re-authenticate.
	Connect(ctx context.Context, apiKey, apiSecret, passphrase string) error

	// Profile returns the authenticated account's identity and margin.
	Profile(ctx context.Context) (*Profile, error)

	// Quote returns last-traded-price snapshots for the given symbols.
	Quote(ctx context.Context, tradingSymbols []string) (map[string]Quote, error)

	// PlaceOrder submits a MARKET, DAY-validity order and returns the
	// broker-assigned order ID.
	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)

	// Positions returns the account's current open positions.
	Positions(ctx context.Context) ([]Position, error)

	// Instruments returns the symbol-to-token map for exchange, used by
	// the instrument-token cache loader (external collaborator).
	Instruments(ctx context.Context, exchange string) (map[string]int, error)

	// OrderUpdates returns a channel of asynchronous order-update events.
	// Implementations close it when the underlying stream ends.
	OrderUpdates() <-chan OrderUpdate

	// Close releases the session and any background resources.
	Close() error
}
