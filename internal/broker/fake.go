package broker

import (
	"context"
	"fmt"
	"sync"
)

// FakeAdapter is an in-memory Adapter used by engine and service tests.
// It never touches the network; behavior is driven entirely by the
// fields callers set before use.
type FakeAdapter struct {
	mu sync.Mutex

	Connected bool
	ConnectErr error

	ProfileResp *Profile
	ProfileErr  error

	Quotes   map[string]Quote
	QuoteErr error

	PlaceOrderErr error
	nextOrderID   int
	PlacedOrders  []OrderRequest

	PositionsResp []Position
	PositionsErr  error

	InstrumentsResp map[string]int
	InstrumentsErr  error

	updates chan OrderUpdate
}

// NewFakeAdapter builds a disconnected FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		Quotes:  make(map[string]Quote),
		updates: make(chan OrderUpdate, 64),
	}
}

func (f *FakeAdapter) Connect(ctx context.Context, apiKey, apiSecret, passphrase string) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.Connected = true
	return nil
}

func (f *FakeAdapter) Profile(ctx context.Context) (*Profile, error) {
	if !f.Connected {
		return nil, ErrNotConnected
	}
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	if f.ProfileResp != nil {
		return f.ProfileResp, nil
	}
	return &Profile{UserID: "fake", AvailableMargin: 0}, nil
}

func (f *FakeAdapter) Quote(ctx context.Context, tradingSymbols []string) (map[string]Quote, error) {
	if !f.Connected {
		return nil, ErrNotConnected
	}
	if f.QuoteErr != nil {
		return nil, f.QuoteErr
	}
	out := make(map[string]Quote, len(tradingSymbols))
	for _, sym := range tradingSymbols {
		if q, ok := f.Quotes[sym]; ok {
			out[sym] = q
		}
	}
	return out, nil
}

func (f *FakeAdapter) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if !f.Connected {
		return "", ErrNotConnected
	}
	if f.PlaceOrderErr != nil {
		return "", f.PlaceOrderErr
	}
	f.mu.Lock()
	f.nextOrderID++
	id := fmt.Sprintf("FAKE-%d", f.nextOrderID)
	f.PlacedOrders = append(f.PlacedOrders, req)
	f.mu.Unlock()
	return id, nil
}

func (f *FakeAdapter) Positions(ctx context.Context) ([]Position, error) {
	if !f.Connected {
		return nil, ErrNotConnected
	}
	return f.PositionsResp, f.PositionsErr
}

func (f *FakeAdapter) Instruments(ctx context.Context, exchange string) (map[string]int, error) {
	if !f.Connected {
		return nil, ErrNotConnected
	}
	return f.InstrumentsResp, f.InstrumentsErr
}

func (f *FakeAdapter) OrderUpdates() <-chan OrderUpdate {
	return f.updates
}

// PushUpdate delivers an OrderUpdate to OrderUpdates' channel, for tests
// simulating asynchronous fills.
func (f *FakeAdapter) PushUpdate(u OrderUpdate) {
	f.updates <- u
}

func (f *FakeAdapter) Close() error {
	f.Connected = false
	return nil
}
