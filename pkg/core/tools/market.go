package tools

import (
	"context"
	"fmt"

	"forecast_agent/pkg/core/market"
)

// Quoter is the market dependency of MarketData.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (*market.Snapshot, error)
}

// MarketData wraps the quote client as a pipeline tool.
type MarketData struct {
	client Quoter
}

// NewMarketData returns a market tool. A nil client makes every call fail.
func NewMarketData(client Quoter) *MarketData {
	return &MarketData{client: client}
}

// Fetch returns the current snapshot for symbol.
func (m *MarketData) Fetch(ctx context.Context, symbol string) Result {
	if m.client == nil {
		return Failure(NameMarket, "market data source not configured")
	}
	snap, err := m.client.Quote(ctx, symbol)
	if err != nil {
		return Failure(NameMarket, fmt.Sprintf("quote for %s failed: %v", symbol, err))
	}
	return Success(NameMarket, snap)
}
