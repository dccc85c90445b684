package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/market"
)

type staticPrices struct {
	prices gateway.Prices
	err    error
	calls  int
}

func (s *staticPrices) AllPrices(context.Context) (gateway.Prices, error) {
	s.calls++
	return s.prices, s.err
}

func f(v float64) *float64 { return &v }

func TestSeedPrefersConfiguredEntry(t *testing.T) {
	prices := &staticPrices{prices: gateway.Prices{"BTCUSDT": 21000}}
	s := New(prices, nil, 0, nil)

	res, err := s.Seed(context.Background(), market.NewInstrument("BTC", "USDT", f(20000)))
	require.NoError(t, err)
	assert.Equal(t, 20000.0, res.Entry)
	assert.Equal(t, 21000.0, res.Current)
	assert.Equal(t, OriginConfig, res.Origin)
}

func TestSeedUsesBuyVWAPFromHistory(t *testing.T) {
	prices := &staticPrices{prices: gateway.Prices{"ETHBTC": 0.07}}
	history := func(_ context.Context, symbol string, pageSize int) ([]market.TradeRecord, error) {
		assert.Equal(t, "ETHBTC", symbol)
		assert.Equal(t, 100, pageSize)
		return []market.TradeRecord{
			{Price: 0.05, Qty: 1, Side: market.Buy, Sequence: 1},
			{Price: 0.08, Qty: 2, Side: market.Buy, Sequence: 2},
			{Price: 0.09, Qty: 1, Side: market.Sell, Sequence: 3},
		}, nil
	}
	s := New(prices, history, 100, nil)

	res, err := s.Seed(context.Background(), market.NewInstrument("ETH", "BTC", nil))
	require.NoError(t, err)
	assert.InDelta(t, 0.07, res.Entry, 1e-12)
	assert.InDelta(t, 2.0, res.Position, 1e-12)
	assert.Equal(t, OriginHistory, res.Origin)
}

func TestSeedFallsBackToSnapshot(t *testing.T) {
	prices := &staticPrices{prices: gateway.Prices{"SOLUSDT": 30, "BTCUSDT": 20000}}
	history := func(context.Context, string, int) ([]market.TradeRecord, error) {
		return nil, errors.New("403")
	}
	s := New(prices, history, 10, nil)

	res, err := s.Seed(context.Background(), market.NewInstrument("SOL", "USDT", nil))
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Entry)
	assert.Equal(t, OriginSnapshot, res.Origin)

	_, err = s.Seed(context.Background(), market.NewInstrument("BTC", "USDT", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls, "snapshot is fetched once")
}

func TestSeedOnlySellHistoryFallsBackToSnapshot(t *testing.T) {
	prices := &staticPrices{prices: gateway.Prices{"SOLUSDT": 30}}
	history := func(context.Context, string, int) ([]market.TradeRecord, error) {
		return []market.TradeRecord{{Price: 25, Qty: 4, Side: market.Sell}}, nil
	}
	res, err := New(prices, history, 10, nil).Seed(context.Background(), market.NewInstrument("SOL", "USDT", nil))
	require.NoError(t, err)
	assert.Equal(t, OriginSnapshot, res.Origin)
	assert.Equal(t, -4.0, res.Position)
}

func TestSeedWithoutAccountHistoryKeepsZeroPosition(t *testing.T) {
	prices := &staticPrices{prices: gateway.Prices{"BTCUSDT": 20000}}
	res, err := New(prices, nil, 0, nil).Seed(context.Background(), market.NewInstrument("BTC", "USDT", nil))
	require.NoError(t, err)
	assert.Equal(t, Result{Entry: 20000, Current: 20000, Position: 0, Origin: OriginSnapshot}, res)
}

func TestSeedUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		prices *staticPrices
		inst   market.Instrument
	}{
		{"snapshot error", &staticPrices{err: errors.New("boom")}, market.NewInstrument("BTC", "USDT", nil)},
		{"symbol not listed", &staticPrices{prices: gateway.Prices{"BTCUSDT": 1}}, market.NewInstrument("XYZ", "USDT", nil)},
		{"zero snapshot price", &staticPrices{prices: gateway.Prices{"BTCUSDT": 0}}, market.NewInstrument("BTC", "USDT", nil)},
		{"zero configured entry", &staticPrices{prices: gateway.Prices{"BTCUSDT": 1}}, market.NewInstrument("BTC", "USDT", f(0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.prices, nil, 0, nil).Seed(context.Background(), tt.inst)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSeedPriceUnavailable)
		})
	}
}
