package store

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAndApplyUpdate(t *testing.T) {
	st := New()
	require.NoError(t, st.Seed("BTCUSDT", 20000, 20000, 0.5))
	require.NoError(t, st.ApplyUpdate("BTCUSDT", 21000))

	got, ok := st.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, PriceState{EntryPrice: 20000, CurrentPrice: 21000, PositionSize: 0.5}, got)
}

func TestSeedDuplicate(t *testing.T) {
	st := New()
	require.NoError(t, st.Seed("BTCUSDT", 1, 1, 0))
	err := st.Seed("BTCUSDT", 2, 2, 0)
	var dup *DuplicateSeedError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "BTCUSDT", dup.Symbol)

	got, _ := st.Get("BTCUSDT")
	assert.Equal(t, 1.0, got.EntryPrice)
}

func TestSeedRejectsInvalidEntry(t *testing.T) {
	st := New()
	for _, entry := range []float64{0, math.NaN(), math.Inf(1)} {
		err := st.Seed("X", entry, 1, 0)
		assert.True(t, errors.Is(err, ErrInvalidEntryPrice), "entry %v: %v", entry, err)
	}
	assert.Equal(t, 0, st.Len())
}

func TestApplyUpdateUnknownSymbolDoesNotMutate(t *testing.T) {
	st := New()
	require.NoError(t, st.Seed("BTCUSDT", 20000, 20000, 0))
	before := st.Snapshot()

	for i := 0; i < 3; i++ {
		err := st.ApplyUpdate("ETHUSDT", 100)
		var unknown *UnknownSymbolError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "ETHUSDT", unknown.Symbol)
	}
	assert.Equal(t, before, st.Snapshot())
	_, ok := st.Get("ETHUSDT")
	assert.False(t, ok)
}

func TestEntryPriceInvariantUnderUpdates(t *testing.T) {
	st := New()
	require.NoError(t, st.Seed("A", 10, 10, 0))
	require.NoError(t, st.Seed("B", 3, 3, 0))
	updates := []struct {
		sym   string
		price float64
	}{{"A", 11}, {"B", 1}, {"C", 5}, {"A", 0.5}, {"B", 99}}
	for _, u := range updates {
		_ = st.ApplyUpdate(u.sym, u.price)
		a, _ := st.Get("A")
		b, _ := st.Get("B")
		assert.Equal(t, 10.0, a.EntryPrice)
		assert.Equal(t, 3.0, b.EntryPrice)
	}
	a, _ := st.Get("A")
	b, _ := st.Get("B")
	assert.Equal(t, 0.5, a.CurrentPrice)
	assert.Equal(t, 99.0, b.CurrentPrice)
}

func TestSnapshotIsSortedCopy(t *testing.T) {
	st := New()
	require.NoError(t, st.Seed("ETHBTC", 0.06, 0.06, 0))
	require.NoError(t, st.Seed("BTCUSDT", 20000, 20000, 0))

	snap := st.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "BTCUSDT", snap[0].Symbol)
	assert.Equal(t, "ETHBTC", snap[1].Symbol)

	snap[0].CurrentPrice = 1
	got, _ := st.Get("BTCUSDT")
	assert.Equal(t, 20000.0, got.CurrentPrice)
}
