package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// PriceState 单个交易对的价格状态。
type PriceState struct {
	EntryPrice   float64
	CurrentPrice float64
	PositionSize float64
}

// Entry 快照中的一行。
type Entry struct {
	Symbol string
	PriceState
}

// ErrInvalidEntryPrice 入场价为 0 或非有限数，无法计算涨跌幅。
var ErrInvalidEntryPrice = errors.New("invalid entry price")

// DuplicateSeedError 同一交易对被重复 seed。
type DuplicateSeedError struct {
	Symbol string
}

func (e *DuplicateSeedError) Error() string {
	return fmt.Sprintf("symbol %s already seeded", e.Symbol)
}

// UnknownSymbolError 更新的交易对未 seed。
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %s", e.Symbol)
}

// PriceStore maps symbol to PriceState.
//
// It has no lock: the aggregation loop is its only owner and every method
// must be called from that goroutine. Listeners never touch it.
type PriceStore struct {
	states map[string]PriceState
}

func New() *PriceStore {
	return &PriceStore{states: make(map[string]PriceState)}
}

// Seed 插入新交易对；entry 一经写入不再改变。
func (s *PriceStore) Seed(symbol string, entry, current, position float64) error {
	if _, ok := s.states[symbol]; ok {
		return &DuplicateSeedError{Symbol: symbol}
	}
	if entry == 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return fmt.Errorf("%w for %s: %v", ErrInvalidEntryPrice, symbol, entry)
	}
	s.states[symbol] = PriceState{
		EntryPrice:   entry,
		CurrentPrice: current,
		PositionSize: position,
	}
	return nil
}

// ApplyUpdate 只修改 CurrentPrice；未知交易对不做任何修改。
func (s *PriceStore) ApplyUpdate(symbol string, price float64) error {
	st, ok := s.states[symbol]
	if !ok {
		return &UnknownSymbolError{Symbol: symbol}
	}
	st.CurrentPrice = price
	s.states[symbol] = st
	return nil
}

// Get 查询单个交易对。
func (s *PriceStore) Get(symbol string) (PriceState, bool) {
	st, ok := s.states[symbol]
	return st, ok
}

func (s *PriceStore) Len() int {
	return len(s.states)
}

// Snapshot 返回按 symbol 排序的副本。
func (s *PriceStore) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.states))
	for sym, st := range s.states {
		out = append(out, Entry{Symbol: sym, PriceState: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
