package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/monomadic/cryptotrader-ticker/market"
)

// OverflowPolicy 队列满时的处理方式。
type OverflowPolicy int

const (
	// OverflowBlock 生产者阻塞直到有空位，保持完整的单 symbol FIFO。
	OverflowBlock OverflowPolicy = iota
	// OverflowDropOldest 丢弃最早的、已被同 symbol 后续更新覆盖的条目。
	OverflowDropOldest
)

// ParseOverflowPolicy 解析配置值 block / drop-oldest。
func ParseOverflowPolicy(v string) (OverflowPolicy, error) {
	switch v {
	case "", "block":
		return OverflowBlock, nil
	case "drop-oldest":
		return OverflowDropOldest, nil
	}
	return OverflowBlock, fmt.Errorf("unknown overflow policy %q", v)
}

func (p OverflowPolicy) String() string {
	if p == OverflowDropOldest {
		return "drop-oldest"
	}
	return "block"
}

// Mux is the multi-producer / single-consumer fan-in between listeners and
// the aggregation loop. Emit is safe for concurrent use; Next must only be
// called by the loop.
//
// Under OverflowDropOldest the queue never discards the newest pending
// update of a symbol, so the last value a listener emitted always reaches the
// consumer. If every queued entry is the newest for its symbol the queue
// grows past its bound by at most the number of distinct symbols.
type Mux struct {
	policy     OverflowPolicy
	size       int
	onOverflow func(dropped market.PriceUpdate)
	overflows  atomic.Uint64

	// block
	ch chan market.PriceUpdate

	// drop-oldest
	mu    sync.Mutex
	queue []market.PriceUpdate
	ready chan struct{}
}

// NewMux 创建容量为 size 的队列；drop-oldest 下 size 最小为 1。
func NewMux(size int, policy OverflowPolicy, onOverflow func(market.PriceUpdate)) *Mux {
	if size < 0 {
		size = 0
	}
	m := &Mux{policy: policy, size: size, onOverflow: onOverflow}
	if policy == OverflowDropOldest {
		if m.size < 1 {
			m.size = 1
		}
		m.queue = make([]market.PriceUpdate, 0, m.size)
		m.ready = make(chan struct{}, 1)
	} else {
		m.ch = make(chan market.PriceUpdate, size)
	}
	return m
}

// Emit 发送一条更新；block 策略下 ctx 结束时放弃并返回 ctx.Err()。
func (m *Mux) Emit(ctx context.Context, u market.PriceUpdate) error {
	if m.policy == OverflowBlock {
		select {
		case m.ch <- u:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	var (
		dropped market.PriceUpdate
		evicted bool
	)
	if len(m.queue) >= m.size {
		dropped, evicted = m.evictSupersededLocked(u.Symbol)
	}
	m.queue = append(m.queue, u)
	m.mu.Unlock()

	if evicted {
		m.overflows.Add(1)
		if m.onOverflow != nil {
			m.onOverflow(dropped)
		}
	}
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return nil
}

// evictSupersededLocked removes the oldest entry that has a later entry for
// the same symbol, counting the incoming symbol as a later entry.
func (m *Mux) evictSupersededLocked(incoming string) (market.PriceUpdate, bool) {
	later := make(map[string]int, len(m.queue)+1)
	later[incoming]++
	for _, q := range m.queue {
		later[q.Symbol]++
	}
	for i, q := range m.queue {
		if later[q.Symbol] > 1 {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return q, true
		}
		later[q.Symbol]--
	}
	return market.PriceUpdate{}, false
}

// Next 阻塞等待下一条更新，ctx 结束时返回 ctx.Err()。
func (m *Mux) Next(ctx context.Context) (market.PriceUpdate, error) {
	if m.policy == OverflowBlock {
		select {
		case u := <-m.ch:
			return u, nil
		case <-ctx.Done():
			return market.PriceUpdate{}, ctx.Err()
		}
	}
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			u := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return u, nil
		}
		m.mu.Unlock()
		select {
		case <-m.ready:
		case <-ctx.Done():
			return market.PriceUpdate{}, ctx.Err()
		}
	}
}

// Len 当前排队数量。
func (m *Mux) Len() int {
	if m.policy == OverflowBlock {
		return len(m.ch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Overflows 累计丢弃数量。
func (m *Mux) Overflows() uint64 {
	return m.overflows.Load()
}
