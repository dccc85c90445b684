package market

import (
	"iter"
	"sort"

	"github.com/shopspring/decimal"
)

// VWAPPoint 累计成交量加权均价及累计数量。
type VWAPPoint struct {
	Price float64
	Qty   float64
}

// GroupBySide 按 Sequence 排序后按方向拆分；同一方向内保持时间顺序。
// 没有成交的方向不会出现在结果中。
func GroupBySide(trades []TradeRecord) map[Side][]TradeRecord {
	ordered := make([]TradeRecord, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	groups := make(map[Side][]TradeRecord, 2)
	for _, tr := range ordered {
		groups[tr.Side] = append(groups[tr.Side], tr)
	}
	return groups
}

// RunningVWAP lazily yields the running volume-weighted average after each
// trade. Notional and quantity are accumulated in decimal so the average is
// computed from exact sums rather than from the previous rounded average.
// Trades that leave the cumulative quantity at zero are skipped.
func RunningVWAP(trades []TradeRecord) iter.Seq[VWAPPoint] {
	return func(yield func(VWAPPoint) bool) {
		notional := decimal.Zero
		cumQty := decimal.Zero
		for _, tr := range trades {
			price := decimal.NewFromFloat(tr.Price)
			qty := decimal.NewFromFloat(tr.Qty)
			nextQty := cumQty.Add(qty)
			if nextQty.IsZero() {
				continue
			}
			notional = notional.Add(price.Mul(qty))
			cumQty = nextQty
			pt := VWAPPoint{
				Price: notional.Div(cumQty).InexactFloat64(),
				Qty:   cumQty.InexactFloat64(),
			}
			if !yield(pt) {
				return
			}
		}
	}
}

// Last 返回序列最后一个元素；空序列返回 false。
func Last(seq iter.Seq[VWAPPoint]) (VWAPPoint, bool) {
	var (
		last VWAPPoint
		ok   bool
	)
	for pt := range seq {
		last, ok = pt, true
	}
	return last, ok
}

// Summarize 返回每个方向的全量 VWAP 与总成交量。
func Summarize(trades []TradeRecord) map[Side]VWAPPoint {
	out := make(map[Side]VWAPPoint, 2)
	for side, group := range GroupBySide(trades) {
		if pt, ok := Last(RunningVWAP(group)); ok {
			out[side] = pt
		}
	}
	return out
}
