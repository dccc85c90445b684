package market

import "fmt"

// Side 成交方向。
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// TradeRecord represents one historical fill used for seeding.
type TradeRecord struct {
	Price    float64
	Qty      float64
	Side     Side
	Sequence int64
}

// PriceUpdate 从 listener 经 fan-in 通道流向聚合循环的消息。
type PriceUpdate struct {
	Symbol string
	Price  float64
}
