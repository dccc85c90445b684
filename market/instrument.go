package market

import "strings"

// Instrument 一个被跟踪的交易对；启动时从配置/账户构建，之后不可变。
type Instrument struct {
	Symbol         string
	Quote          string
	SeedEntryPrice *float64
}

// NewInstrument 构建交易对，seed 可为 nil。
func NewInstrument(symbol, quote string, seed *float64) Instrument {
	inst := Instrument{
		Symbol: strings.TrimSpace(symbol),
		Quote:  strings.TrimSpace(quote),
	}
	if seed != nil {
		v := *seed
		inst.SeedEntryPrice = &v
	}
	return inst
}

// Key 返回存储键，例如 BTCUSDT。
func (i Instrument) Key() string {
	return strings.ToUpper(i.Symbol + i.Quote)
}

// Stream 返回 aggTrade 订阅名，例如 btcusdt@aggTrade。
func (i Instrument) Stream() string {
	return strings.ToLower(i.Symbol+i.Quote) + "@aggTrade"
}

func (i Instrument) String() string {
	return i.Key()
}
