package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// EventKind 流消息类型。
type EventKind int

const (
	EventUnknown EventKind = iota
	EventAggTrade
	EventDepth
	EventPartialBook
)

func (k EventKind) String() string {
	switch k {
	case EventAggTrade:
		return "aggTrade"
	case EventDepth:
		return "depthUpdate"
	case EventPartialBook:
		return "partialBook"
	default:
		return "unknown"
	}
}

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// AggTradeEvent 提取 @aggTrade 消息的核心字段；价格保留原始字符串。
// encoding/json 对 key 大小写不敏感，E/M 必须显式声明，否则会落到 e/m 上。
type AggTradeEvent struct {
	EventType  string `json:"e"`
	EventTime  int64  `json:"E"`
	Symbol     string `json:"s"`
	TradeID    int64  `json:"a"`
	Price      string `json:"p"`
	Qty        string `json:"q"`
	FirstID    int64  `json:"f"`
	LastID     int64  `json:"l"`
	TradeTime  int64  `json:"T"`
	BuyerMaker bool   `json:"m"`
	Ignore     bool   `json:"M"`
}

// ErrInvalidPrice 价格字段无法解析为正的有限数。
var ErrInvalidPrice = errors.New("invalid trade price")

// PriceFloat 解析成交价。
func (e AggTradeEvent) PriceFloat() (float64, error) {
	v, err := strconv.ParseFloat(e.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidPrice, e.Price, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidPrice, e.Price)
	}
	return v, nil
}

// DepthEvent 深度增量或部分订单簿快照，只保留最优档位。
type DepthEvent struct {
	Symbol  string
	BestBid float64
	BestAsk float64
	Levels  int
}

type depthWire struct {
	EventType string           `json:"e"`
	EventTime int64            `json:"E"`
	Symbol    string           `json:"s"`
	Bids      [][2]json.Number `json:"b"`
	Asks      [][2]json.Number `json:"a"`
}

type partialBookWire struct {
	LastUpdateID int64            `json:"lastUpdateId"`
	Bids         [][2]json.Number `json:"bids"`
	Asks         [][2]json.Number `json:"asks"`
}

// StreamEvent 解析后的一条流消息。
type StreamEvent struct {
	Kind     EventKind
	Stream   string
	AggTrade *AggTradeEvent
	Depth    *DepthEvent
}

type envelope struct {
	EventType    string          `json:"e"`
	EventTime    int64           `json:"E"`
	Stream       string          `json:"stream"`
	Data         json.RawMessage `json:"data"`
	LastUpdateID *int64          `json:"lastUpdateId"`
}

// ParseStreamEvent 解析原始或 combined 流消息。
// 未识别的事件类型返回 EventUnknown 且不报错。
func ParseStreamEvent(raw []byte) (StreamEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return StreamEvent{}, fmt.Errorf("decode stream message: %w", err)
	}
	ev := StreamEvent{Stream: env.Stream}
	payload := raw
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
		env = envelope{}
		if err := json.Unmarshal(payload, &env); err != nil {
			return ev, fmt.Errorf("decode stream data: %w", err)
		}
	}

	switch {
	case env.EventType == "aggTrade":
		var tr AggTradeEvent
		if err := json.Unmarshal(payload, &tr); err != nil {
			return ev, fmt.Errorf("decode aggTrade: %w", err)
		}
		ev.Kind = EventAggTrade
		ev.AggTrade = &tr
	case env.EventType == "depthUpdate":
		var d depthWire
		if err := json.Unmarshal(payload, &d); err != nil {
			return ev, fmt.Errorf("decode depthUpdate: %w", err)
		}
		ev.Kind = EventDepth
		ev.Depth = bestLevels(d.Symbol, d.Bids, d.Asks)
	case env.EventType == "" && env.LastUpdateID != nil:
		var pb partialBookWire
		if err := json.Unmarshal(payload, &pb); err != nil {
			return ev, fmt.Errorf("decode partial book: %w", err)
		}
		ev.Kind = EventPartialBook
		ev.Depth = bestLevels("", pb.Bids, pb.Asks)
	default:
		ev.Kind = EventUnknown
	}
	return ev, nil
}

func bestLevels(symbol string, bids, asks [][2]json.Number) *DepthEvent {
	d := &DepthEvent{Symbol: symbol, Levels: len(bids) + len(asks)}
	if len(bids) > 0 {
		d.BestBid, _ = bids[0][0].Float64()
	}
	if len(asks) > 0 {
		d.BestAsk, _ = asks[0][0].Float64()
	}
	return d
}
