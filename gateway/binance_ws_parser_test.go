package gateway

import (
	"errors"
	"testing"
)

func TestParseCombinedDepth(t *testing.T) {
	raw := []byte(`{
		"stream":"btcusdt@depth20@100ms",
		"data":{
		  "e":"depthUpdate",
		  "s":"BTCUSDT",
		  "b":[["100.1","1.2"],["100.0","2"]],
		  "a":[["100.2","1.1"],["100.3","2.2"]]
		}
	}`)
	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ev.Kind != EventDepth || ev.Stream != "btcusdt@depth20@100ms" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Depth.Symbol != "BTCUSDT" || ev.Depth.BestBid != 100.1 || ev.Depth.BestAsk != 100.2 || ev.Depth.Levels != 4 {
		t.Fatalf("unexpected depth: %+v", ev.Depth)
	}
}

func TestParseAggTrade(t *testing.T) {
	raw := []byte(`{"e":"aggTrade","E":123456789,"s":"BTCUSDT","a":12345,"p":"21000.50","q":"0.01","f":100,"l":105,"T":123456785,"m":true,"M":true}`)
	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ev.Kind != EventAggTrade || ev.AggTrade == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.AggTrade.Symbol != "BTCUSDT" || ev.AggTrade.TradeID != 12345 || !ev.AggTrade.BuyerMaker {
		t.Fatalf("unexpected trade %+v", ev.AggTrade)
	}
	price, err := ev.AggTrade.PriceFloat()
	if err != nil || price != 21000.5 {
		t.Fatalf("unexpected price %v err %v", price, err)
	}
}

func TestParseCombinedAggTrade(t *testing.T) {
	raw := []byte(`{"stream":"ethbtc@aggTrade","data":{"e":"aggTrade","s":"ETHBTC","p":"0.061","q":"1"}}`)
	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ev.Kind != EventAggTrade || ev.AggTrade.Symbol != "ETHBTC" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestParsePartialBook(t *testing.T) {
	raw := []byte(`{"lastUpdateId":160,"bids":[["0.0024","10"]],"asks":[["0.0026","100"]]}`)
	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ev.Kind != EventPartialBook || ev.Depth.BestBid != 0.0024 || ev.Depth.BestAsk != 0.0026 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestParseUnknownEvent(t *testing.T) {
	ev, err := ParseStreamEvent([]byte(`{"e":"kline","s":"BTCUSDT"}`))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ev.Kind != EventUnknown {
		t.Fatalf("expected unknown, got %s", ev.Kind)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := ParseStreamEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPriceFloatRejectsBadValues(t *testing.T) {
	for _, p := range []string{"", "abc", "NaN", "Inf", "0", "-1"} {
		_, err := AggTradeEvent{Price: p}.PriceFloat()
		if !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %q: expected ErrInvalidPrice, got %v", p, err)
		}
	}
}

func TestParseAggTradeKeepsCaseSensitiveFields(t *testing.T) {
	raw := []byte(`{"e":"aggTrade","E":1,"s":"BTCUSDT","p":"1","q":"1","T":2,"m":false,"M":true}`)
	ev, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if ev.AggTrade.BuyerMaker || !ev.AggTrade.Ignore || ev.AggTrade.EventTime != 1 || ev.AggTrade.EventType != "aggTrade" {
		t.Fatalf("fields mixed up: %+v", ev.AggTrade)
	}
}
