package market

import "testing"

func TestInstrumentKeyAndStream(t *testing.T) {
	seed := 20000.0
	inst := NewInstrument("btc", "usdt", &seed)
	seed = 1
	if inst.Key() != "BTCUSDT" {
		t.Fatalf("unexpected key %s", inst.Key())
	}
	if inst.Stream() != "btcusdt@aggTrade" {
		t.Fatalf("unexpected stream %s", inst.Stream())
	}
	if inst.SeedEntryPrice == nil || *inst.SeedEntryPrice != 20000 {
		t.Fatalf("seed should be copied, got %v", inst.SeedEntryPrice)
	}
}
