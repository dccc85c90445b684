package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	appcfg "github.com/monomadic/cryptotrader-ticker/config"
)

const baseConfig = `
exchange:
  binance:
    BTC: { base: USDT, entry_price: 20000 }
`

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_ReportsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticker.yaml")
	writeConfig(t, path, baseConfig)

	changes := make(chan appcfg.AppConfig, 4)
	w, err := NewWatcher(path, WatchConfig{Enabled: true, Debounce: 20 * time.Millisecond}, func(next appcfg.AppConfig, err error) {
		if err == nil {
			changes <- next
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 等待 Add 完成
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, baseConfig+"    ETH: { base: USDT }\n")

	select {
	case next := <-changes:
		if got := len(next.Exchange["binance"]); got != 2 {
			t.Errorf("expected 2 pairs after reload, got %d", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	if w.LastReload().IsZero() {
		t.Error("LastReload not updated")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticker.yaml")
	writeConfig(t, path, baseConfig)

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, WatchConfig{Enabled: true, Debounce: 10 * time.Millisecond}, func(appcfg.AppConfig, error) {
		called <- struct{}{}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	writeConfig(t, filepath.Join(dir, "other.yaml"), "x: 1")

	select {
	case <-called:
		t.Fatal("handler called for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticker.yaml")
	writeConfig(t, path, baseConfig)

	w, err := NewWatcher(path, WatchConfig{Enabled: false}, nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestRestartRequired(t *testing.T) {
	entry := 20000.0
	other := 21000.0
	prev := appcfg.AppConfig{Source: "config", Exchange: map[string]map[string]appcfg.Pair{
		"binance": {"BTC": {Base: "USDT", EntryPrice: &entry}},
	}}

	same := appcfg.AppConfig{Source: "config", Exchange: map[string]map[string]appcfg.Pair{
		"binance": {"BTC": {Base: "USDT", EntryPrice: &entry}},
	}}
	same.Log.Level = "debug"
	if RestartRequired(prev, same, "binance") {
		t.Error("log level change should not require restart")
	}

	moved := appcfg.AppConfig{Source: "config", Exchange: map[string]map[string]appcfg.Pair{
		"binance": {"BTC": {Base: "USDT", EntryPrice: &other}},
	}}
	if !RestartRequired(prev, moved, "binance") {
		t.Error("entry price change should require restart")
	}

	added := appcfg.AppConfig{Source: "config", Exchange: map[string]map[string]appcfg.Pair{
		"binance": {"BTC": {Base: "USDT", EntryPrice: &entry}, "ETH": {Base: "USDT"}},
	}}
	if !RestartRequired(prev, added, "binance") {
		t.Error("new pair should require restart")
	}

	if !RestartRequired(prev, appcfg.AppConfig{Source: "balances"}, "binance") {
		t.Error("source change should require restart")
	}
}

func TestWatcher_ReloadUsesEnvCredentials(t *testing.T) {
	t.Setenv("TICKER_API_KEY", "env-key")
	t.Setenv("TICKER_API_SECRET", "env-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "ticker.yaml")
	writeConfig(t, path, "source: balances\nquote: USDT\n")

	var (
		got    appcfg.AppConfig
		gotErr error
		calls  int
	)
	w, err := NewWatcher(path, WatchConfig{Enabled: true}, func(next appcfg.AppConfig, err error) {
		got, gotErr = next, err
		calls++
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	w.handleChange()
	if calls != 1 {
		t.Fatalf("handler called %d times", calls)
	}
	if gotErr != nil {
		t.Fatalf("reload with env credentials failed: %v", gotErr)
	}
	if got.Gateway.APIKey != "env-key" || got.Gateway.APISecret != "env-secret" {
		t.Errorf("env credentials not applied: %+v", got.Gateway)
	}
	if got.Source != appcfg.SourceBalances {
		t.Errorf("source = %q", got.Source)
	}
}
