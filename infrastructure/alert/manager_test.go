package alert

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockChannel struct {
	name   string
	alerts []Alert
	err    error
}

func (c *mockChannel) Send(a Alert) error {
	if c.err != nil {
		return c.err
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *mockChannel) Name() string { return c.name }

func TestManagerSend(t *testing.T) {
	mock := &mockChannel{name: "mock"}
	mgr := NewManager([]Channel{mock}, time.Minute)

	if err := mgr.Warn("listener BTCUSDT disconnected", map[string]interface{}{"symbol": "BTCUSDT"}); err != nil {
		t.Fatalf("Warn failed: %v", err)
	}
	if len(mock.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(mock.alerts))
	}
	a := mock.alerts[0]
	if a.Level != LevelWarning {
		t.Errorf("level = %s, want WARNING", a.Level)
	}
	if a.Fields["symbol"] != "BTCUSDT" {
		t.Errorf("symbol field = %v", a.Fields["symbol"])
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if got := mgr.Channels(); len(got) != 1 || got[0] != "mock" {
		t.Errorf("channels = %v", got)
	}
}

func TestManagerThrottle(t *testing.T) {
	mock := &mockChannel{name: "mock"}
	mgr := NewManager([]Channel{mock}, time.Hour)

	_ = mgr.Warn("listener BTCUSDT disconnected", nil)
	_ = mgr.Warn("listener BTCUSDT disconnected", nil)
	_ = mgr.Warn("listener ETHUSDT disconnected", nil)
	_ = mgr.Info("listener BTCUSDT disconnected", nil)

	if len(mock.alerts) != 3 {
		t.Errorf("expected 3 alerts after throttling, got %d", len(mock.alerts))
	}
}

func TestThrottlerWindow(t *testing.T) {
	now := time.Unix(0, 0)
	th := NewThrottler(time.Minute)
	th.now = func() time.Time { return now }

	if !th.Allow("k") {
		t.Fatal("first call should pass")
	}
	now = now.Add(30 * time.Second)
	if th.Allow("k") {
		t.Error("call inside window should be throttled")
	}
	now = now.Add(31 * time.Second)
	if !th.Allow("k") {
		t.Error("call after window should pass")
	}
}

func TestManagerChannelErrors(t *testing.T) {
	bad := &mockChannel{name: "bad", err: errors.New("down")}
	good := &mockChannel{name: "good"}

	if err := NewManager([]Channel{bad, good}, 0).Critical("partial", nil); err != nil {
		t.Errorf("partial failure should not return error, got %v", err)
	}
	if err := NewManager([]Channel{bad}, 0).Critical("total", nil); err == nil {
		t.Error("expected error when every channel fails")
	}
}

func TestManagerWithoutChannels(t *testing.T) {
	var nilMgr *Manager
	if err := nilMgr.Warn("x", nil); err != nil {
		t.Errorf("nil manager: %v", err)
	}
	if err := NewManager(nil, 0).Warn("x", nil); err != nil {
		t.Errorf("empty manager: %v", err)
	}
}

func TestLogChannel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ch := NewLogChannel(zap.New(core))

	_ = ch.Send(Alert{Level: LevelWarning, Message: "listener BTCUSDT disconnected", Fields: map[string]interface{}{"symbol": "BTCUSDT"}})
	_ = ch.Send(Alert{Level: LevelCritical, Message: "boom"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["symbol"] != "BTCUSDT" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if entries[0].LoggerName != "alert" {
		t.Errorf("logger name = %q", entries[0].LoggerName)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("critical should log at error, got %s", entries[1].Level)
	}
}

func TestConsoleChannel(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	ch := NewConsoleChannel(&buf)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := ch.Send(Alert{Level: LevelWarning, Message: "config changed", Timestamp: ts, Fields: map[string]interface{}{"b": 2, "a": 1}}); err != nil {
		t.Fatal(err)
	}
	want := "[WARNING] 2024-01-02 03:04:05 - config changed | a=1 b=2\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !strings.HasPrefix(buf.String(), "[WARNING]") {
		t.Error("missing level tag")
	}
}
