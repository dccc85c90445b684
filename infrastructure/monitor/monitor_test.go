package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordApplied(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordApplied("BTCUSDT", 21000, 5)
	m.RecordApplied("BTCUSDT", 21500, 7.5)

	if got := testutil.ToFloat64(m.updatesApplied.WithLabelValues("BTCUSDT")); got != 2 {
		t.Errorf("Expected 2 applied updates, got %f", got)
	}
	if got := testutil.ToFloat64(m.currentPrice.WithLabelValues("BTCUSDT")); got != 21500 {
		t.Errorf("Expected price 21500, got %f", got)
	}
	if got := testutil.ToFloat64(m.percentChange.WithLabelValues("BTCUSDT")); got != 7.5 {
		t.Errorf("Expected percent 7.5, got %f", got)
	}
}

func TestListenerGauges(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordWSConnection("A")
	m.RecordWSConnection("B")
	m.RecordWSDisconnect("A")
	m.RecordListenerExit()

	if got := testutil.ToFloat64(m.listenersActive); got != 1 {
		t.Errorf("Expected 1 active listener, got %f", got)
	}
	if got := testutil.ToFloat64(m.wsDisconnects.WithLabelValues("A")); got != 1 {
		t.Errorf("Expected 1 disconnect, got %f", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordDropped("unknown_symbol")
	m.RecordMalformed("ETHBTC")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`ticker_updates_dropped_total{reason="unknown_symbol"} 1`,
		`ticker_malformed_messages_total{symbol="ETHBTC"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
