package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# TYPE ticker_engine_state gauge
ticker_engine_state 1
# TYPE ticker_listeners_active gauge
ticker_listeners_active 2
# TYPE ticker_price_current gauge
ticker_price_current{symbol="BTCUSDT"} 21000
ticker_price_current{symbol="ETHBTC"} 0.0494
# TYPE ticker_percent_change gauge
ticker_percent_change{symbol="BTCUSDT"} 5
ticker_percent_change{symbol="ETHBTC"} -1.2
# TYPE ticker_updates_applied_total counter
ticker_updates_applied_total{symbol="BTCUSDT"} 12
ticker_updates_applied_total{symbol="ETHBTC"} 3
`

func TestReport(t *testing.T) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report(&buf, families))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "engine_state=1 listeners_active=2", lines[0])
	assert.Contains(t, lines[1], "BTCUSDT")
	assert.Contains(t, lines[1], "change=+5.00%")
	assert.Contains(t, lines[1], "updates=12")
	assert.Contains(t, lines[2], "ETHBTC")
	assert.Contains(t, lines[2], "change=-1.20%")
}
