package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// 抓取运行中 ticker 的 /metrics，打印每个交易对的价格与涨跌幅。
func main() {
	addr := flag.String("metricsAddr", "127.0.0.1:9100", "ticker 的 metrics 地址")
	timeout := flag.Duration("timeout", 3*time.Second, "请求超时")
	flag.Parse()

	url := *addr
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}
	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(strings.TrimRight(url, "/") + "/metrics")
	if err != nil {
		log.Fatalf("抓取指标失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("抓取指标失败: %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		log.Fatalf("解析指标失败: %v", err)
	}

	if err := report(os.Stdout, families); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}

func report(w io.Writer, families map[string]*dto.MetricFamily) error {
	prices := bySymbol(families["ticker_price_current"])
	pcts := bySymbol(families["ticker_percent_change"])
	applied := bySymbol(families["ticker_updates_applied_total"])

	symbols := make([]string, 0, len(prices))
	for s := range prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	fmt.Fprintf(w, "engine_state=%v listeners_active=%v\n",
		scalar(families["ticker_engine_state"]), scalar(families["ticker_listeners_active"]))
	for _, s := range symbols {
		if _, err := fmt.Fprintf(w, "%-12s price=%-14g change=%+.2f%% updates=%.0f\n", s, prices[s], pcts[s], applied[s]); err != nil {
			return err
		}
	}
	return nil
}

func bySymbol(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		var sym string
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "symbol" {
				sym = lp.GetValue()
			}
		}
		if sym == "" {
			continue
		}
		out[sym] = value(m)
	}
	return out
}

func scalar(mf *dto.MetricFamily) float64 {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	return value(mf.GetMetric()[0])
}

func value(m *dto.Metric) float64 {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	}
	return 0
}
